package evaluator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestService_Evaluate(t *testing.T) {
	evaluator := New()

	tests := []struct {
		name     string
		expr     string
		state    map[string]interface{}
		expected interface{}
		hasError bool
	}{
		{
			name:     "simple variable",
			expr:     "foo",
			state:    map[string]interface{}{"foo": "bar"},
			expected: "bar",
		},
		{
			name:     "nested property",
			expr:     "user.name",
			state:    map[string]interface{}{"user": map[string]interface{}{"name": "John"}},
			expected: "John",
		},
		{
			name:     "array indexing",
			expr:     "users[1]",
			state:    map[string]interface{}{"users": []interface{}{"John", "Jane"}},
			expected: "Jane",
		},
		{
			name:     "arithmetic with wrapper",
			expr:     "${x + 10}",
			state:    map[string]interface{}{"x": 5},
			expected: 15,
		},
		{
			name:     "boolean comparison",
			expr:     "${x > y}",
			state:    map[string]interface{}{"x": 10, "y": 5},
			expected: true,
		},
		{
			name:     "logical and short-circuit",
			expr:     "false && missing",
			state:    map[string]interface{}{},
			expected: false,
		},
		{
			name:     "string equality with single quotes",
			expr:     "env == 'prod'",
			state:    map[string]interface{}{"env": "prod"},
			expected: true,
		},
		{
			name:     "len over slice",
			expr:     "len(items) == 2",
			state:    map[string]interface{}{"items": []interface{}{1, 2}},
			expected: true,
		},
		{
			name:     "unresolved reference",
			expr:     "unknown",
			state:    map[string]interface{}{},
			hasError: true,
		},
		{
			name:     "malformed expression",
			expr:     "x >",
			state:    map[string]interface{}{"x": 1},
			hasError: true,
		},
		{
			name:     "division by zero",
			expr:     "x / 0",
			state:    map[string]interface{}{"x": 1},
			hasError: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			actual, err := evaluator.Evaluate(tc.expr, tc.state)
			if tc.hasError {
				assert.Error(t, err)
				var evaluationErr *EvaluationError
				assert.ErrorAs(t, err, &evaluationErr)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tc.expected, actual)
		})
	}
}

func TestService_EvaluateBool(t *testing.T) {
	evaluator := New()

	value, err := evaluator.EvaluateBool("true", nil)
	assert.NoError(t, err)
	assert.True(t, value)

	value, err = evaluator.EvaluateBool("flag", map[string]interface{}{"flag": "true"})
	assert.NoError(t, err)
	assert.True(t, value)

	_, err = evaluator.EvaluateBool("user", map[string]interface{}{"user": map[string]interface{}{}})
	assert.Error(t, err)
}
