package approval

import (
	"fmt"
	"strings"

	"github.com/viant/facilitor/model/evaluator"
	"github.com/viant/toolbox"
)

// evaluateCriteria decides whether the criteria is met by the supplied
// ticket fields.  An evaluation problem is returned as *EvaluationError so
// the caller can fail the instance rather than retry forever.
func evaluateCriteria(criteria *Criteria, eval evaluator.Evaluator, fields map[string]interface{}) (bool, error) {
	if criteria.IsEmpty() {
		return false, nil
	}
	if criteria.Expression != "" {
		return eval.EvaluateBool(criteria.Expression, fields)
	}
	matched := 0
	for _, condition := range criteria.Conditions {
		ok, err := matchCondition(&condition, fields)
		if err != nil {
			return false, err
		}
		if ok {
			if criteria.MatchAny {
				return true, nil
			}
			matched++
		}
	}
	if criteria.MatchAny {
		return false, nil
	}
	return matched == len(criteria.Conditions), nil
}

func matchCondition(condition *Condition, fields map[string]interface{}) (bool, error) {
	value, ok := fields[condition.Key]
	if !ok {
		return false, nil
	}
	var text string
	if err := toolbox.DefaultConverter.AssignConverted(&text, value); err != nil {
		return false, &evaluator.EvaluationError{
			Expression: condition.Key,
			Reason:     fmt.Sprintf("cannot read ticket field: %v", err),
		}
	}
	switch condition.Operator {
	case "", "equals":
		return strings.EqualFold(text, condition.Value), nil
	case "notEquals":
		return !strings.EqualFold(text, condition.Value), nil
	case "in":
		for _, candidate := range strings.Split(condition.Value, ",") {
			if strings.EqualFold(text, strings.TrimSpace(candidate)) {
				return true, nil
			}
		}
		return false, nil
	}
	return false, &evaluator.EvaluationError{
		Expression: condition.Key,
		Reason:     fmt.Sprintf("unknown criteria operator %q", condition.Operator),
	}
}

// describeCriteria renders the criteria for audit lines.
func describeCriteria(criteria *Criteria) string {
	if criteria.IsEmpty() {
		return "<none>"
	}
	if criteria.Expression != "" {
		return criteria.Expression
	}
	terms := make([]string, 0, len(criteria.Conditions))
	for _, condition := range criteria.Conditions {
		operator := condition.Operator
		if operator == "" {
			operator = "equals"
		}
		terms = append(terms, fmt.Sprintf("%v %v %v", condition.Key, operator, condition.Value))
	}
	joiner := " AND "
	if criteria.MatchAny {
		joiner = " OR "
	}
	return strings.Join(terms, joiner)
}
