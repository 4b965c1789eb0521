package facilitate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/viant/facilitor/model/ambiance"
	"github.com/viant/facilitor/model/execution"
	"github.com/viant/facilitor/model/plan"
)

type stubFacilitator struct {
	name     string
	decision *Decision
	err      error
	called   int
}

func (s *stubFacilitator) Name() string { return s.name }

func (s *stubFacilitator) Facilitate(_ context.Context, _ *ambiance.Ambiance, _ map[string]interface{}) (*Decision, error) {
	s.called++
	return s.decision, s.err
}

func newTestExecution(node *plan.Node) *execution.NodeExecution {
	amb := ambiance.New("plan-1", map[string]string{ambiance.AccountIDKey: "acct"})
	amb = amb.PushLevel(ambiance.Level{RuntimeID: "rt-1", Identifier: node.Identifier, Group: node.Group})
	return execution.NewNodeExecution(node.ID, amb)
}

func TestService_Facilitate(t *testing.T) {
	testCases := []struct {
		description  string
		facilitators []*stubFacilitator
		node         *plan.Node
		expectMode   Mode
		expectConfig bool
	}{
		{
			description: "first non-nil decision wins",
			facilitators: []*stubFacilitator{
				{name: "skipMe", decision: nil},
				{name: "pickMe", decision: &Decision{Mode: ModeSync}},
				{name: "neverReached", decision: &Decision{Mode: ModeAsync}},
			},
			node: (&plan.Node{ID: "n1", Identifier: "build"}).
				WithObtainment("skipMe", nil).
				WithObtainment("pickMe", nil).
				WithObtainment("neverReached", nil),
			expectMode: ModeSync,
		},
		{
			description: "all nil decisions is a configuration error",
			facilitators: []*stubFacilitator{
				{name: "first", decision: nil},
				{name: "second", decision: nil},
			},
			node: (&plan.Node{ID: "n2", Identifier: "deploy"}).
				WithObtainment("first", nil).
				WithObtainment("second", nil),
			expectConfig: true,
		},
		{
			description:  "unknown facilitator type is a configuration error",
			facilitators: []*stubFacilitator{},
			node: (&plan.Node{ID: "n3", Identifier: "verify"}).
				WithObtainment("missing", nil),
			expectConfig: true,
		},
	}

	for _, testCase := range testCases {
		registry := NewRegistry()
		for _, facilitator := range testCase.facilitators {
			registry.Register(facilitator)
		}
		service := New(registry)
		anExecution := newTestExecution(testCase.node)

		decision, err := service.Facilitate(context.Background(), anExecution, testCase.node)
		if testCase.expectConfig {
			assert.Nil(t, decision, testCase.description)
			var configErr *ConfigurationError
			assert.ErrorAs(t, err, &configErr, testCase.description)
			continue
		}
		if !assert.NoError(t, err, testCase.description) {
			continue
		}
		assert.Equal(t, testCase.expectMode, decision.Mode, testCase.description)
	}
}

func TestService_Facilitate_stopsAfterDecision(t *testing.T) {
	picked := &stubFacilitator{name: "picked", decision: &Decision{Mode: ModeTask}}
	never := &stubFacilitator{name: "never", decision: &Decision{Mode: ModeSync}}
	registry := NewRegistry()
	registry.Register(picked)
	registry.Register(never)
	service := New(registry)

	node := (&plan.Node{ID: "n1"}).WithObtainment("picked", nil).WithObtainment("never", nil)
	decision, err := service.Facilitate(context.Background(), newTestExecution(node), node)
	assert.NoError(t, err)
	assert.Equal(t, ModeTask, decision.Mode)
	assert.Equal(t, 1, picked.called)
	assert.Equal(t, 0, never.called)
}

func TestBuiltinFacilitators(t *testing.T) {
	registry := NewRegistry()
	RegisterBuiltins(registry)
	service := New(registry)

	testCases := []struct {
		description string
		node        *plan.Node
		expect      *Decision
		expectErr   bool
	}{
		{
			description: "sync with initial wait",
			node: (&plan.Node{ID: "n1"}).
				WithObtainment("sync", map[string]interface{}{"initialWait": "30s"}),
			expect: &Decision{Mode: ModeSync, InitialWait: 30 * time.Second},
		},
		{
			description: "async without parameters",
			node:        (&plan.Node{ID: "n2"}).WithObtainment("async", nil),
			expect:      &Decision{Mode: ModeAsync},
		},
		{
			description: "task with category",
			node: (&plan.Node{ID: "n3"}).
				WithObtainment("task", map[string]interface{}{"category": "deployment"}),
			expect: &Decision{Mode: ModeTask, PassThrough: map[string]interface{}{"category": "deployment"}},
		},
		{
			description: "child with node id",
			node: (&plan.Node{ID: "n4"}).
				WithObtainment("child", map[string]interface{}{"nodeId": "n4.1"}),
			expect: &Decision{Mode: ModeChild, ChildNodeID: "n4.1"},
		},
		{
			description: "children with node ids",
			node: (&plan.Node{ID: "n5"}).
				WithObtainment("children", map[string]interface{}{"nodeIds": []string{"n5.1", "n5.2"}}),
			expect: &Decision{Mode: ModeChildren, ChildNodeIDs: []string{"n5.1", "n5.2"}},
		},
		{
			description: "child without node id fails",
			node:        (&plan.Node{ID: "n6"}).WithObtainment("child", map[string]interface{}{}),
			expectErr:   true,
		},
		{
			description: "invalid initial wait fails",
			node: (&plan.Node{ID: "n7"}).
				WithObtainment("sync", map[string]interface{}{"initialWait": "soon"}),
			expectErr: true,
		},
	}

	for _, testCase := range testCases {
		decision, err := service.Facilitate(context.Background(), newTestExecution(testCase.node), testCase.node)
		if testCase.expectErr {
			var configErr *ConfigurationError
			assert.ErrorAs(t, err, &configErr, testCase.description)
			continue
		}
		if !assert.NoError(t, err, testCase.description) {
			continue
		}
		assert.EqualValues(t, testCase.expect, decision, testCase.description)
	}
}
