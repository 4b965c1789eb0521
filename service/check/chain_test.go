package check

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/viant/facilitor/model/ambiance"
	"github.com/viant/facilitor/model/evaluator"
	"github.com/viant/facilitor/model/execution"
	"github.com/viant/facilitor/model/plan"
	ememory "github.com/viant/facilitor/service/dao/execution/memory"
	"github.com/viant/facilitor/service/event"
	"github.com/viant/facilitor/service/interrupt"
)

func newNodeExecution(t *testing.T, dao *ememory.Service) *execution.NodeExecution {
	amb := ambiance.New("plan-1", map[string]string{ambiance.AccountIDKey: "acc"}).
		PushLevel(ambiance.Level{RuntimeID: "rt-1", Identifier: "step1", Group: plan.GroupStep})
	nodeExecution := execution.NewNodeExecution("node-1", amb)
	assert.NoError(t, dao.Save(context.Background(), nodeExecution))
	return nodeExecution
}

func TestChain_Run(t *testing.T) {
	testCases := []struct {
		name           string
		node           *plan.Node
		expectProceed  bool
		expectedStatus execution.Status
	}{
		{
			name:           "no conditions proceeds",
			node:           &plan.Node{ID: "node-1"},
			expectProceed:  true,
			expectedStatus: execution.StatusQueued,
		},
		{
			name:           "skip condition true skips",
			node:           &plan.Node{ID: "node-1", Skip: "true"},
			expectProceed:  false,
			expectedStatus: execution.StatusSkipped,
		},
		{
			name:           "skip condition false proceeds",
			node:           &plan.Node{ID: "node-1", Skip: "false"},
			expectProceed:  true,
			expectedStatus: execution.StatusQueued,
		},
		{
			name:           "malformed skip condition fails closed",
			node:           &plan.Node{ID: "node-1", Skip: "]["},
			expectProceed:  false,
			expectedStatus: execution.StatusFailed,
		},
		{
			name:           "when condition false skips",
			node:           &plan.Node{ID: "node-1", When: "false"},
			expectProceed:  false,
			expectedStatus: execution.StatusSkipped,
		},
		{
			name:           "when condition true proceeds",
			node:           &plan.Node{ID: "node-1", When: "true"},
			expectProceed:  true,
			expectedStatus: execution.StatusQueued,
		},
		{
			name:           "malformed when condition fails closed",
			node:           &plan.Node{ID: "node-1", When: "1 +"},
			expectProceed:  false,
			expectedStatus: execution.StatusFailed,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			executionDao := ememory.New()
			nodeExecution := newNodeExecution(t, executionDao)
			chain := New(executionDao, interrupt.New(), evaluator.New(), event.NewObservers())

			result, err := chain.Run(ctx, nodeExecution, tc.node)
			assert.NoError(t, err)
			assert.Equal(t, tc.expectProceed, result.Proceed)

			stored, err := executionDao.Load(ctx, nodeExecution.UUID)
			assert.NoError(t, err)
			assert.Equal(t, tc.expectedStatus, stored.Status)

			if tc.expectedStatus == execution.StatusFailed {
				assert.NotNil(t, stored.FailureInfo)
				assert.Equal(t, execution.ApplicationFailure, stored.FailureInfo.Type)
				assert.NotEmpty(t, stored.FailureInfo.Message)
			}
		})
	}
}

func TestChain_SkipRecordsEvaluatedCondition(t *testing.T) {
	ctx := context.Background()
	executionDao := ememory.New()
	nodeExecution := newNodeExecution(t, executionDao)
	chain := New(executionDao, interrupt.New(), evaluator.New(), event.NewObservers())

	result, err := chain.Run(ctx, nodeExecution, &plan.Node{ID: "node-1", Skip: "true"})
	assert.NoError(t, err)
	assert.False(t, result.Proceed)

	stored, _ := executionDao.Load(ctx, nodeExecution.UUID)
	assert.NotNil(t, stored.SkipInfo)
	assert.Equal(t, "true", stored.SkipInfo.SkipCondition)
	assert.True(t, stored.SkipInfo.EvaluatedValue)
}

func TestChain_InterruptShortCircuits(t *testing.T) {
	ctx := context.Background()
	executionDao := ememory.New()
	nodeExecution := newNodeExecution(t, executionDao)

	interrupts := interrupt.New()
	_, err := interrupts.Register(ctx, &interrupt.Interrupt{
		Type:            interrupt.TypeAbort,
		PlanExecutionID: "plan-1",
	})
	assert.NoError(t, err)

	chain := New(executionDao, interrupts, evaluator.New(), event.NewObservers())
	// Skip condition would also deny, interrupt must win first.
	result, err := chain.Run(ctx, nodeExecution, &plan.Node{ID: "node-1", Skip: "true"})
	assert.NoError(t, err)
	assert.False(t, result.Proceed)
	assert.Contains(t, result.Reason, "abort")

	stored, _ := executionDao.Load(ctx, nodeExecution.UUID)
	assert.Equal(t, execution.StatusAborted, stored.Status)
	assert.Nil(t, stored.SkipInfo)
}
