package engine

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/facilitor/model/evaluator"
	"github.com/viant/facilitor/model/execution"
	"github.com/viant/facilitor/model/plan"
	"github.com/viant/facilitor/model/restraint"
	"github.com/viant/facilitor/service/approval"
	"github.com/viant/facilitor/service/check"
	"github.com/viant/facilitor/service/dao"
	ememory "github.com/viant/facilitor/service/dao/execution/memory"
	"github.com/viant/facilitor/service/dao/store"
	"github.com/viant/facilitor/service/event"
	"github.com/viant/facilitor/service/facilitate"
	"github.com/viant/facilitor/service/interrupt"
	qmem "github.com/viant/facilitor/service/messaging/memory"
	restraintsvc "github.com/viant/facilitor/service/restraint"
)

type testEngine struct {
	service        *Service
	executions     *ememory.Service
	planExecutions dao.Service[string, execution.PlanExecution]
}

func startEngine(t *testing.T, options ...Option) *testEngine {
	t.Helper()
	executions := ememory.New()
	planExecutions := store.NewMemoryStore[string, execution.PlanExecution](
		func(p *execution.PlanExecution) string { return p.ID })
	registry := facilitate.NewRegistry()
	facilitate.RegisterBuiltins(registry)

	all := []Option{
		WithQueue(qmem.NewQueue[execution.NodeExecution](qmem.DefaultConfig())),
		WithExecutionDao(executions),
		WithPlanExecutionDao(planExecutions),
		WithChain(check.New(executions, interrupt.New(), evaluator.New(), event.NewObservers())),
		WithFacilitator(facilitate.New(registry)),
	}
	all = append(all, options...)
	service, err := New(all...)
	require.NoError(t, err)
	require.NoError(t, service.Start(context.Background()))
	t.Cleanup(service.Shutdown)
	return &testEngine{service: service, executions: executions, planExecutions: planExecutions}
}

func (e *testEngine) nodeExecution(nodeID string) *execution.NodeExecution {
	all, _ := e.executions.List(context.Background())
	for _, anExecution := range all {
		if anExecution.NodeID == nodeID {
			return anExecution
		}
	}
	return nil
}

func (e *testEngine) nodeStatus(nodeID string) execution.Status {
	if anExecution := e.nodeExecution(nodeID); anExecution != nil {
		return anExecution.Status
	}
	return ""
}

func (e *testEngine) planState(planExecutionID string) string {
	planExecution, _ := e.planExecutions.Load(context.Background(), planExecutionID)
	if planExecution == nil {
		return ""
	}
	return planExecution.State
}

func waitUntil(t *testing.T, condition func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition was not met before deadline")
}

func syncLeaf(id string) *plan.Node {
	node := &plan.Node{ID: id, Group: plan.GroupStep}
	return node.WithObtainment("sync", nil)
}

func TestService_StartPlan_runsSyncLeaf(t *testing.T) {
	var mu sync.Mutex
	var executed []string
	engine := startEngine(t, WithHandler(func(_ context.Context, anExecution *execution.NodeExecution, _ *plan.Node) error {
		mu.Lock()
		executed = append(executed, anExecution.NodeID)
		mu.Unlock()
		return nil
	}))

	aPlan := &plan.Plan{Name: "build", Root: syncLeaf("compile")}
	planExecution, err := engine.service.StartPlan(context.Background(), aPlan, "acme", nil)
	require.NoError(t, err)

	waitUntil(t, func() bool { return engine.planState(planExecution.ID) == execution.PlanStateSucceeded })
	assert.Equal(t, execution.StatusSucceeded, engine.nodeStatus("compile"))
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"compile"}, executed)
}

func TestService_StartPlan_rejectsInvalidPlan(t *testing.T) {
	engine := startEngine(t)
	aPlan := &plan.Plan{Name: "broken", Root: &plan.Node{ID: "parent", Nodes: []*plan.Node{syncLeaf("leaf")}}}
	_, err := engine.service.StartPlan(context.Background(), aPlan, "acme", nil)
	assert.ErrorContains(t, err, "invalid plan")
}

func TestService_ChildrenFanOut(t *testing.T) {
	engine := startEngine(t)

	root := &plan.Node{ID: "release", Group: plan.GroupPipeline, Nodes: []*plan.Node{syncLeaf("deploy-eu"), syncLeaf("deploy-us")}}
	root.WithObtainment("children", map[string]interface{}{"nodeIds": []string{"deploy-eu", "deploy-us"}})
	aPlan := &plan.Plan{Name: "release", Root: root}

	planExecution, err := engine.service.StartPlan(context.Background(), aPlan, "acme", nil)
	require.NoError(t, err)

	waitUntil(t, func() bool { return engine.planState(planExecution.ID) == execution.PlanStateSucceeded })
	assert.Equal(t, execution.StatusSucceeded, engine.nodeStatus("release"))
	assert.Equal(t, execution.StatusSucceeded, engine.nodeStatus("deploy-eu"))
	assert.Equal(t, execution.StatusSucceeded, engine.nodeStatus("deploy-us"))
}

func TestService_ChildChainRunsSequentially(t *testing.T) {
	var mu sync.Mutex
	var order []string
	engine := startEngine(t, WithHandler(func(_ context.Context, anExecution *execution.NodeExecution, _ *plan.Node) error {
		mu.Lock()
		order = append(order, anExecution.NodeID)
		mu.Unlock()
		return nil
	}))

	root := &plan.Node{ID: "migrate", Group: plan.GroupPipeline, Nodes: []*plan.Node{syncLeaf("schema"), syncLeaf("data")}}
	root.WithObtainment("childChain", map[string]interface{}{"nodeIds": []string{"schema", "data"}})
	aPlan := &plan.Plan{Name: "migrate", Root: root}

	planExecution, err := engine.service.StartPlan(context.Background(), aPlan, "acme", nil)
	require.NoError(t, err)

	waitUntil(t, func() bool { return engine.planState(planExecution.ID) == execution.PlanStateSucceeded })
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"schema", "data"}, order)
}

func TestService_ChildChainFailureShortCircuits(t *testing.T) {
	engine := startEngine(t, WithHandler(func(_ context.Context, anExecution *execution.NodeExecution, _ *plan.Node) error {
		if anExecution.NodeID == "schema" {
			return fmt.Errorf("lock wait timeout")
		}
		return nil
	}))

	root := &plan.Node{ID: "migrate", Group: plan.GroupPipeline, Nodes: []*plan.Node{syncLeaf("schema"), syncLeaf("data")}}
	root.WithObtainment("childChain", map[string]interface{}{"nodeIds": []string{"schema", "data"}})
	aPlan := &plan.Plan{Name: "migrate", Root: root}

	planExecution, err := engine.service.StartPlan(context.Background(), aPlan, "acme", nil)
	require.NoError(t, err)

	waitUntil(t, func() bool { return engine.planState(planExecution.ID) == execution.PlanStateFailed })
	assert.Equal(t, execution.StatusFailed, engine.nodeStatus("schema"))
	assert.Equal(t, execution.StatusFailed, engine.nodeStatus("migrate"))
	// the second chain link is never scheduled
	assert.Nil(t, engine.nodeExecution("data"))
}

func TestService_SkipCondition(t *testing.T) {
	engine := startEngine(t)

	optional := syncLeaf("notify").WithSkip("${tier == 'free'}")
	root := &plan.Node{ID: "publish", Group: plan.GroupPipeline, Nodes: []*plan.Node{syncLeaf("upload"), optional}}
	root.WithObtainment("children", map[string]interface{}{"nodeIds": []string{"upload", "notify"}})
	aPlan := &plan.Plan{Name: "publish", Root: root}

	planExecution, err := engine.service.StartPlan(context.Background(), aPlan, "acme", map[string]string{"tier": "free"})
	require.NoError(t, err)

	waitUntil(t, func() bool { return engine.planState(planExecution.ID) == execution.PlanStateSucceeded })
	assert.Equal(t, execution.StatusSucceeded, engine.nodeStatus("upload"))
	assert.Equal(t, execution.StatusSkipped, engine.nodeStatus("notify"))
}

func TestService_HandlerFailureFailsPlan(t *testing.T) {
	engine := startEngine(t, WithHandler(func(context.Context, *execution.NodeExecution, *plan.Node) error {
		return fmt.Errorf("disk full")
	}))

	aPlan := &plan.Plan{Name: "archive", Root: syncLeaf("compress")}
	planExecution, err := engine.service.StartPlan(context.Background(), aPlan, "acme", nil)
	require.NoError(t, err)

	waitUntil(t, func() bool { return engine.planState(planExecution.ID) == execution.PlanStateFailed })
	failed := engine.nodeExecution("compress")
	require.NotNil(t, failed)
	assert.Equal(t, execution.StatusFailed, failed.Status)
	require.NotNil(t, failed.FailureInfo)
	assert.Equal(t, execution.ApplicationFailure, failed.FailureInfo.Type)
	assert.Equal(t, "disk full", failed.FailureInfo.Message)
}

func TestService_UnknownChildFailsParent(t *testing.T) {
	engine := startEngine(t)

	root := &plan.Node{ID: "ship", Group: plan.GroupPipeline, Nodes: []*plan.Node{syncLeaf("pack")}}
	root.WithObtainment("children", map[string]interface{}{"nodeIds": []string{"ghost"}})
	aPlan := &plan.Plan{Name: "ship", Root: root}

	planExecution, err := engine.service.StartPlan(context.Background(), aPlan, "acme", nil)
	require.NoError(t, err)

	waitUntil(t, func() bool { return engine.planState(planExecution.ID) == execution.PlanStateFailed })
	failed := engine.nodeExecution("ship")
	require.NotNil(t, failed)
	require.NotNil(t, failed.FailureInfo)
	assert.Equal(t, execution.ConfigurationFailure, failed.FailureInfo.Type)
}

func TestService_InitialWaitDelaysStart(t *testing.T) {
	var mu sync.Mutex
	var startedAt time.Time
	engine := startEngine(t, WithHandler(func(context.Context, *execution.NodeExecution, *plan.Node) error {
		mu.Lock()
		startedAt = time.Now()
		mu.Unlock()
		return nil
	}))

	node := &plan.Node{ID: "warmup", Group: plan.GroupStep}
	node.WithObtainment("sync", map[string]interface{}{"initialWait": "80ms"})
	aPlan := &plan.Plan{Name: "warmup", Root: node}

	scheduledAt := time.Now()
	planExecution, err := engine.service.StartPlan(context.Background(), aPlan, "acme", nil)
	require.NoError(t, err)

	waitUntil(t, func() bool { return engine.planState(planExecution.ID) == execution.PlanStateSucceeded })
	mu.Lock()
	defer mu.Unlock()
	assert.GreaterOrEqual(t, startedAt.Sub(scheduledAt), 80*time.Millisecond)
}

func TestService_RestraintSerializesExecutions(t *testing.T) {
	restraints := store.NewMemoryStore[string, restraint.Restraint](
		func(r *restraint.Restraint) string { return r.ID })
	instances := store.NewMemoryStore[string, restraint.Instance](
		func(i *restraint.Instance) string { return i.ID })
	executions := ememory.New()
	planExecutions := store.NewMemoryStore[string, execution.PlanExecution](
		func(p *execution.PlanExecution) string { return p.ID })
	require.NoError(t, restraints.Save(context.Background(),
		&restraint.Restraint{ID: "r1", AccountID: "acme", Name: "deploy-slot", Capacity: 1, Strategy: restraint.StrategyFIFO}))
	admission := restraintsvc.New(restraints, instances, executions, planExecutions)

	var mu sync.Mutex
	active, maxActive := 0, 0
	handler := func(context.Context, *execution.NodeExecution, *plan.Node) error {
		mu.Lock()
		active++
		if active > maxActive {
			maxActive = active
		}
		mu.Unlock()
		time.Sleep(50 * time.Millisecond)
		mu.Lock()
		active--
		mu.Unlock()
		return nil
	}

	registry := facilitate.NewRegistry()
	facilitate.RegisterBuiltins(registry)
	service, err := New(
		WithQueue(qmem.NewQueue[execution.NodeExecution](qmem.DefaultConfig())),
		WithExecutionDao(executions),
		WithPlanExecutionDao(planExecutions),
		WithChain(check.New(executions, interrupt.New(), evaluator.New(), event.NewObservers())),
		WithFacilitator(facilitate.New(registry)),
		WithRestraints(admission),
		WithHandler(handler))
	require.NoError(t, err)
	require.NoError(t, service.Start(context.Background()))
	t.Cleanup(service.Shutdown)

	gated := map[string]interface{}{"restraintName": "deploy-slot", "resourceUnit": "prod"}
	nodeEU := (&plan.Node{ID: "deploy-eu", Group: plan.GroupStep}).WithObtainment("sync", gated)
	nodeUS := (&plan.Node{ID: "deploy-us", Group: plan.GroupStep}).WithObtainment("sync", gated)
	root := &plan.Node{ID: "deploy", Group: plan.GroupPipeline, Nodes: []*plan.Node{nodeEU, nodeUS}}
	root.WithObtainment("children", map[string]interface{}{"nodeIds": []string{"deploy-eu", "deploy-us"}})
	aPlan := &plan.Plan{Name: "deploy", Root: root}

	planExecution, err := service.StartPlan(context.Background(), aPlan, "acme", nil)
	require.NoError(t, err)

	waitUntil(t, func() bool {
		loaded, _ := planExecutions.Load(context.Background(), planExecution.ID)
		return loaded != nil && loaded.State == execution.PlanStateSucceeded
	})
	mu.Lock()
	assert.Equal(t, 1, maxActive)
	mu.Unlock()

	held, err := instances.List(context.Background())
	require.NoError(t, err)
	require.Len(t, held, 2)
	for _, instance := range held {
		assert.True(t, instance.IsFinished())
	}
}

func TestService_ApprovalApproveResumesNode(t *testing.T) {
	instances := store.NewMemoryStore[string, approval.Instance](
		func(i *approval.Instance) string { return i.ID })
	approvals := approval.New(approval.WithInstanceDao(instances))

	engine := startEngine(t, WithApprovals(approvals))

	node := &plan.Node{ID: "prod-gate", Group: plan.GroupStage}
	node.WithObtainment("approval", map[string]interface{}{
		"message":    "promote to production?",
		"allowUsers": []string{"alice"},
	})
	aPlan := &plan.Plan{Name: "promote", Root: node}

	planExecution, err := engine.service.StartPlan(context.Background(), aPlan, "acme", nil)
	require.NoError(t, err)

	waitUntil(t, func() bool { return engine.nodeStatus("prod-gate") == execution.StatusApprovalWaiting })
	waiting, err := instances.List(context.Background())
	require.NoError(t, err)
	require.Len(t, waiting, 1)

	_, err = approvals.AddActivity(context.Background(), waiting[0].ID, "alice", nil, approval.DecisionApprove, "lgtm")
	require.NoError(t, err)

	waitUntil(t, func() bool { return engine.planState(planExecution.ID) == execution.PlanStateSucceeded })
	assert.Equal(t, execution.StatusSucceeded, engine.nodeStatus("prod-gate"))
}

func TestService_ApprovalRejectFailsNode(t *testing.T) {
	instances := store.NewMemoryStore[string, approval.Instance](
		func(i *approval.Instance) string { return i.ID })
	approvals := approval.New(approval.WithInstanceDao(instances))

	engine := startEngine(t, WithApprovals(approvals))

	node := &plan.Node{ID: "prod-gate", Group: plan.GroupStage}
	node.WithObtainment("approval", map[string]interface{}{"message": "promote to production?"})
	aPlan := &plan.Plan{Name: "promote", Root: node}

	planExecution, err := engine.service.StartPlan(context.Background(), aPlan, "acme", nil)
	require.NoError(t, err)

	waitUntil(t, func() bool { return engine.nodeStatus("prod-gate") == execution.StatusApprovalWaiting })
	waiting, err := instances.List(context.Background())
	require.NoError(t, err)
	require.Len(t, waiting, 1)

	_, err = approvals.AddActivity(context.Background(), waiting[0].ID, "bob", nil, approval.DecisionReject, "not ready")
	require.NoError(t, err)

	waitUntil(t, func() bool { return engine.planState(planExecution.ID) == execution.PlanStateFailed })
	failed := engine.nodeExecution("prod-gate")
	require.NotNil(t, failed)
	assert.Equal(t, execution.StatusFailed, failed.Status)
	require.NotNil(t, failed.FailureInfo)
	assert.Equal(t, "approval rejected", failed.FailureInfo.Message)
}

func TestService_PauseResumePlan(t *testing.T) {
	engine := startEngine(t)

	node := &plan.Node{ID: "review", Group: plan.GroupStage}
	node.WithObtainment("async", nil)
	aPlan := &plan.Plan{Name: "review", Root: node}

	planExecution, err := engine.service.StartPlan(context.Background(), aPlan, "acme", nil)
	require.NoError(t, err)
	waitUntil(t, func() bool { return engine.nodeStatus("review") == execution.StatusAsyncWaiting })

	require.NoError(t, engine.service.PausePlan(context.Background(), planExecution.ID))
	assert.Equal(t, execution.PlanStatePaused, engine.planState(planExecution.ID))
	// pausing a plan that is not running is rejected
	assert.Error(t, engine.service.PausePlan(context.Background(), planExecution.ID))

	require.NoError(t, engine.service.ResumePlan(context.Background(), planExecution.ID))
	assert.Equal(t, execution.PlanStateRunning, engine.planState(planExecution.ID))

	parked := engine.nodeExecution("review")
	require.NotNil(t, parked)
	require.NoError(t, engine.service.ResumeNode(context.Background(), parked.UUID, true, ""))
	waitUntil(t, func() bool { return engine.planState(planExecution.ID) == execution.PlanStateSucceeded })
}

func TestService_PlanWideAbortStopsAllPendingNodes(t *testing.T) {
	interrupts := interrupt.New()
	started := make(chan string, 3)
	release := make(chan struct{})
	var once sync.Once
	executions := ememory.New()
	planExecutions := store.NewMemoryStore[string, execution.PlanExecution](
		func(p *execution.PlanExecution) string { return p.ID })
	registry := facilitate.NewRegistry()
	facilitate.RegisterBuiltins(registry)
	service, err := New(
		WithConfig(Config{WorkerCount: 1}),
		WithQueue(qmem.NewQueue[execution.NodeExecution](qmem.DefaultConfig())),
		WithExecutionDao(executions),
		WithPlanExecutionDao(planExecutions),
		WithChain(check.New(executions, interrupts, evaluator.New(), event.NewObservers())),
		WithFacilitator(facilitate.New(registry)),
		WithInterrupts(interrupts),
		WithHandler(func(_ context.Context, anExecution *execution.NodeExecution, _ *plan.Node) error {
			started <- anExecution.NodeID
			once.Do(func() { <-release })
			return nil
		}))
	require.NoError(t, err)
	require.NoError(t, service.Start(context.Background()))
	t.Cleanup(service.Shutdown)
	engine := &testEngine{service: service, executions: executions, planExecutions: planExecutions}

	root := &plan.Node{ID: "rollout", Group: plan.GroupPipeline,
		Nodes: []*plan.Node{syncLeaf("eu"), syncLeaf("us"), syncLeaf("apac")}}
	root.WithObtainment("children", map[string]interface{}{"nodeIds": []string{"eu", "us", "apac"}})
	aPlan := &plan.Plan{Name: "rollout", Root: root}

	planExecution, err := service.StartPlan(context.Background(), aPlan, "acme", nil)
	require.NoError(t, err)

	// the single worker is inside the first child's handler; both siblings
	// are still queued when the plan-wide abort lands
	first := <-started
	_, err = interrupts.Register(context.Background(), &interrupt.Interrupt{
		Type: interrupt.TypeAbort, PlanExecutionID: planExecution.ID})
	require.NoError(t, err)
	close(release)

	waitUntil(t, func() bool { return engine.planState(planExecution.ID) == execution.PlanStateFailed })
	aborted := 0
	for _, nodeID := range []string{"eu", "us", "apac"} {
		if nodeID == first {
			assert.Equal(t, execution.StatusSucceeded, engine.nodeStatus(nodeID))
			continue
		}
		if engine.nodeStatus(nodeID) == execution.StatusAborted {
			aborted++
		}
	}
	assert.Equal(t, 2, aborted)

	// the finished plan no longer holds its plan-wide interrupt
	outcome, err := interrupts.CheckAndHandleBeforeStart(context.Background(), planExecution.ID, "any")
	require.NoError(t, err)
	assert.True(t, outcome.Proceed)
}

func TestService_PauseWhileQueuedParksNode(t *testing.T) {
	started := make(chan string, 2)
	release := make(chan struct{})
	var once sync.Once
	engine := startEngine(t,
		WithConfig(Config{WorkerCount: 1}),
		WithHandler(func(_ context.Context, anExecution *execution.NodeExecution, _ *plan.Node) error {
			started <- anExecution.NodeID
			once.Do(func() { <-release })
			return nil
		}))

	root := &plan.Node{ID: "rollout", Group: plan.GroupPipeline, Nodes: []*plan.Node{syncLeaf("canary"), syncLeaf("fleet")}}
	root.WithObtainment("children", map[string]interface{}{"nodeIds": []string{"canary", "fleet"}})
	aPlan := &plan.Plan{Name: "rollout", Root: root}

	planExecution, err := engine.service.StartPlan(context.Background(), aPlan, "acme", nil)
	require.NoError(t, err)

	// the single worker is inside the first child's handler; the sibling
	// is still queued when the pause lands
	first := <-started
	require.NoError(t, engine.service.PausePlan(context.Background(), planExecution.ID))
	close(release)

	sibling := "fleet"
	if first == "fleet" {
		sibling = "canary"
	}
	waitUntil(t, func() bool { return engine.nodeStatus(sibling) == execution.StatusPaused })

	require.NoError(t, engine.service.ResumePlan(context.Background(), planExecution.ID))
	waitUntil(t, func() bool { return engine.planState(planExecution.ID) == execution.PlanStateSucceeded })
	assert.Equal(t, execution.StatusSucceeded, engine.nodeStatus("canary"))
	assert.Equal(t, execution.StatusSucceeded, engine.nodeStatus("fleet"))
}

func TestService_ResumeNodeIsIdempotentOnTerminal(t *testing.T) {
	engine := startEngine(t)

	aPlan := &plan.Plan{Name: "once", Root: syncLeaf("step")}
	planExecution, err := engine.service.StartPlan(context.Background(), aPlan, "acme", nil)
	require.NoError(t, err)
	waitUntil(t, func() bool { return engine.planState(planExecution.ID) == execution.PlanStateSucceeded })

	finished := engine.nodeExecution("step")
	require.NotNil(t, finished)
	require.NoError(t, engine.service.ResumeNode(context.Background(), finished.UUID, false, "late callback"))
	assert.Equal(t, execution.StatusSucceeded, engine.nodeStatus("step"))
}
