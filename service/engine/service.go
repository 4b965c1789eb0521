// Package engine drives node executions through the check chain, the
// facilitator dispatcher and the per-mode bookkeeping: inline runs, parked
// waits, child spawning and resource admission.  A fixed worker pool
// consumes ready executions from a queue; parked executions re-enter via
// ResumeNode callbacks.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/viant/facilitor/internal/idgen"
	"github.com/viant/facilitor/model/ambiance"
	"github.com/viant/facilitor/model/execution"
	"github.com/viant/facilitor/model/plan"
	"github.com/viant/facilitor/model/restraint"
	"github.com/viant/facilitor/service/check"
	"github.com/viant/facilitor/service/dao"
	"github.com/viant/facilitor/service/event"
	"github.com/viant/facilitor/service/facilitate"
	"github.com/viant/facilitor/service/interrupt"
	"github.com/viant/facilitor/service/messaging"
	restraintsvc "github.com/viant/facilitor/service/restraint"
	"github.com/viant/facilitor/tracing"
)

// Handler executes the inline work of a SYNC node.
type Handler func(ctx context.Context, anExecution *execution.NodeExecution, node *plan.Node) error

// updateAttempts bounds re-reads on optimistic conflicts.
const updateAttempts = 3

// Decision pass-through keys the driver acts on.
const (
	passThroughRestraint    = "restraintName"
	passThroughResourceUnit = "resourceUnit"
	passThroughApproval     = "approvalInstanceId"
)

// Service is the orchestration driver.
type Service struct {
	config         Config
	queue          messaging.Queue[execution.NodeExecution]
	executionDao   dao.ConditionalService[string, execution.NodeExecution]
	planExecutions dao.Service[string, execution.PlanExecution]
	chain          *check.Chain
	facilitator    *facilitate.Service
	restraints     *restraintsvc.Service
	interrupts     interrupt.Service
	approvals      approvalBridge
	observers      *event.Observers
	handler        Handler

	plansMux sync.RWMutex
	plans    map[string]*plan.Plan

	groups *groupStore

	stateMux sync.Mutex
	holders  map[string]string // node execution id -> restraint instance id
	pendings map[string]int    // plan execution id -> outstanding nodes
	broken   map[string]bool   // plan execution id -> a breaking node seen
	waited   map[string]bool   // node execution id -> initial wait served

	workers    []*worker
	workerWg   sync.WaitGroup
	shutdownCh chan struct{}
	shutdown   sync.Once
}

type worker struct {
	id       int
	service  *Service
	ctx      context.Context
	cancelFn context.CancelFunc
}

// New creates the orchestration driver.
func New(options ...Option) (*Service, error) {
	s := &Service{
		config:     DefaultConfig(),
		observers:  event.NewObservers(),
		plans:      make(map[string]*plan.Plan),
		groups:     newGroupStore(),
		holders:    make(map[string]string),
		pendings:   make(map[string]int),
		broken:     make(map[string]bool),
		waited:     make(map[string]bool),
		shutdownCh: make(chan struct{}),
		handler:    func(context.Context, *execution.NodeExecution, *plan.Node) error { return nil },
	}
	for _, option := range options {
		option(s)
	}
	if err := s.config.Validate(); err != nil {
		return nil, err
	}
	if s.queue == nil {
		return nil, fmt.Errorf("message queue is required")
	}
	if s.executionDao == nil {
		return nil, fmt.Errorf("executionDao service is required")
	}
	if s.planExecutions == nil {
		return nil, fmt.Errorf("planExecutions service is required")
	}
	if s.chain == nil {
		return nil, fmt.Errorf("check chain is required")
	}
	if s.facilitator == nil {
		return nil, fmt.Errorf("facilitator dispatcher is required")
	}
	if s.approvals != nil {
		s.facilitator.Registry().Register(newApprovalFacilitator(s.approvals))
	}
	return s, nil
}

// Observers exposes the fan-out registry so callers can attach observers.
func (s *Service) Observers() *event.Observers { return s.observers }

// Facilitator exposes the dispatcher so callers can register facilitators.
func (s *Service) Facilitator() *facilitate.Service { return s.facilitator }

// Start launches the worker pool and background consumers.
func (s *Service) Start(ctx context.Context) error {
	for i := 0; i < s.config.WorkerCount; i++ {
		workerCtx, cancel := context.WithCancel(ctx)
		worker := &worker{id: i, service: s, ctx: workerCtx, cancelFn: cancel}
		s.workers = append(s.workers, worker)
		s.workerWg.Add(1)
		go worker.run()
	}
	if s.approvals != nil {
		go s.consumeApprovalEvents(ctx)
	}
	return nil
}

// Shutdown stops the workers and waits for in-flight executions to drain.
func (s *Service) Shutdown() {
	s.shutdown.Do(func() {
		close(s.shutdownCh)
		for _, worker := range s.workers {
			worker.cancelFn()
		}
		s.workerWg.Wait()
		s.observers.Wait()
	})
}

func (w *worker) run() {
	defer w.service.workerWg.Done()
	for {
		msg, err := w.service.queue.Consume(w.ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			select {
			case <-w.service.shutdownCh:
				return
			case <-time.After(100 * time.Millisecond):
			}
			continue
		}
		if msg == nil {
			// polling backends return nil when drained
			select {
			case <-w.service.shutdownCh:
				return
			case <-time.After(50 * time.Millisecond):
			}
			continue
		}
		if pErr := w.service.processMessage(w.ctx, msg); pErr != nil {
			log.Printf("worker %d: failed to process node execution: %v", w.id, pErr)
		}
	}
}

// StartPlan schedules the root node of the plan and returns the plan
// execution record.
func (s *Service) StartPlan(ctx context.Context, aPlan *plan.Plan, accountID string, abstractions map[string]string) (planExecution *execution.PlanExecution, err error) {
	ctx, span := tracing.StartSpan(ctx, fmt.Sprintf("engine.StartPlan %s", aPlan.Name), "INTERNAL")
	defer func() { tracing.EndSpan(span, err) }()

	if issues := aPlan.Validate(); len(issues) > 0 {
		return nil, fmt.Errorf("invalid plan %s: %v", aPlan.Name, issues)
	}
	s.plansMux.Lock()
	s.plans[aPlan.Name] = aPlan
	s.plansMux.Unlock()

	planExecutionID := aPlan.Name + "/" + idgen.New()
	span.WithAttributes(map[string]string{"planExecution.id": planExecutionID})

	if abstractions == nil {
		abstractions = map[string]string{}
	}
	if accountID != "" {
		abstractions[ambiance.AccountIDKey] = accountID
	}
	planExecution = execution.NewPlanExecution(planExecutionID, aPlan.Name, accountID)
	if err = s.planExecutions.Save(ctx, planExecution); err != nil {
		return nil, fmt.Errorf("failed to save plan execution: %w", err)
	}
	amb := ambiance.New(planExecutionID, abstractions)
	if _, err = s.scheduleNode(ctx, amb, aPlan.Root); err != nil {
		return nil, err
	}
	s.observers.Notify(event.NewEvent[any](event.PlanContext(planExecution), planExecution))
	return planExecution, nil
}

// PausePlan pauses a running plan execution; nodes still queued are
// parked as paused when a worker picks them up.
func (s *Service) PausePlan(ctx context.Context, planExecutionID string) error {
	return s.setPlanState(ctx, planExecutionID, execution.PlanStateRunning, execution.PlanStatePaused)
}

// ResumePlan resumes a paused plan execution and requeues its paused
// nodes.
func (s *Service) ResumePlan(ctx context.Context, planExecutionID string) error {
	if err := s.setPlanState(ctx, planExecutionID, execution.PlanStatePaused, execution.PlanStateRunning); err != nil {
		return err
	}
	paused, err := s.executionDao.List(ctx,
		dao.NewParameter("PlanExecutionID", planExecutionID),
		dao.NewParameter("Status", string(execution.StatusPaused)))
	if err != nil {
		return err
	}
	for _, anExecution := range paused {
		if err := s.queue.Publish(ctx, anExecution); err != nil {
			log.Printf("engine: failed to requeue paused execution %s: %v", anExecution.UUID, err)
		}
	}
	return nil
}

func (s *Service) setPlanState(ctx context.Context, planExecutionID, from, to string) error {
	planExecution, err := s.planExecutions.Load(ctx, planExecutionID)
	if err != nil {
		return fmt.Errorf("failed to load plan execution: %w", err)
	}
	if planExecution == nil {
		return fmt.Errorf("plan execution %s not found", planExecutionID)
	}
	if planExecution.State != from {
		return fmt.Errorf("plan execution %s is not in %s state", planExecutionID, from)
	}
	planExecution.SetState(to)
	if err := s.planExecutions.Save(ctx, planExecution); err != nil {
		return err
	}
	s.observers.Notify(event.NewEvent[any](event.PlanContext(planExecution), planExecution))
	return nil
}

// scheduleNode creates a queued node execution under the ambiance and
// publishes it for the workers.
func (s *Service) scheduleNode(ctx context.Context, amb *ambiance.Ambiance, node *plan.Node) (*execution.NodeExecution, error) {
	anExecution := execution.NewNodeExecution(node.ID, amb)
	anExecution.Ambiance = amb.PushLevel(ambiance.Level{
		RuntimeID:  anExecution.UUID,
		Identifier: node.Identifier,
		StepType:   node.StepType,
		Group:      node.Group,
	})
	if err := s.executionDao.Save(ctx, anExecution); err != nil {
		return nil, fmt.Errorf("failed to save node execution: %w", err)
	}
	s.stateMux.Lock()
	s.pendings[amb.PlanExecutionID]++
	s.stateMux.Unlock()
	if err := s.queue.Publish(ctx, anExecution); err != nil {
		return nil, fmt.Errorf("failed to publish node execution: %w", err)
	}
	return anExecution, nil
}

// processMessage handles a single ready node execution.
func (s *Service) processMessage(ctx context.Context, message messaging.Message[execution.NodeExecution]) error {
	queued := message.T()

	anExecution, err := s.executionDao.Load(ctx, queued.UUID)
	if err != nil {
		return message.Nack(err)
	}
	if anExecution.Status.IsTerminal() {
		// duplicate delivery
		return message.Ack()
	}

	planExecution, err := s.planExecutions.Load(ctx, anExecution.Ambiance.PlanExecutionID)
	if err != nil || planExecution == nil {
		return message.Nack(fmt.Errorf("plan execution %s not found", anExecution.Ambiance.PlanExecutionID))
	}
	if planExecution.State == execution.PlanStatePaused {
		// park the node so ResumePlan can requeue it; a nack would
		// dead-letter the message after the retry budget
		s.parkNode(ctx, anExecution.UUID, execution.StatusPaused)
		return message.Ack()
	}
	node := s.lookupNode(planExecution.PlanName, anExecution.NodeID)
	if node == nil {
		s.failNode(ctx, anExecution.UUID, execution.ConfigurationFailure,
			fmt.Sprintf("node %s not found in plan %s", anExecution.NodeID, planExecution.PlanName))
		return message.Ack()
	}

	result, err := s.chain.Run(ctx, anExecution, node)
	if err != nil {
		// never leave a node silently stuck on a pre-start error
		s.failNode(ctx, anExecution.UUID, execution.ApplicationFailure, err.Error())
		s.onNodeFinished(ctx, anExecution.UUID)
		return message.Ack()
	}
	if !result.Proceed {
		denied, lErr := s.executionDao.Load(ctx, anExecution.UUID)
		if lErr != nil {
			return message.Nack(lErr)
		}
		switch {
		case denied.Status.IsTerminal():
			s.onNodeFinished(ctx, anExecution.UUID)
		case denied.Status == execution.StatusQueued:
			// retry interrupt, come back on the next delivery
			s.requeue(ctx, anExecution.UUID)
		}
		// paused executions stay parked until the plan resumes
		return message.Ack()
	}

	decision, err := s.facilitator.Facilitate(ctx, anExecution, node)
	if err != nil {
		failureType := execution.ApplicationFailure
		var configErr *facilitate.ConfigurationError
		if errors.As(err, &configErr) {
			failureType = execution.ConfigurationFailure
		}
		s.failNode(ctx, anExecution.UUID, failureType, err.Error())
		s.onNodeFinished(ctx, anExecution.UUID)
		return message.Ack()
	}

	if admitted, aErr := s.acquirePermit(ctx, anExecution, decision); aErr != nil {
		s.failNode(ctx, anExecution.UUID, execution.ConfigurationFailure, aErr.Error())
		s.onNodeFinished(ctx, anExecution.UUID)
		return message.Ack()
	} else if !admitted {
		s.parkNode(ctx, anExecution.UUID, execution.StatusResourceWaiting)
		return message.Ack()
	}

	s.dispatch(ctx, anExecution.UUID, node, decision)
	return message.Ack()
}

// dispatch performs the mode-specific bookkeeping for a facilitation
// decision.
func (s *Service) dispatch(ctx context.Context, executionID string, node *plan.Node, decision *facilitate.Decision) {
	if decision.InitialWait > 0 {
		s.stateMux.Lock()
		first := !s.waited[executionID]
		s.waited[executionID] = true
		s.stateMux.Unlock()
		if first {
			s.parkNode(ctx, executionID, execution.StatusTimedWaiting)
			time.AfterFunc(decision.InitialWait, func() {
				s.requeue(context.Background(), executionID)
			})
			return
		}
	}
	switch decision.Mode {
	case facilitate.ModeSync:
		s.runInline(ctx, executionID, node)
	case facilitate.ModeChild:
		s.spawnChildren(ctx, executionID, []string{decision.ChildNodeID}, false)
	case facilitate.ModeChildren:
		s.spawnChildren(ctx, executionID, decision.ChildNodeIDs, false)
	case facilitate.ModeChildChain:
		s.spawnChildren(ctx, executionID, decision.ChildNodeIDs, true)
	case facilitate.ModeTask, facilitate.ModeTaskChain:
		s.parkNode(ctx, executionID, execution.StatusTaskWaiting)
	default:
		status := execution.StatusAsyncWaiting
		if id, ok := decision.PassThrough[passThroughApproval].(string); ok && id != "" {
			status = execution.StatusApprovalWaiting
		}
		s.parkNode(ctx, executionID, status)
	}
}

func (s *Service) runInline(ctx context.Context, executionID string, node *plan.Node) {
	anExecution, err := s.transition(ctx, executionID, event.TypeNodeStart, func(e *execution.NodeExecution) error {
		if !e.Status.CanTransition(execution.StatusRunning) {
			return fmt.Errorf("node execution %s cannot start from %s", e.UUID, e.Status)
		}
		e.Start()
		return nil
	})
	if err != nil {
		log.Printf("engine: failed to start node execution %s: %v", executionID, err)
		return
	}
	if hErr := s.handler(ctx, anExecution, node); hErr != nil {
		s.failNode(ctx, executionID, execution.ApplicationFailure, hErr.Error())
	} else {
		_, _ = s.transition(ctx, executionID, event.TypeNodeStatusUpdate, func(e *execution.NodeExecution) error {
			e.Succeed()
			return nil
		})
	}
	s.onNodeFinished(ctx, executionID)
}

// spawnChildren creates the child executions of a parent decision;
// sequential chains schedule one child at a time.
func (s *Service) spawnChildren(ctx context.Context, parentID string, childNodeIDs []string, sequential bool) {
	parent, err := s.executionDao.Load(ctx, parentID)
	if err != nil {
		log.Printf("engine: failed to load parent execution %s: %v", parentID, err)
		return
	}
	planExecution, err := s.planExecutions.Load(ctx, parent.Ambiance.PlanExecutionID)
	if err != nil || planExecution == nil {
		s.failNode(ctx, parentID, execution.ApplicationFailure, "owning plan execution not found")
		s.onNodeFinished(ctx, parentID)
		return
	}
	for _, childNodeID := range childNodeIDs {
		if s.lookupNode(planExecution.PlanName, childNodeID) == nil {
			s.failNode(ctx, parentID, execution.ConfigurationFailure,
				fmt.Sprintf("child node %s not found in plan %s", childNodeID, planExecution.PlanName))
			s.onNodeFinished(ctx, parentID)
			return
		}
	}

	s.parkNode(ctx, parentID, execution.StatusAsyncWaiting)

	toSchedule := childNodeIDs
	var pending []string
	if sequential && len(childNodeIDs) > 1 {
		toSchedule = childNodeIDs[:1]
		pending = childNodeIDs[1:]
	}
	expected := len(childNodeIDs)
	s.groups.create(parentID, expected, pending)

	for _, childNodeID := range toSchedule {
		node := s.lookupNode(planExecution.PlanName, childNodeID)
		child, err := s.scheduleNode(ctx, parent.Ambiance, node)
		if err != nil {
			log.Printf("engine: failed to schedule child %s of %s: %v", childNodeID, parentID, err)
			continue
		}
		s.groups.bind(child.UUID, parentID)
	}
}

// ResumeNode feeds an external callback outcome back into a parked node
// execution.  Resuming an already terminal execution is a no-op.
func (s *Service) ResumeNode(ctx context.Context, executionID string, success bool, message string) error {
	anExecution, err := s.executionDao.Load(ctx, executionID)
	if err != nil {
		return err
	}
	if anExecution.Status.IsTerminal() {
		return nil
	}
	if success {
		_, err = s.transition(ctx, executionID, event.TypeNodeStatusUpdate, func(e *execution.NodeExecution) error {
			e.Succeed()
			return nil
		})
	} else {
		err = s.failNode(ctx, executionID, execution.ApplicationFailure, message)
	}
	if err != nil {
		return err
	}
	s.onNodeFinished(ctx, executionID)
	return nil
}

// ExpireNode forces a parked node execution to its expired terminal status.
func (s *Service) ExpireNode(ctx context.Context, executionID, reason string) error {
	anExecution, err := s.executionDao.Load(ctx, executionID)
	if err != nil {
		return err
	}
	if anExecution.Status.IsTerminal() {
		return nil
	}
	_, err = s.transition(ctx, executionID, event.TypeNodeStatusUpdate, func(e *execution.NodeExecution) error {
		e.FailureInfo = &execution.FailureInfo{Type: execution.TimeoutFailure, Message: reason}
		e.Status = execution.StatusExpired
		return nil
	})
	if err != nil {
		return err
	}
	s.onNodeFinished(ctx, executionID)
	return nil
}

// requeue republishes a parked execution so it re-enters the worker pool.
func (s *Service) requeue(ctx context.Context, executionID string) {
	anExecution, err := s.executionDao.Load(ctx, executionID)
	if err != nil {
		log.Printf("engine: failed to requeue node execution %s: %v", executionID, err)
		return
	}
	if anExecution.Status.IsTerminal() {
		return
	}
	if err := s.queue.Publish(ctx, anExecution); err != nil {
		log.Printf("engine: failed to requeue node execution %s: %v", executionID, err)
	}
}

func (s *Service) parkNode(ctx context.Context, executionID string, status execution.Status) {
	_, err := s.transition(ctx, executionID, event.TypeNodeStatusUpdate, func(e *execution.NodeExecution) error {
		if !e.Status.CanTransition(status) {
			return fmt.Errorf("node execution %s cannot move from %s to %s", e.UUID, e.Status, status)
		}
		e.Status = status
		return nil
	})
	if err != nil {
		log.Printf("engine: failed to park node execution %s as %s: %v", executionID, status, err)
	}
}

func (s *Service) failNode(ctx context.Context, executionID string, failureType execution.FailureType, message string) error {
	_, err := s.transition(ctx, executionID, event.TypeNodeStatusUpdate, func(e *execution.NodeExecution) error {
		e.Fail(failureType, message)
		return nil
	})
	return err
}

// transition applies mutator with conflict retries and notifies observers.
func (s *Service) transition(ctx context.Context, id, eventType string, mutator func(*execution.NodeExecution) error) (*execution.NodeExecution, error) {
	updated, err := dao.RetryConditionalUpdate(ctx, s.executionDao, id,
		func(e *execution.NodeExecution) int { return e.Version },
		updateAttempts, mutator)
	if err != nil {
		return nil, err
	}
	s.observers.Notify(event.NewEvent[any](event.NodeContext(eventType, updated), updated))
	return updated, nil
}

// acquirePermit resolves the restraint pass-through of a decision.  It
// reports whether the node holds a permit and may promote (and resume) a
// different waiting execution as a side effect.
func (s *Service) acquirePermit(ctx context.Context, anExecution *execution.NodeExecution, decision *facilitate.Decision) (bool, error) {
	name, _ := decision.PassThrough[passThroughRestraint].(string)
	if name == "" || s.restraints == nil {
		return true, nil
	}
	unit, _ := decision.PassThrough[passThroughResourceUnit].(string)

	s.stateMux.Lock()
	_, holding := s.holders[anExecution.UUID]
	s.stateMux.Unlock()
	if holding {
		return true, nil
	}

	accountID := anExecution.Ambiance.AccountID()
	if _, err := s.restraints.Enqueue(ctx, name, accountID, unit, restraint.EntityNodeExecution, anExecution.UUID); err != nil {
		return false, err
	}
	promoted, err := s.restraints.TryAdmit(ctx, name, accountID, unit)
	if err != nil {
		return false, err
	}
	if promoted == nil {
		return false, nil
	}
	s.stateMux.Lock()
	s.holders[promoted.ReleaseEntityID] = promoted.ID
	s.stateMux.Unlock()
	if promoted.ReleaseEntityID == anExecution.UUID {
		return true, nil
	}
	// an earlier waiter got the permit, wake it and keep waiting
	s.requeue(ctx, promoted.ReleaseEntityID)
	return false, nil
}

// releasePermit releases the permit held by a finished execution and wakes
// the promoted next-in-line waiter, the only unblock path.
func (s *Service) releasePermit(ctx context.Context, executionID string) {
	s.stateMux.Lock()
	instanceID, holding := s.holders[executionID]
	delete(s.holders, executionID)
	s.stateMux.Unlock()
	if !holding || s.restraints == nil {
		return
	}
	promoted, err := s.restraints.Release(ctx, instanceID)
	if err != nil {
		log.Printf("engine: failed to release restraint instance %s: %v", instanceID, err)
		return
	}
	if promoted == nil {
		return
	}
	s.stateMux.Lock()
	s.holders[promoted.ReleaseEntityID] = promoted.ID
	s.stateMux.Unlock()
	s.requeue(ctx, promoted.ReleaseEntityID)
}

// onNodeFinished performs the bookkeeping of a terminal execution: permit
// release, parent group rendez-vous and plan completion.
func (s *Service) onNodeFinished(ctx context.Context, executionID string) {
	anExecution, err := s.executionDao.Load(ctx, executionID)
	if err != nil {
		log.Printf("engine: failed to load finished execution %s: %v", executionID, err)
		return
	}
	if !anExecution.Status.IsTerminal() {
		return
	}
	s.releasePermit(ctx, executionID)

	if g := s.groups.groupOf(executionID); g != nil {
		failed := anExecution.Status.IsBreaking()
		complete, next := g.markDone(failed)
		if next != "" {
			s.scheduleNextChild(ctx, g.parentExecutionID, next)
		}
		if complete {
			parentID := g.parentExecutionID
			groupFailed := g.hasFailed()
			s.groups.delete(parentID)
			reason := ""
			if groupFailed {
				reason = "one or more child executions failed"
			}
			if err := s.ResumeNode(ctx, parentID, !groupFailed, reason); err != nil {
				log.Printf("engine: failed to resume parent execution %s: %v", parentID, err)
			}
		}
	}

	planExecutionID := anExecution.Ambiance.PlanExecutionID
	s.stateMux.Lock()
	delete(s.waited, executionID)
	s.pendings[planExecutionID]--
	if anExecution.Status.IsBreaking() {
		s.broken[planExecutionID] = true
	}
	finished := s.pendings[planExecutionID] <= 0
	failed := s.broken[planExecutionID]
	if finished {
		delete(s.pendings, planExecutionID)
		delete(s.broken, planExecutionID)
	}
	s.stateMux.Unlock()
	if finished {
		s.finishPlan(ctx, planExecutionID, failed)
	}
}

func (s *Service) scheduleNextChild(ctx context.Context, parentID, childNodeID string) {
	parent, err := s.executionDao.Load(ctx, parentID)
	if err != nil {
		log.Printf("engine: failed to load parent execution %s: %v", parentID, err)
		return
	}
	planExecution, err := s.planExecutions.Load(ctx, parent.Ambiance.PlanExecutionID)
	if err != nil || planExecution == nil {
		return
	}
	node := s.lookupNode(planExecution.PlanName, childNodeID)
	if node == nil {
		return
	}
	child, err := s.scheduleNode(ctx, parent.Ambiance, node)
	if err != nil {
		log.Printf("engine: failed to schedule child %s of %s: %v", childNodeID, parentID, err)
		return
	}
	s.groups.bind(child.UUID, parentID)
}

// finishPlan records the plan-level terminal state, broadcasts it and
// releases every restraint permit still held by the plan execution.
func (s *Service) finishPlan(ctx context.Context, planExecutionID string, failed bool) {
	planExecution, err := s.planExecutions.Load(ctx, planExecutionID)
	if err != nil || planExecution == nil || planExecution.IsFinished() {
		return
	}
	state := execution.PlanStateSucceeded
	if failed {
		state = execution.PlanStateFailed
	}
	planExecution.SetState(state)
	if err := s.planExecutions.Save(ctx, planExecution); err != nil {
		log.Printf("engine: failed to save plan execution %s: %v", planExecutionID, err)
		return
	}
	log.Printf("engine: plan execution %s finished as %s", planExecutionID, state)
	s.observers.Notify(event.NewEvent[any](event.PlanContext(planExecution), planExecution))
	if s.restraints != nil {
		if _, err := s.restraints.ReleaseByEntity(ctx, restraint.EntityPlanExecution, planExecutionID); err != nil {
			log.Printf("engine: failed to release restraints of plan execution %s: %v", planExecutionID, err)
		}
	}
	if s.interrupts != nil {
		if err := s.interrupts.Clear(ctx, planExecutionID); err != nil {
			log.Printf("engine: failed to clear interrupts of plan execution %s: %v", planExecutionID, err)
		}
	}
}

func (s *Service) lookupNode(planName, nodeID string) *plan.Node {
	s.plansMux.RLock()
	defer s.plansMux.RUnlock()
	aPlan, ok := s.plans[planName]
	if !ok {
		return nil
	}
	return aPlan.LookupNode(nodeID)
}
