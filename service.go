package facilitor

import (
	"github.com/viant/afs"

	"github.com/viant/facilitor/model/evaluator"
	"github.com/viant/facilitor/model/execution"
	"github.com/viant/facilitor/model/restraint"
	"github.com/viant/facilitor/progress"
	"github.com/viant/facilitor/service/approval"
	"github.com/viant/facilitor/service/check"
	"github.com/viant/facilitor/service/dao"
	efs "github.com/viant/facilitor/service/dao/execution/fs"
	ememory "github.com/viant/facilitor/service/dao/execution/memory"
	plandao "github.com/viant/facilitor/service/dao/plan"
	"github.com/viant/facilitor/service/dao/store"
	"github.com/viant/facilitor/service/engine"
	"github.com/viant/facilitor/service/event"
	"github.com/viant/facilitor/service/facilitate"
	"github.com/viant/facilitor/service/interrupt"
	"github.com/viant/facilitor/service/messaging"
	mfs "github.com/viant/facilitor/service/messaging/fs"
	mmemory "github.com/viant/facilitor/service/messaging/memory"
	restraintsvc "github.com/viant/facilitor/service/restraint"
	"github.com/viant/facilitor/service/ticket"

	"github.com/viant/x"
)

// Service assembles the execution stack: plan loading, the pre-start check
// chain, facilitation, admission control, approvals and the driver.
type Service struct {
	config  *Config
	runtime *Runtime

	planDAO      *plandao.Service
	planBaseURL  string
	rootNodeName string

	queue                messaging.Queue[execution.NodeExecution]
	eventQueue           messaging.Queue[event.Event[any]]
	executionDao         dao.ConditionalService[string, execution.NodeExecution]
	planExecutionDao     dao.Service[string, execution.PlanExecution]
	restraintDao         dao.Service[string, restraint.Restraint]
	restraintInstanceDao dao.Service[string, restraint.Instance]
	approvalService      *approval.Service
	ticketProviders      *ticket.Registry
	interrupts           interrupt.Service
	expressions          evaluator.Evaluator
	observers            *event.Observers
	extraObservers       []event.Observer
	handler              engine.Handler
	facilitators         []facilitate.Facilitator
	facilitatorTypes     []*x.Type
}

func (s *Service) init(options []Option) {
	for _, option := range options {
		option(s)
	}
	s.ensureBaseSetup()
	if s.runtime.initErr != nil {
		return
	}

	registry := facilitate.NewRegistry(s.facilitatorTypes...)
	facilitate.RegisterBuiltins(registry)
	for _, facilitator := range s.facilitators {
		registry.Register(facilitator)
	}
	s.observers.Register(s.runtime.progress)
	if s.eventQueue != nil {
		s.observers.Register(event.NewRelay(s.eventQueue))
	}
	for _, observer := range s.extraObservers {
		s.observers.Register(observer)
	}

	restraints := restraintsvc.New(s.restraintDao, s.restraintInstanceDao, s.executionDao, s.planExecutionDao)
	chain := check.New(s.executionDao, s.interrupts, s.expressions, s.observers)

	engineOptions := []engine.Option{
		engine.WithConfig(s.config.Engine),
		engine.WithQueue(s.queue),
		engine.WithExecutionDao(s.executionDao),
		engine.WithPlanExecutionDao(s.planExecutionDao),
		engine.WithChain(chain),
		engine.WithFacilitator(facilitate.New(registry)),
		engine.WithRestraints(restraints),
		engine.WithInterrupts(s.interrupts),
		engine.WithApprovals(s.approvalService),
		engine.WithObservers(s.observers),
	}
	if s.handler != nil {
		engineOptions = append(engineOptions, engine.WithHandler(s.handler))
	}
	s.runtime.engine, _ = engine.New(engineOptions...)
	s.runtime.planDAO = s.planDAO
	s.runtime.executionDao = s.executionDao
	s.runtime.planExecutionDao = s.planExecutionDao
	s.runtime.approvalService = s.approvalService
	s.runtime.restraints = restraints
	s.runtime.restraintDao = s.restraintDao
	s.runtime.interrupts = s.interrupts
	s.runtime.eventQueue = s.eventQueue
}

func (s *Service) ensureBaseSetup() {
	if s.config == nil {
		s.config = DefaultConfig()
	}
	if err := s.config.Validate(); err != nil {
		s.runtime.initErr = err
		return
	}
	if s.planDAO == nil {
		if s.rootNodeName == "" {
			s.rootNodeName = "pipeline"
		}
		s.planDAO = plandao.New(plandao.WithRootNodeName(s.rootNodeName), plandao.WithBaseURL(s.planBaseURL))
	}
	if s.queue == nil {
		if s.config.Queue.Vendor == VendorFS {
			queueConfig := mfs.DefaultConfig()
			queueConfig.BasePath = s.config.Queue.BasePath
			queue, err := mfs.NewQueue[execution.NodeExecution](afs.New(), queueConfig)
			if err != nil {
				s.runtime.initErr = err
				return
			}
			s.queue = queue
		} else {
			s.queue = mmemory.NewQueue[execution.NodeExecution](mmemory.DefaultConfig())
		}
	}
	if s.executionDao == nil {
		if s.config.Store.Vendor == VendorFS {
			s.executionDao = efs.New(s.config.Store.BasePath)
		} else {
			s.executionDao = ememory.New()
		}
	}
	if s.planExecutionDao == nil {
		s.planExecutionDao = store.NewMemoryStore[string, execution.PlanExecution](
			func(p *execution.PlanExecution) string { return p.ID })
	}
	if s.restraintDao == nil {
		s.restraintDao = store.NewMemoryStore[string, restraint.Restraint](
			func(r *restraint.Restraint) string { return r.ID })
	}
	if s.restraintInstanceDao == nil {
		s.restraintInstanceDao = store.NewMemoryStore[string, restraint.Instance](
			func(i *restraint.Instance) string { return i.ID })
	}
	if s.interrupts == nil {
		s.interrupts = interrupt.New()
	}
	if s.expressions == nil {
		s.expressions = evaluator.New()
	}
	if s.observers == nil {
		s.observers = event.NewObservers()
	}
	if s.approvalService == nil {
		approvalOptions := []approval.Option{approval.WithConfig(s.config.Approval)}
		if s.ticketProviders != nil {
			approvalOptions = append(approvalOptions, approval.WithProviders(s.ticketProviders))
		}
		s.approvalService = approval.New(approvalOptions...)
	}
	s.runtime.progress = progress.NewTracker()
}

// Runtime returns the runtime handle.
func (s *Service) Runtime() *Runtime {
	return s.runtime
}

// RegisterFacilitator registers an additional facilitator after construction.
func (s *Service) RegisterFacilitator(facilitator facilitate.Facilitator) {
	s.runtime.engine.Facilitator().Registry().Register(facilitator)
}

// Observers exposes the event fan-out registry.
func (s *Service) Observers() *event.Observers {
	return s.observers
}

// New creates the service facade.
func New(options ...Option) *Service {
	ret := &Service{runtime: &Runtime{}}
	ret.init(options)
	return ret
}
