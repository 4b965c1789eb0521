package approval

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/viant/facilitor/internal/clock"
	"github.com/viant/facilitor/internal/idgen"
	"github.com/viant/facilitor/model/evaluator"
	"github.com/viant/facilitor/service/dao"
	"github.com/viant/facilitor/service/dao/store"
	"github.com/viant/facilitor/service/messaging"
	qmem "github.com/viant/facilitor/service/messaging/memory"
	"github.com/viant/facilitor/service/ticket"
	"github.com/viant/facilitor/tracing"
)

// Service drives approval instances from WAITING to one of the terminal
// statuses.  Transitions are serialised by a service mutex so that a
// concurrent poll, human activity and sweep never decide the same instance
// twice.
type Service struct {
	instances dao.Service[string, Instance]
	events    messaging.Queue[Event]
	eval      evaluator.Evaluator
	providers *ticket.Registry
	config    Config
	mux       sync.Mutex
}

func instanceKey(i *Instance) string { return i.ID }

// New creates an approval service backed by in-memory stores unless
// overridden by options.
func New(options ...Option) *Service {
	ret := &Service{
		instances: store.NewMemoryStore[string, Instance](instanceKey),
		events:    qmem.NewQueue[Event](qmem.DefaultConfig()),
		eval:      evaluator.New(),
		providers: ticket.NewRegistry(),
		config:    DefaultConfig(),
	}
	for _, option := range options {
		option(ret)
	}
	return ret
}

// Queue exposes the event queue the orchestration driver consumes to feed
// terminal approval outcomes back into node execution statuses.
func (s *Service) Queue() messaging.Queue[Event] { return s.events }

// Create registers a new waiting instance.
func (s *Service) Create(ctx context.Context, instance *Instance) error {
	if instance == nil {
		return errors.New("invalid instance")
	}
	if instance.Type == "" {
		return errors.New("instance type is required")
	}
	if instance.Type == TypeTicket && instance.TicketKey == "" {
		return fmt.Errorf("ticket approval %v requires a ticket key", instance.ID)
	}
	if instance.ID == "" {
		instance.ID = idgen.New()
	}
	now := clock.Now()
	instance.Status = StatusWaiting
	instance.CreatedAt = now
	instance.UpdatedAt = now
	if instance.Authorization == nil {
		instance.Authorization = &Authorization{}
	}
	if instance.Authorization.MinimumCount <= 0 {
		instance.Authorization.MinimumCount = 1
	}
	if err := s.instances.Save(ctx, instance.Clone()); err != nil {
		return err
	}
	log.Printf("[approval] instance %v created (type=%v, deadline=%v)", instance.ID, instance.Type, instance.DeadlineAt)
	_ = s.events.Publish(ctx, &Event{Topic: TopicInstanceCreated, Instance: instance.Clone()})
	return nil
}

// Get returns a copy of the instance.
func (s *Service) Get(ctx context.Context, id string) (*Instance, error) {
	instance, err := s.instances.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if instance == nil {
		return nil, ErrNotFound
	}
	return instance.Clone(), nil
}

// AddActivity applies a human approve/reject action.  Unauthorized
// attempts return *AuthorizationError and cause no state change; acting on
// an already decided instance returns *TerminalError.
func (s *Service) AddActivity(ctx context.Context, id, user string, groups []string, decision, comment string) (*Instance, error) {
	ctx, span := tracing.StartSpan(ctx, "approval/activity", "INTERNAL")
	var err error
	defer func() { tracing.EndSpan(span, err) }()

	if decision != DecisionApprove && decision != DecisionReject {
		err = fmt.Errorf("unknown approval decision %q", decision)
		return nil, err
	}

	s.mux.Lock()
	defer s.mux.Unlock()

	var instance *Instance
	instance, err = s.instances.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if instance == nil {
		err = ErrNotFound
		return nil, err
	}
	if instance.IsTerminal() {
		err = &TerminalError{InstanceID: id, Status: instance.Status}
		return nil, err
	}
	if err = s.authorize(instance, user, groups); err != nil {
		log.Printf("[approval] instance %v: activity by %v denied: %v", id, user, err)
		return nil, err
	}

	instance.Activities = append(instance.Activities, &Activity{
		User:     user,
		Decision: decision,
		Comment:  comment,
		ActedAt:  clock.Now(),
	})
	log.Printf("[approval] instance %v: %v by %v (%v)", id, decision, user, comment)

	switch {
	case decision == DecisionReject:
		err = s.transition(ctx, instance, StatusRejected, fmt.Sprintf("rejected by %v", user))
	case instance.ApprovalCount() >= instance.Authorization.MinimumCount:
		err = s.transition(ctx, instance, StatusApproved, fmt.Sprintf("approved by %v", user))
	default:
		instance.UpdatedAt = clock.Now()
		instance.Version++
		if err = s.instances.Save(ctx, instance); err != nil {
			return nil, err
		}
		log.Printf("[approval] instance %v: %v of %v approvals collected", id, instance.ApprovalCount(), instance.Authorization.MinimumCount)
		_ = s.events.Publish(ctx, &Event{Topic: TopicInstanceUpdated, Instance: instance.Clone()})
	}
	if err != nil {
		return nil, err
	}
	return instance.Clone(), nil
}

func (s *Service) authorize(instance *Instance, user string, groups []string) error {
	if user == "" {
		return &AuthorizationError{InstanceID: instance.ID, User: user, Reason: "missing caller identity"}
	}
	authorization := instance.Authorization
	if authorization == nil {
		return nil
	}
	if !authorization.Policy.IsAllowed(user, groups) {
		return &AuthorizationError{InstanceID: instance.ID, User: user, Reason: "not permitted by approval policy"}
	}
	if !authorization.AllowActingTwice && instance.HasActed(user) {
		return &AuthorizationError{InstanceID: instance.ID, User: user, Reason: "user has already acted"}
	}
	return nil
}

// transition moves the instance to a terminal status exactly once; calls on
// an already terminal instance are no-ops.
func (s *Service) transition(ctx context.Context, instance *Instance, status, reason string) error {
	if instance.IsTerminal() {
		return nil
	}
	now := clock.Now()
	instance.Status = status
	instance.UpdatedAt = now
	instance.CompletedAt = &now
	instance.Version++
	if err := s.instances.Save(ctx, instance); err != nil {
		return err
	}
	log.Printf("[approval] instance %v -> %v: %v", instance.ID, status, reason)
	topic := TopicInstanceUpdated
	if status == StatusExpired {
		topic = TopicInstanceExpired
	}
	_ = s.events.Publish(ctx, &Event{Topic: topic, Instance: instance.Clone()})
	return nil
}

// fail records a fatal evaluation error on the instance.
func (s *Service) fail(ctx context.Context, instance *Instance, evalErr error) error {
	instance.ErrorMessage = evalErr.Error()
	return s.transition(ctx, instance, StatusFailed, fmt.Sprintf("criteria evaluation failed: %v", evalErr))
}
