// Package restraint implements capacity-bounded admission control with
// strict first-come-first-served fairness.  Admission requests are queued
// as instances ordered by a monotonic per-unit counter; releasing an active
// instance is the only path that promotes the next blocked one, so no
// waiter is ever skipped.
package restraint

import (
	"context"
	"sort"
	"sync"

	"github.com/viant/facilitor/internal/clock"
	"github.com/viant/facilitor/internal/idgen"
	"github.com/viant/facilitor/model/execution"
	"github.com/viant/facilitor/model/restraint"
	"github.com/viant/facilitor/service/dao"
)

// HolderInfo is a read-only snapshot row describing one admission request
// joined against its owning plan execution for display.
type HolderInfo struct {
	InstanceID        string `json:"instanceId"`
	State             string `json:"state"`
	Order             int    `json:"order"`
	ReleaseEntityType string `json:"releaseEntityType"`
	ReleaseEntityID   string `json:"releaseEntityId"`
	PlanExecutionID   string `json:"planExecutionId"`
	PlanName          string `json:"planName,omitempty"`
}

// Service arbitrates admission against named restraints.
type Service struct {
	restraints     dao.Service[string, restraint.Restraint]
	instances      dao.Service[string, restraint.Instance]
	executionDao   dao.Service[string, execution.NodeExecution]
	planExecutions dao.Service[string, execution.PlanExecution]

	mux    sync.Mutex
	locks  map[string]*sync.Mutex
	orders map[string]int
}

// New creates an admission control service.  The execution DAOs are used
// only by ExecutionInfo to join holders against their owning executions.
func New(restraints dao.Service[string, restraint.Restraint],
	instances dao.Service[string, restraint.Instance],
	executionDao dao.Service[string, execution.NodeExecution],
	planExecutions dao.Service[string, execution.PlanExecution]) *Service {
	return &Service{
		restraints:     restraints,
		instances:      instances,
		executionDao:   executionDao,
		planExecutions: planExecutions,
		locks:          make(map[string]*sync.Mutex),
		orders:         make(map[string]int),
	}
}

// unitLock returns the mutex serializing mutations for one
// (restraint, resource unit) pair; fairness correctness depends on it.
func (s *Service) unitLock(restraintID, resourceUnit string) *sync.Mutex {
	key := restraintID + "/" + resourceUnit
	s.mux.Lock()
	defer s.mux.Unlock()
	lock, ok := s.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[key] = lock
	}
	return lock
}

func (s *Service) nextOrder(restraintID, resourceUnit string) int {
	key := restraintID + "/" + resourceUnit
	s.mux.Lock()
	defer s.mux.Unlock()
	s.orders[key]++
	return s.orders[key]
}

func (s *Service) lookup(ctx context.Context, name, accountID string) (*restraint.Restraint, error) {
	candidates, err := s.restraints.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, candidate := range candidates {
		if candidate.Name == name && candidate.AccountID == accountID {
			return candidate, nil
		}
	}
	return nil, &NotFoundError{Name: name, AccountID: accountID}
}

// Enqueue creates a blocked admission request with the next monotonic order
// for the (restraint, resource unit) pair.
func (s *Service) Enqueue(ctx context.Context, name, accountID, resourceUnit, entityType, entityID string) (*restraint.Instance, error) {
	definition, err := s.lookup(ctx, name, accountID)
	if err != nil {
		return nil, err
	}
	lock := s.unitLock(definition.ID, resourceUnit)
	lock.Lock()
	defer lock.Unlock()

	instance := &restraint.Instance{
		ID:                idgen.New(),
		RestraintID:       definition.ID,
		ResourceUnit:      resourceUnit,
		ReleaseEntityType: entityType,
		ReleaseEntityID:   entityID,
		Order:             s.nextOrder(definition.ID, resourceUnit),
		State:             restraint.StateBlocked,
		CreatedAt:         clock.Now(),
	}
	if err := s.instances.Save(ctx, instance); err != nil {
		return nil, err
	}
	return instance.Clone(), nil
}

// TryAdmit promotes the lowest-order blocked instance for the unit when the
// active count is below capacity.  It returns nil when nothing was promoted.
func (s *Service) TryAdmit(ctx context.Context, name, accountID, resourceUnit string) (*restraint.Instance, error) {
	definition, err := s.lookup(ctx, name, accountID)
	if err != nil {
		return nil, err
	}
	lock := s.unitLock(definition.ID, resourceUnit)
	lock.Lock()
	defer lock.Unlock()
	return s.admit(ctx, definition, resourceUnit)
}

func (s *Service) admit(ctx context.Context, definition *restraint.Restraint, resourceUnit string) (*restraint.Instance, error) {
	queued, err := s.unitInstances(ctx, definition.ID, resourceUnit)
	if err != nil {
		return nil, err
	}
	active := 0
	var next *restraint.Instance
	for _, instance := range queued {
		switch instance.State {
		case restraint.StateActive:
			active++
		case restraint.StateBlocked:
			if next == nil {
				next = instance
			}
		}
	}
	if next == nil || active >= definition.Capacity {
		return nil, nil
	}
	now := clock.Now()
	next.State = restraint.StateActive
	next.AcquiredAt = &now
	if err := s.instances.Save(ctx, next); err != nil {
		return nil, err
	}
	return next.Clone(), nil
}

// Release marks an active instance finished and immediately attempts to
// promote the next blocked instance for the same unit.  Releasing an
// already finished instance is a no-op.
func (s *Service) Release(ctx context.Context, instanceID string) (*restraint.Instance, error) {
	instance, err := s.instances.Load(ctx, instanceID)
	if err != nil {
		return nil, err
	}
	if instance == nil {
		return nil, dao.ErrNotFound
	}
	definition, err := s.restraints.Load(ctx, instance.RestraintID)
	if err != nil {
		return nil, err
	}
	lock := s.unitLock(instance.RestraintID, instance.ResourceUnit)
	lock.Lock()
	defer lock.Unlock()
	promoted, _, err := s.release(ctx, definition, instance.ID)
	return promoted, err
}

// release finishes an instance; the caller holds the unit lock.  The
// instance is re-loaded under the lock so a concurrent release of the same
// instance cannot finish it twice off a stale clone.  The bool reports
// whether this call performed the transition.
func (s *Service) release(ctx context.Context, definition *restraint.Restraint, instanceID string) (*restraint.Instance, bool, error) {
	instance, err := s.instances.Load(ctx, instanceID)
	if err != nil {
		return nil, false, err
	}
	if instance == nil || instance.IsFinished() {
		return nil, false, nil
	}
	wasActive := instance.State == restraint.StateActive
	now := clock.Now()
	instance.State = restraint.StateFinished
	instance.FinishedAt = &now
	if err := s.instances.Save(ctx, instance); err != nil {
		return nil, false, err
	}
	if !wasActive || definition == nil {
		return nil, true, nil
	}
	promoted, err := s.admit(ctx, definition, instance.ResourceUnit)
	return promoted, true, err
}

// ReleaseByEntity releases every unfinished instance owned by the supplied
// entity and returns how many were released.  Plan-end cleanup uses it so
// that permits never outlive their owning execution.
func (s *Service) ReleaseByEntity(ctx context.Context, entityType, entityID string) (int, error) {
	all, err := s.instances.List(ctx)
	if err != nil {
		return 0, err
	}
	released := 0
	for _, instance := range all {
		if instance.ReleaseEntityType != entityType || instance.ReleaseEntityID != entityID || instance.IsFinished() {
			continue
		}
		definition, err := s.restraints.Load(ctx, instance.RestraintID)
		if err != nil {
			return released, err
		}
		lock := s.unitLock(instance.RestraintID, instance.ResourceUnit)
		lock.Lock()
		_, finished, err := s.release(ctx, definition, instance.ID)
		lock.Unlock()
		if err != nil {
			return released, err
		}
		if finished {
			released++
		}
	}
	return released, nil
}

// ExecutionInfo returns a diagnostics snapshot of all unfinished holders of
// the unit ordered by admission order.  Holders whose owning execution has
// since been deleted are omitted rather than failing the whole snapshot.
func (s *Service) ExecutionInfo(ctx context.Context, name, accountID, resourceUnit string) ([]*HolderInfo, error) {
	definition, err := s.lookup(ctx, name, accountID)
	if err != nil {
		return nil, err
	}
	queued, err := s.unitInstances(ctx, definition.ID, resourceUnit)
	if err != nil {
		return nil, err
	}
	result := make([]*HolderInfo, 0, len(queued))
	for _, instance := range queued {
		if instance.IsFinished() {
			continue
		}
		info := &HolderInfo{
			InstanceID:        instance.ID,
			State:             instance.State,
			Order:             instance.Order,
			ReleaseEntityType: instance.ReleaseEntityType,
			ReleaseEntityID:   instance.ReleaseEntityID,
		}
		if !s.resolveOwner(ctx, instance, info) {
			continue
		}
		result = append(result, info)
	}
	return result, nil
}

func (s *Service) resolveOwner(ctx context.Context, instance *restraint.Instance, info *HolderInfo) bool {
	planExecutionID := instance.ReleaseEntityID
	if instance.ReleaseEntityType == restraint.EntityNodeExecution {
		if s.executionDao == nil {
			return true
		}
		owner, err := s.executionDao.Load(ctx, instance.ReleaseEntityID)
		if err != nil || owner == nil {
			return false
		}
		planExecutionID = owner.Ambiance.PlanExecutionID
	}
	info.PlanExecutionID = planExecutionID
	if s.planExecutions == nil {
		return true
	}
	planExecution, err := s.planExecutions.Load(ctx, planExecutionID)
	if err != nil || planExecution == nil {
		return false
	}
	info.PlanName = planExecution.PlanName
	return true
}

func (s *Service) unitInstances(ctx context.Context, restraintID, resourceUnit string) ([]*restraint.Instance, error) {
	all, err := s.instances.List(ctx)
	if err != nil {
		return nil, err
	}
	matched := make([]*restraint.Instance, 0, len(all))
	for _, instance := range all {
		if instance.RestraintID == restraintID && instance.ResourceUnit == resourceUnit {
			matched = append(matched, instance)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].Order < matched[j].Order })
	return matched, nil
}
