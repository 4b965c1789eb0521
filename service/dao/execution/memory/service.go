package memory

import (
	"context"
	"sync"

	"github.com/viant/facilitor/model/execution"
	"github.com/viant/facilitor/service/dao"
	"github.com/viant/facilitor/service/dao/criteria"
)

// Service implements an in-memory node execution storage.  All operations
// are thread-safe and return **copies** of the underlying objects to prevent
// data races when callers mutate the returned instances.  Status mutations
// go through ConditionalUpdate so that concurrent writers are detected.
type Service struct {
	executions map[string]*execution.NodeExecution
	mux        sync.RWMutex
}

// Compile-time check that Service implements the conditional DAO interface.
var _ dao.ConditionalService[string, execution.NodeExecution] = (*Service)(nil)

// Save persists (a clone of) the supplied execution.
func (s *Service) Save(_ context.Context, e *execution.NodeExecution) error {
	if e == nil {
		return dao.ErrNilEntity
	}
	if e.UUID == "" {
		return dao.ErrInvalidID
	}

	s.mux.Lock()
	defer s.mux.Unlock()

	s.executions[e.UUID] = e.Clone()
	return nil
}

// Load retrieves a copy of the execution or dao.ErrNotFound.
func (s *Service) Load(_ context.Context, id string) (*execution.NodeExecution, error) {
	if id == "" {
		return nil, dao.ErrInvalidID
	}

	s.mux.RLock()
	e, ok := s.executions[id]
	s.mux.RUnlock()

	if !ok {
		return nil, dao.ErrNotFound
	}
	return e.Clone(), nil
}

// Delete removes an execution.
func (s *Service) Delete(_ context.Context, id string) error {
	if id == "" {
		return dao.ErrInvalidID
	}

	s.mux.Lock()
	defer s.mux.Unlock()

	if _, ok := s.executions[id]; !ok {
		return dao.ErrNotFound
	}
	delete(s.executions, id)
	return nil
}

// List returns copies of all executions matching the supplied parameters.
func (s *Service) List(_ context.Context, parameters ...*dao.Parameter) ([]*execution.NodeExecution, error) {
	s.mux.RLock()
	defer s.mux.RUnlock()

	out := make([]*execution.NodeExecution, 0, len(s.executions))
	for _, e := range s.executions {
		if !criteria.Matches("Status", string(e.Status), parameters) {
			continue
		}
		if !criteria.Matches("PlanExecutionID", e.Ambiance.PlanExecutionID, parameters) {
			continue
		}
		out = append(out, e.Clone())
	}
	return out, nil
}

// ConditionalUpdate applies mutator to the stored record only when its
// version still equals expectedVersion, bumping the version on success.  A
// concurrent modification surfaces as dao.ErrConflict.
func (s *Service) ConditionalUpdate(_ context.Context, id string, expectedVersion int, mutator func(*execution.NodeExecution) error) (*execution.NodeExecution, error) {
	if id == "" {
		return nil, dao.ErrInvalidID
	}

	s.mux.Lock()
	defer s.mux.Unlock()

	stored, ok := s.executions[id]
	if !ok {
		return nil, dao.ErrNotFound
	}
	if stored.Version != expectedVersion {
		return nil, dao.ErrConflict
	}
	updated := stored.Clone()
	if err := mutator(updated); err != nil {
		return nil, err
	}
	updated.Version = expectedVersion + 1
	s.executions[id] = updated
	return updated.Clone(), nil
}

// New constructor.
func New() *Service {
	return &Service{executions: map[string]*execution.NodeExecution{}}
}
