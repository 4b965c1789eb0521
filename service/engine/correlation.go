package engine

import "sync"

// group is a rendez-vous for the children spawned by one parent node
// execution.  It tracks how many children were expected and how many have
// reported completion; sequential groups additionally hold the child node
// ids not yet scheduled.
type group struct {
	parentExecutionID string

	mu        sync.Mutex
	expected  int
	completed int
	failed    int
	pending   []string // unscheduled child node ids, sequential mode only
}

// markDone registers the completion of one child and returns whether the
// rendez-vous is satisfied plus the next child node id to schedule for
// sequential groups.  A failed child short-circuits a sequential group.
func (g *group) markDone(failed bool) (complete bool, next string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.completed++
	if failed {
		g.failed++
	}
	if len(g.pending) > 0 {
		if failed {
			g.pending = nil
			return true, ""
		}
		next = g.pending[0]
		g.pending = g.pending[1:]
		return false, next
	}
	return g.completed >= g.expected, ""
}

func (g *group) hasFailed() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.failed > 0
}

// groupStore maps parent executions to their child groups and children back
// to their owning group.
type groupStore struct {
	mu         sync.RWMutex
	groups     map[string]*group
	membership map[string]string // child execution id -> parent execution id
}

func newGroupStore() *groupStore {
	return &groupStore{
		groups:     make(map[string]*group),
		membership: make(map[string]string),
	}
}

func (s *groupStore) create(parentExecutionID string, expected int, pending []string) *group {
	s.mu.Lock()
	defer s.mu.Unlock()
	g := &group{parentExecutionID: parentExecutionID, expected: expected, pending: pending}
	s.groups[parentExecutionID] = g
	return g
}

func (s *groupStore) bind(childExecutionID, parentExecutionID string) {
	s.mu.Lock()
	s.membership[childExecutionID] = parentExecutionID
	s.mu.Unlock()
}

// groupOf returns the group owning the child execution, or nil.
func (s *groupStore) groupOf(childExecutionID string) *group {
	s.mu.RLock()
	defer s.mu.RUnlock()
	parentID, ok := s.membership[childExecutionID]
	if !ok {
		return nil
	}
	return s.groups[parentID]
}

func (s *groupStore) delete(parentExecutionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.groups, parentExecutionID)
	for child, parent := range s.membership {
		if parent == parentExecutionID {
			delete(s.membership, child)
		}
	}
}
