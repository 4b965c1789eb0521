// Package interrupt tracks pending abort/pause/retry interrupts and answers
// the pre-start question: may this node begin, or does an interrupt own its
// fate?  It is the sole cancellation entry point for pending nodes.
package interrupt

import (
	"context"
	"sync"

	"github.com/viant/facilitor/internal/clock"
	"github.com/viant/facilitor/internal/idgen"
	"time"
)

// Interrupt types.
const (
	TypeAbort = "abort"
	TypePause = "pause"
	TypeRetry = "retry"
)

type (
	// Interrupt is one pending interrupt registered against a plan execution;
	// an empty NodeRuntimeID targets every node of the plan execution.
	Interrupt struct {
		ID              string    `json:"id"`
		Type            string    `json:"type"`
		PlanExecutionID string    `json:"planExecutionId"`
		NodeRuntimeID   string    `json:"nodeRuntimeId,omitempty"`
		RegisteredAt    time.Time `json:"registeredAt"`
	}

	// Outcome reports whether the node may start.
	Outcome struct {
		Proceed   bool
		Reason    string
		Interrupt *Interrupt
	}

	// Service answers pre-start interrupt checks.
	Service interface {
		Register(ctx context.Context, interrupt *Interrupt) (*Interrupt, error)

		// CheckAndHandleBeforeStart consumes a matching pending interrupt, if
		// any; when one matched the interrupt handling path owns the node and
		// the caller must not proceed.  A plan-wide abort is not consumed so
		// every pending node of the plan execution observes it.
		CheckAndHandleBeforeStart(ctx context.Context, planExecutionID, nodeRuntimeID string) (*Outcome, error)

		// Clear drops all interrupts of a finished plan execution.
		Clear(ctx context.Context, planExecutionID string) error
	}
)

type service struct {
	mux        sync.Mutex
	interrupts []*Interrupt
}

// New creates an in-memory interrupt service.
func New() Service {
	return &service{}
}

func (s *service) Register(_ context.Context, interrupt *Interrupt) (*Interrupt, error) {
	if interrupt.ID == "" {
		interrupt.ID = idgen.New()
	}
	if interrupt.RegisteredAt.IsZero() {
		interrupt.RegisteredAt = clock.Now()
	}
	s.mux.Lock()
	s.interrupts = append(s.interrupts, interrupt)
	s.mux.Unlock()
	return interrupt, nil
}

func (s *service) CheckAndHandleBeforeStart(_ context.Context, planExecutionID, nodeRuntimeID string) (*Outcome, error) {
	s.mux.Lock()
	defer s.mux.Unlock()
	for i, candidate := range s.interrupts {
		if candidate.PlanExecutionID != planExecutionID {
			continue
		}
		if candidate.NodeRuntimeID != "" && candidate.NodeRuntimeID != nodeRuntimeID {
			continue
		}
		// a plan-wide abort stays registered so sibling nodes observe it too;
		// the engine clears it once the plan finishes
		if candidate.NodeRuntimeID != "" || candidate.Type != TypeAbort {
			s.interrupts = append(s.interrupts[:i], s.interrupts[i+1:]...)
		}
		return &Outcome{
			Proceed:   false,
			Reason:    "pending " + candidate.Type + " interrupt",
			Interrupt: candidate,
		}, nil
	}
	return &Outcome{Proceed: true}, nil
}

func (s *service) Clear(_ context.Context, planExecutionID string) error {
	s.mux.Lock()
	defer s.mux.Unlock()
	kept := s.interrupts[:0]
	for _, candidate := range s.interrupts {
		if candidate.PlanExecutionID != planExecutionID {
			kept = append(kept, candidate)
		}
	}
	s.interrupts = kept
	return nil
}
