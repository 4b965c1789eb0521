package execution

import (
	"time"

	"github.com/viant/facilitor/internal/clock"
)

// Plan execution state constants.
const (
	PlanStateRunning   = "running"
	PlanStatePaused    = "paused"
	PlanStateSucceeded = "succeeded"
	PlanStateFailed    = "failed"
	PlanStateAborted   = "aborted"
)

// PlanExecution is the summary record of one running plan; the restraint
// execution-info view joins against it for display purposes.
type PlanExecution struct {
	ID         string     `json:"id"`
	PlanName   string     `json:"planName"`
	AccountID  string     `json:"accountId,omitempty"`
	State      string     `json:"state"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
	FinishedAt *time.Time `json:"finishedAt,omitempty"`
}

// NewPlanExecution creates a running plan execution record.
func NewPlanExecution(id, planName, accountID string) *PlanExecution {
	now := clock.Now()
	return &PlanExecution{
		ID:        id,
		PlanName:  planName,
		AccountID: accountID,
		State:     PlanStateRunning,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// SetState updates the state, stamping FinishedAt on terminal states.
func (p *PlanExecution) SetState(state string) {
	p.State = state
	p.UpdatedAt = clock.Now()
	switch state {
	case PlanStateSucceeded, PlanStateFailed, PlanStateAborted:
		now := clock.Now()
		p.FinishedAt = &now
	}
}

// IsFinished reports whether the plan execution reached a terminal state.
func (p *PlanExecution) IsFinished() bool {
	return p.FinishedAt != nil
}

// Clone creates a copy of the plan execution record.
func (p *PlanExecution) Clone() *PlanExecution {
	if p == nil {
		return nil
	}
	clone := *p
	if p.FinishedAt != nil {
		finished := *p.FinishedAt
		clone.FinishedAt = &finished
	}
	return &clone
}
