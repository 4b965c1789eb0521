package restraint

import (
	"time"
)

// Strategy determines how blocked instances are promoted.
const (
	StrategyFIFO = "fifo"
)

// Instance states.
const (
	StateBlocked  = "blocked"
	StateActive   = "active"
	StateFinished = "finished"
)

// Release entity types.
const (
	EntityPlanExecution = "planExecution"
	EntityNodeExecution = "nodeExecution"
)

type (
	// Restraint is a named capacity limit created administratively; the
	// number of active instances per (restraint, resource unit) never exceeds
	// Capacity.
	Restraint struct {
		ID        string `json:"id"`
		AccountID string `json:"accountId"`
		Name      string `json:"name"`
		Capacity  int    `json:"capacity"`
		Strategy  string `json:"strategy,omitempty"`
	}

	// Instance is one admission request against a restraint's resource unit.
	// Order is a monotonic enqueue sequence per (restraint, unit) and drives
	// the FIFO promotion tie-break.
	Instance struct {
		ID                string     `json:"id"`
		RestraintID       string     `json:"restraintId"`
		ResourceUnit      string     `json:"resourceUnit"`
		ReleaseEntityType string     `json:"releaseEntityType"`
		ReleaseEntityID   string     `json:"releaseEntityId"`
		Order             int        `json:"order"`
		State             string     `json:"state"`
		CreatedAt         time.Time  `json:"createdAt"`
		AcquiredAt        *time.Time `json:"acquiredAt,omitempty"`
		FinishedAt        *time.Time `json:"finishedAt,omitempty"`
	}
)

// IsFinished reports whether the instance released its permit.
func (i *Instance) IsFinished() bool {
	return i.State == StateFinished
}

// Clone creates a copy of the instance.
func (i *Instance) Clone() *Instance {
	if i == nil {
		return nil
	}
	clone := *i
	if i.AcquiredAt != nil {
		at := *i.AcquiredAt
		clone.AcquiredAt = &at
	}
	if i.FinishedAt != nil {
		at := *i.FinishedAt
		clone.FinishedAt = &at
	}
	return &clone
}

// Clone creates a copy of the restraint definition.
func (r *Restraint) Clone() *Restraint {
	if r == nil {
		return nil
	}
	clone := *r
	return &clone
}
