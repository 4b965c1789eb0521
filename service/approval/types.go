package approval

import (
	"time"

	"github.com/viant/facilitor/model/ambiance"
	"github.com/viant/facilitor/policy"
)

// Instance statuses; all right-hand statuses are terminal and an instance
// reaches a terminal status exactly once.
const (
	StatusWaiting  = "WAITING"
	StatusApproved = "APPROVED"
	StatusRejected = "REJECTED"
	StatusFailed   = "FAILED"
	StatusExpired  = "EXPIRED"
)

// Instance types; ticket-backed instances are the only ones the criteria
// poll visits.
const (
	TypeManual = "manual"
	TypeTicket = "ticket"
)

// Activity decisions.
const (
	DecisionApprove = "approve"
	DecisionReject  = "reject"
)

// Event topics published on instance transitions.
const (
	TopicInstanceCreated = "approval.created"
	TopicInstanceUpdated = "approval.updated"
	TopicInstanceExpired = "approval.expired"
)

type (
	// Event envelope carried on the approval queue.
	Event struct {
		Topic    string            `json:"topic"`
		Instance *Instance         `json:"instance"`
		Headers  map[string]string `json:"headers,omitempty"`
	}

	// Condition is one key-value criteria term matched against ticket fields.
	Condition struct {
		Key      string `json:"key"`
		Operator string `json:"operator,omitempty"` // equals (default), notEquals, in
		Value    string `json:"value"`
	}

	// Criteria decides an instance outcome.  Either the key-value conditions
	// or the expression form may be used; when both are present the
	// expression wins.
	Criteria struct {
		MatchAny   bool        `json:"matchAny,omitempty"`
		Conditions []Condition `json:"conditions,omitempty"`
		Expression string      `json:"expression,omitempty"`
	}

	// Authorization captures who may act on the instance and how many
	// approvals it takes.
	Authorization struct {
		Policy           *policy.Policy `json:"policy,omitempty"`
		MinimumCount     int            `json:"minimumCount,omitempty"`
		AllowActingTwice bool           `json:"allowActingTwice,omitempty"`
	}

	// Activity is one human approve/reject action recorded on the instance.
	Activity struct {
		User     string    `json:"user"`
		Decision string    `json:"decision"`
		Comment  string    `json:"comment,omitempty"`
		ActedAt  time.Time `json:"actedAt"`
	}

	// Instance is a single parked approval awaiting a terminal outcome.
	Instance struct {
		ID              string             `json:"id"`
		NodeExecutionID string             `json:"nodeExecutionId,omitempty"`
		Ambiance        *ambiance.Ambiance `json:"ambiance,omitempty"`
		Type            string             `json:"type"`
		Status          string             `json:"status"`
		Version         int                `json:"version"`

		// ticket polling coordinates, used when Type==ticket
		TicketProvider  string `json:"ticketProvider,omitempty"`
		TicketConnector string `json:"ticketConnector,omitempty"`
		TicketKey       string `json:"ticketKey,omitempty"`

		ApprovalCriteria  *Criteria      `json:"approvalCriteria,omitempty"`
		RejectionCriteria *Criteria      `json:"rejectionCriteria,omitempty"`
		Authorization     *Authorization `json:"authorization,omitempty"`
		Activities        []*Activity    `json:"activities,omitempty"`

		Message      string `json:"message,omitempty"`
		ErrorMessage string `json:"errorMessage,omitempty"`

		CreatedAt       time.Time  `json:"createdAt"`
		UpdatedAt       time.Time  `json:"updatedAt"`
		DeadlineAt      *time.Time `json:"deadlineAt,omitempty"`
		NextIterationAt *time.Time `json:"nextIterationAt,omitempty"`
		CompletedAt     *time.Time `json:"completedAt,omitempty"`
	}
)

// IsEmpty reports whether the criteria has neither conditions nor an
// expression.
func (c *Criteria) IsEmpty() bool {
	return c == nil || (len(c.Conditions) == 0 && c.Expression == "")
}

// IsTerminal reports whether the instance reached a terminal status.
func (i *Instance) IsTerminal() bool {
	switch i.Status {
	case StatusApproved, StatusRejected, StatusFailed, StatusExpired:
		return true
	}
	return false
}

// IsPollable reports whether the criteria poll should visit the instance.
func (i *Instance) IsPollable() bool {
	return i.Type == TypeTicket && i.Status == StatusWaiting
}

// ApprovalCount returns how many approve activities were recorded.
func (i *Instance) ApprovalCount() int {
	count := 0
	for _, activity := range i.Activities {
		if activity.Decision == DecisionApprove {
			count++
		}
	}
	return count
}

// HasActed reports whether the user already submitted an activity.
func (i *Instance) HasActed(user string) bool {
	for _, activity := range i.Activities {
		if activity.User == user {
			return true
		}
	}
	return false
}

// Clone creates a deep copy of the instance.
func (i *Instance) Clone() *Instance {
	if i == nil {
		return nil
	}
	clone := *i
	clone.Ambiance = i.Ambiance.Clone()
	if i.ApprovalCriteria != nil {
		criteria := *i.ApprovalCriteria
		criteria.Conditions = append([]Condition(nil), i.ApprovalCriteria.Conditions...)
		clone.ApprovalCriteria = &criteria
	}
	if i.RejectionCriteria != nil {
		criteria := *i.RejectionCriteria
		criteria.Conditions = append([]Condition(nil), i.RejectionCriteria.Conditions...)
		clone.RejectionCriteria = &criteria
	}
	if i.Authorization != nil {
		authorization := *i.Authorization
		authorization.Policy = i.Authorization.Policy.Clone()
		clone.Authorization = &authorization
	}
	if i.Activities != nil {
		clone.Activities = make([]*Activity, 0, len(i.Activities))
		for _, activity := range i.Activities {
			copied := *activity
			clone.Activities = append(clone.Activities, &copied)
		}
	}
	if i.DeadlineAt != nil {
		at := *i.DeadlineAt
		clone.DeadlineAt = &at
	}
	if i.NextIterationAt != nil {
		at := *i.NextIterationAt
		clone.NextIterationAt = &at
	}
	if i.CompletedAt != nil {
		at := *i.CompletedAt
		clone.CompletedAt = &at
	}
	return &clone
}
