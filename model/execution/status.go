package execution

// Status represents the current status of a node execution.
type Status string

const (
	StatusQueued          Status = "queued"
	StatusRunning         Status = "running"
	StatusAsyncWaiting    Status = "asyncWaiting"
	StatusTaskWaiting     Status = "taskWaiting"
	StatusTimedWaiting    Status = "timedWaiting"
	StatusApprovalWaiting Status = "approvalWaiting"
	StatusResourceWaiting Status = "resourceWaiting"
	StatusPaused          Status = "paused"
	StatusSucceeded       Status = "succeeded"
	StatusFailed          Status = "failed"
	StatusSkipped         Status = "skipped"
	StatusAborted         Status = "aborted"
	StatusExpired         Status = "expired"
)

// FailureType classifies a terminal failure for later inspection.
type FailureType string

const (
	ApplicationFailure   FailureType = "APPLICATION_FAILURE"
	ConfigurationFailure FailureType = "CONFIGURATION_FAILURE"
	TimeoutFailure       FailureType = "TIMEOUT_FAILURE"
)

var terminal = map[Status]bool{
	StatusSucceeded: true,
	StatusFailed:    true,
	StatusSkipped:   true,
	StatusAborted:   true,
	StatusExpired:   true,
}

// waiting statuses park the node; resumption happens via external callback.
var waiting = map[Status]bool{
	StatusAsyncWaiting:    true,
	StatusTaskWaiting:     true,
	StatusTimedWaiting:    true,
	StatusApprovalWaiting: true,
	StatusResourceWaiting: true,
	StatusPaused:          true,
}

// IsTerminal reports whether the status admits no further transition.
func (s Status) IsTerminal() bool {
	return terminal[s]
}

// IsWaiting reports whether the status parks the node awaiting a callback.
func (s Status) IsWaiting() bool {
	return waiting[s]
}

// IsBreaking reports whether the status interrupts normal plan progression;
// observers interested only in break statuses filter on it.
func (s Status) IsBreaking() bool {
	switch s {
	case StatusFailed, StatusAborted, StatusExpired:
		return true
	}
	return false
}

// CanTransition enforces the monotonic status partial order: a terminal node
// is never resurrected and a node never goes back to queued.
func (s Status) CanTransition(to Status) bool {
	if s == to {
		return false
	}
	if s.IsTerminal() {
		return false
	}
	if to == StatusQueued {
		return false
	}
	return true
}
