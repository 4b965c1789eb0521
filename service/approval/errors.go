package approval

import (
	"errors"
	"fmt"
)

// ErrNotFound signals a missing approval instance.
var ErrNotFound = errors.New("approval instance not found")

// AuthorizationError rejects a human activity without changing instance
// state.
type AuthorizationError struct {
	InstanceID string
	User       string
	Reason     string
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("user %q may not act on approval %v: %v", e.User, e.InstanceID, e.Reason)
}

// TerminalError rejects an activity against an already decided instance.
type TerminalError struct {
	InstanceID string
	Status     string
}

func (e *TerminalError) Error() string {
	return fmt.Sprintf("approval %v is already %v", e.InstanceID, e.Status)
}
