package restraint

import "fmt"

// NotFoundError signals a missing restraint definition; admission cannot
// proceed without one, so callers treat it as fatal.
type NotFoundError struct {
	Name      string
	AccountID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("restraint %q not found for account %q", e.Name, e.AccountID)
}
