// Package approval implements the approval instance state machine:
// WAITING instances reach exactly one of APPROVED, REJECTED, FAILED or
// EXPIRED via the criteria poll, human activities or the expiration sweep.
package approval
