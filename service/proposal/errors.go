package proposal

import "errors"

var (
	// ErrNotFound is returned when no proposal exists for the requested id or
	// correlation token.
	ErrNotFound = errors.New("proposal: not found")

	// ErrDuplicatePending is returned by Insert when an unresolved proposal
	// already tracks the same (targetResource, issue) pair. Callers treat it
	// as "already awaiting approval", not as a user-facing failure.
	ErrDuplicatePending = errors.New("proposal: duplicate pending")

	// ErrConflict is returned by Transition when the proposal is no longer in
	// the expected from status. The loser of a resolution race receives it
	// and must treat its operation as a no-op.
	ErrConflict = errors.New("proposal: transition conflict")
)
