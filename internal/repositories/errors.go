package repositories

import "errors"

// Both user stores translate their driver errors into these values so callers
// can classify failures with errors.Is regardless of the backend.
var (
	// ErrNotFound means no user or session matched the lookup.
	ErrNotFound = errors.New("record not found")
	// ErrConflict means a write collided with an existing record, such as a
	// second account for the same email.
	ErrConflict = errors.New("record conflict")
)
