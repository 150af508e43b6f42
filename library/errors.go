package library

import "errors"

// Failure categories surfaced by the core. Callers branch with
// errors.Is; everything else wraps one of these.
var (
	// ErrValidation marks missing or malformed input caught at the
	// boundary before it reaches the store.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound marks a lookup by id that missed.
	ErrNotFound = errors.New("not found")

	// ErrStorage marks an unreachable or failed persistence layer.
	ErrStorage = errors.New("storage failure")

	// ErrAuth marks a credential mismatch on login.
	ErrAuth = errors.New("authentication failed")

	// ErrNoCopies marks an issue attempt against a book with no
	// copies on the shelf.
	ErrNoCopies = errors.New("no copies available")
)
