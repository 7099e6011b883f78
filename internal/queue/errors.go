package queue

import "errors"

var (
	// ErrNotFound reports that no row exists for the requested id.
	ErrNotFound = errors.New("queue message not found")
	// ErrInvalidInput reports a request rejected before touching the database.
	ErrInvalidInput = errors.New("invalid queue input")
	// ErrInvalidTransition reports a status change that is not allowed from the
	// row's current status, for example completing a failed_permanent row.
	ErrInvalidTransition = errors.New("invalid queue status transition")
)
