package sentinel

import "errors"

// Sentinel dependency errors. Stores and collaborators return these (optionally
// wrapped) so services can translate them into domain errors exactly once.
var (
	ErrNotFound  = errors.New("not found")
	ErrMalformed = errors.New("malformed")
	ErrQueueFull = errors.New("queue full")
)
