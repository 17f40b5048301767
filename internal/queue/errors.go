package queue

import "errors"

var (
	// ErrDuplicateJob indicates the video already has an active job.
	ErrDuplicateJob = errors.New("video already has an active encoding job")

	// ErrInvalidTransition indicates the job exists but is not in a state
	// the requested transition may act on.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrNotFound indicates no live job matches the identifier.
	ErrNotFound = errors.New("job not found")
)
