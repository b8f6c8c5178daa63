package domain

import "errors"

// Domain errors - used across all layers
var (
	// ErrNotFound indicates the requested resource was not found
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates the input is invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotReady indicates the episode has no manifest yet
	ErrNotReady = errors.New("episode not ready")

	// ErrIndexNotReady indicates the retrieval index for an episode has not been built
	ErrIndexNotReady = errors.New("retrieval index not ready")

	// ErrLockHeld indicates another worker is processing the same episode
	ErrLockHeld = errors.New("lock held by another worker")

	// ErrInvalidProvider indicates an unknown AI provider was specified
	ErrInvalidProvider = errors.New("invalid provider")

	// ErrServiceUnavailable indicates an external AI service could not be reached
	ErrServiceUnavailable = errors.New("service unavailable")
)
