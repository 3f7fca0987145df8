package domain

import "errors"

var (
	// ErrInvalidRequest means the caller supplied an unusable turn.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrUpstreamUnavailable means the completion call failed or timed out.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	// ErrNotFound means the requested record does not exist.
	ErrNotFound = errors.New("not found")
)
