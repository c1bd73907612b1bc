package errors

import "errors"

// Domain errors
var (
	// Registry errors
	ErrPackageNotFound     = errors.New("package not found on public registry")
	ErrRateLimited         = errors.New("registry rate limit exceeded")
	ErrRegistryUnavailable = errors.New("registry unavailable")

	// Audit errors
	ErrInvalidTarget = errors.New("invalid target URL")
	ErrEmptyTarget   = errors.New("target cannot be empty")
)
