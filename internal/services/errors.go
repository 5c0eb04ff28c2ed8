package services

import "errors"

// Errors shared across services. More specific sentinels live next to the
// service that owns them.
var (
	// ErrValidation marks malformed or out-of-range input, rejected before
	// any side effect.
	ErrValidation = errors.New("validation failed")

	// ErrForbidden marks an operation outside the caller's branch/chain
	// scope or role, rejected with no side effect.
	ErrForbidden = errors.New("operation not permitted for this principal")

	// ErrUpstreamFailure marks a payment processor or fiscal endpoint
	// failure.
	ErrUpstreamFailure = errors.New("upstream service failure")
)
