package seed

import "errors"

// Sentinel errors.
var (
	ErrInvalidConfig    = errors.New("invalid seed config")
	ErrServiceUnhealthy = errors.New("service health check failed")
	ErrMismatch         = errors.New("service summary does not match the seeded ledger")
)
