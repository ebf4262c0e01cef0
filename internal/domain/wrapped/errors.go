package wrapped

import "errors"

// Sentinel kinds for summary build failures.
var (
	ErrNotFound        = errors.New("customer not found")
	ErrDataUnavailable = errors.New("data unavailable")
)
