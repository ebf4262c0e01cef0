package repository

import "errors"

// Sentinel kinds for record store errors.
var (
	ErrNotFound    = errors.New("customer not found")
	ErrUnavailable = errors.New("record store unavailable")
)
