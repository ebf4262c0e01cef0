package service

import "errors"

// Sentinel kinds for service errors.
var (
	ErrEmptyQuery = errors.New("search term is empty")
	ErrNoMatches  = errors.New("no customer matches")
	ErrNotStarted = errors.New("service not started")
)
