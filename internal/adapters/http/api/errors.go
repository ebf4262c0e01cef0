package api

import "errors"

// Sentinel kinds for API errors.
var (
	ErrServe       = errors.New("http serve failed")
	ErrBadRequest  = errors.New("bad request")
	ErrInvalidYear = errors.New("year must be a positive integer")
	ErrMissingBody = errors.New("missing or malformed JSON body")
)
