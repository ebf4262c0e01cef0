package kba

import "errors"

// Sentinel kinds for identity challenge errors.
var (
	ErrNoVerifiableFields = errors.New("customer has no verifiable fields")
	ErrDecoyGeneration    = errors.New("could not generate distinct decoys")
	ErrChallengeNotFound  = errors.New("challenge not found or expired")
	ErrChallengeExhausted = errors.New("challenge attempts exhausted")
)
