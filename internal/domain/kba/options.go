package kba

import (
	"math/rand"
	"time"
)

const (
	defaultMaxRetries  = 5
	defaultMaxAttempts = 3
	defaultTTL         = 5 * time.Minute
)

// Option applies a configuration option to the Generator.
type Option func(*Generator)

// WithSeed seeds a private random source. Equal seeds replay equal challenges.
func WithSeed(seed int64) Option {
	return func(g *Generator) {
		g.rng = rand.New(rand.NewSource(seed)) //nolint:gosec // not a security boundary
	}
}

// WithRand sets the random source used for field choice, decoys and shuffling.
func WithRand(r *rand.Rand) Option {
	return func(g *Generator) {
		if r != nil {
			g.rng = r
		}
	}
}

// WithMaxRetries bounds the attempts spent looking for each distinct decoy.
func WithMaxRetries(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.maxRetries = n
		}
	}
}

// WithIDFunc overrides challenge id generation.
func WithIDFunc(f func() string) Option {
	return func(g *Generator) {
		if f != nil {
			g.newID = f
		}
	}
}

// RegistryOption applies a configuration option to the Registry.
type RegistryOption func(*Registry)

// WithMaxAttempts sets how many wrong answers discard a challenge.
func WithMaxAttempts(n int) RegistryOption {
	return func(r *Registry) {
		if n > 0 {
			r.maxAttempts = n
		}
	}
}

// WithTTL sets how long an unanswered challenge stays valid.
func WithTTL(ttl time.Duration) RegistryOption {
	return func(r *Registry) {
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

// WithRegistryClock sets the registry's time source.
func WithRegistryClock(now func() time.Time) RegistryOption {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}
