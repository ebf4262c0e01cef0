package kba

import (
	"fmt"
	"sync"
	"time"
)

// Result is the outcome of one answer.
type Result struct {
	Verified   bool   `json:"verified"`
	Remaining  int    `json:"remaining_attempts"`
	CustomerID string `json:"-"`
}

type registryEntry struct {
	challenge *Challenge
	failures  int
	expiresAt time.Time
}

// Registry holds issued challenges and enforces the attempt budget. A
// verified challenge is consumed; an exhausted or expired one is dropped.
type Registry struct {
	mu          sync.Mutex
	items       map[string]*registryEntry
	ttl         time.Duration
	maxAttempts int
	now         func() time.Time
}

// NewRegistry creates an empty Registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		items:       make(map[string]*registryEntry),
		ttl:         defaultTTL,
		maxAttempts: defaultMaxAttempts,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// MaxAttempts is the number of wrong answers a challenge tolerates.
func (r *Registry) MaxAttempts() int { return r.maxAttempts }

// Put stores ch until it is answered, exhausted or expired.
func (r *Registry) Put(ch *Challenge) {
	if ch == nil {
		return
	}
	r.mu.Lock()
	r.items[ch.ID] = &registryEntry{challenge: ch, expiresAt: r.now().Add(r.ttl)}
	r.mu.Unlock()
}

// Get returns a live challenge.
func (r *Registry) Get(id string) (*Challenge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, err := r.live(id)
	if err != nil {
		return nil, err
	}
	return e.challenge, nil
}

// Answer checks answer against challenge id. A wrong answer on the last
// attempt discards the challenge and returns ErrChallengeExhausted.
func (r *Registry) Answer(id, answer string) (Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, err := r.live(id)
	if err != nil {
		return Result{}, err
	}
	if Verify(e.challenge, answer) {
		delete(r.items, id)
		return Result{Verified: true, Remaining: r.maxAttempts - e.failures, CustomerID: e.challenge.CustomerID}, nil
	}
	e.failures++
	remaining := r.maxAttempts - e.failures
	if remaining <= 0 {
		delete(r.items, id)
		return Result{}, fmt.Errorf("%w: %s", ErrChallengeExhausted, id)
	}
	return Result{Remaining: remaining}, nil
}

// Sweep drops expired challenges and reports how many were removed.
func (r *Registry) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	removed := 0
	for id, e := range r.items {
		if now.After(e.expiresAt) {
			delete(r.items, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of stored challenges, expired ones included.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

func (r *Registry) live(id string) (*registryEntry, error) {
	e, ok := r.items[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrChallengeNotFound, id)
	}
	if r.now().After(e.expiresAt) {
		delete(r.items, id)
		return nil, fmt.Errorf("%w: %s", ErrChallengeNotFound, id)
	}
	return e, nil
}
