package service

import (
	"container/list"
	"sync"

	"github.com/okian/pinta/internal/domain/wrapped"
)

type summaryKey struct {
	customerID string
	year       int
}

type keyState struct {
	elem      *list.Element
	issued    uint64
	published uint64
	summary   *wrapped.Summary
	epoch     uint64
	cached    bool
}

// supersedeRegistry orders concurrent builds of the same summary. Every
// build takes a sequence number; a result is published only when no later
// build of the same key has already published, so the last request wins.
// At most maxKeys keys are tracked; the least recently requested is
// dropped first.
type supersedeRegistry struct {
	mu      sync.Mutex
	seq     uint64
	maxKeys int
	keys    map[summaryKey]*keyState
	order   *list.List // front is most recently requested
}

func newSupersedeRegistry(maxKeys int) *supersedeRegistry {
	if maxKeys <= 0 {
		maxKeys = defaultMaxTrackedSummaries
	}
	return &supersedeRegistry{
		maxKeys: maxKeys,
		keys:    make(map[summaryKey]*keyState),
		order:   list.New(),
	}
}

// begin registers a build for k and returns its sequence number.
func (r *supersedeRegistry) begin(k summaryKey) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	st, ok := r.keys[k]
	if !ok {
		st = &keyState{elem: r.order.PushFront(k)}
		r.keys[k] = st
		r.evict()
	} else {
		r.order.MoveToFront(st.elem)
	}
	st.issued = r.seq
	return r.seq
}

// evict must be called with r.mu held.
func (r *supersedeRegistry) evict() {
	for r.order.Len() > r.maxKeys {
		oldest := r.order.Back()
		r.order.Remove(oldest)
		delete(r.keys, oldest.Value.(summaryKey))
	}
}

// publish offers the result of build seq. It returns the summary callers
// should see and whether s itself was published. s is kept for reuse only
// when it was built under the current epoch.
func (r *supersedeRegistry) publish(k summaryKey, seq uint64, s *wrapped.Summary, builtEpoch, currentEpoch uint64) (*wrapped.Summary, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.keys[k]
	if !ok {
		// Forgotten while building.
		return s, true
	}
	if st.published > seq {
		return st.summary, false
	}
	st.published = seq
	st.summary = s
	st.epoch = builtEpoch
	st.cached = builtEpoch == currentEpoch
	return s, true
}

// cached returns the published summary of k if it was built in epoch.
func (r *supersedeRegistry) cached(k summaryKey, epoch uint64) (*wrapped.Summary, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.keys[k]
	if !ok || !st.cached || st.epoch != epoch || st.summary == nil {
		return nil, false
	}
	r.order.MoveToFront(st.elem)
	return st.summary, true
}

// forget stops tracking k.
func (r *supersedeRegistry) forget(k summaryKey) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if st, ok := r.keys[k]; ok {
		r.order.Remove(st.elem)
		delete(r.keys, k)
	}
}

// tracked lists the tracked keys, most recently requested first.
func (r *supersedeRegistry) tracked() []summaryKey {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]summaryKey, 0, r.order.Len())
	for e := r.order.Front(); e != nil; e = e.Next() {
		out = append(out, e.Value.(summaryKey))
	}
	return out
}

// size returns how many keys are tracked.
func (r *supersedeRegistry) size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.keys)
}
