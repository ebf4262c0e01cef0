package service

import (
	"context"
	"sync"
	"time"

	"github.com/okian/pinta/internal/domain/wrapped"
	"github.com/okian/pinta/pkg/metrics"
)

// communityCache memoizes community snapshots per year. Concurrent misses
// for one year share a single load and its outcome; failures are not kept.
// The load is detached from the caller that started it, so a caller giving
// up never fails the others waiting on it. Invalidate drops everything at
// once by moving to a new epoch; loads finishing under an old epoch are
// returned to their callers but never kept.
type communityCache struct {
	mu          sync.Mutex
	epoch       uint64
	entries     map[int]*communityEntry
	source      wrapped.CommunitySource
	loadTimeout time.Duration
}

type communityEntry struct {
	ready     chan struct{}
	community *wrapped.Community
	err       error
}

var _ wrapped.CommunitySource = (*communityCache)(nil)

func newCommunityCache() *communityCache {
	return &communityCache{
		entries:     make(map[int]*communityEntry),
		loadTimeout: defaultCommunityLoadTimeout,
	}
}

// Community implements wrapped.CommunitySource.
func (c *communityCache) Community(ctx context.Context, year int) (*wrapped.Community, error) {
	c.mu.Lock()
	e, hit := c.entries[year]
	if !hit {
		e = &communityEntry{ready: make(chan struct{})}
		c.entries[year] = e
		go c.load(ctx, year, e, c.epoch)
	}
	c.mu.Unlock()

	select {
	case <-e.ready:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if e.err != nil {
		return nil, e.err
	}
	if hit {
		metrics.RecordCommunityCacheHit()
	}
	return e.community, nil
}

func (c *communityCache) load(ctx context.Context, year int, e *communityEntry, epoch uint64) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.loadTimeout)
	defer cancel()

	metrics.RecordCommunityCacheMiss()
	e.community, e.err = c.source.Community(ctx, year)
	if e.err == nil {
		metrics.UpdateCommunitySize(len(e.community.Members))
		metrics.RecordRecordsUnparsed(e.community.Unparsed)
	}

	c.mu.Lock()
	if (e.err != nil || c.epoch != epoch) && c.entries[year] == e {
		delete(c.entries, year)
	}
	c.mu.Unlock()
	close(e.ready)
}

// Invalidate forgets every snapshot and starts a new epoch.
func (c *communityCache) Invalidate() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.epoch++
	c.entries = make(map[int]*communityEntry)
	return c.epoch
}

// Epoch returns the current epoch.
func (c *communityCache) Epoch() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.epoch
}

// Years returns how many years are cached or loading.
func (c *communityCache) Years() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
