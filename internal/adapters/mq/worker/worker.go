// Package worker drains change events and asks the service to refresh
// whatever they invalidate.
package worker

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/pinta/internal/adapters/mq/queue"
	"github.com/okian/pinta/pkg/logger"
	"github.com/okian/pinta/pkg/metrics"
)

const (
	defaultWorkerCount  = 2
	poolShutdownTimeout = 30 * time.Second
)

// Refresher reacts to a data change notification.
type Refresher interface {
	Refresh(ctx context.Context, e queue.Event) error
}

// Queue defines how workers receive events.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.Event
}

// InMemoryWorker processes change events one at a time.
type InMemoryWorker struct {
	queue     Queue
	refresher Refresher
	name      string
	logger    logger.Logger

	// active is shared by every worker of a pool.
	active *atomic.Int64
	total  int

	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}
}

// NewInMemoryWorker creates a worker reading q and calling r.
func NewInMemoryWorker(q Queue, r Refresher, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:     q,
		refresher: r,
		name:      "worker",
		active:    new(atomic.Int64),
		total:     1,
		shutdown:  make(chan struct{}),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = logger.Named("worker")
	}
	w.logger = w.logger.Named(w.name)
	return w
}

// Run processes events until ctx is done, Shutdown is called or the
// queue closes.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	events := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			if err := w.process(ctx, e); err != nil {
				w.logger.Error(ctx, "refresh failed", logger.String("event_id", e.ID), logger.Error(err))
			}
		}
	}
}

// Shutdown stops the worker and waits for the current event to finish.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.shutdownOnce.Do(func() { close(w.shutdown) })
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// Done is closed once Run returns.
func (w *InMemoryWorker) Done() <-chan struct{} { return w.done }

func (w *InMemoryWorker) process(ctx context.Context, e queue.Event) error {
	start := time.Now()
	busy := int(w.active.Add(1))
	metrics.UpdateWorkerActiveCount(busy)
	metrics.UpdateWorkerIdleCount(w.total - busy)
	defer func() {
		busy := int(w.active.Add(-1))
		metrics.UpdateWorkerActiveCount(busy)
		metrics.UpdateWorkerIdleCount(w.total - busy)
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	if err := w.refresher.Refresh(ctx, e); err != nil {
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "refresh_error")
		metrics.RecordErrorByType("refresh_error", "medium")
		return fmt.Errorf("refresh for %s event %s: %w", e.Source, e.ID, err)
	}
	w.logger.Debug(ctx, "refreshed",
		logger.String("event_id", e.ID),
		logger.String("source", string(e.Source)),
		logger.Duration("took", time.Since(start)),
	)
	return nil
}

// Pool runs several workers over one queue.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue
	logger  logger.Logger
}

// NewPool creates workerCount workers. Counts below one fall back to the default.
func NewPool(workerCount int, q Queue, r Refresher, opts ...PoolOption) *Pool {
	if workerCount < 1 {
		workerCount = defaultWorkerCount
	}
	p := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   q,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = logger.Named("worker-pool")
	}

	active := new(atomic.Int64)
	for i := range p.workers {
		w := NewInMemoryWorker(q, r, WithName("worker-"+strconv.Itoa(i)), WithLogger(p.logger))
		w.active = active
		w.total = workerCount
		p.workers[i] = w
	}

	metrics.UpdateWorkerCount(workerCount)
	metrics.UpdateWorkerActiveCount(0)
	metrics.UpdateWorkerIdleCount(workerCount)
	return p
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Start launches every worker.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Shutdown closes the queue when it can be closed, then waits for workers.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	var firstErr error
	for i, w := range p.workers {
		if err := w.Shutdown(shutdownCtx); err != nil {
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
