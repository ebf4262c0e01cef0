// Package notify turns outside signals that the ledger may have changed
// into change events.
package notify

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/okian/pinta/internal/adapters/mq/queue"
	"github.com/okian/pinta/internal/domain/dedupe"
	"github.com/okian/pinta/internal/domain/model"
	"github.com/okian/pinta/pkg/logger"
	"github.com/okian/pinta/pkg/metrics"
)

// Sink accepts change events. queue.Queue satisfies it.
type Sink interface {
	Enqueue(ctx context.Context, e model.ChangeEvent) error
}

// Option applies a configuration option to a notifier.
type Option func(*settings)

type settings struct {
	debounce time.Duration
	logger   logger.Logger
	newID    func() string
	now      func() time.Time
	deduper  dedupe.Deduper
}

const defaultDebounce = 500 * time.Millisecond

func newSettings(component string, opts []Option) settings {
	s := settings{
		debounce: defaultDebounce,
		newID:    func() string { return uuid.NewString() },
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(&s)
	}
	if s.logger == nil {
		s.logger = logger.Named(component)
	}
	return s
}

// WithDebounce sets the quiet period a file must observe before a change is
// reported.
func WithDebounce(d time.Duration) Option {
	return func(s *settings) {
		if d > 0 {
			s.debounce = d
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithIDFunc overrides change event id generation.
func WithIDFunc(f func() string) Option {
	return func(s *settings) {
		if f != nil {
			s.newID = f
		}
	}
}

// WithDeduper sets the seen-message tracker used by the change feed.
func WithDeduper(d dedupe.Deduper) Option {
	return func(s *settings) {
		if d != nil {
			s.deduper = d
		}
	}
}

// WithClock sets the time source for events without their own timestamp.
func WithClock(now func() time.Time) Option {
	return func(s *settings) {
		if now != nil {
			s.now = now
		}
	}
}

// emit hands e to sink. A full queue already holds a pending refresh, so
// the event is dropped as coalesced. It reports false once the sink is closed.
func emit(ctx context.Context, sink Sink, l logger.Logger, e model.ChangeEvent) bool {
	metrics.RecordChangeNotification(string(e.Source))
	err := sink.Enqueue(ctx, e)
	switch {
	case err == nil:
		return true
	case errors.Is(err, queue.ErrFull):
		l.Debug(ctx, "change coalesced", logger.String("event_id", e.ID))
		return true
	case errors.Is(err, queue.ErrClosed):
		return false
	default:
		l.Warn(ctx, "change dropped", logger.String("event_id", e.ID), logger.Error(err))
		return ctx.Err() == nil
	}
}
