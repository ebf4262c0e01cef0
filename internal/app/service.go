// Package service wires the analytics engine, its caches and the change
// pipeline into the operations served by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	eventqueue "github.com/okian/pinta/internal/adapters/mq/queue"
	workerpool "github.com/okian/pinta/internal/adapters/mq/worker"
	"github.com/okian/pinta/internal/adapters/repository"
	"github.com/okian/pinta/internal/domain/kba"
	"github.com/okian/pinta/internal/domain/model"
	"github.com/okian/pinta/internal/domain/types"
	"github.com/okian/pinta/internal/domain/wrapped"
	"github.com/okian/pinta/pkg/logger"
	"github.com/okian/pinta/pkg/metrics"
)

const (
	defaultWorkerCount   = 2
	defaultQueueSize     = 1024
	defaultSweepInterval = time.Minute
	shutdownTimeout      = 10 * time.Second

	defaultCommunityLoadTimeout = 30 * time.Second
	defaultMaxTrackedSummaries  = 4096
)

// Service implements the API dependencies for pinta.
type Service struct {
	mu sync.RWMutex

	store      repository.Store
	builder    *wrapped.Builder
	community  *communityCache
	supersede  *supersedeRegistry
	generator  *kba.Generator
	challenges *kba.Registry
	eventQueue *eventqueue.InMemoryQueue
	workerPool *workerpool.Pool

	workerCount   int
	queueSize     int
	sweepInterval time.Duration
	maxTracked    int
	builderOpts   []wrapped.Option

	started bool
	stopCh  chan struct{}

	logger logger.Logger
}

// New constructs a Service over store.
func New(store repository.Store, opts ...Option) *Service {
	s := &Service{
		store:         store,
		community:     newCommunityCache(),
		workerCount:   defaultWorkerCount,
		queueSize:     defaultQueueSize,
		sweepInterval: defaultSweepInterval,
		maxTracked:    defaultMaxTrackedSummaries,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Named("service")
	}
	if s.generator == nil {
		s.generator = kba.New()
	}
	if s.challenges == nil {
		s.challenges = kba.NewRegistry()
	}
	s.supersede = newSupersedeRegistry(s.maxTracked)

	builderOpts := append([]wrapped.Option{wrapped.WithCommunitySource(s.community)}, s.builderOpts...)
	s.builder = wrapped.New(store, builderOpts...)
	s.community.source = wrapped.NewStoreCommunity(store, s.builder.Normalizer(), s.builder.Location())
	return s
}

// Start launches the change pipeline and the challenge sweeper.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}

	s.logger.Info(ctx, "starting service...")
	s.eventQueue = eventqueue.NewInMemoryQueue(eventqueue.WithCapacity(s.queueSize))
	s.workerPool = workerpool.NewPool(s.workerCount, s.eventQueue, s)
	s.workerPool.Start(ctx)

	s.stopCh = make(chan struct{})
	go s.sweepChallenges(ctx, s.stopCh)

	s.started = true
	s.logger.Info(ctx, "service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
	)
	return nil
}

// Stop drains the change pipeline.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.logger.Info(ctx, "stopping service...")

	if err := s.workerPool.Shutdown(ctx); err != nil {
		s.logger.Warn(ctx, "worker pool shutdown", logger.Error(err))
	}
	close(s.stopCh)

	s.started = false
	s.logger.Info(ctx, "service stopped")
}

func (s *Service) sweepChallenges(ctx context.Context, stop <-chan struct{}) {
	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			if n := s.challenges.Sweep(); n > 0 {
				s.logger.Debug(ctx, "expired challenges dropped", logger.Int("count", n))
			}
		}
	}
}

// Enqueue hands a change notification to the refresh workers. It lets the
// service act as the sink of every notifier.
func (s *Service) Enqueue(ctx context.Context, e model.ChangeEvent) error {
	s.mu.RLock()
	q := s.eventQueue
	started := s.started
	s.mu.RUnlock()
	if !started {
		return fmt.Errorf("%w: %w", eventqueue.ErrClosed, ErrNotStarted)
	}
	return q.Enqueue(ctx, e)
}

// Wrapped returns the yearly summary of customerID. A summary built under
// the current data epoch is reused until the next change notification.
func (s *Service) Wrapped(ctx context.Context, customerID string, year int) (*wrapped.Summary, error) {
	key := summaryKey{customerID: customerID, year: year}
	if sum, ok := s.supersede.cached(key, s.community.Epoch()); ok {
		return sum, nil
	}
	return s.build(ctx, key)
}

func (s *Service) build(ctx context.Context, key summaryKey) (*wrapped.Summary, error) {
	epoch := s.community.Epoch()
	seq := s.supersede.begin(key)

	sum, err := s.builder.Build(ctx, key.customerID, key.year)
	if err != nil {
		if errors.Is(err, wrapped.ErrNotFound) {
			s.supersede.forget(key)
			metrics.RecordSummaryBuildError("not_found")
		} else {
			metrics.RecordSummaryBuildError("data_unavailable")
		}
		return nil, err
	}

	out, published := s.supersede.publish(key, seq, sum, epoch, s.community.Epoch())
	if !published {
		metrics.RecordSummarySuperseded()
		s.logger.Debug(ctx, "summary superseded",
			logger.String("customer_id", key.customerID),
			logger.Int("year", key.year),
		)
		return out, nil
	}
	metrics.RecordSummaryBuilt()
	metrics.UpdateTrackedSummaries(s.supersede.size())
	return out, nil
}

// Refresh implements worker.Refresher: it starts a new data epoch and
// rebuilds the tracked summaries, most recently requested first.
func (s *Service) Refresh(ctx context.Context, e model.ChangeEvent) error {
	epoch := s.community.Invalidate()
	metrics.RecordRefresh()
	s.logger.Info(ctx, "data changed",
		logger.String("event_id", e.ID),
		logger.String("source", string(e.Source)),
		logger.String("subject", e.Subject),
		logger.Any("epoch", epoch),
	)

	var errs []error
	for _, key := range s.supersede.tracked() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if s.community.Epoch() != epoch {
			// A newer change arrived; its refresh recomputes the rest.
			return nil
		}
		if _, err := s.build(ctx, key); err != nil && !errors.Is(err, wrapped.ErrNotFound) {
			errs = append(errs, fmt.Errorf("%s/%d: %w", key.customerID, key.year, err))
		}
	}
	return errors.Join(errs...)
}

// SearchCustomers finds customers by name, phone, tax id or email.
func (s *Service) SearchCustomers(ctx context.Context, term string) ([]types.CustomerMatch, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, ErrEmptyQuery
	}
	found, err := s.store.SearchCustomers(ctx, term)
	if err != nil {
		return nil, fmt.Errorf("search customers: %w", err)
	}
	if len(found) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrNoMatches, term)
	}
	return types.NewCustomerMatches(found), nil
}

// IssueChallenge creates an identity challenge for customerID.
func (s *Service) IssueChallenge(ctx context.Context, customerID string) (types.ChallengeView, error) {
	c, err := s.store.Customer(ctx, customerID)
	if err != nil {
		return types.ChallengeView{}, fmt.Errorf("challenge for %s: %w", customerID, err)
	}
	ch, err := s.generator.Generate(c)
	if err != nil {
		s.logger.Warn(ctx, "challenge not issued", logger.String("customer_id", customerID), logger.Error(err))
		return types.ChallengeView{}, err
	}
	s.challenges.Put(ch)
	metrics.RecordChallengeIssued(string(ch.FieldType))
	return types.NewChallengeView(ch, s.challenges.MaxAttempts()), nil
}

// AnswerChallenge checks an answer against an issued challenge.
func (s *Service) AnswerChallenge(ctx context.Context, challengeID, answer string) (types.AnswerResult, error) {
	res, err := s.challenges.Answer(challengeID, answer)
	if err != nil {
		if errors.Is(err, kba.ErrChallengeExhausted) {
			metrics.RecordChallengeFailed()
			metrics.RecordChallengeExhausted()
			s.logger.Info(ctx, "challenge exhausted", logger.String("challenge_id", challengeID))
		}
		return types.AnswerResult{}, err
	}
	if res.Verified {
		metrics.RecordChallengeVerified()
	} else {
		metrics.RecordChallengeFailed()
	}
	return types.AnswerResult{
		Verified:          res.Verified,
		RemainingAttempts: res.Remaining,
		CustomerID:        res.CustomerID,
	}, nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":           s.started,
		"workerCount":       s.workerCount,
		"queueSize":         s.queueSize,
		"dataEpoch":         s.community.Epoch(),
		"cachedYears":       s.community.Years(),
		"trackedSummaries":  s.supersede.size(),
		"pendingChallenges": s.challenges.Len(),
	}
	if s.started {
		queueLen := s.eventQueue.Len()
		stats["queueLength"] = queueLen
		metrics.UpdateQueueSize(queueLen)
	}
	return stats
}
