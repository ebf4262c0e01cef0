package service

import (
	"time"

	"github.com/okian/pinta/internal/domain/kba"
	"github.com/okian/pinta/internal/domain/wrapped"
	"github.com/okian/pinta/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of refresh workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the maximum number of pending change events.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithMaxTrackedSummaries caps how many (customer, year) summaries are
// cached and rebuilt on data changes.
func WithMaxTrackedSummaries(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxTracked = n
		}
	}
}

// WithBuilderOptions forwards options to the summary builder.
func WithBuilderOptions(opts ...wrapped.Option) Option {
	return func(s *Service) {
		s.builderOpts = append(s.builderOpts, opts...)
	}
}

// WithGenerator sets the identity challenge generator.
func WithGenerator(g *kba.Generator) Option {
	return func(s *Service) {
		if g != nil {
			s.generator = g
		}
	}
}

// WithChallengeRegistry sets where issued challenges are kept.
func WithChallengeRegistry(r *kba.Registry) Option {
	return func(s *Service) {
		if r != nil {
			s.challenges = r
		}
	}
}

// WithSweepInterval sets how often expired challenges are dropped.
func WithSweepInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.sweepInterval = d
		}
	}
}

// WithCommunityLoadTimeout bounds a shared community load. The load
// outlives the request that started it, up to this timeout.
func WithCommunityLoadTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.community.loadTimeout = d
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}
