package wrapped

import (
	"time"

	"github.com/okian/pinta/internal/domain/normalize"
	"github.com/okian/pinta/internal/domain/palate"
	"github.com/okian/pinta/pkg/logger"
)

const (
	defaultTopN     = 5
	defaultPopularK = 3
)

// Option applies a configuration option to the Builder.
type Option func(*Builder)

// WithNormalizer sets the record normalizer.
func WithNormalizer(n *normalize.Normalizer) Option {
	return func(b *Builder) {
		if n != nil {
			b.normalizer = n
		}
	}
}

// WithClassifier sets the palate classifier.
func WithClassifier(c *palate.Classifier) Option {
	return func(b *Builder) {
		if c != nil {
			b.classifier = c
		}
	}
}

// WithTopN sets how many of the customer's products are listed.
func WithTopN(n int) Option {
	return func(b *Builder) {
		if n > 0 {
			b.topN = n
		}
	}
}

// WithPopularK sets how many community products count as popular.
func WithPopularK(k int) Option {
	return func(b *Builder) {
		if k > 0 {
			b.popularK = k
		}
	}
}

// WithLocation sets the zone calendar years are evaluated in.
func WithLocation(loc *time.Location) Option {
	return func(b *Builder) {
		if loc != nil {
			b.location = loc
		}
	}
}

// WithCommunitySource replaces the uncached store-backed community loader.
func WithCommunitySource(src CommunitySource) Option {
	return func(b *Builder) {
		if src != nil {
			b.community = src
		}
	}
}

// WithLogger sets a custom logger for the builder.
func WithLogger(l logger.Logger) Option {
	return func(b *Builder) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithClock sets the time source used for GeneratedAt.
func WithClock(now func() time.Time) Option {
	return func(b *Builder) {
		if now != nil {
			b.now = now
		}
	}
}
