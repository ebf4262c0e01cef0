// Package wrapped assembles a customer's yearly consumption summary.
package wrapped

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/okian/pinta/internal/adapters/repository"
	"github.com/okian/pinta/internal/domain/aggregate"
	"github.com/okian/pinta/internal/domain/model"
	"github.com/okian/pinta/internal/domain/normalize"
	"github.com/okian/pinta/internal/domain/palate"
	"github.com/okian/pinta/internal/domain/ranking"
	"github.com/okian/pinta/internal/domain/varieties"
	"github.com/okian/pinta/pkg/logger"
	"github.com/okian/pinta/pkg/metrics"
)

// Summary is the immutable yearly recap for one customer.
type Summary struct {
	CustomerID       string                     `json:"customer_id"`
	CustomerName     string                     `json:"customer_name"`
	Year             int                        `json:"year"`
	TotalLiters      float64                    `json:"total_liters"`
	TotalVisits      int                        `json:"total_visits"`
	CategoryVolumes  map[model.Category]float64 `json:"category_volumes"`
	UniqueProducts   int                        `json:"unique_products"`
	TopProducts      []aggregate.ProductVolume  `json:"top_products"`
	DominantCategory string                     `json:"dominant_category"`
	BusiestMonth     string                     `json:"busiest_month"`
	FirstPurchase    *Purchase                  `json:"first_purchase,omitempty"`

	LitersPercentile float64 `json:"liters_percentile"`
	VisitsPercentile float64 `json:"visits_percentile"`
	MostPopularDay   string  `json:"most_popular_day"`
	MostPopularMonth string  `json:"most_popular_month"`
	MostFrequentBeer string  `json:"most_frequent_beer"`

	Palate           palate.Palate `json:"palate"`
	MissingVarieties []string      `json:"missing_varieties"`
	PriorYear        Comparison    `json:"prior_year"`
	GeneratedAt      time.Time     `json:"generated_at"`
}

// Purchase identifies a single sale line.
type Purchase struct {
	ProductName string    `json:"product_name"`
	At          time.Time `json:"at"`
}

// Comparison holds the previous year's totals and the change since.
type Comparison struct {
	Liters      float64 `json:"liters"`
	Visits      int     `json:"visits"`
	LitersDelta float64 `json:"liters_delta"`
	VisitsDelta int     `json:"visits_delta"`
}

// Builder composes summaries from the record store.
type Builder struct {
	store      repository.Store
	community  CommunitySource
	normalizer *normalize.Normalizer
	classifier *palate.Classifier
	topN       int
	popularK   int
	location   *time.Location
	logger     logger.Logger
	now        func() time.Time
}

// New creates a Builder over store.
func New(store repository.Store, opts ...Option) *Builder {
	b := &Builder{
		store:      store,
		normalizer: normalize.New(),
		classifier: palate.New(),
		topN:       defaultTopN,
		popularK:   defaultPopularK,
		location:   time.UTC,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.community == nil {
		b.community = NewStoreCommunity(store, b.normalizer, b.location)
	}
	if b.logger == nil {
		b.logger = logger.Named("wrapped")
	}
	return b
}

// Location returns the zone years are evaluated in.
func (b *Builder) Location() *time.Location { return b.location }

// Normalizer returns the normalizer applied to ledger lines.
func (b *Builder) Normalizer() *normalize.Normalizer { return b.normalizer }

// Build computes the summary of customerID for the calendar year.
// A customer with no sales in the year gets a valid zero summary.
func (b *Builder) Build(ctx context.Context, customerID string, year int) (*Summary, error) {
	start := time.Now()

	customer, err := b.store.Customer(ctx, customerID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, customerID)
		}
		return nil, fmt.Errorf("%w: customer: %w", ErrDataUnavailable, err)
	}

	window := model.Year(year, b.location)
	subject, sales, err := b.customerMetrics(ctx, customerID, window)
	if err != nil {
		return nil, err
	}

	community, err := b.community.Community(ctx, year)
	if err != nil {
		if errors.Is(err, ErrDataUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrDataUnavailable, err)
	}
	if len(community.Catalog) == 0 && len(community.Members) > 0 {
		return nil, fmt.Errorf("%w: empty catalog with %d active customers", ErrDataUnavailable, len(community.Members))
	}

	prior, _, err := b.customerMetrics(ctx, customerID, model.Year(year-1, b.location))
	if err != nil {
		return nil, err
	}

	rank := ranking.Rank(community.Members, subject, ranking.WithPopularK(b.popularK))
	pal := b.classifier.Classify(subject, len(community.Catalog), ranking.PopularNames(rank.PopularProducts))

	s := &Summary{
		CustomerID:       customer.ID,
		CustomerName:     customer.Name,
		Year:             year,
		TotalLiters:      subject.TotalLiters,
		TotalVisits:      subject.TotalVisits(),
		CategoryVolumes:  subject.CategoryVolumes,
		UniqueProducts:   len(subject.UniqueProductsTried),
		TopProducts:      subject.TopProducts(b.topN),
		DominantCategory: subject.DominantCategory(),
		BusiestMonth:     aggregate.NotAvailable,
		FirstPurchase:    firstPurchase(sales),
		LitersPercentile: rank.LitersPercentile,
		VisitsPercentile: rank.VisitsPercentile,
		MostPopularDay:   rank.MostPopularDay,
		MostPopularMonth: rank.MostPopularMonth,
		MostFrequentBeer: rank.MostFrequentBeerName,
		Palate:           pal,
		MissingVarieties: varieties.Missing(varieties.Set(community.Catalog), subject.UniqueProductsTried),
		PriorYear: Comparison{
			Liters:      prior.TotalLiters,
			Visits:      prior.TotalVisits(),
			LitersDelta: subject.TotalLiters - prior.TotalLiters,
			VisitsDelta: subject.TotalVisits() - prior.TotalVisits(),
		},
		GeneratedAt: b.now(),
	}
	if s.MostFrequentBeer == "" {
		s.MostFrequentBeer = aggregate.NotAvailable
	}
	if m := subject.BusiestMonth(); m != 0 {
		s.BusiestMonth = ranking.MonthLabel(m)
	}

	metrics.RecordSummaryBuildLatency(float64(time.Since(start).Microseconds()) / 1000)
	b.logger.Debug(ctx, "summary built",
		logger.String("customer_id", customerID),
		logger.Int("year", year),
		logger.Float64("liters", s.TotalLiters),
		logger.Int("community", len(community.Members)),
	)
	return s, nil
}

func (b *Builder) customerMetrics(ctx context.Context, customerID string, window model.Window) (aggregate.Metrics, []model.NormalizedSale, error) {
	records, err := b.store.Sales(ctx, repository.SalesQuery{CustomerID: customerID, Window: window})
	if err != nil {
		return aggregate.Metrics{}, nil, fmt.Errorf("%w: sales: %w", ErrDataUnavailable, err)
	}
	sales, unparsed := b.normalizer.NormalizeAll(records)
	if unparsed > 0 {
		metrics.RecordRecordsUnparsed(unparsed)
		b.logger.Debug(ctx, "sale records without volume",
			logger.String("customer_id", customerID),
			logger.Int("count", unparsed),
		)
	}
	m := aggregate.Aggregate(sales, window)
	m.CustomerID = customerID
	return m, sales, nil
}

// firstPurchase picks the earliest sale, breaking ties by product name.
func firstPurchase(sales []model.NormalizedSale) *Purchase {
	var first *model.NormalizedSale
	for i := range sales {
		s := &sales[i]
		if first == nil ||
			s.Timestamp.Before(first.Timestamp) ||
			(s.Timestamp.Equal(first.Timestamp) && s.ProductName < first.ProductName) {
			first = s
		}
	}
	if first == nil {
		return nil
	}
	return &Purchase{ProductName: first.ProductName, At: first.Timestamp}
}
