package wrapped

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/pinta/internal/adapters/repository"
	"github.com/okian/pinta/internal/domain/aggregate"
	"github.com/okian/pinta/internal/domain/model"
	"github.com/okian/pinta/internal/domain/normalize"
)

// Community is everything a summary needs from the other customers of a
// year. It is read-only once built and may be shared between builds.
type Community struct {
	Year     int
	Members  []aggregate.Metrics
	Catalog  []string
	Unparsed int
}

// CommunitySource supplies the community snapshot for a year.
type CommunitySource interface {
	Community(ctx context.Context, year int) (*Community, error)
}

// StoreCommunity loads the community straight from the record store on
// every call.
type StoreCommunity struct {
	store      repository.Store
	normalizer *normalize.Normalizer
	location   *time.Location
}

// NewStoreCommunity returns an uncached CommunitySource over store.
func NewStoreCommunity(store repository.Store, n *normalize.Normalizer, loc *time.Location) *StoreCommunity {
	if n == nil {
		n = normalize.New()
	}
	return &StoreCommunity{store: store, normalizer: n, location: loc}
}

// Community implements CommunitySource.
func (s *StoreCommunity) Community(ctx context.Context, year int) (*Community, error) {
	window := model.Year(year, s.location)
	records, err := s.store.Sales(ctx, repository.SalesQuery{Window: window})
	if err != nil {
		return nil, fmt.Errorf("%w: community sales: %w", ErrDataUnavailable, err)
	}
	catalog, err := s.store.Catalog(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: catalog: %w", ErrDataUnavailable, err)
	}
	sales, unparsed := s.normalizer.NormalizeAll(records)
	return &Community{
		Year:     year,
		Members:  aggregate.AggregateByCustomer(sales, window),
		Catalog:  catalog,
		Unparsed: unparsed,
	}, nil
}
