// Package ranking compares one customer's totals against the community.
package ranking

import (
	"time"

	"github.com/okian/pinta/internal/domain/aggregate"
)

const (
	defaultPopularK = 3
	dateLayout      = "2006-01-02"
)

// Option applies a configuration option to a ranking call.
type Option func(*options)

type options struct {
	popularK int
}

// WithPopularK sets how many community products are reported as popular.
func WithPopularK(k int) Option {
	return func(o *options) {
		if k > 0 {
			o.popularK = k
		}
	}
}

// Ranking is the subject's standing within the community.
type Ranking struct {
	LitersPercentile float64
	VisitsPercentile float64
	MostPopularDay   string
	MostPopularMonth string
	// MostFrequentBeerName is empty when the community has no measured sales.
	MostFrequentBeerName string
	// PopularProducts are the community's top products by volume.
	PopularProducts []aggregate.ProductVolume
}

// Rank places subject within community. The community is expected to
// include the subject's own entry (matched by CustomerID) when the subject
// has sales; a subject absent from the community is compared against
// everyone.
func Rank(community []aggregate.Metrics, subject aggregate.Metrics, opts ...Option) Ranking {
	o := options{popularK: defaultPopularK}
	for _, opt := range opts {
		opt(&o)
	}

	volumes := aggregate.SumProductVolumes(community)
	popular := aggregate.RankVolumes(volumes, o.popularK)

	r := Ranking{
		LitersPercentile: Percentile(community, subject, func(m aggregate.Metrics) float64 { return m.TotalLiters }),
		VisitsPercentile: Percentile(community, subject, func(m aggregate.Metrics) float64 { return float64(m.TotalVisits()) }),
		MostPopularDay:   mostPopularDay(community),
		MostPopularMonth: mostPopularMonth(community),
		PopularProducts:  popular,
	}
	if len(popular) > 0 {
		r.MostFrequentBeerName = popular[0].Name
	}
	return r
}

// Percentile is the fraction of the community the subject is not below:
// every other member whose value does not exceed the subject's, over the
// community size. Without ties this is exactly the fraction strictly below.
// A community made of the subject alone reports 1.0; an empty community
// reports 0. A subject outside the community is counted like any other.
func Percentile(community []aggregate.Metrics, subject aggregate.Metrics, value func(aggregate.Metrics) float64) float64 {
	n := len(community)
	switch {
	case n == 0:
		return 0
	case n == 1 && community[0].CustomerID == subject.CustomerID:
		return 1
	}
	v := value(subject)
	below := 0
	for _, m := range community {
		if m.CustomerID == subject.CustomerID {
			continue
		}
		if value(m) <= v {
			below++
		}
	}
	return float64(below) / float64(n)
}

func mostPopularDay(community []aggregate.Metrics) string {
	var counts [7]int
	for _, m := range community {
		for d, visits := range m.VisitsByDay {
			t, err := time.Parse(dateLayout, d)
			if err != nil {
				continue
			}
			counts[weekdayIndex(t.Weekday())] += visits
		}
	}
	best, bestCount := -1, 0
	for i, c := range counts {
		if c > bestCount {
			best, bestCount = i, c
		}
	}
	if best < 0 {
		return aggregate.NotAvailable
	}
	return weekdayLabels[best]
}

func mostPopularMonth(community []aggregate.Metrics) string {
	var counts [12]int
	for _, m := range community {
		for month, visits := range m.VisitsByMonth {
			if month >= time.January && month <= time.December {
				counts[month-1] += visits
			}
		}
	}
	best, bestCount := -1, 0
	for i, c := range counts {
		if c > bestCount {
			best, bestCount = i, c
		}
	}
	if best < 0 {
		return aggregate.NotAvailable
	}
	return monthLabels[best]
}

// PopularNames extracts product names from a ranked list.
func PopularNames(products []aggregate.ProductVolume) []string {
	names := make([]string, len(products))
	for i, p := range products {
		names[i] = p.Name
	}
	return names
}
