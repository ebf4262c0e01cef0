// Package aggregate folds normalized sales into per-customer totals.
package aggregate

import (
	"sort"
	"time"

	"github.com/okian/pinta/internal/domain/model"
)

// NotAvailable is the label used when a statistic has no data behind it.
const NotAvailable = "N/A"

const (
	mlPerLiter = 1000
	dateLayout = "2006-01-02"
)

// Metrics holds one customer's totals over a window.
type Metrics struct {
	CustomerID          string
	TotalLiters         float64
	CategoryVolumes     map[model.Category]float64
	ProductVolumes      map[string]float64
	UniqueProductsTried map[string]struct{}
	// VisitsByDay counts distinct transaction dates, keyed YYYY-MM-DD.
	VisitsByDay map[string]int
	// VisitsByMonth counts distinct transaction dates per calendar month.
	VisitsByMonth map[time.Month]int
}

// ProductVolume pairs a product with its accumulated liters.
type ProductVolume struct {
	Name   string  `json:"name"`
	Liters float64 `json:"liters"`
}

func newMetrics(customerID string) Metrics {
	return Metrics{
		CustomerID:          customerID,
		CategoryVolumes:     make(map[model.Category]float64),
		ProductVolumes:      make(map[string]float64),
		UniqueProductsTried: make(map[string]struct{}),
		VisitsByDay:         make(map[string]int),
		VisitsByMonth:       make(map[time.Month]int),
	}
}

// accumulator keeps integer milliliters so the category and product sums
// match the total exactly once converted.
type accumulator struct {
	metrics    Metrics
	totalMl    int64
	categoryMl map[model.Category]int64
	productMl  map[string]int64
}

func newAccumulator(customerID string) *accumulator {
	return &accumulator{
		metrics:    newMetrics(customerID),
		categoryMl: make(map[model.Category]int64),
		productMl:  make(map[string]int64),
	}
}

func (a *accumulator) add(s model.NormalizedSale) {
	m := &a.metrics
	m.UniqueProductsTried[s.ProductName] = struct{}{}

	day := s.Timestamp.Format(dateLayout)
	if _, seen := m.VisitsByDay[day]; !seen {
		m.VisitsByDay[day] = 1
		m.VisitsByMonth[s.Timestamp.Month()]++
	}

	if !s.Measured {
		return
	}
	a.totalMl += s.VolumeMl
	a.categoryMl[s.Category] += s.VolumeMl
	a.productMl[s.ProductName] += s.VolumeMl
}

func (a *accumulator) finish() Metrics {
	m := a.metrics
	m.TotalLiters = float64(a.totalMl) / mlPerLiter
	for c, ml := range a.categoryMl {
		m.CategoryVolumes[c] = float64(ml) / mlPerLiter
	}
	for p, ml := range a.productMl {
		m.ProductVolumes[p] = float64(ml) / mlPerLiter
	}
	return m
}

// Aggregate folds sales that fall inside window into one Metrics value.
// The CustomerID of the result is taken from the first eligible sale.
func Aggregate(sales []model.NormalizedSale, window model.Window) Metrics {
	var acc *accumulator
	for _, s := range sales {
		if !window.Contains(s.Timestamp) {
			continue
		}
		if acc == nil {
			acc = newAccumulator(s.CustomerID)
		}
		acc.add(s)
	}
	if acc == nil {
		return newMetrics("")
	}
	return acc.finish()
}

// AggregateByCustomer folds sales per customer. The result is sorted by
// customer id.
func AggregateByCustomer(sales []model.NormalizedSale, window model.Window) []Metrics {
	accs := make(map[string]*accumulator)
	for _, s := range sales {
		if !window.Contains(s.Timestamp) {
			continue
		}
		acc, ok := accs[s.CustomerID]
		if !ok {
			acc = newAccumulator(s.CustomerID)
			accs[s.CustomerID] = acc
		}
		acc.add(s)
	}
	out := make([]Metrics, 0, len(accs))
	for _, acc := range accs {
		out = append(out, acc.finish())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CustomerID < out[j].CustomerID })
	return out
}

// Empty returns zero-valued metrics for a customer with no sales.
func Empty(customerID string) Metrics {
	return newMetrics(customerID)
}

// TotalVisits is the number of distinct days with at least one sale.
func (m Metrics) TotalVisits() int {
	return len(m.VisitsByDay)
}

// TopProducts returns up to n products by volume, ties broken by name.
func (m Metrics) TopProducts(n int) []ProductVolume {
	return rankVolumes(m.ProductVolumes, n)
}

// TopProduct returns the highest-volume product, if any.
func (m Metrics) TopProduct() (ProductVolume, bool) {
	top := m.TopProducts(1)
	if len(top) == 0 {
		return ProductVolume{}, false
	}
	return top[0], true
}

// DominantCategory is the category with most liters, ties broken by
// canonical order, or NotAvailable when nothing was measured.
func (m Metrics) DominantCategory() string {
	best := NotAvailable
	bestLiters := 0.0
	for _, c := range model.Categories() {
		if v := m.CategoryVolumes[c]; v > bestLiters {
			best, bestLiters = string(c), v
		}
	}
	return best
}

// BusiestMonth is the month with most visits, earliest month on ties, or
// zero when there were no visits.
func (m Metrics) BusiestMonth() time.Month {
	var best time.Month
	bestVisits := 0
	for month := time.January; month <= time.December; month++ {
		if v := m.VisitsByMonth[month]; v > bestVisits {
			best, bestVisits = month, v
		}
	}
	return best
}

// SumProductVolumes adds product liters across many customers.
func SumProductVolumes(all []Metrics) map[string]float64 {
	out := make(map[string]float64)
	for _, m := range all {
		for p, v := range m.ProductVolumes {
			out[p] += v
		}
	}
	return out
}

// RankVolumes orders a product→liters map by volume desc then name asc and
// keeps at most n entries; n <= 0 keeps all.
func RankVolumes(volumes map[string]float64, n int) []ProductVolume {
	return rankVolumes(volumes, n)
}

func rankVolumes(volumes map[string]float64, n int) []ProductVolume {
	out := make([]ProductVolume, 0, len(volumes))
	for name, liters := range volumes {
		if liters <= 0 {
			continue
		}
		out = append(out, ProductVolume{Name: name, Liters: liters})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Liters != out[j].Liters {
			return out[i].Liters > out[j].Liters
		}
		return out[i].Name < out[j].Name
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}
