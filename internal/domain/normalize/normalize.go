// Package normalize turns free-text ledger lines into categorized volumes.
package normalize

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/okian/pinta/internal/domain/model"
)

// volumePattern finds an integer immediately followed by "ml".
var volumePattern = regexp.MustCompile(`(?i)(\d+)ml`)

// Option applies a configuration option to the Normalizer.
type Option func(*Normalizer)

// WithRules replaces the category rules. A nil or empty list keeps the defaults.
func WithRules(rules ...Rule) Option {
	return func(n *Normalizer) {
		if len(rules) > 0 {
			n.rules = append([]Rule(nil), rules...)
		}
	}
}

// Normalizer classifies and measures purchase records. It holds no mutable
// state and is safe for concurrent use.
type Normalizer struct {
	rules []Rule
}

// New creates a Normalizer using the default keyword rules unless overridden.
func New(opts ...Option) *Normalizer {
	n := &Normalizer{rules: DefaultRules()}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// ParseVolume extracts the per-unit volume in milliliters from a product name.
func ParseVolume(productName string) (int, bool) {
	m := volumePattern.FindStringSubmatch(productName)
	if m == nil {
		return 0, false
	}
	ml, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return ml, true
}

// Categorize returns the first matching rule's category, or Other.
func (n *Normalizer) Categorize(productName string) model.Category {
	for _, r := range n.rules {
		if c, ok := r.Match(productName); ok {
			return c
		}
	}
	return model.CategoryOther
}

// Normalize reduces a record to a NormalizedSale. When the name carries no
// volume token it returns ErrParseFailure together with an unmeasured sale,
// leaving the caller free to count the visit.
func (n *Normalizer) Normalize(rec model.PurchaseRecord) (model.NormalizedSale, error) {
	sale := model.NormalizedSale{
		CustomerID:  rec.CustomerID,
		ProductName: rec.ProductName,
		Category:    n.Categorize(rec.ProductName),
		Timestamp:   rec.Timestamp,
	}
	ml, ok := ParseVolume(rec.ProductName)
	if !ok {
		return sale, fmt.Errorf("%w: %q", ErrParseFailure, rec.ProductName)
	}
	qty := rec.Quantity
	if qty < 0 {
		qty = 0
	}
	sale.VolumeMl = int64(ml) * int64(qty)
	sale.Measured = true
	return sale, nil
}

// NormalizeAll normalizes every record and reports how many lacked a volume.
func (n *Normalizer) NormalizeAll(records []model.PurchaseRecord) ([]model.NormalizedSale, int) {
	sales := make([]model.NormalizedSale, 0, len(records))
	unparsed := 0
	for _, rec := range records {
		sale, err := n.Normalize(rec)
		if err != nil {
			unparsed++
		}
		sales = append(sales, sale)
	}
	return sales, unparsed
}
