// Package palate classifies a customer's taste into a 2x2 quadrant.
package palate

import (
	"github.com/okian/pinta/internal/domain/aggregate"
)

// Default thresholds.
const (
	DefaultConcentrationThreshold  = 0.40
	DefaultLowExplorationThreshold = 0.15
)

// Concentration labels.
const (
	Loyal    = "Fiel"
	Explorer = "Explorador"
)

// Rarity labels.
const (
	Niche   = "Nicho"
	Popular = "Popular"
)

// Palate is the quadrant plus the figures behind it. LowExploration is
// advisory: the quadrant labels are always reported unchanged.
type Palate struct {
	Concentration    string  `json:"concentration"`
	Rarity           string  `json:"rarity"`
	ExplorationRatio float64 `json:"exploration_ratio"`
	LowExploration   bool    `json:"low_exploration"`
	TopProduct       string  `json:"top_product,omitempty"`
	TopShare         float64 `json:"top_share"`
}

// Classifier holds the classification thresholds.
type Classifier struct {
	concentration  float64
	lowExploration float64
}

// New creates a Classifier with default thresholds unless overridden.
func New(opts ...Option) *Classifier {
	c := &Classifier{
		concentration:  DefaultConcentrationThreshold,
		lowExploration: DefaultLowExplorationThreshold,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classify derives the subject's palate. popular lists the community's most
// popular product names.
func (c *Classifier) Classify(subject aggregate.Metrics, catalogSize int, popular []string) Palate {
	p := Palate{
		Concentration: Explorer,
		Rarity:        Niche,
	}

	if catalogSize > 0 {
		p.ExplorationRatio = float64(len(subject.UniqueProductsTried)) / float64(catalogSize)
	}
	p.LowExploration = p.ExplorationRatio < c.lowExploration

	top, ok := subject.TopProduct()
	if !ok {
		return p
	}
	p.TopProduct = top.Name
	if subject.TotalLiters > 0 {
		p.TopShare = top.Liters / subject.TotalLiters
	}
	if p.TopShare >= c.concentration {
		p.Concentration = Loyal
	}
	for _, name := range popular {
		if name == top.Name {
			p.Rarity = Popular
			break
		}
	}
	return p
}
