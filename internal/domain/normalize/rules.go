package normalize

import (
	"strings"

	"github.com/okian/pinta/internal/domain/model"
)

// Rule maps a product name to a category. Rules are consulted in order and
// the first match wins, so a structured product-metadata lookup can be
// dropped in ahead of (or instead of) the keyword rules.
type Rule interface {
	Match(productName string) (model.Category, bool)
}

// RuleFunc adapts a plain function to Rule.
type RuleFunc func(productName string) (model.Category, bool)

// Match implements Rule.
func (f RuleFunc) Match(productName string) (model.Category, bool) { return f(productName) }

// KeywordRule matches a case-insensitive substring.
type KeywordRule struct {
	Keyword  string
	Category model.Category
}

// Match implements Rule.
func (r KeywordRule) Match(productName string) (model.Category, bool) {
	if r.Keyword == "" {
		return "", false
	}
	if strings.Contains(strings.ToLower(productName), strings.ToLower(r.Keyword)) {
		return r.Category, true
	}
	return "", false
}

// DefaultRules returns the style keywords in priority order. IPA precedes
// Ale, so "Hazy IPA Pale Ale" is an IPA.
func DefaultRules() []Rule {
	return []Rule{
		KeywordRule{Keyword: "IPA", Category: model.CategoryIPA},
		KeywordRule{Keyword: "Lager", Category: model.CategoryLager},
		KeywordRule{Keyword: "Stout", Category: model.CategoryStout},
		KeywordRule{Keyword: "Porter", Category: model.CategoryPorter},
		KeywordRule{Keyword: "Pilsner", Category: model.CategoryPilsner},
		KeywordRule{Keyword: "Ale", Category: model.CategoryAle},
	}
}
