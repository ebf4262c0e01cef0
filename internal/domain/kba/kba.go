// Package kba builds and checks knowledge-based identity challenges: one
// question about a field on file, the true value and two near-miss decoys.
package kba

import (
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/google/uuid"

	"github.com/okian/pinta/internal/domain/model"
)

// OptionCount is the number of choices offered per challenge.
const OptionCount = 3

// FieldType names the identity field a challenge asks about.
type FieldType string

// Verifiable fields.
const (
	FieldPhone FieldType = "phone"
	FieldTaxID FieldType = "tax_id"
	FieldEmail FieldType = "email"
)

var questions = map[FieldType]string{
	FieldPhone: "¿Cuál de estos es tu número de teléfono?",
	FieldTaxID: "¿Cuál de estos es tu número de identificación tributaria?",
	FieldEmail: "¿Cuál de estos es tu correo electrónico?",
}

// Challenge is a multiple-choice identity question. CorrectAnswer never
// leaves the process.
type Challenge struct {
	ID            string    `json:"id"`
	CustomerID    string    `json:"customer_id"`
	Question      string    `json:"question"`
	Options       []string  `json:"options"`
	FieldType     FieldType `json:"field_type"`
	CorrectAnswer string    `json:"-"`
}

// perturbFunc derives a near-miss of value. attempt counts prior tries for
// the same challenge. It reports false when value has nothing to alter.
type perturbFunc func(r *rand.Rand, value string, attempt int) (string, bool)

var perturbers = map[FieldType]perturbFunc{
	FieldPhone: perturbPhone,
	FieldTaxID: perturbTaxID,
	FieldEmail: perturbEmail,
}

// Generator issues challenges. Safe for concurrent use.
type Generator struct {
	mu         sync.Mutex
	rng        *rand.Rand
	maxRetries int
	newID      func() string
}

// New creates a Generator seeded from the clock unless a source is supplied.
func New(opts ...Option) *Generator {
	g := &Generator{
		maxRetries: defaultMaxRetries,
		newID:      func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.rng == nil {
		g.rng = rand.New(rand.NewSource(time.Now().UnixNano())) //nolint:gosec // not a security boundary
	}
	return g
}

type field struct {
	kind  FieldType
	value string
}

func eligible(c model.Customer) []field {
	var out []field
	for _, f := range []struct {
		kind FieldType
		v    *string
	}{
		{FieldPhone, c.PhoneNumber},
		{FieldTaxID, c.TaxID},
		{FieldEmail, c.Email},
	} {
		if f.v != nil && strings.TrimSpace(*f.v) != "" {
			out = append(out, field{kind: f.kind, value: *f.v})
		}
	}
	return out
}

// Generate builds a challenge for c. It returns ErrNoVerifiableFields when
// c has no phone, tax id or email on file, and ErrDecoyGeneration when two
// distinct decoys cannot be derived from the chosen value.
func (g *Generator) Generate(c model.Customer) (*Challenge, error) {
	fields := eligible(c)
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoVerifiableFields, c.ID)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	f := fields[g.rng.Intn(len(fields))]
	decoys, err := g.decoys(f)
	if err != nil {
		return nil, err
	}

	options := append([]string{f.value}, decoys...)
	g.rng.Shuffle(len(options), func(i, j int) { options[i], options[j] = options[j], options[i] })

	return &Challenge{
		ID:            g.newID(),
		CustomerID:    c.ID,
		Question:      questions[f.kind],
		Options:       options,
		FieldType:     f.kind,
		CorrectAnswer: f.value,
	}, nil
}

func (g *Generator) decoys(f field) ([]string, error) {
	perturb := perturbers[f.kind]
	seen := map[string]struct{}{f.value: {}}
	out := make([]string, 0, OptionCount-1)
	attempt := 0
	for len(out) < OptionCount-1 {
		found := false
		for try := 0; try < g.maxRetries; try++ {
			candidate, ok := perturb(g.rng, f.value, attempt)
			attempt++
			if !ok {
				return nil, fmt.Errorf("%w: %s has nothing to alter", ErrDecoyGeneration, f.kind)
			}
			if _, dup := seen[candidate]; dup {
				continue
			}
			seen[candidate] = struct{}{}
			out = append(out, candidate)
			found = true
			break
		}
		if !found {
			return nil, fmt.Errorf("%w: %s after %d attempts", ErrDecoyGeneration, f.kind, attempt)
		}
	}
	return out, nil
}

// Verify reports whether answer is exactly the challenge's true value.
func Verify(ch *Challenge, answer string) bool {
	return ch != nil && answer == ch.CorrectAnswer
}

func perturbPhone(r *rand.Rand, value string, _ int) (string, bool) {
	runes := []rune(value)
	idx := indexes(runes, func(c rune) bool { return c >= '0' && c <= '9' })
	if len(idx) == 0 {
		return "", false
	}
	i := idx[r.Intn(len(idx))]
	runes[i] = increment(runes[i])
	return string(runes), true
}

// perturbTaxID bumps the alphanumeric character nearest the middle first,
// then random alphanumeric positions on later attempts.
func perturbTaxID(r *rand.Rand, value string, attempt int) (string, bool) {
	runes := []rune(value)
	idx := indexes(runes, isAlnum)
	if len(idx) == 0 {
		return "", false
	}
	i := nearest(idx, len(runes)/2)
	if attempt > 0 {
		i = idx[r.Intn(len(idx))]
	}
	runes[i] = increment(runes[i])
	return string(runes), true
}

func perturbEmail(r *rand.Rand, value string, _ int) (string, bool) {
	runes := []rune(value)
	local := len(runes)
	if at := strings.LastIndex(value, "@"); at >= 0 {
		local = len([]rune(value[:at]))
	}
	if local == 0 {
		return "", false
	}
	i := r.Intn(local)
	orig := unicode.ToLower(runes[i])
	sub := rune('a' + r.Intn(25))
	if sub >= orig && orig >= 'a' && orig <= 'z' {
		sub++
	}
	runes[i] = sub
	return string(runes), true
}

func indexes(runes []rune, keep func(rune) bool) []int {
	var out []int
	for i, c := range runes {
		if keep(c) {
			out = append(out, i)
		}
	}
	return out
}

func nearest(idx []int, mid int) int {
	best := idx[0]
	for _, i := range idx[1:] {
		if abs(i-mid) < abs(best-mid) {
			best = i
		}
	}
	return best
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func isAlnum(c rune) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// increment advances an ASCII digit or letter, wrapping 9→0, z→a, Z→A.
func increment(c rune) rune {
	switch {
	case c == '9':
		return '0'
	case c == 'z':
		return 'a'
	case c == 'Z':
		return 'A'
	default:
		return c + 1
	}
}
