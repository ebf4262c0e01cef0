// Package types contains the read shapes served by the HTTP API.
package types

import (
	"github.com/okian/pinta/internal/domain/kba"
	"github.com/okian/pinta/internal/domain/model"
)

// CustomerMatch is a search hit. Identity fields are never exposed.
type CustomerMatch struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// NewCustomerMatches strips customers down to id and name.
func NewCustomerMatches(customers []model.Customer) []CustomerMatch {
	out := make([]CustomerMatch, len(customers))
	for i, c := range customers {
		out[i] = CustomerMatch{ID: c.ID, Name: c.Name}
	}
	return out
}

// ChallengeView is what a client sees of an identity challenge.
type ChallengeView struct {
	ID          string        `json:"id"`
	Question    string        `json:"question"`
	Options     []string      `json:"options"`
	FieldType   kba.FieldType `json:"field_type"`
	MaxAttempts int           `json:"max_attempts"`
}

// NewChallengeView hides the customer and the correct answer.
func NewChallengeView(ch *kba.Challenge, maxAttempts int) ChallengeView {
	return ChallengeView{
		ID:          ch.ID,
		Question:    ch.Question,
		Options:     append([]string(nil), ch.Options...),
		FieldType:   ch.FieldType,
		MaxAttempts: maxAttempts,
	}
}

// AnswerResult reports the outcome of one challenge answer.
type AnswerResult struct {
	Verified          bool   `json:"verified"`
	RemainingAttempts int    `json:"remaining_attempts"`
	CustomerID        string `json:"customer_id,omitempty"`
}
