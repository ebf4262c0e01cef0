// Package model contains domain models passed between layers.
package model

import "time"

// Category is a beer-style bucket derived from a product name.
type Category string

// Known categories. Other collects everything no rule recognizes.
const (
	CategoryIPA     Category = "IPA"
	CategoryLager   Category = "Lager"
	CategoryStout   Category = "Stout"
	CategoryPorter  Category = "Porter"
	CategoryPilsner Category = "Pilsner"
	CategoryAle     Category = "Ale"
	CategoryOther   Category = "Other"
)

// Categories lists every category in canonical order.
func Categories() []Category {
	return []Category{
		CategoryIPA,
		CategoryLager,
		CategoryStout,
		CategoryPorter,
		CategoryPilsner,
		CategoryAle,
		CategoryOther,
	}
}

// PurchaseRecord is one ledger line as read from the record store.
type PurchaseRecord struct {
	CustomerID     string
	ProductName    string
	Quantity       int
	Timestamp      time.Time
	DocumentTypeID int
}

// NormalizedSale is a ledger line reduced to category and volume.
// Measured is false when no volume token could be parsed; such sales
// still count as visits but never contribute volume.
type NormalizedSale struct {
	CustomerID  string
	ProductName string
	Category    Category
	VolumeMl    int64
	Measured    bool
	Timestamp   time.Time
}

// Customer is a ledger customer. Identity fields are optional.
type Customer struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	PhoneNumber *string `json:"phone_number,omitempty"`
	TaxID       *string `json:"tax_id,omitempty"`
	Email       *string `json:"email,omitempty"`
}

// ChangeSource identifies what signalled a ledger change.
type ChangeSource string

// Change sources.
const (
	ChangeSourceFile  ChangeSource = "file"
	ChangeSourceKafka ChangeSource = "kafka"
)

// ChangeEvent signals that ledger data may have changed.
type ChangeEvent struct {
	ID      string
	Source  ChangeSource
	Subject string // file path or message key
	At      time.Time
}

// StringPtr returns a pointer to s, or nil when s is empty.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
