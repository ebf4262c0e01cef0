// Package seed generates a synthetic bar ledger and checks a running
// service against it.
package seed

import (
	"fmt"
	"time"

	"github.com/okian/pinta/internal/domain/model"
)

// Default seeding parameters.
const (
	DefaultCustomers    = 200
	DefaultMaxVisits    = 40
	DefaultVerifySample = 20
	DefaultTimeout      = 10 * time.Second
)

// Config holds configuration for one seeding run.
type Config struct {
	Customers          int            // Number of customers to generate
	Year               int            // Calendar year the sales fall in
	MaxVisits          int            // Upper bound of visits per customer
	Seed               int64          // Random seed; equal seeds give equal ledgers
	Location           *time.Location // Zone sale timestamps are generated in
	SaleDocumentTypeID int            // Document type that marks a sale
	BaseURL            string         // Service to verify against; empty skips verification
	Timeout            time.Duration  // HTTP request timeout
	VerifySample       int            // Customers checked against the service
	Verbose            bool           // Log every verified customer
}

// Validate checks the run parameters.
func (c *Config) Validate() error {
	switch {
	case c.Customers < 1:
		return fmt.Errorf("%w: customers must be positive", ErrInvalidConfig)
	case c.Year < 1:
		return fmt.Errorf("%w: year must be positive", ErrInvalidConfig)
	case c.MaxVisits < 1:
		return fmt.Errorf("%w: max visits must be positive", ErrInvalidConfig)
	case c.Location == nil:
		return fmt.Errorf("%w: location is required", ErrInvalidConfig)
	}
	return nil
}

// Ledger is a generated set of customers and their ledger lines.
type Ledger struct {
	Customers []model.Customer
	Records   []model.PurchaseRecord
}

// Stats holds run statistics.
type Stats struct {
	CustomersWritten  int
	SalesWritten      int
	OtherDocsWritten  int
	UnmeasuredSales   int
	SummariesVerified int
	StartTime         time.Time
	EndTime           time.Time
	Duration          time.Duration
}
