// Package repository defines the read-only record store over the ledger.
package repository

import (
	"context"

	"github.com/okian/pinta/internal/domain/model"
)

// SalesQuery selects sale lines. An empty CustomerID selects the whole
// community; the zero Window selects all time.
type SalesQuery struct {
	CustomerID string
	Window     model.Window
}

// Store provides read access to the transaction ledger.
type Store interface {
	// Sales returns sale-type ledger lines matching q, oldest first.
	Sales(ctx context.Context, q SalesQuery) ([]model.PurchaseRecord, error)

	// Customer returns a customer by id.
	// Returns ErrNotFound if the customer is unknown.
	Customer(ctx context.Context, id string) (model.Customer, error)

	// SearchCustomers matches term against name, phone, tax id and email.
	SearchCustomers(ctx context.Context, term string) ([]model.Customer, error)

	// Catalog returns the distinct product names ever sold.
	Catalog(ctx context.Context) ([]string, error)
}
