package repository

import (
	"time"

	"github.com/okian/pinta/pkg/logger"
)

// Option applies a configuration option to a store.
type Option func(*settings)

type settings struct {
	saleDocumentTypeID int
	location           *time.Location
	logger             logger.Logger
}

func defaultSettings() settings {
	return settings{
		saleDocumentTypeID: DefaultSaleDocumentTypeID,
		location:           time.UTC,
	}
}

// DefaultSaleDocumentTypeID is the ledger document type for a sale.
const DefaultSaleDocumentTypeID = 1

// WithSaleDocumentType sets the document type that marks sale lines.
func WithSaleDocumentType(id int) Option {
	return func(s *settings) {
		if id > 0 {
			s.saleDocumentTypeID = id
		}
	}
}

// WithLocation sets the zone timestamps are converted to when read.
func WithLocation(loc *time.Location) Option {
	return func(s *settings) {
		if loc != nil {
			s.location = loc
		}
	}
}

// WithLogger sets a custom logger for the store.
func WithLogger(l logger.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.logger = l
		}
	}
}
