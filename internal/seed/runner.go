package seed

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/pinta/internal/domain/model"
	"github.com/okian/pinta/pkg/logger"
)

// Writer persists generated ledgers.
type Writer interface {
	InsertCustomer(ctx context.Context, c model.Customer) error
	InsertSales(ctx context.Context, records []model.PurchaseRecord) error
}

// Run generates a ledger, writes it through w and, when cfg.BaseURL is set,
// checks the service's summaries against it.
func Run(ctx context.Context, cfg *Config, w Writer) (*Stats, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	stats := &Stats{StartTime: time.Now()}
	log := logger.Named("seed")

	log.Info(ctx, "starting pinta seed",
		logger.Int("customers", cfg.Customers),
		logger.Int("year", cfg.Year),
		logger.Int("maxVisits", cfg.MaxVisits),
		logger.Any("seed", cfg.Seed),
		logger.String("baseURL", cfg.BaseURL))

	ledger := NewGenerator(cfg).Generate()

	for _, c := range ledger.Customers {
		if err := w.InsertCustomer(ctx, c); err != nil {
			return stats, fmt.Errorf("write customer %s: %w", c.ID, err)
		}
		stats.CustomersWritten++
	}
	if err := w.InsertSales(ctx, ledger.Records); err != nil {
		return stats, fmt.Errorf("write ledger lines: %w", err)
	}
	for _, r := range ledger.Records {
		if r.DocumentTypeID == cfg.SaleDocumentTypeID {
			stats.SalesWritten++
		} else {
			stats.OtherDocsWritten++
		}
	}
	stats.UnmeasuredSales = countUnmeasured(ledger.Records, cfg.SaleDocumentTypeID)

	log.Info(ctx, "ledger written",
		logger.Int("customers", stats.CustomersWritten),
		logger.Int("sales", stats.SalesWritten),
		logger.Int("otherDocs", stats.OtherDocsWritten),
		logger.Int("unmeasured", stats.UnmeasuredSales))

	if cfg.BaseURL != "" {
		if err := verify(ctx, cfg, ledger, stats); err != nil {
			return stats, err
		}
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	log.Info(ctx, "seed completed", logger.Duration("duration", stats.Duration))
	return stats, nil
}
