package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/okian/pinta/internal/adapters/repository"
	"github.com/okian/pinta/internal/config"
	"github.com/okian/pinta/internal/seed"
	"github.com/okian/pinta/pkg/logger"
)

const defaultRunTimeout = 10 * time.Minute

func main() {
	defaults := config.New()
	var (
		dbPath    = flag.String("db", defaults.DatabasePath, "SQLite ledger file to write")
		customers = flag.Int("customers", seed.DefaultCustomers, "Number of customers to generate")
		year      = flag.Int("year", time.Now().Year()-1, "Calendar year of the generated sales")
		maxVisits = flag.Int("max-visits", seed.DefaultMaxVisits, "Upper bound of visits per customer")
		seedValue = flag.Int64("seed", time.Now().UnixNano(), "Random seed")
		timezone  = flag.String("timezone", defaults.Timezone, "IANA zone of the bar")
		docType   = flag.Int("sale-doc-type", defaults.SaleDocumentTypeID, "Document type that marks a sale")
		baseURL   = flag.String("url", "", "Running service to verify against (optional)")
		sample    = flag.Int("verify", seed.DefaultVerifySample, "Customers to verify against the service")
		timeout   = flag.Duration("timeout", seed.DefaultTimeout, "HTTP request timeout")
		verbose   = flag.Bool("verbose", false, "Log every verified customer")
	)
	flag.Parse()

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	ctx, cancel := context.WithTimeout(context.Background(), defaultRunTimeout)
	defer cancel()
	log := logger.Get()

	loc, err := time.LoadLocation(*timezone)
	if err != nil {
		log.Fatal(ctx, "unknown timezone", logger.String("timezone", *timezone), logger.Error(err))
	}

	store, err := repository.NewSQLiteStore(*dbPath,
		repository.WithSaleDocumentType(*docType),
		repository.WithLocation(loc),
	)
	if err != nil {
		log.Fatal(ctx, "open ledger", logger.String("path", *dbPath), logger.Error(err))
	}
	defer func() { _ = store.Close() }()

	cfg := &seed.Config{
		Customers:          *customers,
		Year:               *year,
		MaxVisits:          *maxVisits,
		Seed:               *seedValue,
		Location:           loc,
		SaleDocumentTypeID: *docType,
		BaseURL:            *baseURL,
		Timeout:            *timeout,
		VerifySample:       *sample,
		Verbose:            *verbose,
	}
	if _, err := seed.Run(ctx, cfg, store); err != nil {
		log.Error(ctx, "seed failed", logger.Error(err))
		os.Exit(1)
	}
}
