package seed

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"

	"github.com/okian/pinta/internal/domain/aggregate"
	"github.com/okian/pinta/internal/domain/model"
	"github.com/okian/pinta/internal/domain/normalize"
	"github.com/okian/pinta/pkg/logger"
)

const litersTolerance = 1e-6

// summaryView is the part of a served summary the seeder checks.
type summaryView struct {
	CustomerID  string  `json:"customer_id"`
	Year        int     `json:"year"`
	TotalLiters float64 `json:"total_liters"`
	TotalVisits int     `json:"total_visits"`
}

// verify fetches summaries for a sample of seeded customers and compares
// their totals with the ones computed locally from the ledger.
func verify(ctx context.Context, cfg *Config, ledger Ledger, stats *Stats) error {
	log := logger.Named("seed")
	client := &http.Client{Timeout: cfg.Timeout}

	if err := checkServiceHealth(ctx, client, cfg.BaseURL); err != nil {
		return err
	}

	expected := expectedTotals(ledger, cfg)
	sample := cfg.VerifySample
	if sample <= 0 || sample > len(ledger.Customers) {
		sample = len(ledger.Customers)
	}

	for _, c := range ledger.Customers[:sample] {
		got, err := fetchSummary(ctx, client, cfg.BaseURL, c.ID, cfg.Year)
		if err != nil {
			return err
		}
		want := expected[c.ID]
		if got.TotalVisits != want.TotalVisits() || math.Abs(got.TotalLiters-want.TotalLiters) > litersTolerance {
			return fmt.Errorf("%w: customer %s: got %d visits / %.3f L, want %d / %.3f L",
				ErrMismatch, c.ID, got.TotalVisits, got.TotalLiters, want.TotalVisits(), want.TotalLiters)
		}
		stats.SummariesVerified++
		if cfg.Verbose {
			log.Info(ctx, "summary verified",
				logger.String("customer_id", c.ID),
				logger.Int("visits", got.TotalVisits),
				logger.Float64("liters", got.TotalLiters))
		}
	}

	log.Info(ctx, "verification completed", logger.Int("verified", stats.SummariesVerified))
	return nil
}

func expectedTotals(ledger Ledger, cfg *Config) map[string]aggregate.Metrics {
	byCustomer := make(map[string][]model.PurchaseRecord)
	for _, r := range ledger.Records {
		if r.DocumentTypeID == cfg.SaleDocumentTypeID {
			byCustomer[r.CustomerID] = append(byCustomer[r.CustomerID], r)
		}
	}
	n := normalize.New()
	window := model.Year(cfg.Year, cfg.Location)
	out := make(map[string]aggregate.Metrics, len(ledger.Customers))
	for _, c := range ledger.Customers {
		sales, _ := n.NormalizeAll(byCustomer[c.ID])
		out[c.ID] = aggregate.Aggregate(sales, window)
	}
	return out
}

func checkServiceHealth(ctx context.Context, client *http.Client, baseURL string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/healthz", http.NoBody)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrServiceUnhealthy, err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrServiceUnhealthy, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrServiceUnhealthy, resp.StatusCode)
	}
	return nil
}

func fetchSummary(ctx context.Context, client *http.Client, baseURL, customerID string, year int) (summaryView, error) {
	var out summaryView
	target := baseURL + "/wrapped/" + url.PathEscape(customerID) + "?year=" + strconv.Itoa(year)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, http.NoBody)
	if err != nil {
		return out, fmt.Errorf("build summary request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return out, fmt.Errorf("fetch summary %s: %w", customerID, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return out, fmt.Errorf("%w: customer %s: status %d", ErrMismatch, customerID, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return out, fmt.Errorf("decode summary %s: %w", customerID, err)
	}
	return out, nil
}
