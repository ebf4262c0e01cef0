// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Defaults live in New; Load layers a YAML file and environment on top.
// - Validation errors wrap ErrInvalidConfig, loader errors wrap ErrLoadConfig.
package config

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata" // embedded zone database for minimal container images
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// DatabasePath is the SQLite ledger file.
	DatabasePath string `koanf:"database_path"`

	// SaleDocumentTypeID is the ledger document type that marks a sale.
	SaleDocumentTypeID int `koanf:"sale_document_type_id"`

	// Timezone is the IANA zone used for calendar days and years.
	Timezone string `koanf:"timezone"`

	// WatchPath is the file watched for ledger changes. Empty disables watching.
	WatchPath string `koanf:"watch_path"`

	// WatchDebounceMS coalesces bursts of file events.
	WatchDebounceMS int `koanf:"watch_debounce_ms"`

	// KafkaBrokers is a comma-separated broker list. Empty disables the change feed.
	KafkaBrokers string `koanf:"kafka_brokers"`
	KafkaTopic   string `koanf:"kafka_topic"`
	KafkaGroupID string `koanf:"kafka_group_id"`

	// QueueSize bounds the in-memory change-event queue.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of refresh workers.
	WorkerCount int `koanf:"worker_count"`

	// MaxTrackedSummaries caps the summaries cached and rebuilt on change.
	MaxTrackedSummaries int `koanf:"max_tracked_summaries"`

	// ConcentrationThreshold is the top-product share that makes a palate loyal.
	ConcentrationThreshold float64 `koanf:"concentration_threshold"`

	// LowExplorationThreshold flags customers who tried little of the catalog.
	LowExplorationThreshold float64 `koanf:"low_exploration_threshold"`

	// TopProductsLimit caps the per-customer top products list.
	TopProductsLimit int `koanf:"top_products_limit"`

	// PopularProductsK is how many community products count as popular.
	PopularProductsK int `koanf:"popular_products_k"`

	// KBAMaxAttempts is the number of failed answers before a challenge is discarded.
	KBAMaxAttempts int `koanf:"kba_max_attempts"`

	// KBADecoyRetries bounds decoy regeneration on collisions.
	KBADecoyRetries int `koanf:"kba_decoy_retries"`

	// KBAChallengeTTLSeconds expires unanswered challenges.
	KBAChallengeTTLSeconds int `koanf:"kba_challenge_ttl_seconds"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:                "info",
		Addr:                    ":9080",
		DatabasePath:            "data/ledger.db",
		SaleDocumentTypeID:      1,
		Timezone:                "UTC",
		WatchPath:               "data/ledger.db",
		WatchDebounceMS:         500,
		KafkaTopic:              "ledger-changes",
		KafkaGroupID:            "pinta",
		QueueSize:               1024,
		WorkerCount:             2,
		MaxTrackedSummaries:     4096,
		ConcentrationThreshold:  0.40,
		LowExplorationThreshold: 0.15,
		TopProductsLimit:        5,
		PopularProductsK:        3,
		KBAMaxAttempts:          3,
		KBADecoyRetries:         5,
		KBAChallengeTTLSeconds:  300,
	}
}

// Brokers splits KafkaBrokers into a clean list.
func (c *Config) Brokers() []string {
	var out []string
	for _, b := range strings.Split(c.KafkaBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

// Location resolves Timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("%w: timezone %q: %v", ErrInvalidConfig, c.Timezone, err)
	}
	return loc, nil
}

// WatchDebounce returns the debounce window as a duration.
func (c *Config) WatchDebounce() time.Duration {
	return time.Duration(c.WatchDebounceMS) * time.Millisecond
}

// ChallengeTTL returns the KBA challenge lifetime.
func (c *Config) ChallengeTTL() time.Duration {
	return time.Duration(c.KBAChallengeTTLSeconds) * time.Second
}

// Validate checks invariants the rest of the service relies on.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.DatabasePath == "":
		return fmt.Errorf("%w: database_path must not be empty", ErrInvalidConfig)
	case c.ConcentrationThreshold <= 0 || c.ConcentrationThreshold > 1:
		return fmt.Errorf("%w: concentration_threshold must be in (0,1]", ErrInvalidConfig)
	case c.LowExplorationThreshold < 0 || c.LowExplorationThreshold > 1:
		return fmt.Errorf("%w: low_exploration_threshold must be in [0,1]", ErrInvalidConfig)
	case c.MaxTrackedSummaries < 1:
		return fmt.Errorf("%w: max_tracked_summaries must be positive", ErrInvalidConfig)
	case c.KBAMaxAttempts < 1:
		return fmt.Errorf("%w: kba_max_attempts must be positive", ErrInvalidConfig)
	case c.KBADecoyRetries < 2:
		return fmt.Errorf("%w: kba_decoy_retries must be at least 2", ErrInvalidConfig)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}
