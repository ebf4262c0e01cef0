package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/okian/pinta/internal/adapters/http/api"
	"github.com/okian/pinta/internal/adapters/http/swagger"
	"github.com/okian/pinta/internal/adapters/notify"
	"github.com/okian/pinta/internal/adapters/repository"
	app "github.com/okian/pinta/internal/app"
	"github.com/okian/pinta/internal/config"
	"github.com/okian/pinta/internal/domain/kba"
	"github.com/okian/pinta/internal/domain/normalize"
	"github.com/okian/pinta/internal/domain/palate"
	"github.com/okian/pinta/internal/domain/wrapped"
	"github.com/okian/pinta/pkg/logger"
	"github.com/okian/pinta/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout               = 10 * time.Second
	writeTimeout              = 30 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	shutdownTimeout           = 30 * time.Second
	systemMetricsInterval     = 10 * time.Second
	serviceMetricsInterval    = 5 * time.Second
	nanosecondsPerMillisecond = 1e6
)

func main() {
	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	log := logger.Get()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		log.Fatal(ctx, "failed to load config", logger.Error(err))
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	if err := run(ctx, cfg); err != nil {
		log.Fatal(ctx, "pinta stopped with error", logger.Error(err))
	}
}

// run wires the service and blocks until ctx is cancelled.
func run(ctx context.Context, cfg *config.Config) error {
	log := logger.Get()

	store, svc, err := buildService(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Warn(ctx, "closing store", logger.Error(err))
		}
	}()

	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("start service: %w", err)
	}
	defer svc.Stop()

	startNotifiers(ctx, cfg, svc)

	go startSystemMetricsUpdater(ctx)
	go startServiceMetricsUpdater(ctx, svc)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newMux(svc),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- fmt.Errorf("%w: %w", api.ErrServe, err)
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return err
		}
	}
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}
	log.Info(ctx, "server stopped")
	return nil
}

// buildService opens the ledger and assembles the service from cfg.
func buildService(cfg *config.Config) (*repository.SQLiteStore, *app.Service, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, nil, err
	}

	store, err := repository.NewSQLiteStore(cfg.DatabasePath,
		repository.WithSaleDocumentType(cfg.SaleDocumentTypeID),
		repository.WithLocation(loc),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("open ledger: %w", err)
	}

	svc := app.New(store,
		app.WithWorkerCount(cfg.WorkerCount),
		app.WithQueueSize(cfg.QueueSize),
		app.WithMaxTrackedSummaries(cfg.MaxTrackedSummaries),
		app.WithBuilderOptions(
			wrapped.WithNormalizer(normalize.New()),
			wrapped.WithClassifier(palate.New(
				palate.WithConcentrationThreshold(cfg.ConcentrationThreshold),
				palate.WithLowExplorationThreshold(cfg.LowExplorationThreshold),
			)),
			wrapped.WithTopN(cfg.TopProductsLimit),
			wrapped.WithPopularK(cfg.PopularProductsK),
			wrapped.WithLocation(loc),
		),
		app.WithGenerator(kba.New(
			kba.WithSeed(time.Now().UnixNano()),
			kba.WithMaxRetries(cfg.KBADecoyRetries),
		)),
		app.WithChallengeRegistry(kba.NewRegistry(
			kba.WithMaxAttempts(cfg.KBAMaxAttempts),
			kba.WithTTL(cfg.ChallengeTTL()),
		)),
	)
	return store, svc, nil
}

// newMux registers the docs and business routes.
func newMux(svc *app.Service) *http.ServeMux {
	mux := http.NewServeMux()
	swagger.Register(mux)
	api.NewServer(svc, svc).Register(mux)
	return mux
}

// startNotifiers launches the configured change sources. Each one feeds the
// service queue and stops with ctx.
func startNotifiers(ctx context.Context, cfg *config.Config, svc *app.Service) {
	log := logger.Get()

	if cfg.WatchPath != "" {
		w := notify.NewFileWatcher(cfg.WatchPath, svc, notify.WithDebounce(cfg.WatchDebounce()))
		go func() {
			if err := w.Run(ctx); err != nil {
				log.Error(ctx, "file watcher stopped", logger.String("path", cfg.WatchPath), logger.Error(err))
			}
		}()
	}

	if brokers := cfg.Brokers(); len(brokers) > 0 {
		feed := notify.NewKafkaFeed(brokers, cfg.KafkaTopic, cfg.KafkaGroupID, svc)
		go func() {
			defer func() { _ = feed.Close() }()
			if err := feed.Run(ctx); err != nil {
				log.Error(ctx, "kafka feed stopped", logger.String("topic", cfg.KafkaTopic), logger.Error(err))
			}
		}()
	}
}

// startSystemMetricsUpdater refreshes process metrics until ctx ends.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// startServiceMetricsUpdater mirrors service stats into gauges until ctx ends.
func startServiceMetricsUpdater(ctx context.Context, svc *app.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateServiceMetrics(svc)
		}
	}
}

func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}

func updateServiceMetrics(svc *app.Service) {
	stats := svc.GetStats()

	if queueLen, ok := stats["queueLength"].(int); ok {
		metrics.UpdateQueueSize(queueLen)
	}
	if tracked, ok := stats["trackedSummaries"].(int); ok {
		metrics.UpdateTrackedSummaries(tracked)
	}
	if workerCount, ok := stats["workerCount"].(int); ok {
		metrics.UpdateWorkerCount(workerCount)
	}
}
