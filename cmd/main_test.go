package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/okian/pinta/internal/config"
	"github.com/okian/pinta/internal/domain/model"
	"github.com/okian/pinta/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

func init() {
	_ = logger.Init()
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.New()
	cfg.DatabasePath = filepath.Join(t.TempDir(), "ledger.db")
	cfg.WatchPath = ""
	cfg.Timezone = "America/Santiago"
	return cfg
}

func TestConfigFromEnvironment(t *testing.T) {
	convey.Convey("Given PINTA_ environment overrides", t, func() {
		t.Setenv("PINTA_ADDR", ":8080")
		t.Setenv("PINTA_QUEUE_SIZE", "256")
		t.Setenv("PINTA_WORKER_COUNT", "4")

		convey.Convey("Then the loaded config carries them", func() {
			cfg, err := config.Load(context.Background())
			convey.So(err, convey.ShouldBeNil)
			convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
			convey.So(cfg.QueueSize, convey.ShouldEqual, 256)
			convey.So(cfg.WorkerCount, convey.ShouldEqual, 4)
		})
	})
}

func TestBuildService(t *testing.T) {
	convey.Convey("Given a config pointing at a fresh ledger", t, func() {
		cfg := testConfig(t)

		convey.Convey("When an unknown timezone is configured", func() {
			cfg.Timezone = "Mars/Olympus"
			_, _, err := buildService(cfg)

			convey.Convey("Then building fails", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the service is built and seeded", func() {
			store, svc, err := buildService(cfg)
			convey.So(err, convey.ShouldBeNil)
			defer func() { _ = store.Close() }()

			ctx := context.Background()
			loc, _ := cfg.Location()
			convey.So(store.InsertCustomer(ctx, model.Customer{
				ID:    "c-1",
				Name:  "Ana Torres",
				Email: model.StringPtr("ana.torres@bar.cl"),
			}), convey.ShouldBeNil)
			convey.So(store.InsertSales(ctx, []model.PurchaseRecord{
				{CustomerID: "c-1", ProductName: "Lupulo IPA 355ml", Quantity: 2, Timestamp: time.Date(2024, time.March, 2, 21, 0, 0, 0, loc)},
			}), convey.ShouldBeNil)

			convey.So(svc.Start(ctx), convey.ShouldBeNil)
			defer svc.Stop()
			mux := newMux(svc)

			get := func(target string) *httptest.ResponseRecorder {
				w := httptest.NewRecorder()
				mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
				return w
			}
			post := func(target, body string) *httptest.ResponseRecorder {
				w := httptest.NewRecorder()
				mux.ServeHTTP(w, httptest.NewRequest(http.MethodPost, target, strings.NewReader(body)))
				return w
			}

			convey.Convey("Then customers can be searched", func() {
				w := get("/customers?q=torres")
				convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
				convey.So(w.Body.String(), convey.ShouldContainSubstring, `"id":"c-1"`)
			})

			convey.Convey("Then the yearly summary is served", func() {
				w := get("/wrapped/c-1?year=2024")
				convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
				var got map[string]any
				convey.So(json.NewDecoder(w.Body).Decode(&got), convey.ShouldBeNil)
				convey.So(got["total_liters"], convey.ShouldAlmostEqual, 0.71, 1e-9)
				convey.So(got["liters_percentile"], convey.ShouldEqual, 1.0)
			})

			convey.Convey("Then an email challenge can be answered", func() {
				w := post("/challenges", `{"customer_id":"c-1"}`)
				convey.So(w.Code, convey.ShouldEqual, http.StatusCreated)
				var ch struct {
					ID      string   `json:"id"`
					Options []string `json:"options"`
				}
				convey.So(json.NewDecoder(w.Body).Decode(&ch), convey.ShouldBeNil)
				convey.So(ch.Options, convey.ShouldContain, "ana.torres@bar.cl")

				w = post("/challenges/"+ch.ID+"/answer", `{"answer":"ana.torres@bar.cl"}`)
				convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
				convey.So(w.Body.String(), convey.ShouldContainSubstring, `"verified":true`)
			})

			convey.Convey("Then the docs routes are mounted", func() {
				convey.So(get("/openapi.yaml").Code, convey.ShouldEqual, http.StatusOK)
			})
		})
	})
}

func TestStartNotifiers(t *testing.T) {
	convey.Convey("Given a service watching its ledger file", t, func() {
		cfg := testConfig(t)
		cfg.WatchPath = cfg.DatabasePath
		cfg.WatchDebounceMS = 10

		store, svc, err := buildService(cfg)
		convey.So(err, convey.ShouldBeNil)
		defer func() { _ = store.Close() }()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		convey.So(svc.Start(ctx), convey.ShouldBeNil)
		defer svc.Stop()

		convey.Convey("Then starting and cancelling the notifiers does not panic", func() {
			convey.So(func() {
				startNotifiers(ctx, cfg, svc)
				cancel()
			}, convey.ShouldNotPanic)
		})
	})
}

func TestMetricsUpdaters(t *testing.T) {
	convey.Convey("Given the metrics updaters", t, func() {
		cfg := testConfig(t)
		store, svc, err := buildService(cfg)
		convey.So(err, convey.ShouldBeNil)
		defer func() { _ = store.Close() }()

		convey.Convey("Then one-shot updates do not panic", func() {
			convey.So(updateSystemMetrics, convey.ShouldNotPanic)
			convey.So(func() { updateServiceMetrics(svc) }, convey.ShouldNotPanic)
		})

		convey.Convey("Then the loops return once the context ends", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
			defer cancel()
			done := make(chan struct{})
			go func() {
				startSystemMetricsUpdater(ctx)
				startServiceMetricsUpdater(ctx, svc)
				close(done)
			}()
			select {
			case <-done:
			case <-time.After(2 * time.Second):
				t.Fatal("metrics updaters did not stop")
			}
		})
	})
}
