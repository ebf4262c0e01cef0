// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/okian/pinta/internal/adapters/repository"
	service "github.com/okian/pinta/internal/app"
	"github.com/okian/pinta/internal/domain/kba"
	"github.com/okian/pinta/internal/domain/types"
	"github.com/okian/pinta/internal/domain/wrapped"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	CustomerDependencies
	WrappedDependencies
	ChallengeDependencies
}

// CustomerDependencies looks customers up.
type CustomerDependencies interface {
	SearchCustomers(ctx context.Context, term string) ([]types.CustomerMatch, error)
}

// WrappedDependencies builds yearly summaries.
type WrappedDependencies interface {
	Wrapped(ctx context.Context, customerID string, year int) (*wrapped.Summary, error)
}

// ChallengeDependencies issues and checks identity challenges.
type ChallengeDependencies interface {
	IssueChallenge(ctx context.Context, customerID string) (types.ChallengeView, error)
	AnswerChallenge(ctx context.Context, challengeID, answer string) (types.AnswerResult, error)
}

// Option applies a configuration option to the Server.
type Option func(*Server)

// WithClock sets the time source used to default the summary year.
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		if now != nil {
			s.wrappedHandler.now = now
		}
	}
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler    *HealthHandler
	statsHandler     *StatsHandler
	customerHandler  *CustomerHandler
	wrappedHandler   *WrappedHandler
	challengeHandler *ChallengeHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...Option) *Server {
	s := &Server{
		healthHandler:    NewHealthHandler(),
		statsHandler:     NewStatsHandler(statsProvider),
		customerHandler:  NewCustomerHandler(deps),
		wrappedHandler:   NewWrappedHandler(deps),
		challengeHandler: NewChallengeHandler(deps),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("GET /customers", MetricsMiddleware(s.customerHandler.HandleSearch, "customers"))
	mux.HandleFunc("GET /wrapped/{customerID}", MetricsMiddleware(s.wrappedHandler.HandleGetWrapped, "wrapped"))
	mux.HandleFunc("POST /challenges", MetricsMiddleware(s.challengeHandler.HandleIssue, "challenges"))
	mux.HandleFunc("POST /challenges/{id}/answer", MetricsMiddleware(s.challengeHandler.HandleAnswer, "challenge_answer"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeDomainError translates upstream sentinels into status codes.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrEmptyQuery), errors.Is(err, ErrBadRequest):
		writeError(w, http.StatusBadRequest, "bad_request", err)
	case errors.Is(err, service.ErrNoMatches),
		errors.Is(err, wrapped.ErrNotFound),
		errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err)
	case errors.Is(err, kba.ErrChallengeExhausted):
		writeError(w, http.StatusGone, "challenge_exhausted", err)
	case errors.Is(err, kba.ErrChallengeNotFound):
		writeError(w, http.StatusGone, "challenge_not_found", err)
	case errors.Is(err, kba.ErrNoVerifiableFields):
		writeError(w, http.StatusUnprocessableEntity, "no_verifiable_fields", err)
	case errors.Is(err, kba.ErrDecoyGeneration):
		writeError(w, http.StatusUnprocessableEntity, "challenge_unavailable", err)
	case errors.Is(err, wrapped.ErrDataUnavailable), errors.Is(err, repository.ErrUnavailable):
		writeError(w, http.StatusServiceUnavailable, "data_unavailable", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	}
}
