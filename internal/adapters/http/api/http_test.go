package api_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/okian/pinta/internal/adapters/http/api"
	"github.com/okian/pinta/internal/adapters/repository"
	service "github.com/okian/pinta/internal/app"
	"github.com/okian/pinta/internal/domain/kba"
	"github.com/okian/pinta/internal/domain/types"
	"github.com/okian/pinta/internal/domain/wrapped"
	. "github.com/smartystreets/goconvey/convey"
)

type mockDependencies struct {
	matches    []types.CustomerMatch
	searchErr  error
	lastTerm   string
	summary    *wrapped.Summary
	wrappedErr error
	lastYear   int
	lastID     string
	view       types.ChallengeView
	issueErr   error
	result     types.AnswerResult
	answerErr  error
	lastAnswer string
}

func (m *mockDependencies) SearchCustomers(_ context.Context, term string) ([]types.CustomerMatch, error) {
	m.lastTerm = term
	return m.matches, m.searchErr
}

func (m *mockDependencies) Wrapped(_ context.Context, customerID string, year int) (*wrapped.Summary, error) {
	m.lastID = customerID
	m.lastYear = year
	return m.summary, m.wrappedErr
}

func (m *mockDependencies) IssueChallenge(_ context.Context, customerID string) (types.ChallengeView, error) {
	m.lastID = customerID
	return m.view, m.issueErr
}

func (m *mockDependencies) AnswerChallenge(_ context.Context, challengeID, answer string) (types.AnswerResult, error) {
	m.lastID = challengeID
	m.lastAnswer = answer
	return m.result, m.answerErr
}

type mockStatsProvider struct {
	stats map[string]interface{}
}

func (m *mockStatsProvider) GetStats() map[string]interface{} {
	return m.stats
}

func newMux(deps *mockDependencies) *http.ServeMux {
	clock := func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }
	server := api.NewServer(deps, &mockStatsProvider{stats: map[string]interface{}{"started": true}}, api.WithClock(clock))
	mux := http.NewServeMux()
	server.Register(mux)
	return mux
}

func serve(mux *http.ServeMux, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func decodeError(w *httptest.ResponseRecorder) map[string]string {
	var out map[string]string
	_ = json.NewDecoder(w.Body).Decode(&out)
	return out
}

func TestServer_Register(t *testing.T) {
	Convey("Given a registered API server", t, func() {
		deps := &mockDependencies{}
		mux := newMux(deps)

		Convey("Then the health endpoint serves metrics", func() {
			w := serve(mux, http.MethodGet, "/healthz", "")
			So(w.Code, ShouldEqual, http.StatusOK)
		})

		Convey("Then the stats endpoint serves JSON", func() {
			w := serve(mux, http.MethodGet, "/stats", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Header().Get("Content-Type"), ShouldContainSubstring, "application/json")
			So(w.Body.String(), ShouldContainSubstring, `"started":true`)
		})

		Convey("Then unknown paths are not found", func() {
			w := serve(mux, http.MethodGet, "/leaderboard", "")
			So(w.Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("Then a wrong method is rejected", func() {
			w := serve(mux, http.MethodPost, "/customers?q=ana", "")
			So(w.Code, ShouldEqual, http.StatusMethodNotAllowed)
		})
	})
}

func TestCustomerHandler(t *testing.T) {
	Convey("Given the customer search endpoint", t, func() {
		deps := &mockDependencies{}
		mux := newMux(deps)

		Convey("When the query is blank", func() {
			w := serve(mux, http.MethodGet, "/customers?q=%20%20", "")

			Convey("Then it is a bad request", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(decodeError(w)["code"], ShouldEqual, "bad_request")
			})
		})

		Convey("When customers match", func() {
			deps.matches = []types.CustomerMatch{{ID: "c-1", Name: "Ana Torres"}}
			w := serve(mux, http.MethodGet, "/customers?q=ana", "")

			Convey("Then only id and name are returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(deps.lastTerm, ShouldEqual, "ana")
				var got []map[string]any
				So(json.NewDecoder(w.Body).Decode(&got), ShouldBeNil)
				So(got, ShouldHaveLength, 1)
				So(got[0]["id"], ShouldEqual, "c-1")
				So(got[0], ShouldNotContainKey, "email")
			})
		})

		Convey("When nothing matches", func() {
			deps.searchErr = service.ErrNoMatches
			w := serve(mux, http.MethodGet, "/customers?q=zzz", "")

			Convey("Then it is not found", func() {
				So(w.Code, ShouldEqual, http.StatusNotFound)
			})
		})

		Convey("When the store is down", func() {
			deps.searchErr = fmt.Errorf("search: %w", repository.ErrUnavailable)
			w := serve(mux, http.MethodGet, "/customers?q=ana", "")

			Convey("Then it is unavailable", func() {
				So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
				So(decodeError(w)["code"], ShouldEqual, "data_unavailable")
			})
		})
	})
}

func TestWrappedHandler(t *testing.T) {
	Convey("Given the wrapped endpoint", t, func() {
		deps := &mockDependencies{summary: &wrapped.Summary{CustomerID: "c-1", Year: 2024, TotalVisits: 2}}
		mux := newMux(deps)

		Convey("When a year is given", func() {
			w := serve(mux, http.MethodGet, "/wrapped/c-1?year=2024", "")

			Convey("Then the summary is returned for that year", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(deps.lastID, ShouldEqual, "c-1")
				So(deps.lastYear, ShouldEqual, 2024)
				So(w.Body.String(), ShouldContainSubstring, `"total_visits":2`)
			})
		})

		Convey("When the year is omitted", func() {
			serve(mux, http.MethodGet, "/wrapped/c-1", "")

			Convey("Then the current year is used", func() {
				So(deps.lastYear, ShouldEqual, 2025)
			})
		})

		Convey("When the year is malformed", func() {
			for _, raw := range []string{"abc", "0", "-3"} {
				w := serve(mux, http.MethodGet, "/wrapped/c-1?year="+raw, "")
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			}
		})

		Convey("When the customer is unknown", func() {
			deps.wrappedErr = wrapped.ErrNotFound
			w := serve(mux, http.MethodGet, "/wrapped/nobody?year=2024", "")

			Convey("Then it is not found", func() {
				So(w.Code, ShouldEqual, http.StatusNotFound)
			})
		})

		Convey("When data is unavailable", func() {
			deps.wrappedErr = fmt.Errorf("community: %w", wrapped.ErrDataUnavailable)
			w := serve(mux, http.MethodGet, "/wrapped/c-1?year=2024", "")

			Convey("Then it is service unavailable", func() {
				So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
			})
		})

		Convey("When something unexpected fails", func() {
			deps.wrappedErr = fmt.Errorf("boom")
			w := serve(mux, http.MethodGet, "/wrapped/c-1?year=2024", "")

			Convey("Then it is an internal error", func() {
				So(w.Code, ShouldEqual, http.StatusInternalServerError)
			})
		})
	})
}

func TestChallengeHandler(t *testing.T) {
	Convey("Given the challenge endpoints", t, func() {
		deps := &mockDependencies{
			view: types.ChallengeView{
				ID:          "ch-1",
				Question:    "¿Cuál es tu correo electrónico?",
				Options:     []string{"a@bar.cl", "b@bar.cl", "c@bar.cl"},
				FieldType:   kba.FieldEmail,
				MaxAttempts: 3,
			},
		}
		mux := newMux(deps)

		Convey("When a challenge is issued", func() {
			w := serve(mux, http.MethodPost, "/challenges", `{"customer_id":"c-1"}`)

			Convey("Then the view is returned without the answer", func() {
				So(w.Code, ShouldEqual, http.StatusCreated)
				So(deps.lastID, ShouldEqual, "c-1")
				var got map[string]any
				So(json.NewDecoder(w.Body).Decode(&got), ShouldBeNil)
				So(got["id"], ShouldEqual, "ch-1")
				So(got["options"], ShouldHaveLength, 3)
				So(got, ShouldNotContainKey, "correct_answer")
			})
		})

		Convey("When the body is malformed", func() {
			for _, body := range []string{"", "{", `{"customer_id":""}`, `{"customer":"c-1"}`} {
				w := serve(mux, http.MethodPost, "/challenges", body)
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			}
		})

		Convey("When issuing fails", func() {
			cases := []struct {
				err  error
				code int
			}{
				{repository.ErrNotFound, http.StatusNotFound},
				{kba.ErrNoVerifiableFields, http.StatusUnprocessableEntity},
				{kba.ErrDecoyGeneration, http.StatusUnprocessableEntity},
				{repository.ErrUnavailable, http.StatusServiceUnavailable},
			}
			for _, tc := range cases {
				deps.issueErr = tc.err
				w := serve(mux, http.MethodPost, "/challenges", `{"customer_id":"c-1"}`)
				So(w.Code, ShouldEqual, tc.code)
			}
		})

		Convey("When an answer is posted", func() {
			deps.result = types.AnswerResult{Verified: false, RemainingAttempts: 2}
			w := serve(mux, http.MethodPost, "/challenges/ch-1/answer", `{"answer":"b@bar.cl"}`)

			Convey("Then the outcome is reported", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(deps.lastID, ShouldEqual, "ch-1")
				So(deps.lastAnswer, ShouldEqual, "b@bar.cl")
				So(w.Body.String(), ShouldContainSubstring, `"remaining_attempts":2`)
			})
		})

		Convey("When the answer field is missing", func() {
			w := serve(mux, http.MethodPost, "/challenges/ch-1/answer", `{}`)

			Convey("Then it is a bad request", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When the challenge is exhausted or gone", func() {
			for _, err := range []error{kba.ErrChallengeExhausted, kba.ErrChallengeNotFound} {
				deps.answerErr = err
				w := serve(mux, http.MethodPost, "/challenges/ch-1/answer", `{"answer":"x"}`)
				So(w.Code, ShouldEqual, http.StatusGone)
			}
		})
	})
}

func TestHealthHandler_HandleHealth(t *testing.T) {
	Convey("Given a health handler", t, func() {
		handler := api.NewHealthHandler()

		Convey("When handling health check request", func() {
			req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
			w := httptest.NewRecorder()
			handler.HandleHealth(w, req)

			Convey("Then it should return OK status", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
			})
		})
	})
}

func TestMetricsMiddleware(t *testing.T) {
	Convey("Given a handler wrapped in the metrics middleware", t, func() {
		status := http.StatusOK
		h := api.MetricsMiddleware(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(status)
			w.WriteHeader(http.StatusTeapot)
		}, "ping")

		Convey("Then the first status written reaches the client", func() {
			for _, status = range []int{http.StatusOK, http.StatusGone, http.StatusServiceUnavailable, http.StatusBadGateway} {
				w := httptest.NewRecorder()
				h(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
				So(w.Code, ShouldEqual, status)
			}
		})
	})
}
