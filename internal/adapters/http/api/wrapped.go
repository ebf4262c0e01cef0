package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// WrappedHandler serves yearly summaries.
type WrappedHandler struct {
	deps WrappedDependencies
	now  func() time.Time
}

// NewWrappedHandler creates a new summary handler.
func NewWrappedHandler(deps WrappedDependencies) *WrappedHandler {
	return &WrappedHandler{deps: deps, now: time.Now}
}

// HandleGetWrapped handles GET /wrapped/{customerID}?year=YYYY requests.
// The year defaults to the current one.
func (h *WrappedHandler) HandleGetWrapped(w http.ResponseWriter, r *http.Request) {
	customerID := strings.TrimSpace(r.PathValue("customerID"))
	if customerID == "" {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}

	year := h.now().Year()
	if raw := r.URL.Query().Get("year"); raw != "" {
		y, err := strconv.Atoi(raw)
		if err != nil || y < 1 {
			writeError(w, http.StatusBadRequest, "bad_request", ErrInvalidYear)
			return
		}
		year = y
	}

	summary, err := h.deps.Wrapped(r.Context(), customerID, year)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
