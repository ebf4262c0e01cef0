package api

import (
	"net/http"
	"strings"
)

// CustomerHandler handles customer lookup.
type CustomerHandler struct {
	deps CustomerDependencies
}

// NewCustomerHandler creates a new customer handler.
func NewCustomerHandler(deps CustomerDependencies) *CustomerHandler {
	return &CustomerHandler{deps: deps}
}

// HandleSearch handles GET /customers?q=term requests.
func (h *CustomerHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	term := strings.TrimSpace(r.URL.Query().Get("q"))
	if term == "" {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}
	matches, err := h.deps.SearchCustomers(r.Context(), term)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, matches)
}
