package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
)

const maxBodyBytes = 1 << 16

type issueRequest struct {
	CustomerID string `json:"customer_id"`
}

type answerRequest struct {
	Answer *string `json:"answer"`
}

// ChallengeHandler handles the identity challenge flow.
type ChallengeHandler struct {
	deps ChallengeDependencies
}

// NewChallengeHandler creates a new challenge handler.
func NewChallengeHandler(deps ChallengeDependencies) *ChallengeHandler {
	return &ChallengeHandler{deps: deps}
}

// HandleIssue handles POST /challenges requests.
func (h *ChallengeHandler) HandleIssue(w http.ResponseWriter, r *http.Request) {
	var req issueRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	if strings.TrimSpace(req.CustomerID) == "" {
		writeError(w, http.StatusBadRequest, "bad_request", errors.New("missing customer_id"))
		return
	}
	view, err := h.deps.IssueChallenge(r.Context(), req.CustomerID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

// HandleAnswer handles POST /challenges/{id}/answer requests.
func (h *ChallengeHandler) HandleAnswer(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req answerRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	if req.Answer == nil {
		writeError(w, http.StatusBadRequest, "bad_request", errors.New("missing answer"))
		return
	}
	res, err := h.deps.AnswerChallenge(r.Context(), id, *req.Answer)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.Join(ErrMissingBody, err)
	}
	return nil
}
