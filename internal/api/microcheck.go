package api

import (
	"net/http"

	"github.com/ashureev/horizon-coach/internal/coach"
	"github.com/ashureev/horizon-coach/internal/identity"
)

type submitRequest struct {
	SessionID    string         `json:"session_id"`
	MicrocheckID string         `json:"microcheck_id"`
	Answers      []coach.Answer `json:"answers"`
}

// HandlePendingMicrocheck returns the outstanding microcheck, or 204 when
// there is none.
func (h *Handler) HandlePendingMicrocheck(w http.ResponseWriter, r *http.Request) {
	view, err := h.coach.PendingMicrocheck(r.Context(), identity.SessionIDFromContext(r.Context()))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if view == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	JSON(w, http.StatusOK, view)
}

// HandleSubmitMicrocheck grades the learner's answers.
func (h *Handler) HandleSubmitMicrocheck(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if !h.decodeBody(w, r, &req) {
		return
	}
	if req.MicrocheckID == "" {
		Error(w, http.StatusBadRequest, "microcheck_id is required")
		return
	}
	result, err := h.coach.SubmitMicrocheck(r.Context(), coach.SubmitRequest{
		SessionID:    identity.Resolve(r, req.SessionID),
		MicrocheckID: req.MicrocheckID,
		Answers:      req.Answers,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	JSON(w, http.StatusOK, result)
}
