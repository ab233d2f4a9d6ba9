package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"net/http"
	"strconv"
	"time"

	"github.com/ashureev/horizon-coach/internal/coach"
	"github.com/ashureev/horizon-coach/internal/identity"
)

type chatRequest struct {
	SessionID   string          `json:"session_id"`
	Message     string          `json:"message"`
	Context     string          `json:"context,omitempty"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`
	UseGuidance bool            `json:"use_guidance"`
}

type sessionRequest struct {
	SessionID string `json:"session_id"`
}

type tokenEvent struct {
	Type string `json:"type"`
	Data string `json:"data"`
}

type errorEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Status  int    `json:"status,omitempty"`
}

// turnRequest validates a decoded chat message. It returns an HTTP status
// and message when the request cannot be processed.
func (h *Handler) turnRequest(r *http.Request, req chatRequest) (coach.TurnRequest, int, string) {
	sid := identity.Resolve(r, req.SessionID)
	if sid == "" {
		return coach.TurnRequest{}, http.StatusBadRequest, coach.ErrMissingSessionID.Error()
	}
	meta, err := decodeMetadata(req.Metadata)
	if err != nil {
		return coach.TurnRequest{}, http.StatusBadRequest, err.Error()
	}
	if !h.limiter.Allow(sid) {
		return coach.TurnRequest{}, http.StatusTooManyRequests, "rate limit exceeded"
	}
	return coach.TurnRequest{
		SessionID:        sid,
		Text:             req.Message,
		Context:          req.Context,
		Metadata:         meta,
		ExplicitGuidance: req.UseGuidance,
	}, 0, ""
}

// HandleChatStream runs one learner turn and streams the reply as SSE.
// Errors raised before the first token are returned as JSON with a status.
func (h *Handler) HandleChatStream(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if !h.decodeBody(w, r, &req) {
		return
	}
	turn, status, msg := h.turnRequest(r, req)
	if status != 0 {
		Error(w, status, msg)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		Error(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	items := pump(ctx, h.coach.ProcessTurn(ctx, turn))

	var first streamItem
	var open bool
	select {
	case first, open = <-items:
	case <-ctx.Done():
		return
	}
	if open && first.err != nil {
		h.writeServiceError(w, r, first.err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	if open {
		if err := writeSSEJSON(w, "", tokenEvent{Type: "token", Data: first.token}); err != nil {
			return
		}
		flusher.Flush()
	}

	var keepAlive <-chan time.Time
	if h.cfg.KeepAlive > 0 {
		ticker := time.NewTicker(h.cfg.KeepAlive)
		defer ticker.Stop()
		keepAlive = ticker.C
	}

	for open {
		select {
		case <-ctx.Done():
			return
		case <-keepAlive:
			if _, err := io.WriteString(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case item, ok := <-items:
			if !ok {
				open = false
				continue
			}
			if item.err != nil {
				h.logger.Warn("chat stream failed", "session_id", turn.SessionID, "remote_ip", identity.IPFromRequest(r), "error", item.err)
				_ = writeSSEJSON(w, "error", errorEvent{Type: "error", Message: item.err.Error(), Status: statusFor(item.err)})
				flusher.Flush()
				return
			}
			if err := writeSSEJSON(w, "", tokenEvent{Type: "token", Data: item.token}); err != nil {
				return
			}
			flusher.Flush()
		}
	}

	_ = writeSSE(w, "end", "{}")
	flusher.Flush()
}

// HandleReset clears a session.
func (h *Handler) HandleReset(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if r.ContentLength != 0 && !h.decodeBody(w, r, &req) {
		return
	}
	sid := identity.Resolve(r, req.SessionID)
	if err := h.coach.ResetSession(r.Context(), sid); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	JSON(w, http.StatusOK, map[string]string{"status": "reset", "session_id": sid})
}

// HandleHistory returns the session transcript.
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	sid := identity.SessionIDFromContext(r.Context())
	entries, err := h.coach.History(r.Context(), sid)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	JSON(w, http.StatusOK, map[string]any{"session_id": sid, "messages": entries})
}

// HandleSessions lists stored sessions, most recent first.
func (h *Handler) HandleSessions(w http.ResponseWriter, r *http.Request) {
	limit := defaultSessionLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			Error(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxSessionLimit)
	}
	sessions, err := h.coach.ListSessions(r.Context(), limit)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	JSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

// HandleFrictionState returns the inspection view of a session.
func (h *Handler) HandleFrictionState(w http.ResponseWriter, r *http.Request) {
	st, err := h.coach.State(r.Context(), identity.SessionIDFromContext(r.Context()))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	JSON(w, http.StatusOK, st)
}

type streamItem struct {
	token string
	err   error
}

// pump moves a turn's sequence onto a channel so the caller can select on
// it. Cancelling ctx stops iteration, which aborts the turn.
func pump(ctx context.Context, seq iter.Seq2[string, error]) <-chan streamItem {
	out := make(chan streamItem)
	go func() {
		defer close(out)
		for tok, err := range seq {
			select {
			case out <- streamItem{token: tok, err: err}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

func writeSSE(w io.Writer, event, data string) error {
	if event == "" {
		_, err := fmt.Fprintf(w, "data: %s\n\n", data)
		return err
	}
	_, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	return err
}

func writeSSEJSON(w io.Writer, event string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return writeSSE(w, event, string(data))
}
