// Package api provides HTTP handlers for the coach API.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"iter"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ashureev/horizon-coach/internal/coach"
	"github.com/ashureev/horizon-coach/internal/domain"
)

// Coach is the orchestrator surface the handlers call.
type Coach interface {
	ProcessTurn(ctx context.Context, req coach.TurnRequest) iter.Seq2[string, error]
	ResetSession(ctx context.Context, id string) error
	State(ctx context.Context, id string) (*coach.State, error)
	PendingMicrocheck(ctx context.Context, id string) (*coach.PendingView, error)
	SubmitMicrocheck(ctx context.Context, req coach.SubmitRequest) (*coach.SubmitResult, error)
	History(ctx context.Context, id string) ([]coach.HistoryEntry, error)
	ListSessions(ctx context.Context, limit int) ([]domain.SessionSummary, error)
}

// Config tunes request handling.
type Config struct {
	MaxBodyBytes      int64
	KeepAlive         time.Duration
	RateLimitRequests int
	RateLimitWindow   time.Duration
	OriginPatterns    []string // WebSocket origins, "*" allows any
}

const (
	defaultSessionLimit = 50
	maxSessionLimit     = 500
)

// Handler serves the chat, session and microcheck endpoints.
type Handler struct {
	coach   Coach
	limiter *RateLimiter
	cfg     Config
	logger  *slog.Logger
}

// NewHandler creates a Handler. Call Close to stop the rate limiter.
func NewHandler(c Coach, cfg Config, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 20
	}
	if cfg.RateLimitRequests <= 0 {
		cfg.RateLimitRequests = 10
	}
	if cfg.RateLimitWindow <= 0 {
		cfg.RateLimitWindow = time.Minute
	}
	if len(cfg.OriginPatterns) == 0 {
		cfg.OriginPatterns = []string{"*"}
	}
	return &Handler{
		coach:   c,
		limiter: NewRateLimiter(cfg.RateLimitRequests, cfg.RateLimitWindow),
		cfg:     cfg,
		logger:  logger,
	}
}

// Close stops background work.
func (h *Handler) Close() {
	h.limiter.Stop()
}

// RegisterRoutes mounts the API on r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/chat", func(r chi.Router) {
		r.Post("/stream", h.HandleChatStream)
		r.Post("/reset", h.HandleReset)
		r.Get("/history", h.HandleHistory)
		r.Get("/sessions", h.HandleSessions)
	})
	r.Route("/microchecks", func(r chi.Router) {
		r.Get("/pending", h.HandlePendingMicrocheck)
		r.Post("/submit", h.HandleSubmitMicrocheck)
	})
	r.Get("/debug/friction-state", h.HandleFrictionState)
	r.Get("/ws/chat", h.HandleWebSocket)
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// statusFor maps an orchestrator error to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, coach.ErrEmptyMessage), errors.Is(err, coach.ErrMissingSessionID):
		return http.StatusBadRequest
	case errors.Is(err, coach.ErrPendingMicrocheck), errors.Is(err, coach.ErrMicrocheckMismatch):
		return http.StatusConflict
	case errors.Is(err, coach.ErrPersistence):
		return http.StatusServiceUnavailable
	case errors.Is(err, coach.ErrUpstream):
		return http.StatusBadGateway
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", "path", r.URL.Path, "status", status, "error", err)
	}

	body := map[string]string{"error": err.Error()}
	var pending *coach.PendingMicrocheckError
	if errors.As(err, &pending) {
		body["microcheck_id"] = pending.MicrocheckID
	}
	JSON(w, status, body)
}

func (h *Handler) decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			Error(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		Error(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}
