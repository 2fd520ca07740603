package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ashureev/veltrix/internal/api"
	"github.com/ashureev/veltrix/internal/identity"
	"github.com/ashureev/veltrix/internal/metrics"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

// defaultMaxRequestBodySize is the default maximum allowed request body size (64KB).
const defaultMaxRequestBodySize = 64 << 10

const (
	msgMessageRequired = "Message is required"
	msgServerError     = "Server Error"
	msgRateLimited     = "Too many messages, slow down"
	msgTooLarge        = "Message too large"
)

// Handler serves the chat API.
type Handler struct {
	engine         *Engine
	limiter        *RateLimiter
	conns          *ConnRegistry
	metrics        *metrics.Metrics
	originPatterns []string
	maxBody        int64
}

// HandlerOptions configures a Handler.
type HandlerOptions struct {
	Limiter        *RateLimiter
	Conns          *ConnRegistry
	Metrics        *metrics.Metrics
	OriginPatterns []string
	MaxBodyBytes   int64
}

// NewHandler creates a chat handler.
func NewHandler(engine *Engine, opts HandlerOptions) *Handler {
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = defaultMaxRequestBodySize
	}
	if opts.Conns == nil {
		opts.Conns = NewConnRegistry()
	}
	if len(opts.OriginPatterns) == 0 {
		opts.OriginPatterns = []string{"*"}
	}
	return &Handler{
		engine:         engine,
		limiter:        opts.Limiter,
		conns:          opts.Conns,
		metrics:        opts.Metrics,
		originPatterns: opts.OriginPatterns,
		maxBody:        opts.MaxBodyBytes,
	}
}

// RegisterRoutes registers chat routes. They require identity middleware.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/chat", func(r chi.Router) {
		r.Post("/", h.HandleChat)
		r.Get("/transcript", h.HandleTranscript)
		r.Delete("/session", h.HandleClearSession)
	})
	r.Get("/ws/chat", h.HandleWebSocket)
}

// turnError is a failed turn mapped onto its HTTP status and public message.
type turnError struct {
	status  int
	message string
}

// runTurn applies rate limiting and runs one engine turn.
func (h *Handler) runTurn(ctx context.Context, message string) (*Response, *turnError) {
	userID := identity.UserIDFromContext(ctx)
	if strings.TrimSpace(message) == "" {
		return nil, &turnError{http.StatusBadRequest, msgMessageRequired}
	}
	if h.limiter != nil && !h.limiter.Allow(userID) {
		h.metrics.RateLimited()
		return nil, &turnError{http.StatusTooManyRequests, msgRateLimited}
	}

	resp, err := h.engine.Reply(ctx, Request{
		UserID:  userID,
		Role:    identity.RoleFromContext(ctx),
		Message: message,
	})
	if err != nil {
		if errors.Is(err, ErrEmptyMessage) {
			return nil, &turnError{http.StatusBadRequest, msgMessageRequired}
		}
		slog.Error("Chat turn failed",
			"user_id", userID,
			"request_id", chiMiddleware.GetReqID(ctx),
			"error", err,
		)
		return nil, &turnError{http.StatusInternalServerError, msgServerError}
	}
	return resp, nil
}

// HandleChat handles POST /api/chat.
func (h *Handler) HandleChat(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			api.Fail(w, http.StatusRequestEntityTooLarge, msgTooLarge)
			return
		}
		api.Fail(w, http.StatusBadRequest, msgMessageRequired)
		return
	}

	resp, terr := h.runTurn(r.Context(), req.Message)
	if terr != nil {
		api.Fail(w, terr.status, terr.message)
		return
	}
	api.JSON(w, http.StatusOK, resp)
}

// HandleTranscript handles GET /api/chat/transcript.
func (h *Handler) HandleTranscript(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	messages, err := h.engine.Transcript(r.Context(), userID)
	if err != nil {
		slog.Error("Transcript read failed", "user_id", userID, "error", err)
		api.Fail(w, http.StatusInternalServerError, msgServerError)
		return
	}
	api.JSON(w, http.StatusOK, TranscriptResponse{Success: true, Messages: messages})
}

// HandleClearSession handles DELETE /api/chat/session.
func (h *Handler) HandleClearSession(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if err := h.engine.ClearSession(r.Context(), userID); err != nil {
		slog.Error("Session clear failed", "user_id", userID, "error", err)
		api.Fail(w, http.StatusInternalServerError, msgServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Conns returns the socket registry.
func (h *Handler) Conns() *ConnRegistry {
	return h.conns
}
