package agent

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/ashureev/goal-architect/internal/domain"
	"github.com/ashureev/goal-architect/internal/identity"
	"github.com/go-chi/chi/v5"
)

// defaultMaxRequestBodySize is the default maximum allowed request body size (1MB).
const defaultMaxRequestBodySize = 1 << 20

// HandlerConfig configures the agent HTTP surface.
type HandlerConfig struct {
	RateLimitRequests  int
	RateLimitWindow    time.Duration
	MaxRequestBodySize int64

	// AllowedOrigin restricts websocket upgrades outside development.
	AllowedOrigin string
	IsDev         bool
}

// Handler serves the turn API over HTTP and websocket.
type Handler struct {
	service     *Service
	rateLimiter *RateLimiter
	conns       *ConnRegistry
	maxBody     int64
	origin      string
	isDev       bool
	logger      *slog.Logger
}

// NewHandler creates the agent handler. Call Close to stop background work.
func NewHandler(service *Service, cfg HandlerConfig, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	limit := cfg.RateLimitRequests
	if limit <= 0 {
		limit = 10
	}
	window := cfg.RateLimitWindow
	if window <= 0 {
		window = time.Minute
	}
	maxBody := cfg.MaxRequestBodySize
	if maxBody <= 0 {
		maxBody = defaultMaxRequestBodySize
	}
	return &Handler{
		service:     service,
		rateLimiter: NewRateLimiter(limit, window),
		conns:       NewConnRegistry(logger),
		maxBody:     maxBody,
		origin:      cfg.AllowedOrigin,
		isDev:       cfg.IsDev,
		logger:      logger,
	}
}

// RegisterRoutes mounts the agent endpoints on r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/api/agent/chat", h.HandleChat)
	r.Get("/api/agent/state", h.HandleState)
	r.Get("/ws/chat", h.HandleWebSocket)
}

// Close stops the rate limiter and drops open websocket connections.
func (h *Handler) Close() {
	h.rateLimiter.Stop()
	h.conns.CloseAll()
}

// HandleChat handles POST /api/agent/chat.
func (h *Handler) HandleChat(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		writeJSONError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if !h.rateLimiter.Allow(userID) {
		writeJSONError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSONError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.ThreadID == "" {
		req.ThreadID = identity.ThreadIDFromContext(r.Context())
	} else if identity.SanitizeThreadID(req.ThreadID) == "" {
		writeJSONError(w, http.StatusBadRequest, "invalid thread_id")
		return
	}
	req.UserID = userID

	h.logger.Info("Agent chat request",
		"user_id", userID,
		"thread_id", req.ThreadID,
		"message_length", len(req.Message),
	)

	resp, err := h.service.Turn(r.Context(), req, "chat_http")
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleState handles GET /api/agent/state?thread_id=.
func (h *Handler) HandleState(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		writeJSONError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	threadID := identity.ThreadIDFromContext(r.Context())
	if threadID == "" {
		writeJSONError(w, http.StatusBadRequest, "thread_id is required")
		return
	}

	view, err := h.service.State(r.Context(), userID, threadID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	status, msg := serviceErrorStatus(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("Agent request failed", "error", err)
	}
	writeJSONError(w, status, msg)
}

func serviceErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, ErrEmptyMessage):
		return http.StatusBadRequest, "message is required"
	case errors.Is(err, ErrThreadOwnership):
		return http.StatusForbidden, "thread belongs to another user"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "thread not found"
	case errors.Is(err, ErrTurnInProgress):
		return http.StatusConflict, "a turn is already running for this thread"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("Failed to encode response", "error", err)
	}
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
