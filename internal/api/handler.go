// Package api provides HTTP handlers for the Goal Architect REST API.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/ashureev/goal-architect/internal/domain"
	"github.com/ashureev/goal-architect/internal/identity"
	"github.com/ashureev/goal-architect/internal/metrics"
	"github.com/ashureev/goal-architect/internal/store"
	"github.com/go-chi/chi/v5"
)

// Handler serves the goal, milestone, tracker and log endpoints.
type Handler struct {
	repo    store.Repository
	metrics *metrics.Metrics
	maxBody int64
}

// NewHandler creates a new Handler. maxBody caps JSON request bodies.
func NewHandler(repo store.Repository, m *metrics.Metrics, maxBody int64) *Handler {
	if maxBody <= 0 {
		maxBody = 1 << 20
	}
	return &Handler{repo: repo, metrics: m, maxBody: maxBody}
}

// RegisterRoutes registers the REST routes under /api.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/me", h.GetMe)
		r.Get("/dashboard", h.GetDashboard)

		r.Route("/goals", func(r chi.Router) {
			r.Get("/", h.ListGoals)
			r.Post("/", h.CreateGoal)
			r.Get("/{goalID}", h.GetGoal)
			r.Put("/{goalID}", h.UpdateGoal)
			r.Get("/{goalID}/milestones", h.ListMilestones)
			r.Post("/{goalID}/milestones", h.CreateMilestones)
		})

		r.Patch("/milestones/{milestoneID}/status", h.UpdateMilestoneStatus)
		r.Post("/milestones/{milestoneID}/trackers", h.CreateTracker)

		r.Get("/trackers/{trackerID}", h.GetTracker)
		r.Get("/trackers/{trackerID}/progress", h.GetTrackerProgress)

		r.Get("/logs", h.ListLogs)
		r.Post("/logs", h.CreateLog)
	})
}

// GetMe returns the current user's information.
func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	user, err := h.repo.GetUser(r.Context(), userID)
	if err != nil || user == nil {
		Error(w, http.StatusUnauthorized, "user not found")
		return
	}

	JSON(w, http.StatusOK, map[string]any{
		"user_id":  user.UserID,
		"username": user.Username,
	})
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("Failed to encode response", "error", err)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// storeError maps repository errors onto HTTP statuses. Rejected input is
// reported verbatim; storage failures are logged and hidden.
func storeError(w http.ResponseWriter, err error, op string) {
	switch {
	case domain.IsValidation(err):
		Error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		Error(w, http.StatusNotFound, err.Error())
	default:
		slog.Error("Request failed", "op", op, "error", err)
		Error(w, http.StatusInternalServerError, "internal error")
	}
}

// decode reads a JSON body into v, writing the error response itself.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			Error(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		Error(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

// requireUser returns the caller's user ID or writes 401.
func requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return "", false
	}
	return userID, true
}
