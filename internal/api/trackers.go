package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/ashureev/goal-architect/internal/domain"
	"github.com/ashureev/goal-architect/internal/progress"
	"github.com/go-chi/chi/v5"
)

// maxHistoryLimit caps GET /api/logs.
const maxHistoryLimit = 500

type logRequest struct {
	TrackerID string     `json:"tracker_id"`
	Timestamp *time.Time `json:"timestamp"`
	Value     *float64   `json:"value"`
}

// CreateTracker handles POST /api/milestones/{milestoneID}/trackers.
func (h *Handler) CreateTracker(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var t domain.Tracker
	if !h.decode(w, r, &t) {
		return
	}
	t.UserID = userID
	t.MilestoneID = chi.URLParam(r, "milestoneID")
	t.TrackerID = ""

	if err := h.repo.CreateTracker(r.Context(), &t); err != nil {
		storeError(w, err, "create_tracker")
		return
	}
	JSON(w, http.StatusCreated, t)
}

// GetTracker handles GET /api/trackers/{trackerID}.
func (h *Handler) GetTracker(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	t, err := h.repo.GetTracker(r.Context(), userID, chi.URLParam(r, "trackerID"))
	if err != nil {
		storeError(w, err, "get_tracker")
		return
	}
	JSON(w, http.StatusOK, t)
}

// GetTrackerProgress handles GET /api/trackers/{trackerID}/progress.
func (h *Handler) GetTrackerProgress(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	t, err := h.repo.GetTracker(ctx, userID, chi.URLParam(r, "trackerID"))
	if err != nil {
		storeError(w, err, "get_tracker")
		return
	}

	var logs []domain.LogEntry
	if t.WindowNumDays != nil {
		logs, err = h.repo.GetTrackerLogsSince(ctx, userID, t.TrackerID, time.Time{})
		if err != nil {
			storeError(w, err, "tracker_logs")
			return
		}
	}
	JSON(w, http.StatusOK, progress.Evaluate(*t, logs, time.Now().UTC()))
}

// ListLogs handles GET /api/logs?tracker_id=&limit=, newest first.
func (h *Handler) ListLogs(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	trackerID := q.Get("tracker_id")
	if trackerID == "" {
		Error(w, http.StatusBadRequest, "tracker_id is required")
		return
	}
	limit := 0
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			Error(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	if _, err := h.repo.GetTracker(r.Context(), userID, trackerID); err != nil {
		storeError(w, err, "get_tracker")
		return
	}
	logs, err := h.repo.GetHistoryLogs(r.Context(), userID, trackerID, limit)
	if err != nil {
		storeError(w, err, "history_logs")
		return
	}
	JSON(w, http.StatusOK, logs)
}

// CreateLog handles POST /api/logs. The entry is appended and folded into
// the tracker aggregate in one transaction.
func (h *Handler) CreateLog(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req logRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Value == nil {
		Error(w, http.StatusBadRequest, "value is required")
		return
	}

	entry := domain.LogEntry{
		UserID:    userID,
		TrackerID: req.TrackerID,
		Timestamp: time.Now().UTC(),
		Value:     *req.Value,
	}
	if req.Timestamp != nil {
		entry.Timestamp = req.Timestamp.UTC()
	}

	res, err := h.repo.LogAndAggregate(r.Context(), entry)
	if err != nil {
		storeError(w, err, "log_and_aggregate")
		return
	}
	h.metrics.TrackerLog(string(res.Strategy), res.Applied)
	JSON(w, http.StatusCreated, res)
}
