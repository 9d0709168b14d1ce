package api

import (
	"net/http"
	"strconv"

	"github.com/ashureev/goal-architect/internal/domain"
	"github.com/go-chi/chi/v5"
)

type goalRequest struct {
	GoalID string `json:"goal_id"`
	What   string `json:"what"`
	Why    string `json:"why"`
	When   string `json:"when"`
}

type milestonesRequest struct {
	Milestones []domain.Milestone `json:"milestones"`
}

type statusRequest struct {
	Status domain.MilestoneStatus `json:"status"`
}

// GetDashboard returns the goal -> milestone -> tracker tree.
func (h *Handler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	dash, err := h.repo.GetFullUserState(r.Context(), userID)
	if err != nil {
		storeError(w, err, "dashboard")
		return
	}
	JSON(w, http.StatusOK, dash)
}

// ListGoals handles GET /api/goals.
func (h *Handler) ListGoals(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	goals, err := h.repo.GetGoalsForUser(r.Context(), userID)
	if err != nil {
		storeError(w, err, "list_goals")
		return
	}
	JSON(w, http.StatusOK, goals)
}

// CreateGoal handles POST /api/goals.
func (h *Handler) CreateGoal(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req goalRequest
	if !h.decode(w, r, &req) {
		return
	}
	goal := &domain.Goal{UserID: userID, What: req.What, Why: req.Why, When: req.When}
	if err := h.repo.CreateGoal(r.Context(), goal); err != nil {
		storeError(w, err, "create_goal")
		return
	}
	JSON(w, http.StatusCreated, goal)
}

// GetGoal handles GET /api/goals/{goalID}.
func (h *Handler) GetGoal(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	goal, err := h.repo.GetGoal(r.Context(), userID, chi.URLParam(r, "goalID"))
	if err != nil {
		storeError(w, err, "get_goal")
		return
	}
	JSON(w, http.StatusOK, goal)
}

// UpdateGoal handles PUT /api/goals/{goalID}. A goal_id in the body must
// match the path.
func (h *Handler) UpdateGoal(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	goalID := chi.URLParam(r, "goalID")
	var req goalRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.GoalID != "" && req.GoalID != goalID {
		Error(w, http.StatusBadRequest, "goal_id in body does not match path")
		return
	}

	goal := &domain.Goal{UserID: userID, GoalID: goalID, What: req.What, Why: req.Why, When: req.When}
	if err := h.repo.UpdateGoal(r.Context(), goal); err != nil {
		storeError(w, err, "update_goal")
		return
	}
	updated, err := h.repo.GetGoal(r.Context(), userID, goalID)
	if err != nil {
		storeError(w, err, "get_goal")
		return
	}
	JSON(w, http.StatusOK, updated)
}

// ListMilestones handles GET /api/goals/{goalID}/milestones[?active=true].
func (h *Handler) ListMilestones(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	goalID := chi.URLParam(r, "goalID")
	if _, err := h.repo.GetGoal(r.Context(), userID, goalID); err != nil {
		storeError(w, err, "get_goal")
		return
	}

	active, _ := strconv.ParseBool(r.URL.Query().Get("active"))
	var (
		ms  []domain.Milestone
		err error
	)
	if active {
		ms, err = h.repo.GetActiveMilestones(r.Context(), userID, goalID)
	} else {
		ms, err = h.repo.GetMilestones(r.Context(), userID, goalID)
	}
	if err != nil {
		storeError(w, err, "list_milestones")
		return
	}
	JSON(w, http.StatusOK, ms)
}

// CreateMilestones handles POST /api/goals/{goalID}/milestones. The batch
// is written only if the combined dependency graph is acyclic.
func (h *Handler) CreateMilestones(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req milestonesRequest
	if !h.decode(w, r, &req) {
		return
	}
	if len(req.Milestones) == 0 {
		Error(w, http.StatusBadRequest, "milestones are required")
		return
	}

	created, err := h.repo.CreateMilestones(r.Context(), userID, chi.URLParam(r, "goalID"), req.Milestones)
	if err != nil {
		storeError(w, err, "create_milestones")
		return
	}
	JSON(w, http.StatusCreated, created)
}

// UpdateMilestoneStatus handles PATCH /api/milestones/{milestoneID}/status.
func (h *Handler) UpdateMilestoneStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req statusRequest
	if !h.decode(w, r, &req) {
		return
	}
	milestoneID := chi.URLParam(r, "milestoneID")
	if err := h.repo.UpdateMilestoneStatus(r.Context(), userID, milestoneID, req.Status); err != nil {
		storeError(w, err, "update_milestone_status")
		return
	}
	JSON(w, http.StatusOK, map[string]string{"milestone_id": milestoneID, "status": string(req.Status)})
}
