// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"github.com/ashureev/goal-architect/internal/domain"
)

// Repository defines the interface for persisting users, goals, milestones,
// trackers and their progress.
type Repository interface {
	// GetUser retrieves a user by their user ID. Returns nil, nil if absent.
	GetUser(ctx context.Context, userID string) (*domain.User, error)

	// UpsertUser creates or updates a user record.
	UpsertUser(ctx context.Context, user *domain.User) error

	// UpdateLastSeen updates the last_seen_at timestamp for a user.
	UpdateLastSeen(ctx context.Context, userID string, lastSeen time.Time) error

	// CreateGoal stores a new goal and assigns its ID.
	CreateGoal(ctx context.Context, goal *domain.Goal) error

	// UpdateGoal rewrites what/why/when of an existing goal.
	UpdateGoal(ctx context.Context, goal *domain.Goal) error

	// GetGoal returns a single goal or domain.ErrNotFound.
	GetGoal(ctx context.Context, userID, goalID string) (*domain.Goal, error)

	// GetGoalsForUser lists a user's goals, oldest first.
	GetGoalsForUser(ctx context.Context, userID string) ([]domain.Goal, error)

	// CreateMilestones inserts milestones (and any trackers attached to them)
	// for a goal in one transaction. IDs in the input are treated as local
	// references: depends_on entries naming them are rewritten to the
	// assigned IDs, all other entries must name existing milestones of the
	// goal. The combined graph is rejected with domain.ErrInvalidMilestoneGraph
	// before anything is written.
	CreateMilestones(ctx context.Context, userID, goalID string, milestones []domain.Milestone) ([]domain.Milestone, error)

	// CreateMilestone inserts a single milestone. See CreateMilestones.
	CreateMilestone(ctx context.Context, milestone *domain.Milestone) error

	// UpdateMilestoneStatus changes the status of a milestone.
	UpdateMilestoneStatus(ctx context.Context, userID, milestoneID string, status domain.MilestoneStatus) error

	// GetMilestones lists a goal's milestones with their trackers.
	GetMilestones(ctx context.Context, userID, goalID string) ([]domain.Milestone, error)

	// GetActiveMilestones lists milestones that are not completed, with
	// their trackers. An empty goalID covers every goal of the user.
	GetActiveMilestones(ctx context.Context, userID, goalID string) ([]domain.Milestone, error)

	// CreateTracker attaches a tracker to an existing milestone.
	CreateTracker(ctx context.Context, tracker *domain.Tracker) error

	// GetTracker returns a tracker or domain.ErrNotFound.
	GetTracker(ctx context.Context, userID, trackerID string) (*domain.Tracker, error)

	// LogAndAggregate appends a log entry and folds it into the tracker's
	// aggregate in one transaction.
	LogAndAggregate(ctx context.Context, entry domain.LogEntry) (*domain.AggregateResult, error)

	// LogAndAggregateBatch applies entries in one transaction, all or nothing.
	LogAndAggregateBatch(ctx context.Context, entries []domain.LogEntry) ([]domain.AggregateResult, error)

	// GetHistoryLogs returns up to limit entries for a tracker, newest first.
	GetHistoryLogs(ctx context.Context, userID, trackerID string, limit int) ([]domain.LogEntry, error)

	// GetTrackerLogsSince returns entries at or after since, oldest first.
	GetTrackerLogsSince(ctx context.Context, userID, trackerID string, since time.Time) ([]domain.LogEntry, error)

	// CreateReflection stores a coaching insight.
	CreateReflection(ctx context.Context, reflection *domain.Reflection) error

	// GetRecentReflections returns up to limit reflections, newest first.
	GetRecentReflections(ctx context.Context, userID string, limit int) ([]domain.Reflection, error)

	// SaveDailyPlan stores a confirmed daily plan.
	SaveDailyPlan(ctx context.Context, plan *domain.DailyPlan) error

	// GetLatestDailyPlan returns the most recent plan. Returns nil, nil if none.
	GetLatestDailyPlan(ctx context.Context, userID string) (*domain.DailyPlan, error)

	// GetFullUserState returns the goal -> milestone -> tracker tree.
	GetFullUserState(ctx context.Context, userID string) (*domain.Dashboard, error)

	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}

// StateStore persists conversation state keyed by thread ID.
type StateStore interface {
	// LoadState returns the stored state for a thread. Returns nil, nil if
	// the thread has never been seen.
	LoadState(ctx context.Context, threadID string) (*domain.PlanState, error)

	// SaveState writes the full state, replacing any previous value.
	SaveState(ctx context.Context, state *domain.PlanState) error
}
