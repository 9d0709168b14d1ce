package agent

import (
	"context"
	"time"

	"github.com/ashureev/goal-architect/internal/domain"
	"github.com/ashureev/goal-architect/internal/store"
)

// Repository is the part of the domain store the stages read and write.
type Repository interface {
	CreateGoal(ctx context.Context, goal *domain.Goal) error
	GetGoal(ctx context.Context, userID, goalID string) (*domain.Goal, error)
	GetGoalsForUser(ctx context.Context, userID string) ([]domain.Goal, error)
	CreateMilestones(ctx context.Context, userID, goalID string, milestones []domain.Milestone) ([]domain.Milestone, error)
	GetMilestones(ctx context.Context, userID, goalID string) ([]domain.Milestone, error)
	GetActiveMilestones(ctx context.Context, userID, goalID string) ([]domain.Milestone, error)
	GetTracker(ctx context.Context, userID, trackerID string) (*domain.Tracker, error)
	LogAndAggregate(ctx context.Context, entry domain.LogEntry) (*domain.AggregateResult, error)
	LogAndAggregateBatch(ctx context.Context, entries []domain.LogEntry) ([]domain.AggregateResult, error)
	GetTrackerLogsSince(ctx context.Context, userID, trackerID string, since time.Time) ([]domain.LogEntry, error)
	CreateReflection(ctx context.Context, reflection *domain.Reflection) error
	GetRecentReflections(ctx context.Context, userID string, limit int) ([]domain.Reflection, error)
	SaveDailyPlan(ctx context.Context, plan *domain.DailyPlan) error
	GetLatestDailyPlan(ctx context.Context, userID string) (*domain.DailyPlan, error)
}

var _ Repository = (store.Repository)(nil)
