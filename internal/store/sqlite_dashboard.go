package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ashureev/goal-architect/internal/domain"
	"golang.org/x/sync/errgroup"
)

// CreateReflection stores a coaching insight.
func (s *SQLiteStore) CreateReflection(ctx context.Context, r *domain.Reflection) error {
	if r.Text == "" {
		return fmt.Errorf("reflection text is required")
	}
	if r.ReflectionID == "" {
		r.ReflectionID = newID()
	}
	r.CreatedAt = s.now()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO reflections (reflection_id, user_id, goal_id, text, created_at) VALUES (?, ?, ?, ?, ?)`,
		r.ReflectionID, r.UserID, r.GoalID, r.Text, r.CreatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("insert reflection: %w", err)
	}
	return nil
}

// GetRecentReflections returns up to limit reflections, newest first.
func (s *SQLiteStore) GetRecentReflections(ctx context.Context, userID string, limit int) ([]domain.Reflection, error) {
	if limit <= 0 {
		limit = 5
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT reflection_id, user_id, goal_id, text, created_at FROM reflections
		 WHERE user_id = ? ORDER BY created_at DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query reflections: %w", err)
	}
	defer closeRows(rows, "reflections")

	out := []domain.Reflection{}
	for rows.Next() {
		var r domain.Reflection
		var createdAt int64
		if err := rows.Scan(&r.ReflectionID, &r.UserID, &r.GoalID, &r.Text, &createdAt); err != nil {
			return nil, fmt.Errorf("scan reflection: %w", err)
		}
		r.CreatedAt = time.Unix(0, createdAt)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reflections: %w", err)
	}
	return out, nil
}

// SaveDailyPlan stores a confirmed daily plan.
func (s *SQLiteStore) SaveDailyPlan(ctx context.Context, plan *domain.DailyPlan) error {
	if err := plan.Validate(); err != nil {
		return err
	}
	if plan.PlanID == "" {
		plan.PlanID = newID()
	}
	plan.CreatedAt = s.now()
	if plan.Date == "" {
		plan.Date = plan.CreatedAt.Format(time.DateOnly)
	}
	blocks, err := json.Marshal(plan.Blocks)
	if err != nil {
		return fmt.Errorf("encode plan blocks: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO daily_plans (plan_id, user_id, goal_id, plan_date, blocks_json, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		plan.PlanID, plan.UserID, plan.GoalID, plan.Date, string(blocks), plan.CreatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("insert daily plan: %w", err)
	}
	return nil
}

// GetLatestDailyPlan returns the most recent plan. Returns nil, nil if none.
func (s *SQLiteStore) GetLatestDailyPlan(ctx context.Context, userID string) (*domain.DailyPlan, error) {
	var p domain.DailyPlan
	var blocks string
	var createdAt int64
	err := s.db.QueryRowContext(ctx,
		`SELECT plan_id, user_id, goal_id, plan_date, blocks_json, created_at FROM daily_plans
		 WHERE user_id = ? ORDER BY created_at DESC LIMIT 1`, userID).
		Scan(&p.PlanID, &p.UserID, &p.GoalID, &p.Date, &blocks, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan daily plan: %w", err)
	}
	if err := json.Unmarshal([]byte(blocks), &p.Blocks); err != nil {
		return nil, fmt.Errorf("decode plan blocks: %w", err)
	}
	p.CreatedAt = time.Unix(0, createdAt)
	return &p, nil
}

// GetFullUserState reads goals, milestones and trackers concurrently and
// joins them into the dashboard tree.
func (s *SQLiteStore) GetFullUserState(ctx context.Context, userID string) (*domain.Dashboard, error) {
	var (
		goals      []domain.Goal
		milestones []domain.Milestone
		trackers   []domain.Tracker
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		goals, err = s.GetGoalsForUser(gctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		milestones, err = queryMilestones(gctx, s.db,
			`SELECT `+milestoneColumns+` FROM milestones WHERE user_id = ? ORDER BY goal_id, position`, userID)
		return err
	})
	g.Go(func() error {
		var err error
		trackers, err = queryTrackers(gctx, s.db,
			`SELECT `+trackerColumns+` FROM trackers WHERE user_id = ? ORDER BY created_at, tracker_id`, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load user state: %w", err)
	}

	byMilestone := groupTrackers(trackers)
	byGoal := make(map[string][]domain.Milestone)
	for _, m := range milestones {
		m.Trackers = byMilestone[m.MilestoneID]
		if m.Trackers == nil {
			m.Trackers = []domain.Tracker{}
		}
		byGoal[m.GoalID] = append(byGoal[m.GoalID], m)
	}

	dash := &domain.Dashboard{UserID: userID, Goals: make([]domain.GoalTree, 0, len(goals))}
	for _, goal := range goals {
		ms := byGoal[goal.GoalID]
		if ms == nil {
			ms = []domain.Milestone{}
		}
		dash.Goals = append(dash.Goals, domain.GoalTree{Goal: goal, Milestones: ms})
	}
	return dash, nil
}
