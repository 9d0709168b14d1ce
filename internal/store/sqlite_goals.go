package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ashureev/goal-architect/internal/domain"
	"github.com/ashureev/goal-architect/internal/shared"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const goalColumns = `goal_id, user_id, what, why, when_text, created_at, updated_at`

func scanGoal(scan func(dest ...any) error) (domain.Goal, error) {
	var g domain.Goal
	var createdAt, updatedAt int64
	if err := scan(&g.GoalID, &g.UserID, &g.What, &g.Why, &g.When, &createdAt, &updatedAt); err != nil {
		return g, err
	}
	g.CreatedAt = time.Unix(createdAt, 0)
	g.UpdatedAt = time.Unix(updatedAt, 0)
	return g, nil
}

// CreateGoal stores a new goal and assigns its ID.
func (s *SQLiteStore) CreateGoal(ctx context.Context, goal *domain.Goal) error {
	if err := goal.Validate(); err != nil {
		return err
	}
	now := s.now()
	if goal.GoalID == "" {
		goal.GoalID = newID()
	}
	goal.CreatedAt = now
	goal.UpdatedAt = now

	query := `INSERT INTO goals (` + goalColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query,
		goal.GoalID, goal.UserID, goal.What, goal.Why, goal.When,
		now.Unix(), now.Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert goal: %w", err)
	}
	return nil
}

// UpdateGoal rewrites what/why/when of an existing goal.
func (s *SQLiteStore) UpdateGoal(ctx context.Context, goal *domain.Goal) error {
	if err := goal.Validate(); err != nil {
		return err
	}
	goal.UpdatedAt = s.now()
	query := `UPDATE goals SET what = ?, why = ?, when_text = ?, updated_at = ? WHERE user_id = ? AND goal_id = ?`
	result, err := s.db.ExecContext(ctx, query,
		goal.What, goal.Why, goal.When, goal.UpdatedAt.Unix(), goal.UserID, goal.GoalID,
	)
	if err != nil {
		return fmt.Errorf("update goal: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("goal %s: %w", goal.GoalID, domain.ErrNotFound)
	}
	return nil
}

// GetGoal returns a single goal or domain.ErrNotFound.
func (s *SQLiteStore) GetGoal(ctx context.Context, userID, goalID string) (*domain.Goal, error) {
	return getGoal(ctx, s.db, userID, goalID)
}

func getGoal(ctx context.Context, q querier, userID, goalID string) (*domain.Goal, error) {
	query := `SELECT ` + goalColumns + ` FROM goals WHERE user_id = ? AND goal_id = ?`
	g, err := scanGoal(q.QueryRowContext(ctx, query, userID, goalID).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("goal %s: %w", goalID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan goal: %w", err)
	}
	return &g, nil
}

// GetGoalsForUser lists a user's goals, oldest first.
func (s *SQLiteStore) GetGoalsForUser(ctx context.Context, userID string) ([]domain.Goal, error) {
	query := `SELECT ` + goalColumns + ` FROM goals WHERE user_id = ? ORDER BY created_at, goal_id`
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query goals: %w", err)
	}
	defer closeRows(rows, "goals")

	goals := []domain.Goal{}
	for rows.Next() {
		g, err := scanGoal(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan goal row: %w", err)
		}
		goals = append(goals, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate goals: %w", err)
	}
	return goals, nil
}

const milestoneColumns = `milestone_id, user_id, goal_id, statement, status, depends_on, created_at, updated_at`

func scanMilestone(scan func(dest ...any) error) (domain.Milestone, error) {
	var m domain.Milestone
	var dependsOn string
	var createdAt, updatedAt int64
	if err := scan(&m.MilestoneID, &m.UserID, &m.GoalID, &m.Statement, &m.Status,
		&dependsOn, &createdAt, &updatedAt); err != nil {
		return m, err
	}
	if err := json.Unmarshal([]byte(dependsOn), &m.DependsOn); err != nil {
		return m, fmt.Errorf("decode depends_on of %s: %w", m.MilestoneID, err)
	}
	if m.DependsOn == nil {
		m.DependsOn = []string{}
	}
	m.CreatedAt = time.Unix(createdAt, 0)
	m.UpdatedAt = time.Unix(updatedAt, 0)
	return m, nil
}

func queryMilestones(ctx context.Context, q querier, query string, args ...any) ([]domain.Milestone, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query milestones: %w", err)
	}
	defer closeRows(rows, "milestones")

	out := []domain.Milestone{}
	for rows.Next() {
		m, err := scanMilestone(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan milestone row: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate milestones: %w", err)
	}
	return out, nil
}

// CreateMilestone inserts a single milestone. See CreateMilestones.
func (s *SQLiteStore) CreateMilestone(ctx context.Context, milestone *domain.Milestone) error {
	created, err := s.CreateMilestones(ctx, milestone.UserID, milestone.GoalID, []domain.Milestone{*milestone})
	if err != nil {
		return err
	}
	*milestone = created[0]
	return nil
}

// CreateMilestones inserts milestones and their trackers for a goal in one
// transaction after validating the combined dependency graph.
func (s *SQLiteStore) CreateMilestones(ctx context.Context, userID, goalID string, milestones []domain.Milestone) ([]domain.Milestone, error) {
	if len(milestones) == 0 {
		return []domain.Milestone{}, nil
	}

	var created []domain.Milestone
	err := shared.RetryOnConflict(ctx, "create_milestones", conflictRetries, func() error {
		var err error
		created, err = s.createMilestonesOnce(ctx, userID, goalID, milestones)
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *SQLiteStore) createMilestonesOnce(ctx context.Context, userID, goalID string, input []domain.Milestone) ([]domain.Milestone, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer rollback(tx)

	if _, err := getGoal(ctx, tx, userID, goalID); err != nil {
		return nil, err
	}

	existing, err := queryMilestones(ctx, tx,
		`SELECT `+milestoneColumns+` FROM milestones WHERE user_id = ? AND goal_id = ?`, userID, goalID)
	if err != nil {
		return nil, err
	}

	var position int
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(position), -1) + 1 FROM milestones WHERE user_id = ? AND goal_id = ?`,
		userID, goalID).Scan(&position); err != nil {
		return nil, fmt.Errorf("next milestone position: %w", err)
	}

	// Input IDs are local references; map them to fresh IDs.
	assigned := make(map[string]string, len(input))
	for _, m := range input {
		if m.MilestoneID == "" {
			continue
		}
		if _, dup := assigned[m.MilestoneID]; dup {
			return nil, fmt.Errorf("%w: duplicate milestone %q", domain.ErrInvalidMilestoneGraph, m.MilestoneID)
		}
		assigned[m.MilestoneID] = newID()
	}

	now := s.now()
	created := make([]domain.Milestone, 0, len(input))
	for _, m := range input {
		id, ok := assigned[m.MilestoneID]
		if !ok {
			id = newID()
		}
		deps := make([]string, 0, len(m.DependsOn))
		for _, dep := range m.DependsOn {
			if mapped, ok := assigned[dep]; ok {
				dep = mapped
			}
			deps = append(deps, dep)
		}
		status := m.Status
		if status == "" {
			status = domain.MilestonePending
		}
		if !status.Valid() {
			return nil, fmt.Errorf("%w: unknown status %q", domain.ErrInvalidMilestoneGraph, status)
		}
		if strings.TrimSpace(m.Statement) == "" {
			return nil, fmt.Errorf("%w: milestone statement is required", domain.ErrInvalidMilestoneGraph)
		}
		created = append(created, domain.Milestone{
			UserID:      userID,
			GoalID:      goalID,
			MilestoneID: id,
			Statement:   m.Statement,
			Status:      status,
			DependsOn:   deps,
			Trackers:    m.Trackers,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
	}

	graph := make([]domain.Milestone, 0, len(existing)+len(created))
	graph = append(graph, existing...)
	graph = append(graph, created...)
	if _, err := domain.ValidateMilestoneGraph(graph); err != nil {
		return nil, err
	}

	for i := range created {
		m := &created[i]
		deps, err := json.Marshal(m.DependsOn)
		if err != nil {
			return nil, fmt.Errorf("encode depends_on: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO milestones (milestone_id, user_id, goal_id, statement, status, depends_on, position, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			m.MilestoneID, userID, goalID, m.Statement, m.Status, string(deps),
			position+i, now.Unix(), now.Unix(),
		)
		if err != nil {
			return nil, fmt.Errorf("insert milestone: %w", err)
		}

		trackers := make([]domain.Tracker, 0, len(m.Trackers))
		for _, t := range m.Trackers {
			t.UserID = userID
			t.MilestoneID = m.MilestoneID
			t.TrackerID = ""
			if err := insertTracker(ctx, tx, &t, now); err != nil {
				return nil, err
			}
			trackers = append(trackers, t)
		}
		m.Trackers = trackers
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit milestones: %w", err)
	}
	return created, nil
}

// UpdateMilestoneStatus changes the status of a milestone.
func (s *SQLiteStore) UpdateMilestoneStatus(ctx context.Context, userID, milestoneID string, status domain.MilestoneStatus) error {
	if !status.Valid() {
		return fmt.Errorf("%w: unknown status %q", domain.ErrInvalidMilestoneGraph, status)
	}
	result, err := s.db.ExecContext(ctx,
		`UPDATE milestones SET status = ?, updated_at = ? WHERE user_id = ? AND milestone_id = ?`,
		status, s.now().Unix(), userID, milestoneID)
	if err != nil {
		return fmt.Errorf("update milestone status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("milestone %s: %w", milestoneID, domain.ErrNotFound)
	}
	return nil
}

// GetMilestones lists a goal's milestones with their trackers.
func (s *SQLiteStore) GetMilestones(ctx context.Context, userID, goalID string) ([]domain.Milestone, error) {
	ms, err := queryMilestones(ctx, s.db,
		`SELECT `+milestoneColumns+` FROM milestones WHERE user_id = ? AND goal_id = ? ORDER BY position`,
		userID, goalID)
	if err != nil {
		return nil, err
	}
	return s.attachTrackers(ctx, userID, ms)
}

// GetActiveMilestones lists milestones that are not completed.
func (s *SQLiteStore) GetActiveMilestones(ctx context.Context, userID, goalID string) ([]domain.Milestone, error) {
	query := `SELECT ` + milestoneColumns + ` FROM milestones WHERE user_id = ? AND status != ?`
	args := []any{userID, domain.MilestoneCompleted}
	if goalID != "" {
		query += ` AND goal_id = ?`
		args = append(args, goalID)
	}
	query += ` ORDER BY goal_id, position`

	ms, err := queryMilestones(ctx, s.db, query, args...)
	if err != nil {
		return nil, err
	}
	return s.attachTrackers(ctx, userID, ms)
}

func (s *SQLiteStore) attachTrackers(ctx context.Context, userID string, ms []domain.Milestone) ([]domain.Milestone, error) {
	if len(ms) == 0 {
		return ms, nil
	}
	trackers, err := queryTrackers(ctx, s.db,
		`SELECT `+trackerColumns+` FROM trackers WHERE user_id = ? ORDER BY created_at, tracker_id`, userID)
	if err != nil {
		return nil, err
	}
	byMilestone := groupTrackers(trackers)
	for i := range ms {
		ms[i].Trackers = byMilestone[ms[i].MilestoneID]
	}
	return ms, nil
}

func groupTrackers(trackers []domain.Tracker) map[string][]domain.Tracker {
	out := make(map[string][]domain.Tracker)
	for _, t := range trackers {
		out[t.MilestoneID] = append(out[t.MilestoneID], t)
	}
	return out
}
