package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ashureev/goal-architect/internal/domain"
)

const trackerColumns = `tracker_id, user_id, milestone_id, log_prompt, unit, aggregation_strategy,
	target_min, target_max, window_num_days, num_windows_to_completion,
	current_value, log_count, last_log_date, created_at, updated_at`

func scanTracker(scan func(dest ...any) error) (domain.Tracker, error) {
	var t domain.Tracker
	var strategy string
	var targetMin, targetMax sql.NullFloat64
	var window, windows, lastLog sql.NullInt64
	var createdAt, updatedAt int64
	if err := scan(&t.TrackerID, &t.UserID, &t.MilestoneID, &t.LogPrompt, &t.Unit, &strategy,
		&targetMin, &targetMax, &window, &windows,
		&t.CurrentValue, &t.LogCount, &lastLog, &createdAt, &updatedAt); err != nil {
		return t, err
	}
	t.Strategy = domain.AggregationStrategy(strategy)
	t.TargetRange = domain.TargetRange{Min: floatPtr(targetMin), Max: floatPtr(targetMax)}
	t.WindowNumDays = intPtr(window)
	t.NumWindowsToCompletion = intPtr(windows)
	t.LastLogDate = timePtr(lastLog)
	t.CreatedAt = time.Unix(createdAt, 0)
	t.UpdatedAt = time.Unix(updatedAt, 0)
	return t, nil
}

func queryTrackers(ctx context.Context, q querier, query string, args ...any) ([]domain.Tracker, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query trackers: %w", err)
	}
	defer closeRows(rows, "trackers")

	out := []domain.Tracker{}
	for rows.Next() {
		t, err := scanTracker(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan tracker row: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trackers: %w", err)
	}
	return out, nil
}

func insertTracker(ctx context.Context, q querier, t *domain.Tracker, now time.Time) error {
	if err := t.Validate(); err != nil {
		return err
	}
	if t.TrackerID == "" {
		t.TrackerID = newID()
	}
	t.CurrentValue = 0
	t.LogCount = 0
	t.LastLogDate = nil
	t.CreatedAt = now
	t.UpdatedAt = now

	_, err := q.ExecContext(ctx, `
		INSERT INTO trackers (`+trackerColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, 0, NULL, ?, ?)`,
		t.TrackerID, t.UserID, t.MilestoneID, t.LogPrompt, t.Unit, string(t.Strategy),
		nullFloat(t.TargetRange.Min), nullFloat(t.TargetRange.Max),
		nullInt(t.WindowNumDays), nullInt(t.NumWindowsToCompletion),
		now.Unix(), now.Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert tracker: %w", err)
	}
	return nil
}

// CreateTracker attaches a tracker to an existing milestone.
func (s *SQLiteStore) CreateTracker(ctx context.Context, tracker *domain.Tracker) error {
	if err := tracker.Validate(); err != nil {
		return err
	}

	var exists int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM milestones WHERE user_id = ? AND milestone_id = ?`,
		tracker.UserID, tracker.MilestoneID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("milestone %s: %w", tracker.MilestoneID, domain.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("lookup milestone: %w", err)
	}

	return insertTracker(ctx, s.db, tracker, s.now())
}

// GetTracker returns a tracker or domain.ErrNotFound.
func (s *SQLiteStore) GetTracker(ctx context.Context, userID, trackerID string) (*domain.Tracker, error) {
	query := `SELECT ` + trackerColumns + ` FROM trackers WHERE user_id = ? AND tracker_id = ?`
	t, err := scanTracker(s.db.QueryRowContext(ctx, query, userID, trackerID).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("tracker %s: %w", trackerID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan tracker: %w", err)
	}
	return &t, nil
}
