package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ashureev/goal-architect/internal/domain"
	"github.com/ashureev/goal-architect/internal/shared"
)

// LoadState returns the stored state for a thread, or nil, nil.
func (s *SQLiteStore) LoadState(ctx context.Context, threadID string) (*domain.PlanState, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT state_json FROM plan_states WHERE thread_id = ?`, threadID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load plan state: %w", err)
	}

	var state domain.PlanState
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		return nil, fmt.Errorf("decode plan state %s: %w", threadID, err)
	}
	return &state, nil
}

// SaveState writes the full state, replacing any previous value.
func (s *SQLiteStore) SaveState(ctx context.Context, state *domain.PlanState) error {
	if state.ThreadID == "" {
		return fmt.Errorf("save plan state: thread_id is required")
	}
	now := s.now().UTC()
	if state.CreatedAt.IsZero() {
		state.CreatedAt = now
	}
	state.UpdatedAt = now

	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode plan state: %w", err)
	}

	query := `
	INSERT INTO plan_states (thread_id, user_id, stage, state_json, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(thread_id) DO UPDATE SET
		stage = excluded.stage,
		state_json = excluded.state_json,
		updated_at = excluded.updated_at`

	return shared.RetryOnConflict(ctx, "save_state", conflictRetries, func() error {
		_, err := s.db.ExecContext(ctx, query,
			state.ThreadID, state.UserID, string(state.Stage), string(raw),
			state.CreatedAt.Unix(), now.Unix())
		if err != nil {
			return fmt.Errorf("upsert plan state: %w", err)
		}
		return nil
	})
}
