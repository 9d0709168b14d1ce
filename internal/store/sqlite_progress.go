package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ashureev/goal-architect/internal/domain"
	"github.com/ashureev/goal-architect/internal/shared"
)

// defaultHistoryLimit is used when callers pass a non-positive limit.
const defaultHistoryLimit = 30

// LogAndAggregate appends entry to the tracker's history and folds it into
// the aggregate in a single transaction.
//
// SUM adds atomically and always moves last_log_date to the entry's
// timestamp. MIN, MAX and MEAN fold order-independently. ALL and ONE-TIME
// are point-in-time: the aggregate is overwritten only when the tracker has
// no prior log or its last log is strictly older than the entry. When that
// condition fails the history record is still written and Applied is false.
func (s *SQLiteStore) LogAndAggregate(ctx context.Context, entry domain.LogEntry) (*domain.AggregateResult, error) {
	if err := entry.Validate(); err != nil {
		return nil, err
	}

	results, err := s.logAndAggregateTx(ctx, "log_and_aggregate", []domain.LogEntry{entry})
	if err != nil {
		return nil, err
	}
	return &results[0], nil
}

// LogAndAggregateBatch applies entries in order inside one transaction. Either
// every entry is recorded and folded or none is, so a failed batch can be
// retried without double counting.
func (s *SQLiteStore) LogAndAggregateBatch(ctx context.Context, entries []domain.LogEntry) ([]domain.AggregateResult, error) {
	for _, e := range entries {
		if err := e.Validate(); err != nil {
			return nil, err
		}
	}
	if len(entries) == 0 {
		return nil, nil
	}
	return s.logAndAggregateTx(ctx, "log_and_aggregate_batch", entries)
}

func (s *SQLiteStore) logAndAggregateTx(ctx context.Context, name string, entries []domain.LogEntry) ([]domain.AggregateResult, error) {
	var results []domain.AggregateResult
	err := shared.RetryOnConflict(ctx, name, conflictRetries, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}
		defer rollback(tx)

		out := make([]domain.AggregateResult, 0, len(entries))
		for _, e := range entries {
			res, err := s.applyLog(ctx, tx, e)
			if err != nil {
				return err
			}
			out = append(out, *res)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit tracker log: %w", err)
		}
		results = out
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// applyLog records one entry and folds it into the aggregate within tx.
func (s *SQLiteStore) applyLog(ctx context.Context, tx *sql.Tx, entry domain.LogEntry) (*domain.AggregateResult, error) {
	var strategyText string
	err := tx.QueryRowContext(ctx,
		`SELECT aggregation_strategy FROM trackers WHERE user_id = ? AND tracker_id = ?`,
		entry.UserID, entry.TrackerID).Scan(&strategyText)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("tracker %s: %w", entry.TrackerID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("lookup tracker: %w", err)
	}
	strategy, err := domain.ParseAggregationStrategy(strategyText)
	if err != nil {
		return nil, err
	}

	ts := entry.Timestamp.UTC().UnixNano()
	updated := s.now().Unix()
	key := []any{entry.UserID, entry.TrackerID}

	var query string
	var args []any
	switch strategy.Policy() {
	case domain.PolicyAccumulate:
		query = `UPDATE trackers SET
			current_value = current_value + ?,
			log_count = log_count + 1,
			last_log_date = ?,
			updated_at = ?
			WHERE user_id = ? AND tracker_id = ?`
		args = append([]any{entry.Value, ts, updated}, key...)

	case domain.PolicyExtremum:
		fold := "MIN"
		if strategy == domain.StrategyMax {
			fold = "MAX"
		}
		query = `UPDATE trackers SET
			current_value = CASE WHEN log_count = 0 THEN ? ELSE ` + fold + `(current_value, ?) END,
			log_count = log_count + 1,
			last_log_date = MAX(COALESCE(last_log_date, ?), ?),
			updated_at = ?
			WHERE user_id = ? AND tracker_id = ?`
		args = append([]any{entry.Value, entry.Value, ts, ts, updated}, key...)

	case domain.PolicyRunningMean:
		query = `UPDATE trackers SET
			current_value = (current_value * log_count + ?) / (log_count + 1),
			log_count = log_count + 1,
			last_log_date = MAX(COALESCE(last_log_date, ?), ?),
			updated_at = ?
			WHERE user_id = ? AND tracker_id = ?`
		args = append([]any{entry.Value, ts, ts, updated}, key...)

	default:
		query = `UPDATE trackers SET
			current_value = ?,
			log_count = log_count + 1,
			last_log_date = ?,
			updated_at = ?
			WHERE user_id = ? AND tracker_id = ?
			AND (last_log_date IS NULL OR last_log_date < ?)`
		args = append(append([]any{entry.Value, ts, updated}, key...), ts)
	}

	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("update tracker aggregate: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("get rows affected: %w", err)
	}
	applied := rows > 0

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO tracker_logs (user_id, tracker_id, ts, value) VALUES (?, ?, ?, ?)`,
		entry.UserID, entry.TrackerID, ts, entry.Value); err != nil {
		return nil, fmt.Errorf("insert tracker log: %w", err)
	}

	result := &domain.AggregateResult{
		TrackerID: entry.TrackerID,
		Strategy:  strategy,
		Applied:   applied,
	}
	var lastLog sql.NullInt64
	if err := tx.QueryRowContext(ctx,
		`SELECT current_value, last_log_date FROM trackers WHERE user_id = ? AND tracker_id = ?`,
		key...).Scan(&result.CurrentValue, &lastLog); err != nil {
		return nil, fmt.Errorf("read tracker aggregate: %w", err)
	}
	result.LastLogDate = timePtr(lastLog)
	return result, nil
}

// GetHistoryLogs returns up to limit entries for a tracker, newest first.
func (s *SQLiteStore) GetHistoryLogs(ctx context.Context, userID, trackerID string, limit int) ([]domain.LogEntry, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	return s.queryLogs(ctx,
		`SELECT user_id, tracker_id, ts, value FROM tracker_logs
		 WHERE user_id = ? AND tracker_id = ? ORDER BY ts DESC, log_id DESC LIMIT ?`,
		userID, trackerID, limit)
}

// GetTrackerLogsSince returns entries at or after since, oldest first.
func (s *SQLiteStore) GetTrackerLogsSince(ctx context.Context, userID, trackerID string, since time.Time) ([]domain.LogEntry, error) {
	return s.queryLogs(ctx,
		`SELECT user_id, tracker_id, ts, value FROM tracker_logs
		 WHERE user_id = ? AND tracker_id = ? AND ts >= ? ORDER BY ts, log_id`,
		userID, trackerID, since.UTC().UnixNano())
}

func (s *SQLiteStore) queryLogs(ctx context.Context, query string, args ...any) ([]domain.LogEntry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query tracker logs: %w", err)
	}
	defer closeRows(rows, "tracker_logs")

	logs := []domain.LogEntry{}
	for rows.Next() {
		var e domain.LogEntry
		var ts int64
		if err := rows.Scan(&e.UserID, &e.TrackerID, &ts, &e.Value); err != nil {
			return nil, fmt.Errorf("scan tracker log: %w", err)
		}
		e.Timestamp = time.Unix(0, ts).UTC()
		logs = append(logs, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tracker logs: %w", err)
	}
	return logs, nil
}
