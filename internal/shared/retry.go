package shared

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryOnConflict runs op and retries it with exponential backoff while it
// fails with SQLITE_BUSY or "database is locked". Any other error is
// returned immediately.
func RetryOnConflict(ctx context.Context, name string, maxRetries uint64, op func() error) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 50 * time.Millisecond
	policy.Multiplier = 2
	policy.MaxInterval = time.Second
	policy.MaxElapsedTime = 10 * time.Second

	attempt := 0
	err := backoff.RetryNotify(func() error {
		attempt++
		err := op()
		if err == nil {
			return nil
		}
		if !IsSQLiteConflictError(err) {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(backoff.WithMaxRetries(policy, maxRetries), ctx), func(err error, delay time.Duration) {
		slog.Debug("SQLite conflict, retrying", "op", name, "attempt", attempt, "delay", delay, "error", err)
	})
	if IsSQLiteConflictError(err) {
		return ConflictError(name, err)
	}
	return err
}
