// Package shared holds the SQLite conflict detection and retry helpers used
// by the store.
package shared

import (
	"errors"
	"fmt"
	"strings"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// resultCode returns the primary SQLite result code carried by err, or 0
// when err did not come from the driver. Extended codes are masked down.
func resultCode(err error) int {
	var se *sqlite.Error
	if errors.As(err, &se) {
		return se.Code() & 0xff
	}
	return 0
}

// IsSQLiteBusyError reports SQLITE_BUSY: another connection held the write
// lock past busy_timeout.
func IsSQLiteBusyError(err error) bool {
	if err == nil {
		return false
	}
	return resultCode(err) == sqlite3.SQLITE_BUSY || strings.Contains(err.Error(), "SQLITE_BUSY")
}

// IsSQLiteLockedError reports SQLITE_LOCKED or a "database is locked"
// message, which some driver paths return without a code.
func IsSQLiteLockedError(err error) bool {
	if err == nil {
		return false
	}
	return resultCode(err) == sqlite3.SQLITE_LOCKED || strings.Contains(err.Error(), "database is locked")
}

// IsSQLiteConflictError reports whether err is a lock conflict that is
// worth retrying.
func IsSQLiteConflictError(err error) bool {
	return IsSQLiteBusyError(err) || IsSQLiteLockedError(err)
}

// ConflictError wraps an error that survived every retry.
func ConflictError(op string, err error) error {
	return fmt.Errorf("%s: gave up after lock conflicts: %w", op, err)
}
