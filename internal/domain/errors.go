package domain

import "errors"

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidGoal is returned when a goal is missing required fields.
	ErrInvalidGoal = errors.New("invalid goal")

	// ErrInvalidMilestoneGraph is returned when milestone dependencies
	// reference unknown milestones or form a cycle.
	ErrInvalidMilestoneGraph = errors.New("invalid milestone dependency graph")

	// ErrInvalidTracker is returned when a tracker definition is inconsistent.
	ErrInvalidTracker = errors.New("invalid tracker")

	// ErrInvalidLogEntry is returned for log entries without a tracker or timestamp.
	ErrInvalidLogEntry = errors.New("invalid log entry")

	// ErrInvalidPlan is returned for daily plans with empty or overlapping blocks.
	ErrInvalidPlan = errors.New("invalid daily plan")
)

// IsValidation reports whether err was caused by rejected domain input
// rather than a storage failure.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidGoal) ||
		errors.Is(err, ErrInvalidMilestoneGraph) ||
		errors.Is(err, ErrInvalidTracker) ||
		errors.Is(err, ErrInvalidLogEntry) ||
		errors.Is(err, ErrInvalidPlan)
}
