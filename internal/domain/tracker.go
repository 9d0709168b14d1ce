package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// AggregationStrategy defines how log entries fold into a tracker's value.
type AggregationStrategy string

const (
	// StrategySum accumulates every logged value.
	StrategySum AggregationStrategy = "SUM"
	// StrategyAll requires every log in a window to be within range; the
	// tracker value reflects the most recent log.
	StrategyAll AggregationStrategy = "ALL"
	// StrategyMin keeps the smallest logged value.
	StrategyMin AggregationStrategy = "MIN"
	// StrategyMax keeps the largest logged value.
	StrategyMax AggregationStrategy = "MAX"
	// StrategyMean keeps the running mean of logged values.
	StrategyMean AggregationStrategy = "MEAN"
	// StrategyOneTime records a single achievement; the latest log wins.
	StrategyOneTime AggregationStrategy = "ONE-TIME"
)

// IngestPolicy is the write discipline used when a log entry arrives.
type IngestPolicy int

const (
	// PolicyAccumulate applies an atomic increment. Order independent.
	PolicyAccumulate IngestPolicy = iota
	// PolicyExtremum keeps the min or max. Order independent.
	PolicyExtremum
	// PolicyRunningMean folds into a running mean. Order independent.
	PolicyRunningMean
	// PolicyLatest overwrites only when the entry is newer than the last one.
	PolicyLatest
)

// ParseAggregationStrategy normalizes s and rejects unknown strategies.
func ParseAggregationStrategy(s string) (AggregationStrategy, error) {
	norm := AggregationStrategy(strings.ToUpper(strings.TrimSpace(s)))
	switch norm {
	case StrategySum, StrategyAll, StrategyMin, StrategyMax, StrategyMean, StrategyOneTime:
		return norm, nil
	case "ONE_TIME", "ONETIME":
		return StrategyOneTime, nil
	}
	return "", fmt.Errorf("%w: unknown aggregation strategy %q", ErrInvalidTracker, s)
}

// Policy returns the ingestion discipline for the strategy.
func (a AggregationStrategy) Policy() IngestPolicy {
	switch a {
	case StrategySum:
		return PolicyAccumulate
	case StrategyMin, StrategyMax:
		return PolicyExtremum
	case StrategyMean:
		return PolicyRunningMean
	default:
		return PolicyLatest
	}
}

// UnmarshalJSON rejects unknown strategies at decode time.
func (a *AggregationStrategy) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("%w: aggregation_strategy must be a string", ErrInvalidTracker)
	}
	parsed, err := ParseAggregationStrategy(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// TargetRange is an inclusive [min, max] range where either bound may be
// open. It is encoded as a two element JSON array with null for open bounds.
type TargetRange struct {
	Min *float64
	Max *float64
}

// Contains reports whether v lies within the range.
func (r TargetRange) Contains(v float64) bool {
	if r.Min != nil && v < *r.Min {
		return false
	}
	if r.Max != nil && v > *r.Max {
		return false
	}
	return true
}

// MarshalJSON encodes the range as [min|null, max|null].
func (r TargetRange) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]*float64{r.Min, r.Max})
}

// UnmarshalJSON decodes [min|null, max|null]. A JSON null yields an open range.
func (r *TargetRange) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*r = TargetRange{}
		return nil
	}
	var pair []*float64
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("%w: target_range must be [min, max]", ErrInvalidTracker)
	}
	if len(pair) != 2 {
		return fmt.Errorf("%w: target_range must have two bounds", ErrInvalidTracker)
	}
	*r = TargetRange{Min: pair[0], Max: pair[1]}
	return nil
}

// Tracker is a measurable signal attached to a milestone.
type Tracker struct {
	UserID                 string              `json:"user_id"`
	MilestoneID            string              `json:"milestone_id"`
	TrackerID              string              `json:"tracker_id"`
	LogPrompt              string              `json:"log_prompt"`
	Unit                   string              `json:"unit"`
	Strategy               AggregationStrategy `json:"aggregation_strategy"`
	TargetRange            TargetRange         `json:"target_range"`
	WindowNumDays          *int                `json:"window_num_days"`
	NumWindowsToCompletion *int                `json:"num_windows_to_completion"`
	CurrentValue           float64             `json:"current_value"`
	LogCount               int64               `json:"log_count"`
	LastLogDate            *time.Time          `json:"last_log_date"`
	CreatedAt              time.Time           `json:"created_at"`
	UpdatedAt              time.Time           `json:"updated_at"`
}

// Validate checks the tracker definition.
func (t *Tracker) Validate() error {
	if t.MilestoneID == "" {
		return fmt.Errorf("%w: milestone_id is required", ErrInvalidTracker)
	}
	if _, err := ParseAggregationStrategy(string(t.Strategy)); err != nil {
		return err
	}
	r := t.TargetRange
	if r.Min != nil && r.Max != nil && *r.Min > *r.Max {
		return fmt.Errorf("%w: target_range min exceeds max", ErrInvalidTracker)
	}
	if t.WindowNumDays != nil && *t.WindowNumDays <= 0 {
		return fmt.Errorf("%w: window_num_days must be positive", ErrInvalidTracker)
	}
	if t.NumWindowsToCompletion != nil {
		if t.WindowNumDays == nil {
			return fmt.Errorf("%w: num_windows_to_completion requires window_num_days", ErrInvalidTracker)
		}
		if *t.NumWindowsToCompletion <= 0 {
			return fmt.Errorf("%w: num_windows_to_completion must be positive", ErrInvalidTracker)
		}
	}
	return nil
}

// LogEntry is an immutable progress observation.
type LogEntry struct {
	UserID    string    `json:"user_id"`
	TrackerID string    `json:"tracker_id"`
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// Validate checks that the entry can be ingested.
func (e *LogEntry) Validate() error {
	if e.TrackerID == "" {
		return fmt.Errorf("%w: tracker_id is required", ErrInvalidLogEntry)
	}
	if e.Timestamp.IsZero() {
		return fmt.Errorf("%w: timestamp is required", ErrInvalidLogEntry)
	}
	return nil
}

// AggregateResult reports the outcome of ingesting a log entry.
type AggregateResult struct {
	TrackerID    string              `json:"tracker_id"`
	Strategy     AggregationStrategy `json:"aggregation_strategy"`
	CurrentValue float64             `json:"current_value"`
	LastLogDate  *time.Time          `json:"last_log_date"`
	// Applied is false when a point-in-time write lost to a newer entry and
	// only the history record was written.
	Applied bool `json:"applied"`
}
