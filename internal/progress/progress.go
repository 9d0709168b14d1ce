// Package progress derives window and streak completion for trackers from
// their log history.
package progress

import (
	"math"
	"time"

	"github.com/ashureev/goal-architect/internal/domain"
)

// maxWindows bounds how far back evaluation walks.
const maxWindows = 3660

// Window is the aggregate of one evaluation window [Start, End).
type Window struct {
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Value     float64   `json:"value"`
	LogCount  int       `json:"log_count"`
	Satisfied bool      `json:"satisfied"`
	Current   bool      `json:"current"`
}

// Evaluation summarizes a tracker's progress toward completion.
type Evaluation struct {
	TrackerID        string                     `json:"tracker_id"`
	Strategy         domain.AggregationStrategy `json:"aggregation_strategy"`
	CurrentValue     float64                    `json:"current_value"`
	InRange          bool                       `json:"in_range"`
	Windows          []Window                   `json:"windows,omitempty"`
	SatisfiedWindows int                        `json:"satisfied_windows"`
	Streak           int                        `json:"streak"`
	RequiredWindows  int                        `json:"required_windows,omitempty"`
	Complete         bool                       `json:"complete"`
}

// Evaluate computes progress of t as of now. logs may be in any order and
// may include entries of other trackers, which are ignored.
//
// Trackers without a window complete once their aggregate is within range.
// Windowed trackers are split into consecutive windows of WindowNumDays
// days starting at the day the tracker was created (or its earliest log if
// that is older). A window is satisfied when it has at least one log and:
// for ALL every log is within range, for ONE-TIME any log is, and for the
// other strategies the window aggregate is. The streak counts consecutive
// satisfied windows ending at the latest one; an unsatisfied current window
// does not break it since it is still open.
func Evaluate(t domain.Tracker, logs []domain.LogEntry, now time.Time) Evaluation {
	ev := Evaluation{
		TrackerID:    t.TrackerID,
		Strategy:     t.Strategy,
		CurrentValue: t.CurrentValue,
		InRange:      t.LastLogDate != nil && t.TargetRange.Contains(t.CurrentValue),
	}

	if t.WindowNumDays == nil || *t.WindowNumDays <= 0 {
		ev.Complete = ev.InRange
		return ev
	}

	own := make([]domain.LogEntry, 0, len(logs))
	for _, l := range logs {
		if l.TrackerID == t.TrackerID {
			own = append(own, l)
		}
	}

	span := time.Duration(*t.WindowNumDays) * 24 * time.Hour
	anchor := t.CreatedAt
	for _, l := range own {
		if anchor.IsZero() || l.Timestamp.Before(anchor) {
			anchor = l.Timestamp
		}
	}
	if anchor.IsZero() {
		anchor = now
	}
	anchor = startOfDay(anchor)

	for start := anchor; !start.After(now) && len(ev.Windows) < maxWindows; start = start.Add(span) {
		end := start.Add(span)
		w := evaluateWindow(t, own, start, end)
		w.Current = now.Before(end)
		ev.Windows = append(ev.Windows, w)
		if w.Satisfied {
			ev.SatisfiedWindows++
		}
	}

	for i := len(ev.Windows) - 1; i >= 0; i-- {
		w := ev.Windows[i]
		if w.Satisfied {
			ev.Streak++
			continue
		}
		if w.Current {
			continue
		}
		break
	}

	if t.NumWindowsToCompletion != nil {
		ev.RequiredWindows = *t.NumWindowsToCompletion
		ev.Complete = ev.Streak >= ev.RequiredWindows
	}
	return ev
}

func evaluateWindow(t domain.Tracker, logs []domain.LogEntry, start, end time.Time) Window {
	w := Window{Start: start, End: end}

	var sum float64
	lo, hi := math.Inf(1), math.Inf(-1)
	var latest time.Time
	allIn, anyIn := true, false

	for _, l := range logs {
		if l.Timestamp.Before(start) || !l.Timestamp.Before(end) {
			continue
		}
		w.LogCount++
		sum += l.Value
		lo = math.Min(lo, l.Value)
		hi = math.Max(hi, l.Value)
		if !l.Timestamp.Before(latest) {
			latest = l.Timestamp
			if t.Strategy.Policy() == domain.PolicyLatest {
				w.Value = l.Value
			}
		}
		in := t.TargetRange.Contains(l.Value)
		allIn = allIn && in
		anyIn = anyIn || in
	}
	if w.LogCount == 0 {
		return w
	}

	switch t.Strategy {
	case domain.StrategySum:
		w.Value = sum
	case domain.StrategyMin:
		w.Value = lo
	case domain.StrategyMax:
		w.Value = hi
	case domain.StrategyMean:
		w.Value = sum / float64(w.LogCount)
	}

	switch t.Strategy {
	case domain.StrategyAll:
		w.Satisfied = allIn
	case domain.StrategyOneTime:
		w.Satisfied = anyIn
	default:
		w.Satisfied = t.TargetRange.Contains(w.Value)
	}
	return w
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
