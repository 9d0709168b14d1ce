package progress

import (
	"testing"
	"time"

	"github.com/ashureev/goal-architect/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func day(d int, hour int) time.Time {
	return time.Date(2026, 3, d, hour, 0, 0, 0, time.UTC)
}

func logAt(id string, ts time.Time, v float64) domain.LogEntry {
	return domain.LogEntry{TrackerID: id, Timestamp: ts, Value: v}
}

func TestEvaluateUnboundedTracker(t *testing.T) {
	t.Parallel()

	last := day(2, 10)
	tr := domain.Tracker{
		TrackerID:    "t1",
		Strategy:     domain.StrategyOneTime,
		TargetRange:  domain.TargetRange{Min: ptr(1.0)},
		CurrentValue: 1,
		LastLogDate:  &last,
	}
	ev := Evaluate(tr, nil, day(3, 0))
	assert.True(t, ev.InRange)
	assert.True(t, ev.Complete)
	assert.Empty(t, ev.Windows)

	tr.LastLogDate = nil
	tr.CurrentValue = 0
	ev = Evaluate(tr, nil, day(3, 0))
	assert.False(t, ev.Complete, "never logged")
}

func TestEvaluateWeeklySum(t *testing.T) {
	t.Parallel()

	tr := domain.Tracker{
		TrackerID:              "run",
		Strategy:               domain.StrategySum,
		TargetRange:            domain.TargetRange{Min: ptr(3.0)},
		WindowNumDays:          ptr(7),
		NumWindowsToCompletion: ptr(2),
		CreatedAt:              day(1, 9),
	}
	logs := []domain.LogEntry{
		logAt("run", day(9, 7), 5),
		logAt("run", day(1, 7), 2),
		logAt("run", day(3, 7), 2),
		logAt("other", day(3, 7), 100),
	}

	ev := Evaluate(tr, logs, day(10, 12))
	require.Len(t, ev.Windows, 2)
	assert.Equal(t, 4.0, ev.Windows[0].Value)
	assert.Equal(t, 2, ev.Windows[0].LogCount)
	assert.True(t, ev.Windows[0].Satisfied)
	assert.False(t, ev.Windows[0].Current)
	assert.True(t, ev.Windows[1].Current)
	assert.Equal(t, 2, ev.Streak)
	assert.Equal(t, 2, ev.SatisfiedWindows)
	assert.True(t, ev.Complete)
}

func TestEvaluateDailyAllStreak(t *testing.T) {
	t.Parallel()

	tr := domain.Tracker{
		TrackerID:              "sleep",
		Strategy:               domain.StrategyAll,
		TargetRange:            domain.TargetRange{Min: ptr(7.0), Max: ptr(9.0)},
		WindowNumDays:          ptr(1),
		NumWindowsToCompletion: ptr(3),
		CreatedAt:              day(1, 0),
	}
	logs := []domain.LogEntry{
		logAt("sleep", day(1, 8), 8),
		logAt("sleep", day(2, 8), 6),
		logAt("sleep", day(3, 8), 8),
		logAt("sleep", day(4, 8), 8),
	}

	ev := Evaluate(tr, logs, day(4, 12))
	require.Len(t, ev.Windows, 4)
	assert.False(t, ev.Windows[1].Satisfied)
	assert.Equal(t, 2, ev.Streak)
	assert.False(t, ev.Complete)

	// An open window without logs does not break the streak.
	ev = Evaluate(tr, logs, day(5, 12))
	require.Len(t, ev.Windows, 5)
	assert.False(t, ev.Windows[4].Satisfied)
	assert.Equal(t, 2, ev.Streak)

	// A closed window without logs does.
	ev = Evaluate(tr, logs, day(6, 12))
	assert.Equal(t, 0, ev.Streak)
}

func TestEvaluateWindowAggregates(t *testing.T) {
	t.Parallel()

	logs := []domain.LogEntry{
		logAt("x", day(1, 8), 4),
		logAt("x", day(1, 9), 10),
		logAt("x", day(1, 10), 1),
	}
	tests := []struct {
		strategy domain.AggregationStrategy
		want     float64
	}{
		{domain.StrategySum, 15},
		{domain.StrategyMin, 1},
		{domain.StrategyMax, 10},
		{domain.StrategyMean, 5},
		{domain.StrategyAll, 1},
		{domain.StrategyOneTime, 1},
	}
	for _, tt := range tests {
		tr := domain.Tracker{TrackerID: "x", Strategy: tt.strategy, WindowNumDays: ptr(1), CreatedAt: day(1, 0)}
		ev := Evaluate(tr, logs, day(1, 23))
		require.Len(t, ev.Windows, 1, string(tt.strategy))
		assert.Equal(t, tt.want, ev.Windows[0].Value, string(tt.strategy))
		assert.True(t, ev.Windows[0].Satisfied, "open range is always satisfied once logged")
		assert.False(t, ev.Complete, "no completion count means an ongoing habit")
	}
}
