package domain

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestParseAggregationStrategy(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in     string
		want   AggregationStrategy
		policy IngestPolicy
	}{
		{"SUM", StrategySum, PolicyAccumulate},
		{"sum", StrategySum, PolicyAccumulate},
		{"ALL", StrategyAll, PolicyLatest},
		{"MIN", StrategyMin, PolicyExtremum},
		{"MAX", StrategyMax, PolicyExtremum},
		{"MEAN", StrategyMean, PolicyRunningMean},
		{"ONE-TIME", StrategyOneTime, PolicyLatest},
		{"one_time", StrategyOneTime, PolicyLatest},
	}
	for _, tt := range tests {
		got, err := ParseAggregationStrategy(tt.in)
		if err != nil {
			t.Fatalf("ParseAggregationStrategy(%q): %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseAggregationStrategy(%q) = %q, want %q", tt.in, got, tt.want)
		}
		if got.Policy() != tt.policy {
			t.Errorf("%q policy = %v, want %v", got, got.Policy(), tt.policy)
		}
	}

	if _, err := ParseAggregationStrategy("LATEST"); !errors.Is(err, ErrInvalidTracker) {
		t.Fatalf("expected ErrInvalidTracker for unknown strategy, got %v", err)
	}
}

func TestTrackerDecodeDiscriminator(t *testing.T) {
	t.Parallel()

	raw := `{"milestone_id":"m1","log_prompt":"How far?","unit":"km",
		"aggregation_strategy":"SUM","target_range":[100,null],
		"window_num_days":null,"num_windows_to_completion":null}`
	var tr Tracker
	if err := json.Unmarshal([]byte(raw), &tr); err != nil {
		t.Fatalf("decode tracker: %v", err)
	}
	if tr.Strategy != StrategySum {
		t.Fatalf("strategy = %q", tr.Strategy)
	}
	if tr.TargetRange.Min == nil || *tr.TargetRange.Min != 100 || tr.TargetRange.Max != nil {
		t.Fatalf("unexpected range: %+v", tr.TargetRange)
	}
	if err := tr.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}

	bad := `{"milestone_id":"m1","aggregation_strategy":"MEDIAN","target_range":[null,null]}`
	if err := json.Unmarshal([]byte(bad), &tr); !errors.Is(err, ErrInvalidTracker) {
		t.Fatalf("expected ErrInvalidTracker, got %v", err)
	}
}

func TestTargetRange(t *testing.T) {
	t.Parallel()

	lo, hi := 2.0, 5.0
	r := TargetRange{Min: &lo, Max: &hi}
	for v, want := range map[float64]bool{1: false, 2: true, 3.5: true, 5: true, 6: false} {
		if got := r.Contains(v); got != want {
			t.Errorf("Contains(%v) = %v, want %v", v, got, want)
		}
	}
	if !(TargetRange{}).Contains(-1e9) {
		t.Error("open range should contain everything")
	}

	data, err := json.Marshal(TargetRange{Max: &hi})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != "[null,5]" {
		t.Fatalf("marshal = %s", data)
	}
}

func TestTrackerValidateWindow(t *testing.T) {
	t.Parallel()

	zero, three := 0, 3
	tests := []struct {
		name string
		tr   Tracker
		ok   bool
	}{
		{"no window", Tracker{MilestoneID: "m", Strategy: StrategySum}, true},
		{"window", Tracker{MilestoneID: "m", Strategy: StrategyAll, WindowNumDays: &three, NumWindowsToCompletion: &three}, true},
		{"zero window", Tracker{MilestoneID: "m", Strategy: StrategyAll, WindowNumDays: &zero}, false},
		{"count without window", Tracker{MilestoneID: "m", Strategy: StrategyAll, NumWindowsToCompletion: &three}, false},
		{"missing milestone", Tracker{Strategy: StrategySum}, false},
	}
	for _, tt := range tests {
		err := tt.tr.Validate()
		if tt.ok && err != nil {
			t.Errorf("%s: unexpected error %v", tt.name, err)
		}
		if !tt.ok && !errors.Is(err, ErrInvalidTracker) {
			t.Errorf("%s: expected ErrInvalidTracker, got %v", tt.name, err)
		}
	}
}
