package domain

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestDailyPlanValidate(t *testing.T) {
	t.Parallel()

	block := func(name string, sh, sm, eh, em int) PlanBlock {
		return PlanBlock{Activity: name, StartTime: ClockTime{sh, sm}, EndTime: ClockTime{eh, em}}
	}
	tests := []struct {
		name    string
		blocks  []PlanBlock
		wantErr bool
	}{
		{"ok", []PlanBlock{block("run", 7, 0, 7, 45), block("write", 9, 0, 11, 0)}, false},
		{"adjacent", []PlanBlock{block("a", 9, 0, 10, 0), block("b", 10, 0, 10, 30)}, false},
		{"empty", nil, true},
		{"missing activity", []PlanBlock{block("", 7, 0, 8, 0)}, true},
		{"backwards", []PlanBlock{block("a", 9, 0, 8, 0)}, true},
		{"bad clock", []PlanBlock{block("a", 24, 0, 25, 0)}, true},
		{"overlap unordered", []PlanBlock{block("b", 9, 30, 10, 30), block("a", 9, 0, 10, 0)}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p := &DailyPlan{Blocks: tt.blocks}
			err := p.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidPlan) {
				t.Fatalf("error %v does not wrap ErrInvalidPlan", err)
			}
			if err != nil && !IsValidation(err) {
				t.Fatalf("plan errors must count as validation errors")
			}
		})
	}
}

func TestPlanBlockDecodesClockPairs(t *testing.T) {
	t.Parallel()

	var b PlanBlock
	if err := json.Unmarshal([]byte(`{"activity":"Deep work","type":"MILESTONE","milestone_id":null,"start_time":[14,30],"end_time":[16,0]}`), &b); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if b.StartTime.String() != "14:30" || b.EndTime.Minutes() != 960 {
		t.Fatalf("unexpected times %s-%s", b.StartTime, b.EndTime)
	}
}
