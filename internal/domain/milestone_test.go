package domain

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateMilestoneGraph(t *testing.T) {
	t.Parallel()

	ms := func(specs ...[]string) []Milestone {
		out := make([]Milestone, 0, len(specs))
		for _, s := range specs {
			out = append(out, Milestone{MilestoneID: s[0], DependsOn: s[1:]})
		}
		return out
	}

	tests := []struct {
		name      string
		input     []Milestone
		wantErr   bool
		wantOrder []string
		contains  string
	}{
		{name: "empty", input: nil},
		{
			name:      "chain",
			input:     ms([]string{"c", "b"}, []string{"b", "a"}, []string{"a"}),
			wantOrder: []string{"a", "b", "c"},
		},
		{
			name:     "dangling reference",
			input:    ms([]string{"a", "missing"}),
			wantErr:  true,
			contains: "unknown milestone",
		},
		{
			name:     "self reference",
			input:    ms([]string{"a", "a"}),
			wantErr:  true,
			contains: "depends on itself",
		},
		{
			name:     "two node cycle",
			input:    ms([]string{"a", "b"}, []string{"b", "a"}),
			wantErr:  true,
			contains: "circular dependency",
		},
		{
			name:     "duplicate id",
			input:    ms([]string{"a"}, []string{"a"}),
			wantErr:  true,
			contains: "duplicate",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			order, err := ValidateMilestoneGraph(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidMilestoneGraph) {
					t.Fatalf("expected ErrInvalidMilestoneGraph, got %v", err)
				}
				if !strings.Contains(err.Error(), tt.contains) {
					t.Fatalf("error %q does not mention %q", err, tt.contains)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.wantOrder != nil && strings.Join(order, ",") != strings.Join(tt.wantOrder, ",") {
				t.Fatalf("order = %v, want %v", order, tt.wantOrder)
			}
		})
	}
}

func TestMilestoneStatusValid(t *testing.T) {
	t.Parallel()

	if !MilestoneActive.Valid() {
		t.Fatal("active should be valid")
	}
	if MilestoneStatus("archived").Valid() {
		t.Fatal("archived should be invalid")
	}
}
