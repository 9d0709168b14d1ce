package domain

import (
	"fmt"
	"sort"
	"time"
)

// ClockTime is a wall clock time encoded as [HH, MM].
type ClockTime [2]int

// Valid reports whether the time is within a day.
func (c ClockTime) Valid() bool {
	return c[0] >= 0 && c[0] < 24 && c[1] >= 0 && c[1] < 60
}

// Minutes returns minutes since midnight.
func (c ClockTime) Minutes() int {
	return c[0]*60 + c[1]
}

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", c[0], c[1])
}

// PlanBlock is one time-blocked activity of a daily plan.
type PlanBlock struct {
	Activity    string    `json:"activity"`
	Type        string    `json:"type"`
	MilestoneID string    `json:"milestone_id,omitempty"`
	StartTime   ClockTime `json:"start_time"`
	EndTime     ClockTime `json:"end_time"`
	Notes       string    `json:"notes,omitempty"`
}

// DailyPlan is a confirmed schedule for one day.
type DailyPlan struct {
	UserID    string      `json:"user_id"`
	PlanID    string      `json:"plan_id"`
	GoalID    string      `json:"goal_id,omitempty"`
	Date      string      `json:"date"`
	Blocks    []PlanBlock `json:"blocks"`
	CreatedAt time.Time   `json:"created_at"`
}

// Validate checks that every block has an activity and a forward time
// span, and that no two blocks overlap.
func (p *DailyPlan) Validate() error {
	if len(p.Blocks) == 0 {
		return fmt.Errorf("%w: no blocks", ErrInvalidPlan)
	}
	for i, b := range p.Blocks {
		if b.Activity == "" {
			return fmt.Errorf("%w: block %d: activity is required", ErrInvalidPlan, i)
		}
		if !b.StartTime.Valid() || !b.EndTime.Valid() {
			return fmt.Errorf("%w: block %d: invalid time", ErrInvalidPlan, i)
		}
		if b.EndTime.Minutes() <= b.StartTime.Minutes() {
			return fmt.Errorf("%w: block %d: end %s is not after start %s", ErrInvalidPlan, i, b.EndTime, b.StartTime)
		}
	}

	order := make([]PlanBlock, len(p.Blocks))
	copy(order, p.Blocks)
	sort.Slice(order, func(i, j int) bool { return order[i].StartTime.Minutes() < order[j].StartTime.Minutes() })
	for i := 1; i < len(order); i++ {
		if order[i].StartTime.Minutes() < order[i-1].EndTime.Minutes() {
			return fmt.Errorf("%w: %q overlaps %q", ErrInvalidPlan, order[i].Activity, order[i-1].Activity)
		}
	}
	return nil
}

// Reflection is a captured insight from a coaching conversation.
type Reflection struct {
	UserID       string    `json:"user_id"`
	ReflectionID string    `json:"reflection_id"`
	GoalID       string    `json:"goal_id,omitempty"`
	Text         string    `json:"text"`
	CreatedAt    time.Time `json:"created_at"`
}
