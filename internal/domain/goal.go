package domain

import (
	"fmt"
	"strings"
	"time"
)

// Goal is a concrete, user-confirmed objective.
type Goal struct {
	UserID    string    `json:"user_id"`
	GoalID    string    `json:"goal_id"`
	What      string    `json:"what"`
	Why       string    `json:"why"`
	When      string    `json:"when"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate checks that the goal carries the fields every stage relies on.
func (g *Goal) Validate() error {
	if strings.TrimSpace(g.What) == "" {
		return fmt.Errorf("%w: what is required", ErrInvalidGoal)
	}
	return nil
}

// GoalTree is a goal with its milestones and their trackers attached.
type GoalTree struct {
	Goal
	Milestones []Milestone `json:"milestones"`
}

// Dashboard is the full nested view of a user's goals.
type Dashboard struct {
	UserID string     `json:"user_id"`
	Goals  []GoalTree `json:"goals"`
}
