package domain

import (
	"fmt"
	"strings"
	"time"
)

// MilestoneStatus is the lifecycle state of a milestone.
type MilestoneStatus string

const (
	MilestonePending   MilestoneStatus = "pending"
	MilestoneActive    MilestoneStatus = "active"
	MilestoneCompleted MilestoneStatus = "completed"
)

// Valid reports whether s is a known status.
func (s MilestoneStatus) Valid() bool {
	switch s {
	case MilestonePending, MilestoneActive, MilestoneCompleted:
		return true
	}
	return false
}

// Milestone is an intermediate objective of a goal.
type Milestone struct {
	UserID      string          `json:"user_id"`
	GoalID      string          `json:"goal_id"`
	MilestoneID string          `json:"milestone_id"`
	Statement   string          `json:"statement"`
	Status      MilestoneStatus `json:"status"`
	DependsOn   []string        `json:"depends_on"`
	Trackers    []Tracker       `json:"trackers,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// ValidateMilestoneGraph checks that the depends_on edges of milestones form
// a DAG with no references outside the set. It returns the milestone IDs in
// dependency order.
func ValidateMilestoneGraph(milestones []Milestone) ([]string, error) {
	ids := make([]string, 0, len(milestones))
	known := make(map[string]bool, len(milestones))
	edges := make(map[string][]string, len(milestones))

	for _, m := range milestones {
		if m.MilestoneID == "" {
			return nil, fmt.Errorf("%w: milestone without id", ErrInvalidMilestoneGraph)
		}
		if known[m.MilestoneID] {
			return nil, fmt.Errorf("%w: duplicate milestone %q", ErrInvalidMilestoneGraph, m.MilestoneID)
		}
		known[m.MilestoneID] = true
		ids = append(ids, m.MilestoneID)
		edges[m.MilestoneID] = m.DependsOn
	}

	for _, m := range milestones {
		for _, dep := range m.DependsOn {
			if dep == m.MilestoneID {
				return nil, fmt.Errorf("%w: milestone %q depends on itself", ErrInvalidMilestoneGraph, dep)
			}
			if !known[dep] {
				return nil, fmt.Errorf("%w: milestone %q depends on unknown milestone %q",
					ErrInvalidMilestoneGraph, m.MilestoneID, dep)
			}
		}
	}

	// Kahn's algorithm over dependency -> dependent edges.
	inDegree := make(map[string]int, len(ids))
	forward := make(map[string][]string, len(ids))
	for _, id := range ids {
		for _, dep := range edges[id] {
			inDegree[id]++
			forward[dep] = append(forward[dep], id)
		}
	}

	var queue []string
	for _, id := range ids {
		if inDegree[id] == 0 {
			queue = append(queue, id)
		}
	}

	sorted := make([]string, 0, len(ids))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		sorted = append(sorted, id)
		for _, dependent := range forward[id] {
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				queue = append(queue, dependent)
			}
		}
	}

	if len(sorted) != len(ids) {
		path := findCyclePath(ids, edges, inDegree)
		return nil, fmt.Errorf("%w: circular dependency %s",
			ErrInvalidMilestoneGraph, strings.Join(path, " -> "))
	}
	return sorted, nil
}

func findCyclePath(ids []string, edges map[string][]string, inDegree map[string]int) []string {
	const (
		white = iota
		gray
		black
	)

	color := make(map[string]int, len(ids))
	parent := make(map[string]string, len(ids))
	var cycle []string

	var visit func(id string) bool
	visit = func(id string) bool {
		color[id] = gray
		for _, dep := range edges[id] {
			switch color[dep] {
			case gray:
				cycle = []string{dep}
				for cur := id; cur != dep; cur = parent[cur] {
					cycle = append(cycle, cur)
				}
				cycle = append(cycle, dep)
				for i, j := 0, len(cycle)-1; i < j; i, j = i+1, j-1 {
					cycle[i], cycle[j] = cycle[j], cycle[i]
				}
				return true
			case white:
				parent[dep] = id
				if visit(dep) {
					return true
				}
			}
		}
		color[id] = black
		return false
	}

	for _, id := range ids {
		if inDegree[id] > 0 && color[id] == white && visit(id) {
			return cycle
		}
	}
	return []string{"(cycle)"}
}
