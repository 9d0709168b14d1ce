package domain

// Stage names the agent that owns the next user turn of a thread.
type Stage string

const (
	// StageOrchestrator classifies user intent and dispatches to a specialist.
	StageOrchestrator Stage = "orchestrator"
	// StageGoalFormulator turns a vague ambition into a concrete goal.
	StageGoalFormulator Stage = "goal_formulator"
	// StageMilestoneFormulator breaks a goal into milestones with trackers.
	StageMilestoneFormulator Stage = "milestone_formulator"
	// StageResilienceCoach handles motivation and setbacks.
	StageResilienceCoach Stage = "resilience_coach"
	// StagePlanner builds a time-blocked plan for the day.
	StagePlanner Stage = "planner"
	// StageTrackingLogger turns progress reports into tracker log entries.
	StageTrackingLogger Stage = "tracking_logger"
)

var allStages = []Stage{
	StageOrchestrator,
	StageGoalFormulator,
	StageMilestoneFormulator,
	StageResilienceCoach,
	StagePlanner,
	StageTrackingLogger,
}

// AllStages returns every known stage in a stable order.
func AllStages() []Stage {
	out := make([]Stage, len(allStages))
	copy(out, allStages)
	return out
}

// Valid reports whether s is a known stage.
func (s Stage) Valid() bool {
	for _, known := range allStages {
		if s == known {
			return true
		}
	}
	return false
}

// String returns the stage name.
func (s Stage) String() string {
	return string(s)
}
