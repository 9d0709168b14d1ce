package agent

import (
	"strings"

	"github.com/ashureev/goal-architect/internal/domain"
)

// Intent values a stage may emit.
const (
	IntentGoalFormation      = "GOAL_FORMATION"
	IntentMilestoneFormation = "MILESTONE_FORMATION"
	IntentMotivation         = "MOTIVATION"
	IntentDayPlanning        = "DAY_PLANNING"
	IntentProgressTracking   = "PROGRESS_TRACKING"
	IntentOrchestrator       = "ORCHESTRATOR"
)

var toOrchestrator = map[string]domain.Stage{
	IntentOrchestrator: domain.StageOrchestrator,
}

// intentRoutes maps each stage's intent vocabulary to the next stage.
var intentRoutes = map[domain.Stage]map[string]domain.Stage{
	domain.StageOrchestrator: {
		IntentGoalFormation:      domain.StageGoalFormulator,
		IntentMotivation:         domain.StageResilienceCoach,
		IntentDayPlanning:        domain.StagePlanner,
		IntentProgressTracking:   domain.StageTrackingLogger,
		IntentMilestoneFormation: domain.StageMilestoneFormulator,
	},
	domain.StageGoalFormulator:      toOrchestrator,
	domain.StageMilestoneFormulator: toOrchestrator,
	domain.StageResilienceCoach:     toOrchestrator,
	domain.StagePlanner:             toOrchestrator,
	domain.StageTrackingLogger:      toOrchestrator,
}

// doneRoutes is where a stage hands off once its artifact is committed.
var doneRoutes = map[domain.Stage]domain.Stage{
	domain.StageGoalFormulator:      domain.StageMilestoneFormulator,
	domain.StageMilestoneFormulator: domain.StageOrchestrator,
	domain.StageResilienceCoach:     domain.StageOrchestrator,
	domain.StagePlanner:             domain.StageOrchestrator,
	domain.StageTrackingLogger:      domain.StageOrchestrator,
}

// NormalizeIntent upper-cases and trims an intent value.
func NormalizeIntent(intent string) string {
	return strings.ToUpper(strings.TrimSpace(intent))
}

// Route returns the stage that follows from when it emits intent. Unknown
// or empty intents keep the thread where it is.
func Route(from domain.Stage, intent string) domain.Stage {
	if next, ok := intentRoutes[from][NormalizeIntent(intent)]; ok {
		return next
	}
	return from
}

// DoneStage returns the successor of from after a completed hand-off.
func DoneStage(from domain.Stage) domain.Stage {
	if next, ok := doneRoutes[from]; ok {
		return next
	}
	return domain.StageOrchestrator
}

// HasEdge reports whether the graph may auto-advance from one stage to
// another within a turn.
func HasEdge(from, to domain.Stage) bool {
	if from == to {
		return false
	}
	if doneRoutes[from] == to {
		return true
	}
	for _, next := range intentRoutes[from] {
		if next == to {
			return true
		}
	}
	return false
}
