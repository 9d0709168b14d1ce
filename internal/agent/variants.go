package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ashureev/goal-architect/internal/domain"
	"github.com/ashureev/goal-architect/internal/progress"
)

const reflectionLimit = 5

// base provides the no-op parts of a variant.
type base struct{}

func (base) DomainContext(context.Context, *Env, *domain.PlanState) (string, error) { return "", nil }
func (base) Observe(*domain.PlanState, *Reply)                                       {}
func (base) Ready(*Reply) bool                                                       { return false }
func (base) Commit(context.Context, *Env, *domain.PlanState, *Reply) error           { return nil }

// Variants returns one variant per stage.
func Variants() []Variant {
	return []Variant{
		Orchestrator{},
		GoalFormulator{},
		MilestoneFormulator{},
		ResilienceCoach{},
		Planner{},
		TrackingLogger{},
	}
}

// Orchestrator classifies what the user wants and routes to a specialist.
type Orchestrator struct{ base }

func (Orchestrator) Stage() domain.Stage { return domain.StageOrchestrator }
func (Orchestrator) Prompt() string      { return orchestratorPrompt }

func (Orchestrator) DomainContext(ctx context.Context, env *Env, state *domain.PlanState) (string, error) {
	goals, err := env.Repo.GetGoalsForUser(ctx, state.UserID)
	if err != nil {
		return "", fmt.Errorf("load goals: %w", err)
	}
	return render("goals", goalsContext{Today: env.now().Format(time.DateOnly), Goals: goals})
}

func (Orchestrator) Observe(state *domain.PlanState, reply *Reply) {
	intent := NormalizeIntent(reply.Intent)
	if intent == "" && reply.GoalID == "" {
		return
	}
	state.StructuredData.Intent = &domain.Intent{Name: intent, GoalID: reply.GoalID, Summary: reply.Summary}
	if reply.GoalID != "" {
		state.StructuredData.GoalID = reply.GoalID
	}
}

// GoalFormulator clarifies what, why and when of a new goal.
type GoalFormulator struct{ base }

func (GoalFormulator) Stage() domain.Stage { return domain.StageGoalFormulator }
func (GoalFormulator) Prompt() string      { return goalFormulatorPrompt }

func (GoalFormulator) Ready(reply *Reply) bool {
	return reply.GoalDetails != nil && strings.TrimSpace(reply.GoalDetails.What) != ""
}

func (GoalFormulator) Commit(ctx context.Context, env *Env, state *domain.PlanState, reply *Reply) error {
	goal := &domain.Goal{
		UserID: state.UserID,
		What:   strings.TrimSpace(reply.GoalDetails.What),
		Why:    strings.TrimSpace(reply.GoalDetails.Why),
		When:   strings.TrimSpace(reply.GoalDetails.When),
	}
	if err := env.Repo.CreateGoal(ctx, goal); err != nil {
		return fmt.Errorf("create goal: %w", err)
	}
	state.StructuredData.Goal = goal
	state.StructuredData.GoalID = goal.GoalID
	state.StructuredData.Milestones = nil
	return nil
}

// MilestoneFormulator turns the selected goal into a milestone graph.
type MilestoneFormulator struct{ base }

func (MilestoneFormulator) Stage() domain.Stage { return domain.StageMilestoneFormulator }
func (MilestoneFormulator) Prompt() string      { return milestoneFormulatorPrompt }

func (MilestoneFormulator) DomainContext(ctx context.Context, env *Env, state *domain.PlanState) (string, error) {
	info, err := loadGoalInfo(ctx, env, state, false)
	if err != nil {
		return "", err
	}
	return render("goal_info", info)
}

func (MilestoneFormulator) Ready(reply *Reply) bool {
	return len(reply.Milestones) > 0
}

func (MilestoneFormulator) Commit(ctx context.Context, env *Env, state *domain.PlanState, reply *Reply) error {
	goalID := state.StructuredData.GoalID
	if goalID == "" {
		return fmt.Errorf("%w: no goal selected", domain.ErrInvalidMilestoneGraph)
	}
	milestones, err := toMilestones(reply.Milestones)
	if err != nil {
		return err
	}
	created, err := env.Repo.CreateMilestones(ctx, state.UserID, goalID, milestones)
	if errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("%w: goal %s does not exist", domain.ErrInvalidMilestoneGraph, goalID)
	}
	if err != nil {
		return fmt.Errorf("create milestones: %w", err)
	}
	state.StructuredData.Milestones = created
	return nil
}

func toMilestones(proposals []MilestoneProposal) ([]domain.Milestone, error) {
	out := make([]domain.Milestone, 0, len(proposals))
	for _, p := range proposals {
		m := domain.Milestone{
			MilestoneID: strings.TrimSpace(p.ID),
			Statement:   strings.TrimSpace(p.Statement),
			Status:      domain.MilestonePending,
			DependsOn:   p.DependsOn,
		}
		if m.DependsOn == nil {
			m.DependsOn = []string{}
		}
		for _, tp := range p.Trackers {
			t, err := toTracker(tp)
			if err != nil {
				return nil, fmt.Errorf("milestone %q: %w", m.Statement, err)
			}
			m.Trackers = append(m.Trackers, t)
		}
		out = append(out, m)
	}
	return out, nil
}

func toTracker(p TrackerProposal) (domain.Tracker, error) {
	strategy, err := domain.ParseAggregationStrategy(p.Strategy)
	if err != nil {
		return domain.Tracker{}, err
	}
	var r domain.TargetRange
	switch len(p.TargetRange) {
	case 0:
	case 2:
		r = domain.TargetRange{Min: p.TargetRange[0], Max: p.TargetRange[1]}
	default:
		return domain.Tracker{}, fmt.Errorf("%w: target_range must be [min, max]", domain.ErrInvalidTracker)
	}
	return domain.Tracker{
		LogPrompt:              p.LogPrompt,
		Unit:                   p.Unit,
		Strategy:               strategy,
		TargetRange:            r,
		WindowNumDays:          p.WindowNumDays,
		NumWindowsToCompletion: p.NumWindowsToCompletion,
	}, nil
}

// ResilienceCoach helps the user reflect and captures insights.
type ResilienceCoach struct{ base }

func (ResilienceCoach) Stage() domain.Stage { return domain.StageResilienceCoach }
func (ResilienceCoach) Prompt() string      { return resilienceCoachPrompt }

func (ResilienceCoach) DomainContext(ctx context.Context, env *Env, state *domain.PlanState) (string, error) {
	info, err := loadGoalInfo(ctx, env, state, true)
	if err != nil {
		return "", err
	}
	return render("goal_info", info)
}

// Ready is always true: a coaching session may end without an insight.
func (ResilienceCoach) Ready(*Reply) bool { return true }

func (ResilienceCoach) Commit(ctx context.Context, env *Env, state *domain.PlanState, reply *Reply) error {
	if reply.CapturedReflection == nil {
		return nil
	}
	text := strings.TrimSpace(*reply.CapturedReflection)
	if text == "" {
		return nil
	}
	r := &domain.Reflection{UserID: state.UserID, GoalID: state.StructuredData.GoalID, Text: text}
	if err := env.Repo.CreateReflection(ctx, r); err != nil {
		return fmt.Errorf("create reflection: %w", err)
	}
	state.StructuredData.Reflections = append(state.StructuredData.Reflections, text)
	return nil
}

// Planner builds a time-blocked plan for today.
type Planner struct{ base }

func (Planner) Stage() domain.Stage { return domain.StagePlanner }
func (Planner) Prompt() string      { return plannerPrompt }

func (Planner) DomainContext(ctx context.Context, env *Env, state *domain.PlanState) (string, error) {
	milestones, err := env.Repo.GetActiveMilestones(ctx, state.UserID, state.StructuredData.GoalID)
	if err != nil {
		return "", fmt.Errorf("load active milestones: %w", err)
	}
	reflections, err := env.Repo.GetRecentReflections(ctx, state.UserID, reflectionLimit)
	if err != nil {
		return "", fmt.Errorf("load reflections: %w", err)
	}
	previous, err := env.Repo.GetLatestDailyPlan(ctx, state.UserID)
	if err != nil {
		return "", fmt.Errorf("load previous plan: %w", err)
	}
	return render("planner", plannerContext{
		Today:        env.now().Format(time.DateOnly),
		Milestones:   milestones,
		Reflections:  reflections,
		PreviousPlan: previous,
	})
}

func (Planner) Ready(reply *Reply) bool {
	return len(reply.DailyPlan) > 0
}

func (Planner) Commit(ctx context.Context, env *Env, state *domain.PlanState, reply *Reply) error {
	plan := &domain.DailyPlan{
		UserID: state.UserID,
		GoalID: state.StructuredData.GoalID,
		Date:   env.now().Format(time.DateOnly),
		Blocks: reply.DailyPlan,
	}
	if err := env.Repo.SaveDailyPlan(ctx, plan); err != nil {
		return fmt.Errorf("save daily plan: %w", err)
	}
	state.StructuredData.Plan = plan
	return nil
}

// TrackingLogger turns a progress report into tracker log entries.
type TrackingLogger struct{ base }

func (TrackingLogger) Stage() domain.Stage { return domain.StageTrackingLogger }
func (TrackingLogger) Prompt() string      { return trackingLoggerPrompt }

func (TrackingLogger) DomainContext(ctx context.Context, env *Env, state *domain.PlanState) (string, error) {
	now := env.now()
	milestones, err := env.Repo.GetActiveMilestones(ctx, state.UserID, state.StructuredData.GoalID)
	if err != nil {
		return "", fmt.Errorf("load active milestones: %w", err)
	}

	var views []trackerView
	for _, m := range milestones {
		for _, t := range m.Trackers {
			var logs []domain.LogEntry
			if t.WindowNumDays != nil {
				windows := 1
				if t.NumWindowsToCompletion != nil {
					windows = *t.NumWindowsToCompletion
				}
				since := now.AddDate(0, 0, -(*t.WindowNumDays)*(windows+2))
				logs, err = env.Repo.GetTrackerLogsSince(ctx, state.UserID, t.TrackerID, since)
				if err != nil {
					return "", fmt.Errorf("load logs for tracker %s: %w", t.TrackerID, err)
				}
			}
			views = append(views, trackerView{
				Milestone: m.Statement,
				Tracker:   t,
				Progress:  progress.Evaluate(t, logs, now),
			})
		}
	}

	return render("tracking", trackingContext{
		Today:     now.Format(time.DateOnly),
		Yesterday: now.AddDate(0, 0, -1).Format(time.DateOnly),
		Trackers:  views,
	})
}

func (TrackingLogger) Ready(reply *Reply) bool {
	return len(reply.Updates) > 0
}

// Commit validates every update, then writes them in a single batch.
func (TrackingLogger) Commit(ctx context.Context, env *Env, state *domain.PlanState, reply *Reply) error {
	now := env.now()
	entries := make([]domain.LogEntry, 0, len(reply.Updates))

	for i, u := range reply.Updates {
		day := now
		if u.Date != "" {
			parsed, err := time.Parse(time.DateOnly, u.Date)
			if err != nil {
				return fmt.Errorf("%w: update for %s has date %q, want YYYY-MM-DD", domain.ErrInvalidLogEntry, u.TrackerID, u.Date)
			}
			day = parsed
		}
		ts := time.Date(day.Year(), day.Month(), day.Day(),
			now.Hour(), now.Minute(), now.Second(), now.Nanosecond(), time.UTC).Add(time.Duration(i))
		if ts.After(now.Add(time.Minute)) {
			return fmt.Errorf("%w: update for %s is dated in the future (%s)", domain.ErrInvalidLogEntry, u.TrackerID, u.Date)
		}

		if _, err := env.Repo.GetTracker(ctx, state.UserID, u.TrackerID); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return fmt.Errorf("%w: unknown tracker %q", domain.ErrInvalidLogEntry, u.TrackerID)
			}
			return fmt.Errorf("load tracker: %w", err)
		}
		entries = append(entries, domain.LogEntry{
			UserID:    state.UserID,
			TrackerID: u.TrackerID,
			Timestamp: ts,
			Value:     u.Value,
		})
	}

	results, err := env.Repo.LogAndAggregateBatch(ctx, entries)
	if err != nil {
		return fmt.Errorf("log tracker updates: %w", err)
	}
	for _, res := range results {
		env.Metrics.TrackerLog(string(res.Strategy), res.Applied)
	}
	state.StructuredData.LoggedCount = len(entries)
	return nil
}

func loadGoalInfo(ctx context.Context, env *Env, state *domain.PlanState, withReflections bool) (goalInfoContext, error) {
	var info goalInfoContext

	if goalID := state.StructuredData.GoalID; goalID != "" {
		goal, err := env.Repo.GetGoal(ctx, state.UserID, goalID)
		switch {
		case errors.Is(err, domain.ErrNotFound):
		case err != nil:
			return info, fmt.Errorf("load goal: %w", err)
		default:
			info.Goal = goal
			info.Milestones, err = env.Repo.GetMilestones(ctx, state.UserID, goalID)
			if err != nil {
				return info, fmt.Errorf("load milestones: %w", err)
			}
		}
	}

	if withReflections {
		var err error
		info.Reflections, err = env.Repo.GetRecentReflections(ctx, state.UserID, reflectionLimit)
		if err != nil {
			return info, fmt.Errorf("load reflections: %w", err)
		}
	}
	return info, nil
}
