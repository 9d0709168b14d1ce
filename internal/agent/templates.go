package agent

import (
	"fmt"
	"strconv"
	"strings"
	"text/template"

	"github.com/ashureev/goal-architect/internal/domain"
	"github.com/ashureev/goal-architect/internal/progress"
)

var contextTemplates = template.Must(template.New("context").Funcs(template.FuncMap{
	"bounds": formatRange,
	"num":    formatNumber,
	"window": formatWindow,
	"join":   func(s []string) string { return strings.Join(s, ", ") },
}).Parse(`
{{- define "goals" -}}
# TODAY
{{.Today}}

# USER GOALS
{{range .Goals -}}
- id: {{.GoalID}} | what: {{.What}} | why: {{.Why}} | when: {{.When}}
{{else -}}
The user has no goals yet.
{{end -}}
{{- end -}}

{{- define "goal_info" -}}
# USER GOAL INFORMATION
{{with .Goal -}}
id: {{.GoalID}}
what: {{.What}}
why: {{.Why}}
when: {{.When}}
{{- else -}}
No goal is selected. Route back to ORCHESTRATOR so the user can pick or create one.
{{- end}}
{{if .Milestones}}
# EXISTING MILESTONES
{{range .Milestones -}}
- id: {{.MilestoneID}} | {{.Statement}} | status: {{.Status}}{{if .DependsOn}} | depends_on: {{join .DependsOn}}{{end}}
{{end -}}
{{end -}}
{{if .Reflections}}
# PAST REFLECTIONS
{{range .Reflections -}}
- {{.Text}}
{{end -}}
{{end -}}
{{- end -}}

{{- define "planner" -}}
# TODAY
{{.Today}}

# ACTIVE MILESTONES
{{range .Milestones -}}
- id: {{.MilestoneID}} | {{.Statement}} | status: {{.Status}}
{{else -}}
None.
{{end}}
# LIFESTYLE CONTEXT
{{range .Reflections -}}
- {{.Text}}
{{else -}}
None.
{{end}}
# PREVIOUS PLAN
{{with .PreviousPlan -}}
{{.Date}}
{{range .Blocks -}}
- {{.StartTime}}-{{.EndTime}} {{.Activity}}{{if .Type}} ({{.Type}}){{end}}
{{end -}}
{{- else -}}
None.
{{end -}}
{{- end -}}

{{- define "tracking" -}}
# CALENDAR
Today: {{.Today}}
Yesterday: {{.Yesterday}}

# ACTIVE TRACKERS
{{range .Trackers -}}
- tracker_id: {{.Tracker.TrackerID}}
  milestone: {{.Milestone}}
  log_prompt: {{.Tracker.LogPrompt}}
  unit: {{.Tracker.Unit}} | strategy: {{.Tracker.Strategy}} | target: {{bounds .Tracker.TargetRange}}{{window .Tracker}}
  current: {{num .Tracker.CurrentValue}} over {{.Tracker.LogCount}} logs{{if .Progress.RequiredWindows}} | streak: {{.Progress.Streak}}/{{.Progress.RequiredWindows}}{{end}}{{if .Progress.Complete}} | complete{{end}}
{{else -}}
The user has no active trackers. Route back to ORCHESTRATOR.
{{end -}}
{{- end -}}
`))

type goalsContext struct {
	Today string
	Goals []domain.Goal
}

type goalInfoContext struct {
	Goal        *domain.Goal
	Milestones  []domain.Milestone
	Reflections []domain.Reflection
}

type plannerContext struct {
	Today        string
	Milestones   []domain.Milestone
	Reflections  []domain.Reflection
	PreviousPlan *domain.DailyPlan
}

type trackerView struct {
	Milestone string
	Tracker   domain.Tracker
	Progress  progress.Evaluation
}

type trackingContext struct {
	Today     string
	Yesterday string
	Trackers  []trackerView
}

func render(name string, data any) (string, error) {
	var b strings.Builder
	if err := contextTemplates.ExecuteTemplate(&b, name, data); err != nil {
		return "", fmt.Errorf("render %s context: %w", name, err)
	}
	return strings.TrimSpace(b.String()), nil
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatRange(r domain.TargetRange) string {
	bound := func(v *float64) string {
		if v == nil {
			return "open"
		}
		return formatNumber(*v)
	}
	return "[" + bound(r.Min) + ", " + bound(r.Max) + "]"
}

func formatWindow(t domain.Tracker) string {
	if t.WindowNumDays == nil {
		return ""
	}
	s := fmt.Sprintf(" | window: %d days", *t.WindowNumDays)
	if t.NumWindowsToCompletion != nil {
		s += fmt.Sprintf(" x %d", *t.NumWindowsToCompletion)
	}
	return s
}
