package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/ashureev/goal-architect/internal/domain"
	"github.com/ashureev/goal-architect/internal/progress"
	"github.com/charmbracelet/lipgloss"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	errorStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))

	stageColors = map[domain.Stage]lipgloss.Color{
		domain.StageOrchestrator:        lipgloss.Color("14"),
		domain.StageGoalFormulator:      lipgloss.Color("13"),
		domain.StageMilestoneFormulator: lipgloss.Color("12"),
		domain.StageResilienceCoach:     lipgloss.Color("10"),
		domain.StagePlanner:             lipgloss.Color("11"),
		domain.StageTrackingLogger:      lipgloss.Color("6"),
	}
)

func stageLabel(s domain.Stage) string {
	style := lipgloss.NewStyle().Bold(true)
	if c, ok := stageColors[s]; ok {
		style = style.Foreground(c)
	}
	return style.Render("[" + string(s) + "]")
}

func renderReplies(w io.Writer, msgs []domain.AgentMessage) {
	for _, m := range msgs {
		fmt.Fprintf(w, "%s %s\n", stageLabel(m.Agent), m.Message)
	}
}

func renderDashboard(w io.Writer, dash *domain.Dashboard) {
	if len(dash.Goals) == 0 {
		fmt.Fprintln(w, dimStyle.Render("No goals yet. Start with: goalctl chat"))
		return
	}
	for _, g := range dash.Goals {
		fmt.Fprintf(w, "%s %s\n", headerStyle.Render(g.What), dimStyle.Render("("+g.GoalID+")"))
		if g.Why != "" || g.When != "" {
			fmt.Fprintf(w, "  why: %s  when: %s\n", g.Why, g.When)
		}
		for _, m := range g.Milestones {
			fmt.Fprintf(w, "  %s %s %s\n", statusMark(m.Status), m.Statement, dimStyle.Render("("+m.MilestoneID+")"))
			for _, t := range m.Trackers {
				fmt.Fprintf(w, "      %s %s: %s %s\n",
					dimStyle.Render(t.TrackerID), t.LogPrompt, formatValue(t.CurrentValue, t.Unit),
					dimStyle.Render(strings.ToLower(string(t.Strategy))))
			}
		}
	}
}

func statusMark(s domain.MilestoneStatus) string {
	switch s {
	case domain.MilestoneCompleted:
		return okStyle.Render("[x]")
	case domain.MilestoneActive:
		return warnStyle.Render("[>]")
	default:
		return dimStyle.Render("[ ]")
	}
}

func renderProgress(w io.Writer, ev *progress.Evaluation) {
	state := warnStyle.Render("in progress")
	if ev.Complete {
		state = okStyle.Render("complete")
	}
	fmt.Fprintf(w, "%s %s\n", headerStyle.Render(ev.TrackerID), state)
	fmt.Fprintf(w, "  value: %g (%s, in range: %t)\n", ev.CurrentValue, strings.ToLower(string(ev.Strategy)), ev.InRange)
	if len(ev.Windows) == 0 {
		return
	}
	fmt.Fprintf(w, "  windows: %d satisfied, streak %d", ev.SatisfiedWindows, ev.Streak)
	if ev.RequiredWindows > 0 {
		fmt.Fprintf(w, " of %d", ev.RequiredWindows)
	}
	fmt.Fprintln(w)
}

func renderError(w io.Writer, err error) {
	fmt.Fprintln(w, errorStyle.Render("error: ")+err.Error())
}

func formatValue(v float64, unit string) string {
	if unit == "" {
		return fmt.Sprintf("%g", v)
	}
	return fmt.Sprintf("%g %s", v, unit)
}
