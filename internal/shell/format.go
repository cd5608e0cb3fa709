package shell

import (
	"fmt"
	"strings"

	"github.com/dkovalq/pagepilot-cli/internal/agent"
)

// FormatRunResult renders one agent run as report lines: action lines in step
// order (step headers only when there is more than one step), then exactly one
// summary line. It is a pure transformation of the result.
func FormatRunResult(result *agent.RunResult) []string {
	var lines []string

	switch {
	case len(result.Steps) > 0:
		multi := len(result.Steps) > 1
		for _, step := range result.Steps {
			if multi {
				lines = append(lines, dimStyle.Render(fmt.Sprintf("Step %d:", step.Step)))
			}
			for _, ar := range step.Actions {
				lines = append(lines, formatActionResult(ar))
			}
		}
	case len(result.Actions) > 0:
		for _, ar := range result.Actions {
			lines = append(lines, successStyle.Render("✓")+" "+formatAction(ar.Action))
		}
	}

	if len(lines) == 0 {
		lines = append(lines, "No actions were executed")
	}

	return append(lines, formatSummary(result))
}

func formatActionResult(ar agent.ActionResult) string {
	var b strings.Builder
	if ar.Success {
		b.WriteString(successStyle.Render("✓"))
	} else {
		b.WriteString(failureStyle.Render("✗"))
	}
	b.WriteByte(' ')
	b.WriteString(formatAction(ar.Action))
	if !ar.Success && ar.Error != "" {
		b.WriteString(failureStyle.Render(fmt.Sprintf(" (%s)", ar.Error)))
	}
	return b.String()
}

// formatAction renders an action as `type "target"`, with a value suffix only
// when the action carries one.
func formatAction(a agent.ActionDescriptor) string {
	s := fmt.Sprintf("%s %q", a.Type, a.Target)
	if a.Value != "" {
		s += fmt.Sprintf(" = %q", a.Value)
	}
	return s
}

func formatSummary(result *agent.RunResult) string {
	if result.GoalAchieved {
		return successStyle.Render(fmt.Sprintf("Goal achieved in %d step(s).", result.TotalSteps))
	}
	return failureStyle.Render(fmt.Sprintf("Goal was not confirmed (%d step(s)).", result.TotalSteps))
}
