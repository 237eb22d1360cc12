package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"loglens/internal/engine"
	"loglens/internal/model"
)

var (
	headerStyle    = lipgloss.NewStyle().Bold(true)
	succeededStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	failedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	runningStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

func statusStyle(s model.TaskStatus) lipgloss.Style {
	switch s {
	case model.TaskSucceeded:
		return succeededStyle
	case model.TaskFailed:
		return failedStyle
	default:
		return runningStyle
	}
}

// renderSummary prints one line per task plus correlation totals. The full
// tree is available via --json; the summary is for a quick verdict.
func renderSummary(res *engine.Result) string {
	var b strings.Builder

	b.WriteString(headerStyle.Render(fmt.Sprintf("Tasks (%d)", len(res.Tasks))))
	b.WriteString("\n")
	if len(res.Tasks) == 0 {
		b.WriteString(dimStyle.Render("  none reconstructed"))
		b.WriteString("\n")
	}
	for _, t := range res.Tasks {
		dur := "-"
		if t.EndTime != nil {
			dur = fmt.Sprintf("%dms", t.DurationMS)
		}
		b.WriteString(fmt.Sprintf("  %s  %s  %s  %s\n",
			statusStyle(t.Status).Render(fmt.Sprintf("%-9s", t.Status)),
			t.Entry,
			dimStyle.Render(fmt.Sprintf("nodes=%d", len(t.Nodes))),
			dimStyle.Render(dur),
		))
	}

	if len(res.Controllers) > 0 {
		b.WriteString(headerStyle.Render(fmt.Sprintf("Controllers (%d)", len(res.Controllers))))
		b.WriteString("\n")
		for _, c := range res.Controllers {
			b.WriteString(fmt.Sprintf("  %s  %s\n", c.Type, dimStyle.Render(controllerTarget(c))))
		}
	}

	matchedCount := 0
	for _, e := range res.AuxLogs {
		if e.Correlation != nil && e.Correlation.Status == model.CorrelationMatched {
			matchedCount++
		}
	}
	if len(res.AuxLogs) > 0 {
		b.WriteString(headerStyle.Render(
			fmt.Sprintf("Auxiliary entries: %d (%d matched)", len(res.AuxLogs), matchedCount)))
		b.WriteString("\n")
	}
	return b.String()
}

func controllerTarget(c model.ControllerInfo) string {
	switch {
	case c.Adb != nil:
		return c.Adb.Address
	case c.Win32 != nil:
		return c.Win32.HWnd
	}
	return ""
}
