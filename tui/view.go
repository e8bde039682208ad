package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/crossgate-ci/crossgate/internal/domain"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")).
			Padding(0, 1)

	headerStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("236")).
			Foreground(lipgloss.Color("255")).
			Padding(0, 1)

	sectionStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)

	runningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))

	idleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("244"))

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	failedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	statusBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("236")).
			Foreground(lipgloss.Color("255"))

	tabActiveStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")).
			Underline(true)

	tabInactiveStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("244"))
)

// View renders the TUI
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	var b strings.Builder

	header := fmt.Sprintf(" Crossgate CI │ State: %s │ Branch: %s │ Runners: %d ",
		m.state, m.branch, len(m.runners))
	b.WriteString(headerStyle.Width(m.width).Render(header))
	b.WriteString("\n")

	b.WriteString(m.renderTabs())
	b.WriteString("\n")

	switch m.activeTab {
	case 0: // Dashboard
		b.WriteString(sectionStyle.Width(m.width - 2).Render(m.renderEnvironments()))
		b.WriteString("\n")
		b.WriteString(sectionStyle.Width(m.width - 2).Render(m.renderRunners()))
		b.WriteString("\n")

	case 1: // Runs
		b.WriteString(sectionStyle.Width(m.width - 2).Render(m.renderHistory()))
		b.WriteString("\n")
	}

	statusBar := " [tab]switch [j/k]navigate [q]uit "
	b.WriteString(statusBarStyle.Width(m.width).Render(statusBar))

	return b.String()
}

func (m Model) renderTabs() string {
	tabs := []string{"Dashboard", "Runs"}
	var parts []string

	for i, tab := range tabs {
		if i == m.activeTab {
			parts = append(parts, tabActiveStyle.Render(fmt.Sprintf(" %s ", tab)))
		} else {
			parts = append(parts, tabInactiveStyle.Render(fmt.Sprintf(" %s ", tab)))
		}
	}

	return strings.Join(parts, "│")
}

func (m Model) renderEnvironments() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("ENVIRONMENTS"))
	b.WriteString("\n")

	if len(m.envs) == 0 {
		b.WriteString(idleStyle.Render("  No run in progress"))
		return b.String()
	}

	for _, env := range m.envs {
		var icon string
		var style lipgloss.Style
		switch env.Status {
		case domain.RunExecuting:
			icon = "●"
			style = runningStyle
		case domain.RunSucceeded:
			icon = "✓"
			style = runningStyle
		case domain.RunFailed:
			icon = "✗"
			style = failedStyle
		default:
			icon = "○"
			style = idleStyle
		}

		progress := ""
		if env.Status == domain.RunExecuting && env.CurrentStage != "" {
			progress = fmt.Sprintf("%s/%s", env.CurrentStage, env.CurrentStep)
		}

		line := fmt.Sprintf("  %s %-18s %-8s %3d steps  %s",
			icon, env.ID, env.Platform, env.StepsDone, progress)
		b.WriteString(style.Render(line))
		b.WriteString("\n")
	}

	return strings.TrimSuffix(b.String(), "\n")
}

func (m Model) renderRunners() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("RUNNERS"))
	b.WriteString("\n")

	if len(m.runners) == 0 {
		b.WriteString(idleStyle.Render("  No runners connected, using local execution"))
		return b.String()
	}

	for _, r := range m.runners {
		line := fmt.Sprintf("  %-18s %-8s %d/%d jobs",
			r.ID, r.Platform, r.ActiveJobs, r.MaxJobs)
		b.WriteString(idleStyle.Render(line))
		b.WriteString("\n")
	}

	return strings.TrimSuffix(b.String(), "\n")
}

func (m Model) renderHistory() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("RECENT RUNS"))
	b.WriteString("\n")

	if len(m.history) == 0 {
		b.WriteString(idleStyle.Render("  No runs recorded"))
		return b.String()
	}

	maxVisible := 15
	start := m.historyScroll
	if start >= len(m.history) {
		start = 0
	}
	end := start + maxVisible
	if end > len(m.history) {
		end = len(m.history)
	}

	for i := start; i < end; i++ {
		run := m.history[i]

		var icon string
		var style lipgloss.Style
		if run.Status == domain.RunSucceeded {
			icon = "✓"
			style = runningStyle
		} else {
			icon = "✗"
			style = failedStyle
		}

		line := fmt.Sprintf("  %s %-38s %-12s %-8s %s",
			icon, run.ID, run.Event, run.Branch,
			run.StartedAt.Format(time.DateTime))

		if i == m.selectedRow {
			line = "> " + line[2:]
			b.WriteString(tabActiveStyle.Render(line))
		} else {
			b.WriteString(style.Render(line))
		}
		b.WriteString("\n")
	}

	if len(m.history) > maxVisible {
		b.WriteString(idleStyle.Render(fmt.Sprintf("  ... showing %d-%d of %d (j/k to scroll)",
			start+1, end, len(m.history))))
		b.WriteString("\n")
	}

	return strings.TrimSuffix(b.String(), "\n")
}
