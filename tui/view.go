package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/hochfrequenz/swe-verify/internal/verify"
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

	passedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))

	failedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	skippedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	pendingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("244"))

	runningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39"))

	selectedStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("236")).
			Bold(true)

	statusBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("236")).
			Foreground(lipgloss.Color("255"))
)

// View renders the dashboard.
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	var b strings.Builder

	header := fmt.Sprintf(" swe-verify │ Tasks: %d │ Passed: %d │ Failed: %d │ Skipped: %d │ Elapsed: %s ",
		len(m.rows), m.passed, m.failed, m.skipped,
		humanize.RelTime(m.startedAt, time.Now(), "", ""))
	b.WriteString(headerStyle.Width(m.width).Render(header))
	b.WriteString("\n\n")

	b.WriteString(titleStyle.Render("Verification progress"))
	b.WriteString("\n")

	end := m.scroll + m.visibleRows()
	if end > len(m.rows) {
		end = len(m.rows)
	}
	for i := m.scroll; i < end; i++ {
		line := m.renderRow(m.rows[i])
		if i == m.selectedRow {
			line = selectedStyle.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	b.WriteString("\n")
	status := " j/k: navigate │ g/G: top/bottom │ q: quit "
	if m.finished {
		status = " run complete │ q: quit "
	}
	b.WriteString(statusBarStyle.Width(m.width).Render(status))

	return b.String()
}

func (m Model) renderRow(row *TaskView) string {
	elapsed := "-"
	if d := row.Elapsed(); d > 0 {
		elapsed = d.Round(time.Second).String()
	}
	line := fmt.Sprintf("  %-24s %-14s %8s  %s",
		row.TaskID, row.State, elapsed, stateGlyph(row))
	return stateStyle(row).Render(line)
}

func stateStyle(row *TaskView) lipgloss.Style {
	if !row.State.Terminal() {
		if row.State == verify.StatePending {
			return pendingStyle
		}
		return runningStyle
	}
	if row.Record == nil {
		return failedStyle
	}
	switch row.Record.Status() {
	case "passed":
		return passedStyle
	case "skipped":
		return skippedStyle
	default:
		return failedStyle
	}
}

func stateGlyph(row *TaskView) string {
	if !row.State.Terminal() {
		if row.State == verify.StatePending {
			return "·"
		}
		return "…"
	}
	if row.Record == nil {
		return "❌"
	}
	switch row.Record.Status() {
	case "passed":
		return "✅"
	case "skipped":
		return "⏭"
	default:
		return "❌"
	}
}
