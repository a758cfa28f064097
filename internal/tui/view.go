package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/existflow/irontrack/internal/model"
	"github.com/existflow/irontrack/internal/timer"
)

// View renders the UI
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	header := m.renderHeader()
	statusBar := m.renderStatusBar()
	bodyHeight := m.height - lipgloss.Height(header) - lipgloss.Height(statusBar)

	var body string
	switch m.mode {
	case ModeCategorize:
		body = lipgloss.Place(
			m.width, bodyHeight,
			lipgloss.Center, lipgloss.Center,
			m.renderDialog(),
			lipgloss.WithWhitespaceChars(" "),
		)
	case ModeHelp:
		body = m.renderHelp()
	default:
		body = lipgloss.JoinVertical(lipgloss.Left, m.renderTimer(), m.renderLogs())
	}

	return lipgloss.JoinVertical(lipgloss.Left, header, body, statusBar)
}

// renderHeader is the persistent timer widget
func (m Model) renderHeader() string {
	title := HeaderStyle.Render("IronTrack")
	phase := m.display.Phase
	clock := lipgloss.NewStyle().Bold(true).Foreground(PhaseColor(phase)).
		Render(fmt.Sprintf("● %s  %s", m.display.Formatted, phase))

	gap := m.width - lipgloss.Width(title) - lipgloss.Width(clock) - 1
	return title + repeat(" ", gap) + clock
}

func (m Model) renderTimer() string {
	label := "Press s to start tracking"
	if m.display.IsRunning {
		label = "Press x to stop and categorize"
	}
	readout := TimerStyle.BorderForeground(PhaseColor(m.display.Phase)).
		Render(lipgloss.NewStyle().Foreground(PhaseColor(m.display.Phase)).Render(m.display.Formatted))

	return lipgloss.NewStyle().Padding(1, 2).Render(
		lipgloss.JoinVertical(lipgloss.Left, readout, HelpStyle.Render(label)))
}

func (m Model) renderLogs() string {
	width := m.width - 4
	var s strings.Builder

	s.WriteString(lipgloss.NewStyle().Bold(true).Foreground(Primary).Render("Recent logs") + "\n")
	s.WriteString(lipgloss.NewStyle().Foreground(Border).Render(repeat("─", width-4)) + "\n")

	if len(m.logs) == 0 {
		s.WriteString(HelpStyle.Render("  No logs yet."))
	}

	for _, l := range m.logs {
		s.WriteString(m.formatLog(l, width-4) + "\n")
	}

	return LogListStyle.Width(width).Render(s.String())
}

func (m Model) formatLog(l model.TimeLog, width int) string {
	start := l.StartTime.Local().Format("Jan 02 15:04")
	if l.IsOpen() {
		return ItemChosenStyle.Render(fmt.Sprintf("%s  %-8s  running", start, "--:--:--"))
	}

	category := HelpStyle.Render("uncategorized")
	if l.IsCategorized() {
		category = fmt.Sprintf("%s / %s", m.projectName(*l.ProjectID), m.taskName(*l.TaskID))
		if l.Description != "" {
			category += HelpStyle.Render(" - " + l.Description)
		}
	}
	line := fmt.Sprintf("%s  %s  %s", start, timer.FormatElapsed(l.DurationSeconds), category)
	if l.ClosedReason != "" && l.ClosedReason != model.ClosedFinalized {
		line += HelpStyle.Render(" (" + l.ClosedReason + ")")
	}
	return ItemStyle.MaxWidth(width).Render(line)
}

func (m Model) projectName(id int64) string {
	if name, ok := m.projectNames[id]; ok {
		return name
	}
	return fmt.Sprintf("project %d", id)
}

func (m Model) taskName(id int64) string {
	if name, ok := m.taskNames[id]; ok {
		return name
	}
	return fmt.Sprintf("task %d", id)
}

func (m Model) renderDialog() string {
	projectID, taskID, _ := m.dialog.Selection()

	var projects strings.Builder
	projects.WriteString(m.paneTitle("Project", PaneProjects) + "\n")
	list := m.dialog.Projects()
	if len(list) == 0 {
		projects.WriteString(HelpStyle.Render("  no projects"))
	}
	for i, p := range list {
		projects.WriteString(m.renderItem(p.Name, i == m.projCursor && m.pane == PaneProjects, p.ID == projectID) + "\n")
	}

	var tasks strings.Builder
	tasks.WriteString(m.paneTitle("Task", PaneTasks) + "\n")
	taskList := m.currentTasks()
	if len(taskList) == 0 {
		tasks.WriteString(HelpStyle.Render("  no open tasks"))
	}
	for i, t := range taskList {
		tasks.WriteString(m.renderItem(truncate(t.Title, 28), i == m.taskCursor && m.pane == PaneTasks, t.ID == taskID) + "\n")
	}

	columns := lipgloss.JoinHorizontal(lipgloss.Top,
		lipgloss.NewStyle().Width(26).Render(projects.String()),
		lipgloss.NewStyle().Width(32).Render(tasks.String()),
	)

	note := m.paneTitle("Note", PaneNote) + "\n" + m.input.View()

	footer := HelpStyle.Render("tab next • enter select • esc cancel")
	if m.busy || m.dialog.Submitting() {
		footer = HelpStyle.Render("Stopping...")
	} else if m.dialog.CanConfirm() {
		footer = HelpStyle.Render("enter on note to confirm • esc cancel")
	}
	if err := m.dialog.Err(); err != nil {
		footer = ErrorStyle.Render(err.Error()) + "\n" + footer
	}

	title := lipgloss.NewStyle().Bold(true).Render(fmt.Sprintf("Stop timer at %s", m.display.Formatted))
	return ModalStyle.Render(lipgloss.JoinVertical(lipgloss.Left, title, "", columns, "", note, "", footer))
}

func (m Model) paneTitle(title string, pane Pane) string {
	if m.pane == pane {
		return lipgloss.NewStyle().Bold(true).Foreground(Primary).Render("❯ " + title)
	}
	return HelpStyle.Render("  " + title)
}

func (m Model) renderItem(label string, cursor, chosen bool) string {
	prefix := "  "
	if chosen {
		prefix = "✓ "
	}
	switch {
	case cursor:
		return ItemSelectedStyle.Render(prefix + label)
	case chosen:
		return ItemChosenStyle.Render(prefix + label)
	default:
		return ItemStyle.Render(prefix + label)
	}
}

func (m Model) renderStatusBar() string {
	left := m.message
	if left == "" {
		left = "s start • x stop • r refresh • ? help • q quit"
	}
	right := time.Now().Format("15:04")
	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	return StatusBarStyle.Width(m.width).Render(left + repeat(" ", gap) + right)
}

func (m Model) renderHelp() string {
	help := `
  Timer
    s        Start a new timer
    x        Stop the timer (choose project and task)
    r        Refresh recent logs

  Stop dialog
    tab      Next field
    ↑/k ↓/j  Move
    enter    Select, or confirm from the note field
    esc      Cancel, the timer keeps running

  General
    ?        Toggle help
    q        Quit (a running timer keeps running)
`
	return ModalStyle.Render(help)
}
