package tui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/existflow/irontrack/internal/timer"
)

// Color palette
var (
	// Timer colors
	Running  = lipgloss.Color("#95E1A3") // Green
	Awaiting = lipgloss.Color("#FFE66D") // Yellow
	Idle     = lipgloss.Color("#6C757D") // Gray
	Danger   = lipgloss.Color("#FF6B6B") // Red

	// UI colors
	Primary   = lipgloss.Color("#4ECDC4")
	Surface   = lipgloss.Color("#16213e")
	TextMuted = lipgloss.Color("#888888")
	Border    = lipgloss.Color("#333333")
)

// Styles
var (
	// Header
	HeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(Primary).
			Padding(0, 1)

	// Big timer readout
	TimerStyle = lipgloss.NewStyle().
			Bold(true).
			Padding(1, 4).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Border)

	// History list
	LogListStyle = lipgloss.NewStyle().
			Padding(1, 2)

	// Picker item
	ItemStyle = lipgloss.NewStyle().
			Padding(0, 1)

	ItemSelectedStyle = lipgloss.NewStyle().
				Padding(0, 1).
				Background(Surface).
				Bold(true)

	ItemChosenStyle = lipgloss.NewStyle().
			Padding(0, 1).
			Foreground(Primary)

	// Status bar
	StatusBarStyle = lipgloss.NewStyle().
			Foreground(TextMuted).
			Padding(0, 1).
			BorderStyle(lipgloss.NormalBorder()).
			BorderTop(true).
			BorderForeground(Border)

	ErrorStyle = lipgloss.NewStyle().Foreground(Danger)

	// Input modal
	ModalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Primary).
			Padding(1, 2)

	// Help text
	HelpStyle = lipgloss.NewStyle().
			Foreground(TextMuted)
)

// PhaseColor returns the accent color for a timer phase
func PhaseColor(p timer.Phase) lipgloss.Color {
	switch p {
	case timer.PhaseRunning:
		return Running
	case timer.PhaseAwaitingCategorization:
		return Awaiting
	default:
		return Idle
	}
}
