package tui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines all key bindings
type keyMap struct {
	Up      key.Binding
	Down    key.Binding
	Tab     key.Binding
	Enter   key.Binding
	Start   key.Binding
	Stop    key.Binding
	Help    key.Binding
	Quit    key.Binding
	Escape  key.Binding
	Refresh key.Binding
}

var keys = keyMap{
	Up:      key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
	Down:    key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
	Tab:     key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next field")),
	Enter:   key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "select/confirm")),
	Start:   key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "start timer")),
	Stop:    key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "stop timer")),
	Help:    key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
	Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	Escape:  key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel")),
	Refresh: key.NewBinding(key.WithKeys("R", "r"), key.WithHelp("r", "refresh")),
}
