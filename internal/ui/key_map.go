package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the [key.Binding] mapping for the TUI.
type keyMap struct {
	cancel   key.Binding
	sessions key.Binding
	refresh  key.Binding
	back     key.Binding
	restart  key.Binding
	quit     key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		cancel:   key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "cancel session")),
		sessions: key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "sessions")),
		refresh:  key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
		back:     key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
		restart:  key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "restart")),
		quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.cancel, k.sessions, k.refresh},
		{k.back, k.restart, k.quit},
	}
}
