package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines all key bindings for the application
type KeyMap struct {
	// Navigation
	Enter    key.Binding
	Back     key.Binding
	NextPane key.Binding
	PrevPane key.Binding
	Home     key.Binding
	Browse   key.Binding
	Recent   key.Binding

	// Actions
	Quit    key.Binding
	Help    key.Binding
	Search  key.Binding
	Filter  key.Binding
	Watch   key.Binding
	Refresh key.Binding
	WarmUp  key.Binding
}

// DefaultKeyMap returns the default key bindings
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Enter: key.NewBinding(
			key.WithKeys("enter", "l", "right"),
			key.WithHelp("enter", "open/play"),
		),
		Back: key.NewBinding(
			key.WithKeys("esc", "h", "left", "backspace"),
			key.WithHelp("esc", "back"),
		),
		NextPane: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "next pane"),
		),
		PrevPane: key.NewBinding(
			key.WithKeys("shift+tab"),
			key.WithHelp("S-tab", "previous pane"),
		),
		Home: key.NewBinding(
			key.WithKeys("1"),
			key.WithHelp("1", "home"),
		),
		Browse: key.NewBinding(
			key.WithKeys("2"),
			key.WithHelp("2", "browse"),
		),
		Recent: key.NewBinding(
			key.WithKeys("3"),
			key.WithHelp("3", "recently added"),
		),

		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
		Search: key.NewBinding(
			key.WithKeys("/", "ctrl+k"),
			key.WithHelp("/", "search"),
		),
		Filter: key.NewBinding(
			key.WithKeys("f"),
			key.WithHelp("f", "filter"),
		),
		Watch: key.NewBinding(
			key.WithKeys("w"),
			key.WithHelp("w", "watch featured"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "refresh"),
		),
		WarmUp: key.NewBinding(
			key.WithKeys("W"),
			key.WithHelp("W", "load full search index"),
		),
	}
}

// Keys is the global key bindings instance
var Keys = DefaultKeyMap()
