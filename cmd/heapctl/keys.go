package main

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the explorer's keyboard shortcuts
type KeyMap struct {
	Step  key.Binding
	Back  key.Binding
	End   key.Binding
	Reset key.Binding
	Table key.Binding
	Copy  key.Binding
	Help  key.Binding
	Quit  key.Binding
}

// DefaultKeyMap returns the default keybindings
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Step: key.NewBinding(
			key.WithKeys("right", "l", "n", " "),
			key.WithHelp("→/n", "step"),
		),
		Back: key.NewBinding(
			key.WithKeys("left", "h", "p"),
			key.WithHelp("←/p", "step back"),
		),
		End: key.NewBinding(
			key.WithKeys("end", "G"),
			key.WithHelp("G", "run to end"),
		),
		Reset: key.NewBinding(
			key.WithKeys("home", "r"),
			key.WithHelp("r", "reset"),
		),
		Table: key.NewBinding(
			key.WithKeys("t"),
			key.WithHelp("t", "toggle table"),
		),
		Copy: key.NewBinding(
			key.WithKeys("y"),
			key.WithHelp("y", "copy chain"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c", "esc"),
			key.WithHelp("q", "quit"),
		),
	}
}

// ShortHelp returns the bindings shown in the footer.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Step, k.Back, k.End, k.Help, k.Quit}
}

// FullHelp returns every binding, for the help overlay.
func (k KeyMap) FullHelp() []key.Binding {
	return []key.Binding{k.Step, k.Back, k.End, k.Reset, k.Table, k.Copy, k.Help, k.Quit}
}
