package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Quit          key.Binding
	Next          key.Binding
	Prev          key.Binding
	Submit        key.Binding
	Login         key.Binding
	Logout        key.Binding
	Endpoints     key.Binding
	AddOutcome    key.Binding
	RemoveOutcome key.Binding
	// ToggleStartAt is left out of the help line.
	ToggleStartAt key.Binding
	Activate      key.Binding
	Close         key.Binding
	Up            key.Binding
	Down          key.Binding
	Left          key.Binding
	Right         key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Quit:          key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "quit")),
		Next:          key.NewBinding(key.WithKeys("tab", "down"), key.WithHelp("tab", "next")),
		Prev:          key.NewBinding(key.WithKeys("shift+tab", "up"), key.WithHelp("shift+tab", "prev")),
		Submit:        key.NewBinding(key.WithKeys("ctrl+s"), key.WithHelp("ctrl+s", "create")),
		Login:         key.NewBinding(key.WithKeys("ctrl+l"), key.WithHelp("ctrl+l", "login")),
		Logout:        key.NewBinding(key.WithKeys("ctrl+x"), key.WithHelp("ctrl+x", "logout")),
		Endpoints:     key.NewBinding(key.WithKeys("ctrl+e"), key.WithHelp("ctrl+e", "endpoint")),
		AddOutcome:    key.NewBinding(key.WithKeys("ctrl+n"), key.WithHelp("ctrl+n", "add outcome")),
		RemoveOutcome: key.NewBinding(key.WithKeys("ctrl+r"), key.WithHelp("ctrl+r", "remove outcome")),
		ToggleStartAt: key.NewBinding(key.WithKeys("alt+ctrl+p")),
		Activate:      key.NewBinding(key.WithKeys("enter", " ")),
		Close:         key.NewBinding(key.WithKeys("esc")),
		Up:            key.NewBinding(key.WithKeys("up")),
		Down:          key.NewBinding(key.WithKeys("down")),
		Left:          key.NewBinding(key.WithKeys("left")),
		Right:         key.NewBinding(key.WithKeys("right")),
	}
}

// helpLine renders the short help for the form.
func (k keyMap) helpLine() string {
	out := ""
	for i, b := range []key.Binding{k.Next, k.Submit, k.Login, k.Logout, k.Endpoints, k.AddOutcome, k.RemoveOutcome, k.Quit} {
		if i > 0 {
			out += "  "
		}
		h := b.Help()
		out += h.Key + " " + h.Desc
	}
	return out
}
