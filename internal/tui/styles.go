package tui

import "github.com/charmbracelet/lipgloss"

var (
	colorPrimary = lipgloss.Color("#8BC34A")
	colorMuted   = lipgloss.Color("#6b7280")
	colorBorder  = lipgloss.Color("#2a3850")
	colorError   = lipgloss.Color("#e53935")
	colorWarning = lipgloss.Color("#FFC107")
	colorInfo    = lipgloss.Color("#2196F3")
)

func defaultPalette() map[style]lipgloss.Style {
	return map[style]lipgloss.Style{
		stHeader:     lipgloss.NewStyle().Bold(true).Foreground(colorPrimary),
		stLabel:      lipgloss.NewStyle().Foreground(colorInfo),
		stMuted:      lipgloss.NewStyle().Foreground(colorMuted),
		stFocus:      lipgloss.NewStyle().Bold(true),
		stCursor:     lipgloss.NewStyle().Reverse(true),
		stError:      lipgloss.NewStyle().Foreground(colorError),
		stOK:         lipgloss.NewStyle().Foreground(colorPrimary),
		stBorder:     lipgloss.NewStyle().Foreground(colorBorder),
		stMenu:       lipgloss.NewStyle(),
		stMenuActive: lipgloss.NewStyle().Reverse(true),
		stButton:     lipgloss.NewStyle().Bold(true).Foreground(colorPrimary),
		stOverlay:    lipgloss.NewStyle().Bold(true).Foreground(colorWarning),
	}
}
