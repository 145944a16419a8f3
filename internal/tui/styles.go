package tui

import "github.com/charmbracelet/lipgloss"

// Styles groups the lipgloss styles used by the terminal dashboard.
type Styles struct {
	Title   lipgloss.Style
	Muted   lipgloss.Style
	Error   lipgloss.Style
	Success lipgloss.Style
	Notice  lipgloss.Style
	Prompt  lipgloss.Style
	Panel   lipgloss.Style
	Help    lipgloss.Style
}

// DefaultStyles returns the dashboard palette.
func DefaultStyles() Styles {
	return Styles{
		Title:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#39ff14")),
		Muted:   lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		Error:   lipgloss.NewStyle().Foreground(lipgloss.Color("#ff5f5f")),
		Success: lipgloss.NewStyle().Foreground(lipgloss.Color("#5fd75f")),
		Notice:  lipgloss.NewStyle().Foreground(lipgloss.Color("#ffaf00")),
		Prompt:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#ffaf00")),
		Panel:   lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#39ff14")).Padding(0, 1),
		Help:    lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Italic(true),
	}
}
