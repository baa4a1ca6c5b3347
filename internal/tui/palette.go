package tui

import "github.com/charmbracelet/lipgloss"

var (
	ColorInk     = lipgloss.Color("#E5E9F0")
	ColorDim     = lipgloss.Color("#7A8291")
	ColorAccent  = lipgloss.Color("#88C0D0")
	ColorSuccess = lipgloss.Color("#A3BE8C")
	ColorWarn    = lipgloss.Color("#EBCB8B")
	ColorError   = lipgloss.Color("#BF616A")
)

// Styles is the set of render styles handed to the reporting layer. Resolved
// once at startup from the configured color mode; a disabled palette renders
// plain text.
type Styles struct {
	Title   lipgloss.Style
	Label   lipgloss.Style
	Value   lipgloss.Style
	Dim     lipgloss.Style
	Success lipgloss.Style
	Warn    lipgloss.Style
	Error   lipgloss.Style
}

// NewStyles builds a palette. When enabled is false every style is a
// pass-through.
func NewStyles(enabled bool) Styles {
	if !enabled {
		plain := lipgloss.NewStyle()
		return Styles{Title: plain, Label: plain, Value: plain, Dim: plain, Success: plain, Warn: plain, Error: plain}
	}
	return Styles{
		Title:   lipgloss.NewStyle().Bold(true).Foreground(ColorAccent),
		Label:   lipgloss.NewStyle().Foreground(ColorInk),
		Value:   lipgloss.NewStyle().Bold(true).Foreground(ColorInk),
		Dim:     lipgloss.NewStyle().Foreground(ColorDim),
		Success: lipgloss.NewStyle().Foreground(ColorSuccess),
		Warn:    lipgloss.NewStyle().Foreground(ColorWarn),
		Error:   lipgloss.NewStyle().Foreground(ColorError),
	}
}
