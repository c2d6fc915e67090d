// Package styles holds the lipgloss styles shared by the progress view and
// the run summaries.
package styles

import (
	"github.com/charmbracelet/lipgloss"
)

// labelWidth is the key column of a summary table.
const labelWidth = 16

// Theme is the colour palette.
type Theme struct {
	Accent     lipgloss.Color
	Foreground lipgloss.Color
	Muted      lipgloss.Color
	Success    lipgloss.Color
	Warning    lipgloss.Color
	Error      lipgloss.Color
}

// DefaultTheme returns the default palette.
func DefaultTheme() *Theme {
	return &Theme{
		Accent:     lipgloss.Color("#F97316"),
		Foreground: lipgloss.Color("#CDD6F4"),
		Muted:      lipgloss.Color("#6C7086"),
		Success:    lipgloss.Color("#A6E3A1"),
		Warning:    lipgloss.Color("#F9E2AF"),
		Error:      lipgloss.Color("#F38BA8"),
	}
}

// Styles are the rendered forms of a theme.
type Styles struct {
	theme *Theme

	Title   lipgloss.Style
	Normal  lipgloss.Style
	Muted   lipgloss.Style
	Label   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style

	// Plan operations, keyed by add, update and delete.
	ops map[string]lipgloss.Style
}

// NewStyles creates styles from a theme. A nil theme uses the default.
func NewStyles(theme *Theme) *Styles {
	if theme == nil {
		theme = DefaultTheme()
	}
	fg := func(c lipgloss.Color) lipgloss.Style {
		return lipgloss.NewStyle().Foreground(c)
	}

	return &Styles{
		theme:   theme,
		Title:   fg(theme.Accent).Bold(true),
		Normal:  fg(theme.Foreground),
		Muted:   fg(theme.Muted),
		Label:   fg(theme.Muted).Width(labelWidth),
		Success: fg(theme.Success),
		Warning: fg(theme.Warning),
		Error:   fg(theme.Error),
		ops: map[string]lipgloss.Style{
			"add":    fg(theme.Success),
			"update": fg(theme.Warning),
			"delete": fg(theme.Error),
		},
	}
}

// DefaultStyles returns styles with the default theme.
func DefaultStyles() *Styles {
	return NewStyles(DefaultTheme())
}

// Plain returns styles that render text unchanged, for non-terminal output.
func Plain() *Styles {
	plain := lipgloss.NewStyle()
	return &Styles{
		theme:   DefaultTheme(),
		Title:   plain,
		Normal:  plain,
		Muted:   plain,
		Label:   plain.Width(labelWidth),
		Success: plain,
		Warning: plain,
		Error:   plain,
	}
}

// Op returns the style of a plan operation. Unknown operations are muted.
func (s *Styles) Op(op string) lipgloss.Style {
	if style, ok := s.ops[op]; ok {
		return style
	}
	return s.Muted
}

// Theme returns the palette behind these styles.
func (s *Styles) Theme() *Theme {
	return s.theme
}
