// Package tui renders the interactive draft editor and the totals view.
package tui

import "github.com/charmbracelet/lipgloss"

// Palette.
const (
	ColorHeader    = lipgloss.Color("39")
	ColorLabel     = lipgloss.Color("245")
	ColorValue     = lipgloss.Color("255")
	ColorMuted     = lipgloss.Color("240")
	ColorHighlight = lipgloss.Color("214")
	ColorOK        = lipgloss.Color("42")
	ColorError     = lipgloss.Color("196")
	ColorBorder    = lipgloss.Color("63")
)

//nolint:gochecknoglobals // shared immutable styles
var (
	HeaderStyle  = lipgloss.NewStyle().Foreground(ColorHeader).Bold(true)
	LabelStyle   = lipgloss.NewStyle().Foreground(ColorLabel)
	ValueStyle   = lipgloss.NewStyle().Foreground(ColorValue).Bold(true)
	SubtleStyle  = lipgloss.NewStyle().Foreground(ColorMuted).Italic(true)
	InfoStyle    = lipgloss.NewStyle().Foreground(ColorLabel).Italic(true)
	ErrorStyle   = lipgloss.NewStyle().Foreground(ColorError).Bold(true)
	OKStyle      = lipgloss.NewStyle().Foreground(ColorOK)
	DerivedStyle = lipgloss.NewStyle().Foreground(ColorHighlight)
	BoxStyle     = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorBorder).
			Padding(0, 1)

	TableHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(ColorHeader).
				BorderStyle(lipgloss.NormalBorder()).
				BorderBottom(true).
				BorderForeground(ColorMuted)
	TableSelectedStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(ColorValue).
				Background(lipgloss.Color("57"))
)

// RenderLoadingIndicator renders the placeholder shown while results resolve.
func RenderLoadingIndicator() string {
	return InfoStyle.Render("Calculating emissions...")
}
