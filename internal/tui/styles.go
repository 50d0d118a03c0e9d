package tui

import "github.com/charmbracelet/lipgloss"

var (
	colorPrimary = lipgloss.Color("#7D56F4")
	colorGain    = lipgloss.Color("#04B575")
	colorLoss    = lipgloss.Color("#FF4672")
	colorMuted   = lipgloss.Color("#626262")
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(colorPrimary).
			Bold(true).
			MarginBottom(1)

	tableStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorMuted)

	gainStyle  = lipgloss.NewStyle().Foreground(colorGain).Bold(true)
	lossStyle  = lipgloss.NewStyle().Foreground(colorLoss).Bold(true)
	mutedStyle = lipgloss.NewStyle().Foreground(colorMuted)
	errorStyle = lipgloss.NewStyle().Foreground(colorLoss)
)

// plStyle picks the colour for a P/L figure.
func plStyle(v float64) lipgloss.Style {
	switch {
	case v > 0:
		return gainStyle
	case v < 0:
		return lossStyle
	default:
		return mutedStyle
	}
}
