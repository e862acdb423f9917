package main

import "github.com/charmbracelet/lipgloss"

var (
	// Palette
	accent     = lipgloss.Color("#5F87FF")
	infoColor  = lipgloss.Color("#87D7AF")
	liveColor  = lipgloss.Color("#5FD75F")
	errorColor = lipgloss.Color("#FF5F5F")
	dimColor   = lipgloss.Color("#585858")
	frameColor = lipgloss.Color("#3A3A3A")

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(accent).
			Background(lipgloss.Color("#1C1C1C")).
			Padding(0, 1)

	geometryStyle = lipgloss.NewStyle().
			Foreground(infoColor).
			Italic(true)

	gridStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(frameColor).
			Padding(0, 1)

	// Block cells
	freeCellStyle = lipgloss.NewStyle().
			Foreground(dimColor)

	usedCellStyle = lipgloss.NewStyle().
			Foreground(liveColor).
			Bold(true)

	cursorCellStyle = lipgloss.NewStyle().
			Background(accent).
			Foreground(lipgloss.Color("#EEEEEE")).
			Bold(true)

	// Status bar
	statusStyle = lipgloss.NewStyle().
			Foreground(dimColor).
			Padding(0, 1)

	statusCountStyle = lipgloss.NewStyle().
				Foreground(accent).
				Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(errorColor).
			Bold(true)

	// Help overlay
	modalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(accent).
			Padding(1, 2).
			Background(lipgloss.Color("#1C1C1C"))

	modalTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(accent).
			MarginBottom(1)
)
