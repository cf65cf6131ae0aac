package report

import "github.com/charmbracelet/lipgloss"

// Colors used in terminal summaries.
var (
	colorA       = lipgloss.Color("#74D5D8")
	colorB       = lipgloss.Color("#9774D8")
	colorOverlap = lipgloss.Color("#9C24AF")
	colorGray    = lipgloss.Color("#666666")
	colorWhite   = lipgloss.Color("#FFFFFF")
	colorYellow  = lipgloss.Color("#FFFF00")
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorWhite)

	labelStyle = lipgloss.NewStyle().
			Foreground(colorGray)

	groupAStyle = lipgloss.NewStyle().
			Foreground(colorA)

	groupBStyle = lipgloss.NewStyle().
			Foreground(colorB)

	rateStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorOverlap)

	warnStyle = lipgloss.NewStyle().
			Foreground(colorYellow)
)
