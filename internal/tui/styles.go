package tui

import (
	"github.com/charmbracelet/lipgloss"
)

// Border styles
var (
	StyleFocusedBorder = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("62"))

	StyleUnfocusedBorder = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("240"))
)

// Status styles
var (
	StyleStatusRunning   = statusStyle("yellow")
	StyleStatusStalled   = statusStyle("208")
	StyleStatusComplete  = statusStyle("green")
	StyleStatusFailed    = statusStyle("red")
	StyleStatusCancelled = statusStyle("240")
)

func statusStyle(color string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(color)).Bold(true)
}

// statusBadge is the icon and style a task status is drawn with.
type statusBadge struct {
	icon  string
	style lipgloss.Style
}

var statusBadges = map[string]statusBadge{
	statusRunning:      {"●", StyleStatusRunning},
	statusStalled:      {"!", StyleStatusStalled},
	statusUnresponsive: {"!", StyleStatusStalled},
	statusCompleted:    {"✓", StyleStatusComplete},
	statusFailed:       {"✗", StyleStatusFailed},
	statusCrashed:      {"✗", StyleStatusFailed},
	statusCancelled:    {"○", StyleStatusCancelled},
}

// StatusIcon returns a styled status indicator.
func StatusIcon(status string) string {
	badge, ok := statusBadges[status]
	if !ok {
		return StyleStatusCancelled.Render("?")
	}
	return badge.style.Render(badge.icon)
}

// UI element styles
var (
	StyleSelected = lipgloss.NewStyle().
			Background(lipgloss.Color("62")).
			Foreground(lipgloss.Color("0"))

	StyleTitle = lipgloss.NewStyle().
			Bold(true).
			Padding(0, 1)

	StyleHelp = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))
)
