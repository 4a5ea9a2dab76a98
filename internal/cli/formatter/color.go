package formatter

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/alexanderramin/sitesync/internal/domain"
)

// Gruvbox-inspired color palette.
var (
	ColorGreen  = lipgloss.Color("#8ec07c")
	ColorYellow = lipgloss.Color("#fabd2f")
	ColorRed    = lipgloss.Color("#fb4934")
	ColorBlue   = lipgloss.Color("#83a598")
	ColorPurple = lipgloss.Color("#d3869b")
	ColorDim    = lipgloss.Color("#928374")
	ColorFg     = lipgloss.Color("#ebdbb2")
	ColorHeader = lipgloss.Color("#fe8019")
)

var (
	StyleGreen  = lipgloss.NewStyle().Foreground(ColorGreen)
	StyleYellow = lipgloss.NewStyle().Foreground(ColorYellow)
	StyleRed    = lipgloss.NewStyle().Foreground(ColorRed)
	StyleBlue   = lipgloss.NewStyle().Foreground(ColorBlue)
	StylePurple = lipgloss.NewStyle().Foreground(ColorPurple)
	StyleDim    = lipgloss.NewStyle().Foreground(ColorDim)
	StyleFg     = lipgloss.NewStyle().Foreground(ColorFg)
	StyleHeader = lipgloss.NewStyle().Foreground(ColorHeader).Bold(true)
	StyleBold   = lipgloss.NewStyle().Foreground(ColorFg).Bold(true)
)

// StatusStyle maps a work status to its color.
func StatusStyle(s domain.Status) lipgloss.Style {
	switch s {
	case domain.StatusCompleted:
		return StyleGreen
	case domain.StatusActive:
		return StyleBlue
	case domain.StatusReviewing:
		return StylePurple
	case domain.StatusPending:
		return StyleYellow
	default:
		return StyleDim
	}
}

// StatusLabel renders a colored "● Status" label.
func StatusLabel(s domain.Status) string {
	if s == "" {
		return StyleDim.Render("● -")
	}
	return StatusStyle(s).Render("● " + string(s))
}

// StatusSet renders a phase status set as space-separated labels.
func StatusSet(statuses []domain.Status) string {
	if len(statuses) == 0 {
		return StyleDim.Render("-")
	}
	parts := make([]string, len(statuses))
	for i, s := range statuses {
		parts[i] = StatusStyle(s).Render(string(s))
	}
	return strings.Join(parts, " ")
}

// RequestStatusLabel colors a request decision.
func RequestStatusLabel(s domain.RequestStatus) string {
	switch s {
	case domain.RequestApproved:
		return StyleGreen.Render(string(s))
	case domain.RequestRejected:
		return StyleRed.Render(string(s))
	default:
		return StyleYellow.Render(string(domain.RequestPending))
	}
}

// Header renders a section header with the orange header style and an underline.
func Header(text string) string {
	upper := strings.ToUpper(text)
	line := strings.Repeat("─", len(upper))
	return fmt.Sprintf("%s\n%s", StyleHeader.Render(upper), StyleDim.Render(line))
}

func Dim(text string) string {
	return StyleDim.Render(text)
}

func Bold(text string) string {
	return StyleBold.Render(text)
}
