package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/pluqqy/lora-gallery/pkg/gallery"
)

// Color constants
const (
	ColorActive   = "170" // Purple/magenta for active elements
	ColorInactive = "240" // Gray for inactive elements
	ColorSelected = "236" // Dark gray for background selection
	ColorNormal   = "245"
	ColorDim      = "241"
	ColorWarning  = "214" // Orange
	ColorDanger   = "196"
	ColorSuccess  = "28"
	ColorWhite    = "255"
	ColorDark     = "235"
	ColorPrimary  = "33"
)

var (
	ActiveBorderStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color(ColorActive))

	InactiveBorderStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color(ColorInactive))

	SelectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(ColorActive)).
			Background(lipgloss.Color(ColorSelected)).
			Bold(true)

	NormalStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(ColorNormal))

	HeaderPaddingStyle = lipgloss.NewStyle().
				PaddingLeft(1).
				PaddingRight(1)

	DescriptionStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color(ColorDim))

	EmptyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(ColorDim)).
			Italic(true)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(ColorDanger))

	SuccessStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(ColorSuccess))

	WarningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(ColorWarning))

	// Checked and on markers in the stack and the checklist
	OnStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color(ColorSuccess)).
		Bold(true)

	OffStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(ColorInactive))

	PresetBadgeStyle = lipgloss.NewStyle().
				Background(lipgloss.Color(ColorPrimary)).
				Foreground(lipgloss.Color(ColorWhite)).
				Padding(0, 1).
				Bold(true)

	HelpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(ColorDim))

	StatusBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("62")).
			Foreground(lipgloss.Color("230")).
			Padding(0, 1)
)

// GetActiveHeaderStyle colors a pane title by focus
func GetActiveHeaderStyle(isActive bool) lipgloss.Style {
	color := ColorInactive
	if isActive {
		color = ColorActive
	}
	return lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color(color))
}

func GetActiveColonStyle(isActive bool) lipgloss.Style {
	color := ColorInactive
	if isActive {
		color = ColorActive
	}
	return lipgloss.NewStyle().
		Foreground(lipgloss.Color(color))
}

func GetBorderStyle(isActive bool) lipgloss.Style {
	if isActive {
		return ActiveBorderStyle
	}
	return InactiveBorderStyle
}

// Tag chip style
func GetTagChipStyle(color string) lipgloss.Style {
	return lipgloss.NewStyle().
		Background(lipgloss.Color(color)).
		Foreground(lipgloss.Color(ColorWhite)).
		Padding(0, 1)
}

// syncMark renders the per-entry sync indicator
func syncMark(state gallery.SyncState) string {
	switch state {
	case gallery.SyncLoading:
		return WarningStyle.Render("⟳")
	case gallery.SyncFailed:
		return ErrorStyle.Render("×")
	default:
		return ""
	}
}
