package tui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

// renderHeader draws the title on the left and the panel counters on the right
func renderHeader(width int, title string, loaded, stacked int, mode string) string {
	titleStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("205")).
		Bold(true)

	right := DescriptionStyle.Render(fmt.Sprintf("%d loaded • %d in stack • %s", loaded, stacked, mode))
	left := titleStyle.Render(title)

	gap := max(width-2-lipgloss.Width(left)-lipgloss.Width(right), 1)
	return HeaderPaddingStyle.
		Width(width).
		Render(left + lipgloss.NewStyle().Width(gap).Render("") + right)
}
