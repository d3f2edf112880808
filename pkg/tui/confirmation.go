package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// ConfirmationConfig holds the configuration for a confirmation prompt
type ConfirmationConfig struct {
	Title       string   // Dialog title (optional)
	Message     string   // Main confirmation message
	Details     []string // Optional detail lines
	Destructive bool     // If true, Yes is red, No is green
	Width       int
}

// ConfirmationModel asks a y/n question and runs the matching callback
type ConfirmationModel struct {
	active    bool
	config    ConfirmationConfig
	onConfirm func() tea.Cmd
	onCancel  func() tea.Cmd
}

func NewConfirmation() *ConfirmationModel {
	return &ConfirmationModel{}
}

// Show activates the confirmation with the given configuration
func (m *ConfirmationModel) Show(config ConfirmationConfig, onConfirm, onCancel func() tea.Cmd) {
	m.active = true
	m.config = config
	m.onConfirm = onConfirm
	m.onCancel = onCancel
}

// Active returns whether the confirmation is currently shown
func (m *ConfirmationModel) Active() bool {
	return m.active
}

// Update handles key events for the confirmation. Any other key is ignored
// while the prompt is open.
func (m *ConfirmationModel) Update(msg tea.KeyMsg) tea.Cmd {
	if !m.active {
		return nil
	}

	switch msg.String() {
	case "y", "Y":
		m.active = false
		if m.onConfirm != nil {
			return m.onConfirm()
		}
	case "n", "N", "esc":
		m.active = false
		if m.onCancel != nil {
			return m.onCancel()
		}
	}
	return nil
}

// View renders the prompt as a bordered dialog
func (m *ConfirmationModel) View() string {
	if !m.active {
		return ""
	}

	width := m.config.Width
	if width <= 0 {
		width = 50
	}
	contentWidth := width - 4
	center := lipgloss.NewStyle().Width(contentWidth).Align(lipgloss.Center)

	var b strings.Builder
	if m.config.Title != "" {
		b.WriteString(center.Render(lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color(ColorWarning)).
			Render(m.config.Title)))
		b.WriteString("\n\n")
	}
	b.WriteString(center.Render(m.config.Message))
	b.WriteString("\n")
	for _, d := range m.config.Details {
		b.WriteString(DescriptionStyle.Render("  • " + d))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(center.Render(formatConfirmOptions(m.config.Destructive)))

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(ColorActive)).
		Padding(0, 1).
		Width(width).
		Render(b.String())
}

// formatConfirmOptions colors y/n by how destructive the answer is
func formatConfirmOptions(destructive bool) string {
	yes := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(ColorSuccess))
	no := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(ColorDanger))
	if destructive {
		yes, no = no, yes
	}
	return fmt.Sprintf("[%s]es / [%s]o", yes.Render("y"), no.Render("n"))
}
