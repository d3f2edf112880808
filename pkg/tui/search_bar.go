package tui

import (
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// SearchBar is a single line input with an icon, used for the name filter
// and the tag filter text
type SearchBar struct {
	input    textinput.Model
	icon     string
	isActive bool
	width    int
}

// NewSearchBar creates a new search bar component
func NewSearchBar(icon, placeholder string) *SearchBar {
	ti := textinput.New()
	ti.Placeholder = placeholder
	ti.CharLimit = 200
	ti.Width = 30

	return &SearchBar{input: ti, icon: icon}
}

// SetActive sets whether the search bar takes keystrokes
func (s *SearchBar) SetActive(active bool) tea.Cmd {
	s.isActive = active
	if active {
		return s.input.Focus()
	}
	s.input.Blur()
	return nil
}

func (s *SearchBar) Active() bool {
	return s.isActive
}

// SetWidth sets the outer width. The input takes what the border, padding
// and icon leave.
func (s *SearchBar) SetWidth(width int) {
	s.width = width
	s.input.Width = max(width-10, 5)
}

func (s *SearchBar) Value() string {
	return s.input.Value()
}

func (s *SearchBar) SetValue(value string) {
	s.input.SetValue(value)
	s.input.CursorEnd()
}

// Update feeds a message to the input and reports whether its value changed
func (s *SearchBar) Update(msg tea.Msg) (bool, tea.Cmd) {
	before := s.input.Value()
	var cmd tea.Cmd
	s.input, cmd = s.input.Update(msg)
	return s.input.Value() != before, cmd
}

// View renders the bar, purple when active
func (s *SearchBar) View() string {
	borderColor := ColorInactive
	if s.isActive {
		borderColor = ColorActive
	}

	style := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(borderColor)).
		Width(max(s.width-2, 10)).
		Padding(0, 1)

	var icon string
	if s.isActive {
		icon = lipgloss.NewStyle().
			Background(lipgloss.Color(ColorActive)).
			Foreground(lipgloss.Color(ColorWhite)).
			Bold(true).
			Padding(0, 1).
			Render(s.icon)
	} else {
		icon = lipgloss.NewStyle().
			Foreground(lipgloss.Color(ColorNormal)).
			Bold(true).
			Render(" " + s.icon + " ")
	}

	return style.Render(lipgloss.JoinHorizontal(lipgloss.Center, icon, " ", s.input.View()))
}
