package tui

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// StatusType represents the type of status message
type StatusType int

const (
	StatusTypeSuccess StatusType = iota
	StatusTypeWarning
	StatusTypeError
	StatusTypeInfo
)

func (t StatusType) icon() string {
	switch t {
	case StatusTypeSuccess:
		return "✓"
	case StatusTypeWarning:
		return "⚠"
	case StatusTypeError:
		return "×"
	default:
		return "ℹ"
	}
}

// statusFeedback is a temporary status message
type statusFeedback struct {
	message string
	kind    StatusType
	until   time.Time
	seq     int
}

// StatusManager shows one status line at a time. A message disappears after
// Duration unless a newer one replaced it first.
type StatusManager struct {
	Duration time.Duration
	current  *statusFeedback
	seq      int
	now      func() time.Time
}

// NewStatusManager creates a new status manager
func NewStatusManager() *StatusManager {
	return &StatusManager{Duration: 2 * time.Second, now: time.Now}
}

// clearStatusMsg clears the status line when seq is still the one shown
type clearStatusMsg struct{ seq int }

// Show displays a message and returns the command that clears it
func (sm *StatusManager) Show(kind StatusType, message string) tea.Cmd {
	sm.seq++
	seq := sm.seq
	sm.current = &statusFeedback{
		message: message,
		kind:    kind,
		until:   sm.now().Add(sm.Duration),
		seq:     seq,
	}
	return tea.Tick(sm.Duration, func(time.Time) tea.Msg {
		return clearStatusMsg{seq: seq}
	})
}

func (sm *StatusManager) ShowSuccess(message string) tea.Cmd {
	return sm.Show(StatusTypeSuccess, message)
}

func (sm *StatusManager) ShowWarning(message string) tea.Cmd {
	return sm.Show(StatusTypeWarning, message)
}

func (sm *StatusManager) ShowError(message string) tea.Cmd {
	return sm.Show(StatusTypeError, message)
}

func (sm *StatusManager) ShowInfo(message string) tea.Cmd {
	return sm.Show(StatusTypeInfo, message)
}

// clear drops the message if seq still identifies it
func (sm *StatusManager) clear(seq int) {
	if sm.current != nil && sm.current.seq == seq {
		sm.current = nil
	}
}

// Current returns the status line, if one is showing
func (sm *StatusManager) Current() (string, StatusType, bool) {
	if sm.current == nil {
		return "", 0, false
	}
	if sm.now().After(sm.current.until) {
		sm.current = nil
		return "", 0, false
	}
	return fmt.Sprintf("%s %s", sm.current.kind.icon(), sm.current.message), sm.current.kind, true
}
