package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/truncate"

	"github.com/pluqqy/lora-gallery/pkg/models"
)

// StackRenderer draws the Selection Stack pane
type StackRenderer struct {
	Width        int
	Height       int
	IsActive     bool
	Cursor       int
	Items        []models.SelectionItem
	PrimaryOnly  bool
	ActivePreset string
}

func (r *StackRenderer) Render() string {
	var content strings.Builder
	inner := max(r.Width-4, 10)

	title := fmt.Sprintf("STACK (%d)", len(r.Items))
	content.WriteString(paneHeader(title, r.IsActive, inner))
	content.WriteString("\n")
	if r.ActivePreset != "" {
		content.WriteString(HeaderPaddingStyle.Render(PresetBadgeStyle.Render(r.ActivePreset)))
	}
	content.WriteString("\n")

	fit := max(r.Height-5, 1)
	if len(r.Items) == 0 {
		content.WriteString(HeaderPaddingStyle.Render(EmptyStyle.Render("Nothing selected")))
		content.WriteString(strings.Repeat("\n", fit-1))
	} else {
		start := scrollStart(r.Cursor, fit, len(r.Items))
		end := min(start+fit, len(r.Items))
		rows := make([]string, 0, fit)
		for i := start; i < end; i++ {
			rows = append(rows, r.renderItem(i, inner))
		}
		content.WriteString(strings.Join(rows, "\n"))
		content.WriteString(strings.Repeat("\n", fit-(end-start)))
	}

	return GetBorderStyle(r.IsActive).
		Width(r.Width - 2).
		Render(content.String())
}

func (r *StackRenderer) renderItem(i, width int) string {
	item := r.Items[i]
	focused := i == r.Cursor && r.IsActive

	pointer := "  "
	if focused {
		pointer = CursorMark() + " "
	}

	on := OffStyle.Render("[ ]")
	if item.On {
		on = OnStyle.Render("[✓]")
	}

	cols := fmt.Sprintf("M %5.2f", item.Strength)
	if !r.PrimaryOnly {
		cols += fmt.Sprintf("  C %5.2f", item.ClipStrength())
	}
	trig := OffStyle.Render("T")
	if item.UseTrigger {
		trig = OnStyle.Render("T")
	}
	right := DescriptionStyle.Render(cols) + " " + trig

	nameWidth := max(width-lipgloss.Width(right)-10, 6)
	name := truncate.StringWithTail(item.EntryName, uint(nameWidth), "…")
	style := NormalStyle
	switch {
	case focused:
		style = SelectedStyle
	case !item.On:
		style = OffStyle
	}
	gap := max(width-8-lipgloss.Width(name)-lipgloss.Width(right), 1)

	return HeaderPaddingStyle.Render(pointer + on + " " + style.Render(name) + strings.Repeat(" ", gap) + right)
}
