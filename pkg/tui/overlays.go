package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/pluqqy/lora-gallery/pkg/models"
)

// overlayRows is how many list rows an overlay shows at once
const overlayRows = 15

func (a *App) overlayView() string {
	switch a.overlay {
	case editorOverlay:
		if a.editor != nil {
			return a.editor.View()
		}
	case checklistOverlay:
		return a.checklistView()
	case folderOverlay:
		return a.folderView()
	case presetOverlay:
		return a.presetView()
	case presetNameOverlay:
		return a.inputView("SAVE PRESET", fmt.Sprintf("%d entries in the stack", len(a.panel.Stack())))
	case bulkTagOverlay:
		return a.bulkTagView()
	case helpOverlay:
		return a.helpView()
	}
	return ""
}

func overlayBox(title, body, help string) string {
	var b strings.Builder
	b.WriteString(GetActiveHeaderStyle(true).Render(title))
	b.WriteString("\n\n")
	b.WriteString(body)
	if help != "" {
		b.WriteString("\n\n")
		b.WriteString(HelpStyle.Render(help))
	}
	return ActiveBorderStyle.Padding(0, 1).Render(b.String())
}

// listRows renders rows in a scroll window around the list cursor
func (a *App) listRows(rows []string) string {
	if len(rows) == 0 {
		return EmptyStyle.Render("(empty)")
	}
	start := scrollStart(a.listCursor, overlayRows, len(rows))
	end := min(start+overlayRows, len(rows))
	out := make([]string, 0, end-start)
	for i := start; i < end; i++ {
		pointer := "  "
		if i == a.listCursor {
			pointer = CursorMark() + " "
		}
		out = append(out, pointer+rows[i])
	}
	if end < len(rows) {
		out = append(out, DescriptionStyle.Render(fmt.Sprintf("  … %d more", len(rows)-end)))
	}
	return strings.Join(out, "\n")
}

func (a *App) checklistView() string {
	items := a.panel.Checklist()
	rows := make([]string, len(items))
	for i, item := range items {
		box := OffStyle.Render("[ ]")
		if item.Checked {
			box = OnStyle.Render("[✓]")
		}
		rows[i] = box + " " + GetTagChipStyle(models.GetTagColor(item.Tag)).Render(item.Tag)
	}
	title := fmt.Sprintf("TAGS (match %s)", a.panel.Filters().Mode)
	return overlayBox(title, a.listRows(rows), "space toggle • m OR/AND • c clear • esc close")
}

func (a *App) folderView() string {
	current := a.panel.Filters().Folder
	options := append([]string{""}, a.panel.Folders()...)
	rows := make([]string, len(options))
	for i, f := range options {
		label := f
		if f == "" {
			label = "All folders"
		} else if f == models.RootFolder {
			label = "(root)"
		}
		if f == current {
			label = OnStyle.Render(label + " ●")
		}
		rows[i] = label
	}
	return overlayBox("FOLDER", a.listRows(rows), "enter choose • esc close")
}

func (a *App) presetView() string {
	names := a.panel.PresetNames()
	presets := a.panel.Presets()
	active := a.panel.ActivePreset()
	rows := make([]string, len(names))
	for i, name := range names {
		label := name
		if name == active {
			label = PresetBadgeStyle.Render(name)
		}
		rows[i] = label + DescriptionStyle.Render(fmt.Sprintf("  %d entries", len(presets[name])))
	}
	return overlayBox("PRESETS", a.listRows(rows), "enter load • s save current • d delete • esc close")
}

func (a *App) inputView(title, hint string) string {
	body := DescriptionStyle.Render(hint) + "\n\n" + InputBorderStyle().Render(a.nameInput.View())
	return overlayBox(title, body, "enter confirm • esc cancel")
}

func (a *App) bulkTagView() string {
	var b strings.Builder
	b.WriteString(DescriptionStyle.Render("Applies to every loaded entry of the stack"))
	b.WriteString("\n\n")

	shared := a.panel.CommonTags(a.loadedStackNames())
	if len(shared) == 0 {
		b.WriteString(EmptyStyle.Render("No tag is shared by the stack"))
	} else {
		chips := make([]string, len(shared))
		for i, tag := range shared {
			chip := GetTagChipStyle(models.GetTagColor(tag)).Render(tag)
			if i == a.listCursor {
				chip = CursorMark() + " " + chip
			}
			chips[i] = chip
		}
		b.WriteString(DescriptionStyle.Render("Shared: "))
		b.WriteString(strings.Join(chips, " "))
	}
	b.WriteString("\n\n")
	b.WriteString(InputBorderStyle().Render(a.nameInput.View()))
	return overlayBox("TAG THE STACK", b.String(), "enter apply • tab next shared tag • ctrl+x remove it • esc cancel")
}

func (a *App) helpView() string {
	var b strings.Builder
	keyStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(ColorActive)).Width(10)
	for i, section := range helpSections() {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(GetActiveHeaderStyle(false).Render(section.title))
		b.WriteString("\n")
		for _, binding := range section.bindings {
			h := binding.Help()
			b.WriteString(keyStyle.Render(h.Key) + NormalStyle.Render(h.Desc) + "\n")
		}
	}
	return overlayBox("KEYS", strings.TrimRight(b.String(), "\n"), "any key closes")
}

// InputBorderStyle frames a single line input
func InputBorderStyle() lipgloss.Style {
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(ColorActive)).
		Padding(0, 1)
}
