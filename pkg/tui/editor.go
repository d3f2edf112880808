package tui

import (
	"errors"
	"slices"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/pluqqy/lora-gallery/pkg/models"
)

var errBadWeight = errors.New("preferred weight must be a number")

type editorField int

const (
	fieldTags editorField = iota
	fieldTrigger
	fieldWeight
	fieldNegative
	fieldSDVersion
	fieldDownloadURL
	fieldNotes
	editorFieldCount
)

var editorLabels = [editorFieldCount]string{
	fieldTags:        "Tags",
	fieldTrigger:     "Trigger words",
	fieldWeight:      "Preferred weight",
	fieldNegative:    "Negative text",
	fieldSDVersion:   "SD version",
	fieldDownloadURL: "Download URL",
	fieldNotes:       "Notes",
}

// EditorModel is the metadata form of one entry. Nothing is sent until the
// caller asks for Changes; a sync started from the form only fills it in.
type EditorModel struct {
	original models.CatalogEntry
	inputs   [fieldNotes]textinput.Model
	sdIndex  int
	notes    textarea.Model
	focus    editorField
	syncing  bool
	saving   bool
	err      string
	width    int
}

// NewEditor opens the form on entry
func NewEditor(entry models.CatalogEntry, width int) *EditorModel {
	e := &EditorModel{original: entry.Clone()}

	values := [fieldNotes]string{
		fieldTags:        models.JoinTagList(entry.DisplayTags()),
		fieldTrigger:     entry.TriggerText,
		fieldWeight:      strconv.FormatFloat(entry.PreferredWeight, 'f', -1, 64),
		fieldNegative:    entry.NegativeText,
		fieldDownloadURL: entry.DownloadURL,
	}
	for i := range e.inputs {
		ti := textinput.New()
		ti.CharLimit = 1000
		ti.SetValue(values[i])
		e.inputs[i] = ti
	}
	e.inputs[fieldTags].Placeholder = "comma separated"

	e.sdIndex = slices.Index(models.SDVersions, entry.SDVersion)
	if e.sdIndex < 0 {
		e.sdIndex = len(models.SDVersions) - 1
	}

	e.notes = textarea.New()
	e.notes.ShowLineNumbers = false
	e.notes.SetHeight(5)
	e.notes.SetValue(entry.Notes)

	e.SetWidth(width)
	e.setFocus(fieldTags)
	return e
}

// Name is the entry being edited
func (e *EditorModel) Name() string {
	return e.original.Name
}

func (e *EditorModel) SetWidth(width int) {
	e.width = max(width, 40)
	for i := range e.inputs {
		e.inputs[i].Width = e.width - 24
	}
	e.notes.SetWidth(e.width - 6)
}

func (e *EditorModel) setFocus(f editorField) {
	for i := range e.inputs {
		e.inputs[i].Blur()
	}
	e.notes.Blur()
	e.focus = f
	switch {
	case f == fieldNotes:
		e.notes.Focus()
	case f != fieldSDVersion:
		e.inputs[f].Focus()
	}
}

// Update moves between fields or edits the focused one
func (e *EditorModel) Update(msg tea.KeyMsg) tea.Cmd {
	e.err = ""
	switch msg.String() {
	case "tab", "down":
		if msg.String() == "down" && e.focus == fieldNotes {
			break
		}
		e.setFocus((e.focus + 1) % editorFieldCount)
		return nil
	case "shift+tab", "up":
		if msg.String() == "up" && e.focus == fieldNotes {
			break
		}
		e.setFocus((e.focus + editorFieldCount - 1) % editorFieldCount)
		return nil
	}

	var cmd tea.Cmd
	switch e.focus {
	case fieldSDVersion:
		switch msg.String() {
		case "left", "h":
			e.sdIndex = (e.sdIndex + len(models.SDVersions) - 1) % len(models.SDVersions)
		case "right", "l", " ":
			e.sdIndex = (e.sdIndex + 1) % len(models.SDVersions)
		}
	case fieldNotes:
		e.notes, cmd = e.notes.Update(msg)
	default:
		e.inputs[e.focus], cmd = e.inputs[e.focus].Update(msg)
	}
	return cmd
}

// Changes returns the fields that differ from the entry as opened
func (e *EditorModel) Changes() (models.MetadataUpdate, error) {
	var u models.MetadataUpdate

	tags := models.UniqueTags(models.ParseTagList(e.inputs[fieldTags].Value()))
	if !slices.Equal(tags, e.original.DisplayTags()) {
		if tags == nil {
			tags = []string{}
		}
		u.Tags = tags
	}

	if v := strings.TrimSpace(e.inputs[fieldTrigger].Value()); v != e.original.TriggerText {
		u.TriggerText = models.String(v)
	}

	weight, err := strconv.ParseFloat(strings.TrimSpace(e.inputs[fieldWeight].Value()), 64)
	if err != nil {
		return models.MetadataUpdate{}, errBadWeight
	}
	if weight != e.original.PreferredWeight {
		u.PreferredWeight = models.Float(weight)
	}

	if v := strings.TrimSpace(e.inputs[fieldNegative].Value()); v != e.original.NegativeText {
		u.NegativeText = models.String(v)
	}
	if v := models.SDVersions[e.sdIndex]; v != e.original.SDVersion {
		u.SDVersion = models.String(v)
	}
	if v := strings.TrimSpace(e.inputs[fieldDownloadURL].Value()); v != e.original.DownloadURL {
		u.DownloadURL = models.String(v)
	}
	if v := e.notes.Value(); v != e.original.Notes {
		u.Notes = models.String(v)
	}
	return u, nil
}

// MergeSynced fills the form with what a sync brought back. Empty values
// leave the field alone.
func (e *EditorModel) MergeSynced(meta *models.SyncedMetadata) {
	e.syncing = false
	if meta == nil {
		return
	}
	if meta.TriggerText != nil && *meta.TriggerText != "" {
		e.inputs[fieldTrigger].SetValue(*meta.TriggerText)
	}
	if meta.DownloadURL != nil && *meta.DownloadURL != "" {
		e.inputs[fieldDownloadURL].SetValue(*meta.DownloadURL)
	}
	if len(meta.Tags) > 0 {
		e.inputs[fieldTags].SetValue(models.JoinTagList(meta.Tags))
	}
}

func (e *EditorModel) setError(msg string) {
	e.err = msg
	e.saving = false
	e.syncing = false
}

// View renders the form as a bordered modal
func (e *EditorModel) View() string {
	var b strings.Builder

	title := GetActiveHeaderStyle(true).Render("EDIT " + e.original.Name)
	b.WriteString(title)
	b.WriteString("\n\n")

	label := lipgloss.NewStyle().Width(18)
	for f := fieldTags; f < fieldNotes; f++ {
		l := label.Foreground(lipgloss.Color(ColorNormal))
		if f == e.focus {
			l = label.Foreground(lipgloss.Color(ColorActive)).Bold(true)
		}
		var value string
		if f == fieldSDVersion {
			value = renderChoices(models.SDVersions, e.sdIndex, f == e.focus)
		} else {
			value = e.inputs[f].View()
		}
		b.WriteString(l.Render(editorLabels[f]) + " " + value)
		b.WriteString("\n")
	}

	notesLabel := NormalStyle
	if e.focus == fieldNotes {
		notesLabel = GetActiveHeaderStyle(true)
	}
	b.WriteString("\n" + notesLabel.Render(editorLabels[fieldNotes]) + "\n")
	b.WriteString(e.notes.View())
	b.WriteString("\n\n")

	switch {
	case e.err != "":
		b.WriteString(ErrorStyle.Render("× " + e.err))
	case e.saving:
		b.WriteString(WarningStyle.Render("Saving..."))
	case e.syncing:
		b.WriteString(WarningStyle.Render("Syncing..."))
	default:
		b.WriteString(HelpStyle.Render("tab next • ctrl+s save • ctrl+y sync meta • ctrl+g sync image • esc cancel"))
	}

	return ActiveBorderStyle.
		Padding(0, 1).
		Width(e.width).
		Render(b.String())
}

// renderChoices draws a one-of selector
func renderChoices(choices []string, selected int, focused bool) string {
	parts := make([]string, len(choices))
	for i, c := range choices {
		switch {
		case i == selected && focused:
			parts[i] = SelectedStyle.Render(" " + c + " ")
		case i == selected:
			parts[i] = OnStyle.Render(" " + c + " ")
		default:
			parts[i] = OffStyle.Render(" " + c + " ")
		}
	}
	return strings.Join(parts, "")
}
