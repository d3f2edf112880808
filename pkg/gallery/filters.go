package gallery

import (
	"strings"

	"github.com/pluqqy/lora-gallery/pkg/models"
)

// ChecklistItem is one row of the tag checklist
type ChecklistItem struct {
	Tag     string
	Checked bool
}

// FilterModel owns the filter state. The tag checklist is derived from the
// tag text, so the two never disagree.
type FilterModel struct {
	state      models.FilterState
	debounceID int
}

// NewFilterModel starts from the given state
func NewFilterModel(state models.FilterState) *FilterModel {
	if state.Mode == "" {
		state.Mode = models.TagModeOR
	}
	return &FilterModel{state: state}
}

// State returns a copy of the filter state
func (f *FilterModel) State() models.FilterState {
	return f.state
}

// SetTagText replaces the tag text
func (f *FilterModel) SetTagText(text string) bool {
	if f.state.TagText == text {
		return false
	}
	f.state.TagText = text
	return true
}

// ToggleChecklistTag checks or unchecks tag and rewrites the tag text to match
func (f *FilterModel) ToggleChecklistTag(tag string) bool {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return false
	}

	selected := f.state.SelectedTags()
	out := make([]string, 0, len(selected)+1)
	found := false
	for _, t := range selected {
		if t == tag {
			found = true
			continue
		}
		out = append(out, t)
	}
	if !found {
		out = append(out, tag)
	}
	f.state.TagText = models.JoinTagList(out)
	return true
}

// ClearTags empties the tag selection
func (f *FilterModel) ClearTags() bool {
	return f.SetTagText("")
}

// FlipMode switches between OR and AND
func (f *FilterModel) FlipMode() models.TagMode {
	f.state.Mode = f.state.Mode.Flip()
	return f.state.Mode
}

// SetMode sets the combination rule
func (f *FilterModel) SetMode(mode models.TagMode) bool {
	if f.state.Mode == mode {
		return false
	}
	f.state.Mode = mode
	return true
}

// SetFolder restricts the view to one folder; "" shows all
func (f *FilterModel) SetFolder(folder string) bool {
	if f.state.Folder == folder {
		return false
	}
	f.state.Folder = folder
	return true
}

// Checklist renders the vocabulary with the current selection checked.
// Selected tags missing from the vocabulary are listed first.
func (f *FilterModel) Checklist(vocabulary []string) []ChecklistItem {
	selected := make(map[string]bool)
	for _, t := range f.state.SelectedTags() {
		selected[t] = true
	}

	items := make([]ChecklistItem, 0, len(vocabulary))
	known := make(map[string]bool, len(vocabulary))
	for _, t := range vocabulary {
		known[t] = true
	}
	for _, t := range f.state.SelectedTags() {
		if !known[t] {
			items = append(items, ChecklistItem{Tag: t, Checked: true})
		}
	}
	for _, t := range vocabulary {
		items = append(items, ChecklistItem{Tag: t, Checked: selected[t]})
	}
	return items
}

// SetNameFilter updates the name filter and returns a debounce token. The
// re-fetch should run only if DebounceCurrent still holds for that token
// once the quiet period has passed.
func (f *FilterModel) SetNameFilter(text string) int {
	f.state.NameFilter = text
	f.debounceID++
	return f.debounceID
}

// DebounceCurrent reports whether no keystroke arrived after token was issued
func (f *FilterModel) DebounceCurrent(token int) bool {
	return token == f.debounceID
}
