package tui

import (
	"fmt"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/pluqqy/lora-gallery/pkg/composer"
	"github.com/pluqqy/lora-gallery/pkg/gallery"
	"github.com/pluqqy/lora-gallery/pkg/models"
)

func (a *App) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch {
	case a.overlay != noOverlay:
		return a.handleOverlayKey(msg)
	case a.search.Active():
		return a.handleSearchKey(msg)
	case a.tagFilter.Active():
		return a.handleTagTextKey(msg)
	}

	switch {
	case key.Matches(msg, keys.Quit):
		return tea.Quit
	case key.Matches(msg, keys.Help):
		a.overlay = helpOverlay
		return nil
	case key.Matches(msg, keys.SwitchPane):
		if a.active == catalogPane || a.panel.Collapsed() {
			a.active = stackPane
		} else {
			a.active = catalogPane
		}
		return nil
	case key.Matches(msg, keys.Search):
		return a.search.SetActive(true)
	case key.Matches(msg, keys.TagText):
		return a.tagFilter.SetActive(true)
	case key.Matches(msg, keys.Checklist):
		a.openList(checklistOverlay, 0)
		return nil
	case key.Matches(msg, keys.FlipMode):
		return a.dispatch(gallery.FlipMode{})
	case key.Matches(msg, keys.Folder):
		a.openList(folderOverlay, a.folderIndex())
		return nil
	case key.Matches(msg, keys.Presets):
		a.openList(presetOverlay, 0)
		return nil
	case key.Matches(msg, keys.SavePreset):
		return a.openNameInput(presetNameOverlay, "Preset name", a.panel.ActivePreset())
	case key.Matches(msg, keys.Collapse):
		cmd := a.dispatch(gallery.ToggleCollapsed{})
		if a.panel.Collapsed() {
			a.active = stackPane
		}
		a.layout()
		return cmd
	case key.Matches(msg, keys.Copy):
		return a.copyTriggers()
	case key.Matches(msg, keys.Refresh):
		a.catalogCursor = 0
		return tea.Batch(fetchCmd(a.ctx, a.panel, true), loadTagsCmd(a.ctx, a.remote))
	case key.Matches(msg, keys.ScrollDetails):
		a.details.ScrollDown()
		return nil
	case key.Matches(msg, keys.ScrollDetailsU):
		a.details.ScrollUp()
		return nil
	case key.Matches(msg, keys.Edit):
		return a.openEditor()
	case key.Matches(msg, keys.Sync):
		if e, ok := a.focusedEntry(); ok {
			return a.startSync(e.Name, models.SyncOptions{Image: true, Meta: true, UpdateMemory: true}, false)
		}
		return nil
	case key.Matches(msg, keys.Info):
		return a.requestTrainingInfo()
	case key.Matches(msg, keys.BulkTags):
		if len(a.panel.Stack()) == 0 {
			return a.status.ShowWarning("The stack is empty")
		}
		a.listCursor = 0
		return a.openNameInput(bulkTagOverlay, "+tag adds, -tag removes", "")
	}

	if a.active == catalogPane {
		return a.handleCatalogKey(msg)
	}
	return a.handleStackKey(msg)
}

func (a *App) handleSearchKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "esc", "enter", "tab":
		return a.search.SetActive(false)
	}
	changed, cmd := a.search.Update(msg)
	if !changed {
		return cmd
	}
	return tea.Batch(cmd, a.dispatch(gallery.SetNameFilter{Text: a.search.Value()}))
}

func (a *App) handleTagTextKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "esc":
		a.tagFilter.SetValue(a.panel.Filters().TagText)
		return a.tagFilter.SetActive(false)
	case "enter", "tab":
		a.tagFilter.SetActive(false)
		return a.dispatch(gallery.SetTagText{Text: a.tagFilter.Value()})
	}
	_, cmd := a.tagFilter.Update(msg)
	return cmd
}

func (a *App) handleCatalogKey(msg tea.KeyMsg) tea.Cmd {
	visible := a.panel.VisibleEntries()
	switch {
	case key.Matches(msg, keys.Up):
		if a.catalogCursor > 0 {
			a.catalogCursor--
		}
	case key.Matches(msg, keys.Down):
		if a.catalogCursor < len(visible)-1 {
			a.catalogCursor++
		}
		return a.maybeLoadMore()
	case key.Matches(msg, keys.LoadMore):
		if cmd := fetchCmd(a.ctx, a.panel, false); cmd != nil {
			return cmd
		}
		if !a.panel.Cursor().Loading {
			return a.status.ShowInfo("Everything is loaded")
		}
	case key.Matches(msg, keys.Toggle):
		if a.catalogCursor < len(visible) {
			return a.dispatch(gallery.ToggleEntry{Name: visible[a.catalogCursor].Name})
		}
	}
	return nil
}

func (a *App) handleStackKey(msg tea.KeyMsg) tea.Cmd {
	stack := a.panel.Stack()
	if len(stack) == 0 {
		return nil
	}
	i := clamp(a.stackCursor, len(stack))
	item := stack[i]

	switch {
	case key.Matches(msg, keys.Up):
		a.stackCursor = max(i-1, 0)
	case key.Matches(msg, keys.Down):
		a.stackCursor = min(i+1, len(stack)-1)
	case key.Matches(msg, keys.Enable):
		return a.dispatch(gallery.SetItemField{Index: i, Field: gallery.FieldOn, Value: !item.On})
	case key.Matches(msg, keys.UseTrigger):
		return a.dispatch(gallery.SetItemField{Index: i, Field: gallery.FieldUseTrigger, Value: !item.UseTrigger})
	case key.Matches(msg, keys.StrengthUp):
		return a.dispatch(gallery.SetItemField{Index: i, Field: gallery.FieldStrength, Value: gallery.StepStrength(item.Strength, 1)})
	case key.Matches(msg, keys.StrengthDn):
		return a.dispatch(gallery.SetItemField{Index: i, Field: gallery.FieldStrength, Value: gallery.StepStrength(item.Strength, -1)})
	case key.Matches(msg, keys.ClipUp):
		return a.dispatch(gallery.SetItemField{Index: i, Field: gallery.FieldStrengthClip, Value: gallery.StepStrength(item.ClipStrength(), 1)})
	case key.Matches(msg, keys.ClipDn):
		return a.dispatch(gallery.SetItemField{Index: i, Field: gallery.FieldStrengthClip, Value: gallery.StepStrength(item.ClipStrength(), -1)})
	case key.Matches(msg, keys.MoveUp):
		if i > 0 {
			a.stackCursor = i - 1
			return a.dispatch(gallery.MoveItem{From: i, To: i - 1})
		}
	case key.Matches(msg, keys.MoveDown):
		if i < len(stack)-1 {
			a.stackCursor = i + 1
			return a.dispatch(gallery.MoveItem{From: i, To: i + 1})
		}
	case key.Matches(msg, keys.Remove):
		return a.dispatch(gallery.RemoveItem{Index: i})
	case key.Matches(msg, keys.ToggleAll):
		return a.dispatch(gallery.ToggleAll{})
	case key.Matches(msg, keys.ClearStack):
		a.confirm.Show(ConfirmationConfig{
			Title:       "Clear stack",
			Message:     fmt.Sprintf("Remove all %d entries from the stack?", len(stack)),
			Destructive: true,
		}, func() tea.Cmd {
			return a.dispatch(gallery.ClearStack{})
		}, nil)
	}
	return nil
}

// Overlays

func (a *App) openList(o overlay, cursor int) {
	a.overlay = o
	a.listCursor = cursor
}

func (a *App) openNameInput(o overlay, placeholder, value string) tea.Cmd {
	a.overlay = o
	a.nameInput.Placeholder = placeholder
	a.nameInput.SetValue(value)
	a.nameInput.CursorEnd()
	return a.nameInput.Focus()
}

func (a *App) openEditor() tea.Cmd {
	e, ok := a.focusedEntry()
	if !ok {
		return a.status.ShowWarning("Entry is not loaded")
	}
	a.editor = NewEditor(e, min(a.width-4, 90))
	a.overlay = editorOverlay
	return nil
}

func (a *App) requestTrainingInfo() tea.Cmd {
	e, ok := a.focusedEntry()
	if !ok {
		return nil
	}
	if a.info == nil {
		return a.status.ShowWarning("Training info is not available")
	}
	return trainingInfoCmd(a.ctx, a.info, e.Name)
}

// folderIndex is the position of the active folder in the folder list,
// whose first row is "all folders"
func (a *App) folderIndex() int {
	current := a.panel.Filters().Folder
	for i, f := range a.panel.Folders() {
		if f == current {
			return i + 1
		}
	}
	return 0
}

func (a *App) handleOverlayKey(msg tea.KeyMsg) tea.Cmd {
	switch a.overlay {
	case helpOverlay:
		a.closeOverlay()
		return nil
	case editorOverlay:
		return a.handleEditorKey(msg)
	case presetNameOverlay:
		return a.handleNameInputKey(msg)
	case bulkTagOverlay:
		return a.handleBulkTagKey(msg)
	}

	var n int
	switch a.overlay {
	case checklistOverlay:
		n = len(a.panel.Checklist())
	case folderOverlay:
		n = len(a.panel.Folders()) + 1
	case presetOverlay:
		n = len(a.panel.PresetNames())
	}

	switch msg.String() {
	case "esc", "q":
		a.closeOverlay()
		return nil
	case "up", "k":
		a.listCursor = max(a.listCursor-1, 0)
		return nil
	case "down", "j":
		a.listCursor = clamp(a.listCursor+1, n)
		return nil
	}

	switch a.overlay {
	case checklistOverlay:
		return a.handleChecklistKey(msg)
	case folderOverlay:
		if msg.String() == "enter" {
			folder := ""
			if a.listCursor > 0 {
				folder = a.panel.Folders()[a.listCursor-1]
			}
			a.closeOverlay()
			return a.dispatch(gallery.SetFolder{Folder: folder})
		}
	case presetOverlay:
		return a.handlePresetKey(msg)
	}
	return nil
}

func (a *App) handleChecklistKey(msg tea.KeyMsg) tea.Cmd {
	items := a.panel.Checklist()
	var cmd tea.Cmd
	switch msg.String() {
	case " ", "enter":
		if a.listCursor < len(items) {
			cmd = a.dispatch(gallery.ToggleTag{Tag: items[a.listCursor].Tag})
		}
	case "c":
		cmd = a.dispatch(gallery.ClearTags{})
	case "m":
		cmd = a.dispatch(gallery.FlipMode{})
	case "t":
		a.closeOverlay()
	}
	a.tagFilter.SetValue(a.panel.Filters().TagText)
	a.listCursor = clamp(a.listCursor, len(a.panel.Checklist()))
	return cmd
}

func (a *App) handlePresetKey(msg tea.KeyMsg) tea.Cmd {
	names := a.panel.PresetNames()
	switch msg.String() {
	case "s", "P":
		return a.openNameInput(presetNameOverlay, "Preset name", a.panel.ActivePreset())
	}
	if a.listCursor >= len(names) {
		return nil
	}
	name := names[a.listCursor]

	switch msg.String() {
	case "enter":
		a.closeOverlay()
		cmd := a.dispatch(gallery.LoadPreset{Name: name})
		a.stackCursor = 0
		return tea.Batch(cmd, a.status.ShowSuccess(fmt.Sprintf("Loaded preset %q", name)))
	case "d", "x":
		a.confirm.Show(ConfirmationConfig{
			Title:       "Delete preset",
			Message:     fmt.Sprintf("Delete preset %q?", name),
			Destructive: true,
		}, func() tea.Cmd {
			return deletePresetCmd(a.ctx, a.remote, name)
		}, nil)
	}
	return nil
}

func (a *App) handleNameInputKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "esc":
		a.closeOverlay()
		return nil
	case "enter":
		value := a.nameInput.Value()
		o := a.overlay
		a.closeOverlay()
		if o == presetNameOverlay {
			return a.savePreset(value)
		}
		return a.bulkTag(value)
	}
	var cmd tea.Cmd
	a.nameInput, cmd = a.nameInput.Update(msg)
	return cmd
}

func (a *App) savePreset(name string) tea.Cmd {
	stack := a.panel.Stack()
	name, err := gallery.CheckSave(name, stack)
	if err != nil {
		return a.status.ShowError(err.Error())
	}
	return savePresetCmd(a.ctx, a.remote, name, stack)
}

// handleBulkTagKey moves between the shared tags with tab and removes the
// highlighted one with ctrl+x; every other key goes to the input.
func (a *App) handleBulkTagKey(msg tea.KeyMsg) tea.Cmd {
	shared := a.panel.CommonTags(a.loadedStackNames())
	switch msg.String() {
	case "tab":
		a.listCursor = clamp(a.listCursor+1, len(shared))
		return nil
	case "shift+tab":
		a.listCursor = max(a.listCursor-1, 0)
		return nil
	case "ctrl+x":
		if a.listCursor >= len(shared) {
			return nil
		}
		tag := shared[a.listCursor]
		a.closeOverlay()
		return a.bulkTag("-" + tag)
	}
	return a.handleNameInputKey(msg)
}

// loadedStackNames lists the stack entries whose metadata is loaded
func (a *App) loadedStackNames() []string {
	var names []string
	for _, item := range a.panel.Stack() {
		if _, ok := a.panel.Entry(item.EntryName); ok {
			names = append(names, item.EntryName)
		}
	}
	return names
}

// bulkTag adds or removes a tag on every loaded entry of the stack
func (a *App) bulkTag(text string) tea.Cmd {
	text = strings.TrimSpace(text)
	add := !strings.HasPrefix(text, "-")
	tag := strings.TrimSpace(strings.TrimLeft(text, "+-"))
	if tag == "" {
		return nil
	}

	names := a.loadedStackNames()
	if len(names) == 0 {
		return a.status.ShowWarning("No stack entry is loaded")
	}
	edits, err := a.panel.TagEdits(names, tag, add)
	if err != nil {
		return a.status.ShowError(err.Error())
	}
	if len(edits) == 0 {
		return a.status.ShowInfo("Nothing to change")
	}
	return bulkTagCmd(a.ctx, a.panel, names, tag, add, edits)
}

func (a *App) handleEditorKey(msg tea.KeyMsg) tea.Cmd {
	name := a.editor.Name()
	switch msg.String() {
	case "esc":
		a.closeOverlay()
		return nil
	case "ctrl+s":
		update, err := a.editor.Changes()
		if err != nil {
			a.editor.setError(err.Error())
			return nil
		}
		if update.Empty() {
			a.closeOverlay()
			return a.status.ShowInfo("No changes")
		}
		a.editor.saving = true
		return updateCmd(a.ctx, a.panel, name, update)
	case "ctrl+y":
		cmd := a.startSync(name, models.SyncOptions{Meta: true}, true)
		a.editor.syncing = cmd != nil
		return cmd
	case "ctrl+g":
		cmd := a.startSync(name, models.SyncOptions{Image: true, UpdateMemory: true}, true)
		a.editor.syncing = cmd != nil
		return cmd
	}
	return a.editor.Update(msg)
}

// copyTriggers puts the composed trigger words of the stack on the clipboard
func (a *App) copyTriggers() tea.Cmd {
	result := composer.Compose(a.panel.Stack(), composer.LookupFunc(a.panel.Entry), a.panel.PrimaryOnly())
	if result.TriggerWords == "" {
		return a.status.ShowWarning("No trigger words in the stack")
	}
	if err := clipboard.WriteAll(result.TriggerWords); err != nil {
		return a.status.ShowError("Failed to copy: " + err.Error())
	}
	return a.status.ShowSuccess("Copied trigger words to clipboard")
}
