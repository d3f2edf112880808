package tui

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pluqqy/lora-gallery/pkg/models"
)

func TestEditorChanges(t *testing.T) {
	base := card("alpha", "anime", "anime", "portrait")
	base.Notes = "trained on 40 images"

	tests := []struct {
		name  string
		edit  func(e *EditorModel)
		check func(t *testing.T, u models.MetadataUpdate)
	}{
		{
			name: "untouched form is empty",
			edit: func(*EditorModel) {},
			check: func(t *testing.T, u models.MetadataUpdate) {
				assert.True(t, u.Empty())
			},
		},
		{
			name: "duplicate tags in the entry do not count as a change",
			edit: func(e *EditorModel) { e.inputs[fieldTags].SetValue("anime, portrait") },
			check: func(t *testing.T, u models.MetadataUpdate) {
				assert.Nil(t, u.Tags)
			},
		},
		{
			name: "clearing tags sends an empty list",
			edit: func(e *EditorModel) { e.inputs[fieldTags].SetValue("  ") },
			check: func(t *testing.T, u models.MetadataUpdate) {
				require.NotNil(t, u.Tags)
				assert.Empty(t, u.Tags)
			},
		},
		{
			name: "trigger text is trimmed",
			edit: func(e *EditorModel) { e.inputs[fieldTrigger].SetValue("  neon city  ") },
			check: func(t *testing.T, u models.MetadataUpdate) {
				require.NotNil(t, u.TriggerText)
				assert.Equal(t, "neon city", *u.TriggerText)
				assert.Nil(t, u.PreferredWeight)
			},
		},
		{
			name: "weight",
			edit: func(e *EditorModel) { e.inputs[fieldWeight].SetValue("1.25") },
			check: func(t *testing.T, u models.MetadataUpdate) {
				require.NotNil(t, u.PreferredWeight)
				assert.Equal(t, 1.25, *u.PreferredWeight)
			},
		},
		{
			name: "notes keep their whitespace",
			edit: func(e *EditorModel) { e.notes.SetValue("line one\nline two ") },
			check: func(t *testing.T, u models.MetadataUpdate) {
				require.NotNil(t, u.Notes)
				assert.Equal(t, "line one\nline two ", *u.Notes)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewEditor(base, 80)
			tt.edit(e)
			u, err := e.Changes()
			require.NoError(t, err)
			tt.check(t, u)
		})
	}
}

func TestEditorRejectsBadWeight(t *testing.T) {
	e := NewEditor(card("alpha"), 80)
	e.inputs[fieldWeight].SetValue("heavy")

	_, err := e.Changes()
	assert.ErrorIs(t, err, errBadWeight)
}

func TestEditorSDVersionCycles(t *testing.T) {
	e := NewEditor(card("alpha"), 80)
	require.Equal(t, len(models.SDVersions)-1, e.sdIndex)

	for e.focus != fieldSDVersion {
		e.Update(tea.KeyMsg{Type: tea.KeyTab})
	}
	e.Update(tea.KeyMsg{Type: tea.KeyRight})

	u, err := e.Changes()
	require.NoError(t, err)
	require.NotNil(t, u.SDVersion)
	assert.Equal(t, models.SDVersions[0], *u.SDVersion)

	e.Update(tea.KeyMsg{Type: tea.KeyLeft})
	u, err = e.Changes()
	require.NoError(t, err)
	assert.Nil(t, u.SDVersion)
}

func TestEditorUnknownSDVersionFallsBack(t *testing.T) {
	entry := card("alpha")
	entry.SDVersion = "Flux"
	e := NewEditor(entry, 80)

	assert.Equal(t, models.DefaultSDVersion, models.SDVersions[e.sdIndex])
}

func TestEditorMergeSynced(t *testing.T) {
	entry := card("alpha", "old")
	entry.DownloadURL = "https://civitai.com/api/download/models/1"
	e := NewEditor(entry, 80)
	e.syncing = true

	e.MergeSynced(&models.SyncedMetadata{
		TriggerText: models.String(""),
		DownloadURL: models.String("https://civitai.com/api/download/models/2"),
	})

	assert.False(t, e.syncing)
	assert.Equal(t, "alpha style", e.inputs[fieldTrigger].Value(), "empty values leave the field alone")
	assert.Equal(t, "old", e.inputs[fieldTags].Value())
	assert.Equal(t, "https://civitai.com/api/download/models/2", e.inputs[fieldDownloadURL].Value())

	e.MergeSynced(nil)
	assert.Equal(t, "old", e.inputs[fieldTags].Value())
}

func TestEditorViewShowsState(t *testing.T) {
	e := NewEditor(card("alpha"), 80)
	assert.Contains(t, e.View(), "EDIT alpha")
	assert.Contains(t, e.View(), "ctrl+s save")

	e.syncing = true
	assert.Contains(t, e.View(), "Syncing...")

	e.setError("boom")
	view := e.View()
	assert.Contains(t, view, "boom")
	assert.NotContains(t, view, "Syncing...")
}
