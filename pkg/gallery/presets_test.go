package gallery

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pluqqy/lora-gallery/internal/logger"
	"github.com/pluqqy/lora-gallery/pkg/models"
)

func twoItems() []models.SelectionItem {
	return []models.SelectionItem{
		{On: true, EntryName: "a", Strength: 0.7, StrengthClip: models.Float(0.6), UseTrigger: true},
		{On: false, EntryName: "b", Strength: 1.2, StrengthClip: models.Float(1.2), UseTrigger: false},
	}
}

func TestPresetManager_SaveAndGetCopies(t *testing.T) {
	ctx := context.Background()
	remote := newFakeRemote()
	m := NewPresetManager(remote, logger.Discard())

	items := twoItems()
	require.NoError(t, m.Save(ctx, "  P1 ", items))
	assert.Equal(t, []string{"P1"}, m.Names())

	got, err := m.Get("P1")
	require.NoError(t, err)
	assert.Equal(t, items, got)

	got[0].EntryName = "changed"
	*got[1].StrengthClip = 0
	again, _ := m.Get("P1")
	assert.Equal(t, items, again)
}

func TestPresetManager_SaveNoOps(t *testing.T) {
	ctx := context.Background()
	remote := newFakeRemote()
	m := NewPresetManager(remote, logger.Discard())

	assert.ErrorIs(t, m.Save(ctx, "   ", twoItems()), ErrEmptyPresetName)
	assert.ErrorIs(t, m.Save(ctx, "P", nil), ErrEmptyStack)
	assert.Empty(t, remote.presets)
}

func TestPresetManager_DeleteNeedsConfirmation(t *testing.T) {
	ctx := context.Background()
	remote := newFakeRemote()
	remote.presets["P1"] = twoItems()
	m := NewPresetManager(remote, logger.Discard())
	m.Refresh(ctx)

	assert.ErrorIs(t, m.Delete(ctx, "P1", false), ErrNotConfirmed)
	assert.Contains(t, remote.presets, "P1")

	require.NoError(t, m.Delete(ctx, "P1", true))
	assert.Empty(t, m.Names())
	_, err := m.Get("P1")
	assert.ErrorIs(t, err, ErrPresetNotFound)
}

func TestPresetManager_RefreshKeepsBookOnFailure(t *testing.T) {
	ctx := context.Background()
	remote := newFakeRemote()
	remote.presets["keep"] = twoItems()
	m := NewPresetManager(remote, logger.Discard())
	m.Refresh(ctx)

	remote.presetsErr = errRemote
	m.Refresh(ctx)
	assert.Equal(t, []string{"keep"}, m.Names())

	err := m.Save(ctx, "new", twoItems())
	assert.ErrorIs(t, err, errRemote)
	assert.Equal(t, []string{"keep"}, m.Names())
}
