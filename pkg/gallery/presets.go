package gallery

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pluqqy/lora-gallery/pkg/models"
)

// PresetManager keeps the local copy of the remote preset book
type PresetManager struct {
	store PresetStore
	book  models.PresetBook
	log   *slog.Logger
}

// NewPresetManager wraps store with an empty local book
func NewPresetManager(store PresetStore, log *slog.Logger) *PresetManager {
	return &PresetManager{store: store, book: models.PresetBook{}, log: log}
}

// Refresh reloads the book. On failure the previous book is kept.
func (m *PresetManager) Refresh(ctx context.Context) {
	book, err := m.store.ListPresets(ctx)
	if err != nil {
		m.log.Warn("failed to load presets", "error", err)
		return
	}
	m.Set(book)
}

// Set replaces the local book
func (m *PresetManager) Set(book models.PresetBook) {
	if book == nil {
		book = models.PresetBook{}
	}
	m.book = book.Clone()
}

// Names lists preset names, sorted
func (m *PresetManager) Names() []string {
	return m.book.Names()
}

// Get returns a deep copy of the named preset
func (m *PresetManager) Get(name string) ([]models.SelectionItem, error) {
	items, ok := m.book[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPresetNotFound, name)
	}
	return models.CloneItems(items), nil
}

// Book returns a deep copy of the local book
func (m *PresetManager) Book() models.PresetBook {
	return m.book.Clone()
}

// CheckSave validates a save request. Saving with no name or an empty stack does nothing.
func CheckSave(name string, stack []models.SelectionItem) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrEmptyPresetName
	}
	if len(stack) == 0 {
		return "", ErrEmptyStack
	}
	return name, nil
}

// Save stores stack under name and adopts the book the store returns
func (m *PresetManager) Save(ctx context.Context, name string, stack []models.SelectionItem) error {
	name, err := CheckSave(name, stack)
	if err != nil {
		return err
	}
	book, err := m.store.SavePreset(ctx, name, models.CloneItems(stack))
	if err != nil {
		return fmt.Errorf("failed to save preset %q: %w", name, err)
	}
	m.Set(book)
	return nil
}

// Delete removes name from the remote book. The caller must have asked the user.
func (m *PresetManager) Delete(ctx context.Context, name string, confirmed bool) error {
	if !confirmed {
		return ErrNotConfirmed
	}
	book, err := m.store.DeletePreset(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to delete preset %q: %w", name, err)
	}
	m.Set(book)
	return nil
}
