package tui

import (
	"context"
	"errors"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"

	"github.com/pluqqy/lora-gallery/internal/logger"
	"github.com/pluqqy/lora-gallery/pkg/gallery"
	"github.com/pluqqy/lora-gallery/pkg/models"
)

var errOffline = errors.New("service offline")

// stubRemote serves a fixed set of pages and records the writes it receives
type stubRemote struct {
	mu sync.Mutex

	pages   map[int]models.PageResult
	tags    []string
	presets models.PresetBook
	updates map[string][]models.MetadataUpdate

	updateErr error
	syncMeta  *models.SyncedMetadata
	syncErr   error
}

func newStubRemote(pages ...models.PageResult) *stubRemote {
	r := &stubRemote{
		pages:   map[int]models.PageResult{},
		presets: models.PresetBook{},
		updates: map[string][]models.MetadataUpdate{},
	}
	for _, p := range pages {
		r.pages[p.CurrentPage] = p
	}
	return r
}

func card(name string, tags ...string) models.CatalogEntry {
	return models.CatalogEntry{
		Name:            name,
		Tags:            tags,
		TriggerText:     name + " style",
		PreferredWeight: 0.8,
		SDVersion:       models.DefaultSDVersion,
		PreviewKind:     models.PreviewNone,
	}
}

func onePage(entries ...models.CatalogEntry) models.PageResult {
	return models.PageResult{Entries: entries, Folders: []string{".", "styles"}, TotalPages: 1, CurrentPage: 1}
}

func (r *stubRemote) FetchPage(_ context.Context, _ models.FilterState, page int, _ []string) models.PageResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.pages[page]; ok {
		return p
	}
	return models.EmptyPage()
}

func (r *stubRemote) AllTags(context.Context) ([]string, error) {
	return r.tags, nil
}

func (r *stubRemote) UpdateMetadata(_ context.Context, name string, update models.MetadataUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateErr != nil {
		return r.updateErr
	}
	r.updates[name] = append(r.updates[name], update)
	return nil
}

func (r *stubRemote) SyncExternal(context.Context, string, models.SyncOptions) (*models.SyncedMetadata, error) {
	return r.syncMeta, r.syncErr
}

func (r *stubRemote) ListPresets(context.Context) (models.PresetBook, error) {
	return r.presets.Clone(), nil
}

func (r *stubRemote) SavePreset(_ context.Context, name string, items []models.SelectionItem) (models.PresetBook, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.presets[name] = models.CloneItems(items)
	return r.presets.Clone(), nil
}

func (r *stubRemote) DeletePreset(_ context.Context, name string) (models.PresetBook, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.presets, name)
	return r.presets.Clone(), nil
}

func (r *stubRemote) GetUIState(context.Context, gallery.PanelKey) (models.PanelUIState, error) {
	return models.DefaultUIState(), nil
}

func (r *stubRemote) SetUIState(context.Context, gallery.PanelKey, map[string]any) error {
	return nil
}

type memHost struct {
	raw string
}

func (h *memHost) SelectionData() (string, bool) {
	return h.raw, h.raw != ""
}

func (h *memHost) SetSelectionData(raw string) error {
	h.raw = raw
	return nil
}

// newTestApp builds an App over a started panel with the first page applied
func newTestApp(t *testing.T, remote *stubRemote) *App {
	t.Helper()
	ctx := context.Background()
	panel := gallery.NewPanel(remote, &memHost{}, gallery.Options{
		Key:    gallery.PanelKey{NodeID: "3", GalleryID: "tui-test"},
		Logger: logger.Discard(),
	})
	panel.Init(ctx, false)
	t.Cleanup(panel.Wait)

	app := NewApp(ctx, Options{Panel: panel, Remote: remote, Logger: logger.Discard()})
	app.Update(tea.WindowSizeMsg{Width: 140, Height: 48})

	cmd := fetchCmd(ctx, panel, true)
	require.NotNil(t, cmd)
	app.Update(cmd())
	return app
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func press(a *App, keys ...tea.KeyMsg) tea.Cmd {
	var cmd tea.Cmd
	for _, k := range keys {
		_, cmd = a.Update(k)
	}
	return cmd
}

func typeText(a *App, text string) {
	for _, r := range text {
		a.Update(runes(string(r)))
	}
}

func stackNames(items []models.SelectionItem) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.EntryName
	}
	return out
}
