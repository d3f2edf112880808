package gallery

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/pluqqy/lora-gallery/internal/logger"
	"github.com/pluqqy/lora-gallery/pkg/models"
)

var errRemote = errors.New("remote unavailable")

type fetchCall struct {
	Filters  models.FilterState
	Page     int
	Excluded []string
}

// fakeRemote is an in-memory stand-in for the gallery service
type fakeRemote struct {
	mu sync.Mutex

	pages      map[int]models.PageResult
	fetchCalls []fetchCall

	// when set, pages are cut from catalog with the excluded names first,
	// the way the service orders them
	catalog []string
	perPage int
	tags       []string
	tagsErr    error

	updates   map[string][]models.MetadataUpdate
	updateErr error

	syncMeta *models.SyncedMetadata
	syncErr  error

	presets    models.PresetBook
	presetsErr error

	uiState    map[string]map[string]any
	uiStateErr error
	uiWrites   []map[string]any
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		pages:   map[int]models.PageResult{},
		updates: map[string][]models.MetadataUpdate{},
		presets: models.PresetBook{},
		uiState: map[string]map[string]any{},
	}
}

func entry(name string, tags ...string) models.CatalogEntry {
	return models.CatalogEntry{
		Name:            name,
		Tags:            tags,
		PreferredWeight: 1.0,
		SDVersion:       models.DefaultSDVersion,
		PreviewKind:     models.PreviewNone,
	}
}

func page(current, total int, names ...string) models.PageResult {
	r := models.PageResult{CurrentPage: current, TotalPages: total, Folders: []string{"."}}
	for _, n := range names {
		r.Entries = append(r.Entries, entry(n))
	}
	return r
}

func (f *fakeRemote) FetchPage(_ context.Context, filters models.FilterState, p int, excluded []string) models.PageResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetchCalls = append(f.fetchCalls, fetchCall{Filters: filters, Page: p, Excluded: excluded})
	if f.catalog != nil {
		return f.pinnedPage(p, excluded)
	}
	if r, ok := f.pages[p]; ok {
		return r
	}
	return models.EmptyPage()
}

func (f *fakeRemote) pinnedPage(p int, excluded []string) models.PageResult {
	var ordered []string
	for _, n := range excluded {
		if slices.Contains(f.catalog, n) {
			ordered = append(ordered, n)
		}
	}
	for _, n := range f.catalog {
		if !slices.Contains(excluded, n) {
			ordered = append(ordered, n)
		}
	}
	total := max((len(ordered)+f.perPage-1)/f.perPage, 1)
	start := min((p-1)*f.perPage, len(ordered))
	end := min(start+f.perPage, len(ordered))
	return page(p, total, ordered[start:end]...)
}

func (f *fakeRemote) fetchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.fetchCalls)
}

func (f *fakeRemote) AllTags(context.Context) ([]string, error) {
	return f.tags, f.tagsErr
}

func (f *fakeRemote) UpdateMetadata(_ context.Context, name string, update models.MetadataUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	f.updates[name] = append(f.updates[name], update)
	return nil
}

func (f *fakeRemote) SyncExternal(context.Context, string, models.SyncOptions) (*models.SyncedMetadata, error) {
	return f.syncMeta, f.syncErr
}

func (f *fakeRemote) ListPresets(context.Context) (models.PresetBook, error) {
	if f.presetsErr != nil {
		return nil, f.presetsErr
	}
	return f.presets.Clone(), nil
}

func (f *fakeRemote) SavePreset(_ context.Context, name string, items []models.SelectionItem) (models.PresetBook, error) {
	if f.presetsErr != nil {
		return nil, f.presetsErr
	}
	f.presets[name] = models.CloneItems(items)
	return f.presets.Clone(), nil
}

func (f *fakeRemote) DeletePreset(_ context.Context, name string) (models.PresetBook, error) {
	if f.presetsErr != nil {
		return nil, f.presetsErr
	}
	delete(f.presets, name)
	return f.presets.Clone(), nil
}

func (f *fakeRemote) GetUIState(_ context.Context, key PanelKey) (models.PanelUIState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.uiStateErr != nil {
		return models.PanelUIState{}, f.uiStateErr
	}
	state := models.DefaultUIState()
	raw, ok := f.uiState[key.String()]
	if !ok {
		return state, nil
	}
	if v, ok := raw["is_collapsed"].(bool); ok {
		state.Collapsed = v
	}
	if v, ok := raw["lora_stack"].([]models.SelectionItem); ok {
		state.Stack = models.CloneItems(v)
	}
	if v, ok := raw["filter_tag"].(string); ok {
		state.TagText = v
	}
	if v, ok := raw["filter_mode"].(string); ok {
		state.Mode = models.TagMode(v)
	}
	if v, ok := raw["filter_folder"].(string); ok {
		state.Folder = v
	}
	return state, nil
}

func (f *fakeRemote) SetUIState(_ context.Context, key PanelKey, fields map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uiWrites = append(f.uiWrites, fields)
	if f.uiStateErr != nil {
		return f.uiStateErr
	}
	cur, ok := f.uiState[key.String()]
	if !ok {
		cur = map[string]any{}
		f.uiState[key.String()] = cur
	}
	for k, v := range fields {
		cur[k] = v
	}
	return nil
}

func (f *fakeRemote) writes() []map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]map[string]any(nil), f.uiWrites...)
}

// fakeHost stands in for the host editor's node properties
type fakeHost struct {
	raw      string
	present  bool
	writes   int
	writeErr error
}

func (h *fakeHost) SelectionData() (string, bool) {
	return h.raw, h.present
}

func (h *fakeHost) SetSelectionData(raw string) error {
	if h.writeErr != nil {
		return h.writeErr
	}
	h.raw = raw
	h.present = true
	h.writes++
	return nil
}

var testKey = PanelKey{NodeID: "7", GalleryID: "lora-gallery-test"}

func newTestPanel(remote *fakeRemote, host *fakeHost) *Panel {
	return NewPanel(remote, host, Options{Key: testKey, Logger: logger.Discard()})
}

func names(entries []models.CatalogEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Name
	}
	return out
}

func stackNames(items []models.SelectionItem) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.EntryName
	}
	return out
}

func genNames(prefix string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("%s%02d", prefix, i)
	}
	return out
}
