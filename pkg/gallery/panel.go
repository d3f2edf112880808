package gallery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/pluqqy/lora-gallery/internal/logger"
	"github.com/pluqqy/lora-gallery/pkg/models"
)

// Options configures a Panel
type Options struct {
	Key              PanelKey
	PrimaryOnly      bool
	SyncErrorDisplay time.Duration
	Logger           *slog.Logger
	Now              func() time.Time
}

// Panel is the single owner of a gallery panel's state. All mutations go
// through its methods, and it is not safe for concurrent use: callers run it
// from one event loop and do remote work through the Begin/Run/Apply pairs.
type Panel struct {
	remote  Remote
	bridge  *Bridge
	stack   *SelectionStack
	filters *FilterModel
	pager   *Pager
	presets *PresetManager
	syncs   *syncIndicators
	log     *slog.Logger

	entries      []models.CatalogEntry
	index        map[string]int
	folders      []string
	vocabulary   []string
	collapsed    bool
	activePreset string
}

// NewPanel builds a panel talking to remote and serialized into host
func NewPanel(remote Remote, host HostStore, opts Options) *Panel {
	log := opts.Logger
	if log == nil {
		log = logger.Get()
	}
	log = log.With("panel", opts.Key.String())

	p := &Panel{
		remote:  remote,
		bridge:  NewBridge(host, remote, opts.Key, log),
		stack:   NewSelectionStack(opts.PrimaryOnly),
		filters: NewFilterModel(models.FilterState{Mode: models.TagModeOR}),
		pager:   NewPager(),
		presets: NewPresetManager(remote, log),
		syncs:   newSyncIndicators(opts.SyncErrorDisplay, opts.Now),
		log:     log,
		index:   make(map[string]int),
	}
	p.stack.OnChange(p.stackChanged)
	return p
}

func (p *Panel) stackChanged(items []models.SelectionItem) {
	p.activePreset = ""
	if err := p.bridge.PersistStack(p.collapsed, items); err != nil {
		p.log.Warn("failed to write selection to host", "error", err)
	}
}

// Init restores the panel state and loads the tag vocabulary and presets.
// It does not fetch the catalog.
func (p *Panel) Init(ctx context.Context, deserialized bool) {
	state := p.bridge.Resolve(ctx, deserialized)
	p.stack.Load(state.Stack)
	p.filters = NewFilterModel(state.Filters())
	p.collapsed = state.Collapsed

	p.RefreshTags(ctx)
	p.presets.Refresh(ctx)
}

// Start is Init followed by the first fetch. A restored folder that the
// catalog no longer knows is dropped and the view is fetched again.
func (p *Panel) Start(ctx context.Context, deserialized bool) {
	p.Init(ctx, deserialized)
	p.Fetch(ctx, true)

	if p.ValidateFolder() {
		p.Fetch(ctx, true)
	}
}

// ValidateFolder clears a folder filter that is not among the known folders.
// It returns true when the filter changed and the view needs a fresh fetch.
func (p *Panel) ValidateFolder() bool {
	folder := p.filters.State().Folder
	if folder == "" || len(p.folders) == 0 || slices.Contains(p.folders, folder) {
		return false
	}
	p.log.Info("saved folder filter no longer exists", "folder", folder)
	p.filters.SetFolder("")
	p.bridge.PersistFilters(p.filters.State())
	return true
}

// RefreshTags reloads the tag vocabulary; on failure the old one is kept
func (p *Panel) RefreshTags(ctx context.Context) {
	tags, err := p.remote.AllTags(ctx)
	if err != nil {
		p.log.Warn("failed to load tag vocabulary", "error", err)
		return
	}
	p.SetVocabulary(tags)
}

// SetVocabulary replaces the tag vocabulary
func (p *Panel) SetVocabulary(tags []string) {
	p.vocabulary = append([]string(nil), tags...)
}

// BeginFetch opens a catalog request, see Pager for when one is refused.
// A fresh request pins the current stack; later pages reuse that snapshot.
func (p *Panel) BeginFetch(fresh bool) (FetchTicket, bool) {
	page, gen, ok := p.pager.Begin(fresh)
	if !ok {
		return FetchTicket{}, false
	}
	if fresh {
		p.pager.Pin(p.stack.Names())
	}
	return FetchTicket{
		Fresh:      fresh,
		Page:       page,
		Filters:    p.filters.State(),
		Excluded:   p.pager.Pinned(),
		Generation: gen,
	}, true
}

// RunFetch performs the request described by t. It touches no panel state
// and may run on any goroutine.
func (p *Panel) RunFetch(ctx context.Context, t FetchTicket) models.PageResult {
	return p.remote.FetchPage(ctx, t.Filters, t.Page, t.Excluded)
}

// ApplyFetch merges a finished request. A superseded request is dropped and
// false is returned.
func (p *Panel) ApplyFetch(t FetchTicket, result models.PageResult) bool {
	if !p.pager.Finish(t.Generation, result) {
		p.log.Debug("dropping superseded catalog page", "page", t.Page, "generation", t.Generation)
		return false
	}
	p.setEntries(MergeIncoming(p.entries, result.Entries, t.Fresh))
	if t.Fresh && len(result.Folders) > 0 {
		p.folders = append([]string(nil), result.Folders...)
	}
	return true
}

// Fetch runs a whole request synchronously. It returns false when the
// request was refused or superseded.
func (p *Panel) Fetch(ctx context.Context, fresh bool) bool {
	t, ok := p.BeginFetch(fresh)
	if !ok {
		return false
	}
	return p.ApplyFetch(t, p.RunFetch(ctx, t))
}

// FetchAll keeps loading pages until the catalog is exhausted
func (p *Panel) FetchAll(ctx context.Context) {
	p.Fetch(ctx, true)
	for p.pager.Cursor().HasMore() {
		if err := ctx.Err(); err != nil {
			return
		}
		if !p.Fetch(ctx, false) {
			return
		}
	}
}

func (p *Panel) setEntries(entries []models.CatalogEntry) {
	p.entries = entries
	p.index = make(map[string]int, len(entries))
	for i, e := range entries {
		p.index[e.Name] = i
	}
}

// Entries returns every loaded entry
func (p *Panel) Entries() []models.CatalogEntry {
	return slices.Clone(p.entries)
}

// VisibleEntries returns the loaded entries that pass the local name filter
func (p *Panel) VisibleEntries() []models.CatalogEntry {
	return slices.Clone(VisibleEntries(p.entries, p.filters.State().NameFilter))
}

// Entry looks up a loaded entry by name
func (p *Panel) Entry(name string) (models.CatalogEntry, bool) {
	i, ok := p.index[name]
	if !ok {
		return models.CatalogEntry{}, false
	}
	return p.entries[i].Clone(), true
}

// Stack returns a copy of the Selection Stack
func (p *Panel) Stack() []models.SelectionItem {
	return p.stack.Items()
}

// IsSelected reports whether name is in the stack
func (p *Panel) IsSelected(name string) bool {
	return p.stack.Contains(name)
}

// PrimaryOnly reports whether the stack carries a single strength
func (p *Panel) PrimaryOnly() bool {
	return p.stack.PrimaryOnly()
}

// Filters returns the current filter state
func (p *Panel) Filters() models.FilterState {
	return p.filters.State()
}

// Checklist returns the tag checklist over the current vocabulary
func (p *Panel) Checklist() []ChecklistItem {
	return p.filters.Checklist(p.vocabulary)
}

// Vocabulary returns every tag known to the catalog
func (p *Panel) Vocabulary() []string {
	return slices.Clone(p.vocabulary)
}

// Folders returns the folders reported by the last fresh fetch
func (p *Panel) Folders() []string {
	return slices.Clone(p.folders)
}

// Cursor returns the pagination cursor
func (p *Panel) Cursor() models.PaginationCursor {
	return p.pager.Cursor()
}

// Collapsed reports whether the catalog view is hidden
func (p *Panel) Collapsed() bool {
	return p.collapsed
}

// ActivePreset is the preset last loaded, until the stack is edited
func (p *Panel) ActivePreset() string {
	return p.activePreset
}

// PresetNames lists the presets, sorted
func (p *Panel) PresetNames() []string {
	return p.presets.Names()
}

// Preset returns a copy of the named preset
func (p *Panel) Preset(name string) ([]models.SelectionItem, error) {
	return p.presets.Get(name)
}

// Presets returns a copy of the whole preset book
func (p *Panel) Presets() models.PresetBook {
	return p.presets.Book()
}

// Key returns the panel's identity in the remote store
func (p *Panel) Key() PanelKey {
	return p.bridge.Key()
}

// SyncState returns the sync indicator of an entry
func (p *Panel) SyncState(name string) SyncState {
	return p.syncs.state(name)
}

// Wait blocks until background state writes are done
func (p *Panel) Wait() {
	p.bridge.Wait()
}

// SetPresets adopts a preset book returned by the store. The active preset
// label is dropped when the book no longer has it.
func (p *Panel) SetPresets(book models.PresetBook) {
	p.presets.Set(book)
	if _, ok := book[p.activePreset]; !ok {
		p.activePreset = ""
	}
}

// SavePreset stores the current stack under name. An empty name or stack
// is refused without contacting the store.
func (p *Panel) SavePreset(ctx context.Context, name string) error {
	return p.presets.Save(ctx, name, p.stack.Items())
}

// DeletePreset removes a preset; confirmed must reflect the user's answer
func (p *Panel) DeletePreset(ctx context.Context, name string, confirmed bool) error {
	if err := p.presets.Delete(ctx, name, confirmed); err != nil {
		return err
	}
	if p.activePreset == name {
		p.activePreset = ""
	}
	return nil
}

// SendUpdate sends an edit to the remote store. It touches no panel state.
func (p *Panel) SendUpdate(ctx context.Context, name string, update models.MetadataUpdate) error {
	if err := p.remote.UpdateMetadata(ctx, name, update); err != nil {
		return fmt.Errorf("failed to update %s: %w", name, err)
	}
	return nil
}

// ApplyUpdate writes an acknowledged edit into the loaded entry. It returns
// true when the tags changed and the vocabulary should be reloaded.
func (p *Panel) ApplyUpdate(name string, update models.MetadataUpdate) bool {
	i, ok := p.index[name]
	if !ok {
		return update.Tags != nil
	}
	update.Apply(&p.entries[i])
	return update.Tags != nil
}

// CommitEdit sends one update; only when it succeeds are the loaded entry
// and the vocabulary brought up to date. On failure nothing changes locally.
func (p *Panel) CommitEdit(ctx context.Context, name string, update models.MetadataUpdate) error {
	if update.Empty() {
		return nil
	}
	if err := p.SendUpdate(ctx, name, update); err != nil {
		return err
	}
	if p.ApplyUpdate(name, update) {
		p.RefreshTags(ctx)
	}
	return nil
}

// TagEdits computes the per-entry updates that add or remove tag across names
func (p *Panel) TagEdits(names []string, tag string, add bool) (map[string]models.MetadataUpdate, error) {
	if err := models.ValidateTagName(tag); err != nil && add {
		return nil, err
	}
	edits := make(map[string]models.MetadataUpdate, len(names))
	for _, name := range names {
		e, ok := p.Entry(name)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrEntryNotLoaded, name)
		}
		var tags []string
		if add {
			if slices.Contains(e.Tags, tag) {
				continue
			}
			tags = append(slices.Clone(e.Tags), tag)
		} else {
			if !slices.Contains(e.Tags, tag) {
				continue
			}
			tags = slices.DeleteFunc(slices.Clone(e.Tags), func(t string) bool { return t == tag })
		}
		edits[name] = models.MetadataUpdate{Tags: tags}
	}
	return edits, nil
}

// EditTags adds or removes tag on every named entry. Entries are updated one
// by one; the ones that fail are reported together and stay as they were.
func (p *Panel) EditTags(ctx context.Context, names []string, tag string, add bool) error {
	edits, err := p.TagEdits(names, tag, add)
	if err != nil {
		return err
	}
	var errs []error
	changed := false
	for _, name := range names {
		update, ok := edits[name]
		if !ok {
			continue
		}
		if err := p.SendUpdate(ctx, name, update); err != nil {
			errs = append(errs, err)
			continue
		}
		p.ApplyUpdate(name, update)
		changed = true
	}
	if changed {
		p.RefreshTags(ctx)
	}
	return errors.Join(errs...)
}

// CommonTags returns the tags shared by every named entry
func (p *Panel) CommonTags(names []string) []string {
	var entries []models.CatalogEntry
	for _, name := range names {
		if e, ok := p.Entry(name); ok {
			entries = append(entries, e)
		}
	}
	return CommonTags(entries)
}

// BeginSync marks an entry as syncing
func (p *Panel) BeginSync(name string) {
	p.syncs.start(name)
}

// RemoteSync asks the external source for an entry. It touches no panel state.
func (p *Panel) RemoteSync(ctx context.Context, name string, opts models.SyncOptions) (*models.SyncedMetadata, error) {
	meta, err := p.remote.SyncExternal(ctx, name, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to sync %s: %w", name, err)
	}
	return meta, nil
}

// FinishSync settles a sync. On failure the entry shows the error mark for
// the configured interval. On success, and only with UpdateMemory, the
// loaded entry takes the fields selected by opts.
func (p *Panel) FinishSync(name string, opts models.SyncOptions, meta *models.SyncedMetadata, err error) time.Time {
	if err != nil {
		p.log.Warn("external sync failed", "entry", name, "error", err)
		return p.syncs.finish(name, true)
	}
	p.syncs.finish(name, false)
	if opts.UpdateMemory {
		if i, ok := p.index[name]; ok {
			applySynced(&p.entries[i], opts, meta)
		}
	}
	return time.Time{}
}

// SyncEntry runs a whole sync synchronously and returns what was fetched,
// so an open edit form can merge it without committing.
func (p *Panel) SyncEntry(ctx context.Context, name string, opts models.SyncOptions) (*models.SyncedMetadata, error) {
	p.BeginSync(name)
	meta, err := p.RemoteSync(ctx, name, opts)
	p.FinishSync(name, opts, meta, err)
	if err != nil {
		return nil, err
	}
	if opts.UpdateMemory && opts.Meta {
		p.RefreshTags(ctx)
	}
	return meta, nil
}

// ApplyRemoteChange takes an entry changed elsewhere into the view, if loaded
func (p *Panel) ApplyRemoteChange(entry models.CatalogEntry) bool {
	i, ok := p.index[entry.Name]
	if !ok {
		return false
	}
	p.entries[i] = entry.Clone()
	return true
}
