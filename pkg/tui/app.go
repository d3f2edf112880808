// Package tui is the terminal rendition of the gallery panel. The App model
// owns a gallery.Panel and drives it from bubbletea's update loop; all
// network work runs in commands and comes back as messages.
package tui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/pluqqy/lora-gallery/internal/logger"
	"github.com/pluqqy/lora-gallery/pkg/gallery"
	"github.com/pluqqy/lora-gallery/pkg/models"
)

const defaultSearchDebounce = 300 * time.Millisecond

type pane int

const (
	catalogPane pane = iota
	stackPane
)

type overlay int

const (
	noOverlay overlay = iota
	checklistOverlay
	folderOverlay
	presetOverlay
	presetNameOverlay
	bulkTagOverlay
	editorOverlay
	helpOverlay
)

// Options wires an App to its panel and collaborators
type Options struct {
	Panel *gallery.Panel
	// Remote is the same store the panel was built on
	Remote gallery.Remote
	// Info, when set, serves the training info key
	Info TrainingInfoSource
	// Events, when set, brings in changes made by other panels
	Events         <-chan models.MetadataChangedEvent
	SearchDebounce time.Duration
	ShowNotes      bool
	Title          string
	Logger         *slog.Logger
}

// App is the bubbletea model of one gallery panel
type App struct {
	ctx      context.Context
	panel    *gallery.Panel
	remote   gallery.Remote
	info     TrainingInfoSource
	events   <-chan models.MetadataChangedEvent
	debounce time.Duration
	title    string
	log      *slog.Logger

	active  pane
	overlay overlay
	started bool

	catalogCursor int
	stackCursor   int
	listCursor    int

	search    *SearchBar
	tagFilter *SearchBar
	nameInput textinput.Model
	editor    *EditorModel
	details   *DetailsView
	confirm   *ConfirmationModel
	status    *StatusManager
	spinner   spinner.Model

	width  int
	height int
}

// NewApp builds the model. The panel must have been initialized already;
// the first fetch is issued by Init.
func NewApp(ctx context.Context, opts Options) *App {
	log := opts.Logger
	if log == nil {
		log = logger.Get()
	}
	debounce := opts.SearchDebounce
	if debounce <= 0 {
		debounce = defaultSearchDebounce
	}

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color(ColorActive))

	ni := textinput.New()
	ni.CharLimit = 100

	a := &App{
		ctx:       ctx,
		panel:     opts.Panel,
		remote:    opts.Remote,
		info:      opts.Info,
		events:    opts.Events,
		debounce:  debounce,
		title:     opts.Title,
		log:       log,
		search:    NewSearchBar("⌕", "Filter by name..."),
		tagFilter: NewSearchBar("#", "Filter by tags, comma separated..."),
		nameInput: ni,
		details:   NewDetailsView(opts.ShowNotes),
		confirm:   NewConfirmation(),
		status:    NewStatusManager(),
		spinner:   s,
	}

	f := a.panel.Filters()
	a.search.SetValue(f.NameFilter)
	a.tagFilter.SetValue(f.TagText)
	if a.panel.Collapsed() {
		a.active = stackPane
	}
	return a
}

func (a *App) Init() tea.Cmd {
	return tea.Batch(
		a.spinner.Tick,
		fetchCmd(a.ctx, a.panel, true),
		waitForEvent(a.events),
	)
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.layout()
		return a, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd

	case StatusMsg:
		return a, a.status.ShowInfo(string(msg))

	case clearStatusMsg:
		a.status.clear(msg.seq)
		return a, nil

	case fetchDoneMsg:
		return a, a.handleFetchDone(msg)

	case debounceMsg:
		return a, a.dispatch(gallery.DebounceExpired{Token: msg.token})

	case tagsLoadedMsg:
		if msg.err != nil {
			a.log.Warn("failed to load tag vocabulary", "error", msg.err)
			return a, nil
		}
		a.panel.SetVocabulary(msg.tags)
		return a, nil

	case updateDoneMsg:
		return a, a.handleUpdateDone(msg)

	case bulkTagDoneMsg:
		return a, a.handleBulkTagDone(msg)

	case syncDoneMsg:
		return a, a.handleSyncDone(msg)

	case syncExpiredMsg:
		return a, nil

	case presetsDoneMsg:
		if msg.err != nil {
			return a, a.status.ShowError(msg.err.Error())
		}
		a.panel.SetPresets(msg.book)
		a.listCursor = min(a.listCursor, max(len(a.panel.PresetNames())-1, 0))
		return a, a.status.ShowSuccess(fmt.Sprintf("Preset %q %s", msg.name, msg.action))

	case eventMsg:
		if a.panel.ApplyRemoteChange(msg.event.Entry) {
			a.log.Debug("entry changed elsewhere", "entry", msg.event.Name, "source", msg.event.Source)
		}
		return a, waitForEvent(a.events)

	case eventsClosedMsg:
		a.log.Info("event stream closed")
		a.events = nil
		return a, nil

	case trainingInfoMsg:
		if msg.err != nil {
			return a, a.status.ShowError(fmt.Sprintf("No training info for %s: %v", msg.name, msg.err))
		}
		a.details.SetTrainingInfo(msg.name, msg.info)
		return a, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return a, tea.Quit
		}
		if a.confirm.Active() {
			return a, a.confirm.Update(msg)
		}
		return a, a.handleKey(msg)
	}

	return a, nil
}

// dispatch applies a panel command and schedules what its effects ask for
func (a *App) dispatch(cmd gallery.Command) tea.Cmd {
	eff, err := a.panel.Dispatch(cmd)
	if err != nil {
		return a.status.ShowError(err.Error())
	}
	return a.applyEffects(eff)
}

func (a *App) applyEffects(eff gallery.Effects) tea.Cmd {
	var cmds []tea.Cmd
	if eff.FreshFetch {
		a.catalogCursor = 0
		cmds = append(cmds, fetchCmd(a.ctx, a.panel, true))
	}
	if eff.Debounce != 0 {
		a.catalogCursor = 0
		cmds = append(cmds, debounceCmd(a.debounce, eff.Debounce))
	}
	a.clampCursors()
	return tea.Batch(cmds...)
}

func (a *App) handleFetchDone(msg fetchDoneMsg) tea.Cmd {
	if !a.panel.ApplyFetch(msg.ticket, msg.result) {
		return nil
	}
	if msg.ticket.Fresh && !a.started {
		a.started = true
		if a.panel.ValidateFolder() {
			return fetchCmd(a.ctx, a.panel, true)
		}
	}
	a.clampCursors()
	return a.maybeLoadMore()
}

// maybeLoadMore asks for the next page once the cursor gets near the end of
// what is loaded. The pager refuses it while a request is in flight.
func (a *App) maybeLoadMore() tea.Cmd {
	if !a.panel.Cursor().HasMore() {
		return nil
	}
	visible := len(a.panel.VisibleEntries())
	if visible-a.catalogCursor > cardsFit(a.paneHeight()) {
		return nil
	}
	return fetchCmd(a.ctx, a.panel, false)
}

func (a *App) handleUpdateDone(msg updateDoneMsg) tea.Cmd {
	if msg.err != nil {
		if a.editor != nil && a.editor.Name() == msg.name {
			a.editor.setError(msg.err.Error())
		}
		return a.status.ShowError(msg.err.Error())
	}
	if a.editor != nil && a.editor.Name() == msg.name {
		a.closeOverlay()
	}
	cmds := []tea.Cmd{a.status.ShowSuccess("Saved " + msg.name)}
	if a.panel.ApplyUpdate(msg.name, msg.update) {
		cmds = append(cmds, loadTagsCmd(a.ctx, a.remote))
	}
	return tea.Batch(cmds...)
}

func (a *App) handleBulkTagDone(msg bulkTagDoneMsg) tea.Cmd {
	for name, update := range msg.applied {
		a.panel.ApplyUpdate(name, update)
	}
	var cmds []tea.Cmd
	if len(msg.applied) > 0 {
		cmds = append(cmds, loadTagsCmd(a.ctx, a.remote))
	}
	if err := errors.Join(msg.errs...); err != nil {
		cmds = append(cmds, a.status.ShowError(err.Error()))
	} else {
		verb := "Added"
		if !msg.add {
			verb = "Removed"
		}
		cmds = append(cmds, a.status.ShowSuccess(fmt.Sprintf("%s %q on %d entries", verb, msg.tag, len(msg.applied))))
	}
	return tea.Batch(cmds...)
}

func (a *App) handleSyncDone(msg syncDoneMsg) tea.Cmd {
	until := a.panel.FinishSync(msg.name, msg.opts, msg.meta, msg.err)
	inEditor := msg.toEditor && a.editor != nil && a.editor.Name() == msg.name
	if msg.err != nil {
		if inEditor {
			a.editor.setError(msg.err.Error())
		}
		return tea.Batch(a.status.ShowError(msg.err.Error()), syncExpiryCmd(msg.name, until))
	}
	if inEditor && msg.opts.Meta {
		a.editor.MergeSynced(msg.meta)
	} else if inEditor {
		a.editor.syncing = false
	}
	cmds := []tea.Cmd{a.status.ShowSuccess("Synced " + msg.name)}
	if msg.opts.UpdateMemory && msg.opts.Meta {
		cmds = append(cmds, loadTagsCmd(a.ctx, a.remote))
	}
	return tea.Batch(cmds...)
}

// startSync marks the entry and runs the sync in the background
func (a *App) startSync(name string, opts models.SyncOptions, toEditor bool) tea.Cmd {
	if a.panel.SyncState(name) == gallery.SyncLoading {
		return nil
	}
	a.panel.BeginSync(name)
	return syncCmd(a.ctx, a.panel, name, opts, toEditor)
}

func (a *App) focusedEntry() (models.CatalogEntry, bool) {
	visible := a.panel.VisibleEntries()
	if a.active == catalogPane && a.catalogCursor < len(visible) {
		return visible[a.catalogCursor], true
	}
	stack := a.panel.Stack()
	if a.active == stackPane && a.stackCursor < len(stack) {
		return a.panel.Entry(stack[a.stackCursor].EntryName)
	}
	return models.CatalogEntry{}, false
}

func (a *App) clampCursors() {
	a.catalogCursor = clamp(a.catalogCursor, len(a.panel.VisibleEntries()))
	a.stackCursor = clamp(a.stackCursor, len(a.panel.Stack()))
}

func clamp(i, n int) int {
	if n == 0 || i < 0 {
		return 0
	}
	return min(i, n-1)
}

func (a *App) closeOverlay() {
	a.overlay = noOverlay
	a.editor = nil
	a.nameInput.Blur()
	a.nameInput.SetValue("")
}

// Layout

func (a *App) leftWidth() int {
	if a.panel.Collapsed() {
		return 0
	}
	return a.width * 3 / 5
}

// paneHeight is what the panes get once the filter bars and the status line
// are taken off
func (a *App) paneHeight() int {
	return max(a.height-8, 8)
}

func (a *App) layout() {
	half := max(a.width/2, 20)
	a.search.SetWidth(half)
	a.tagFilter.SetWidth(a.width - half)
	right := a.width - a.leftWidth()
	a.details.SetSize(right-6, max(a.paneHeight()/2-4, 3))
	if a.editor != nil {
		a.editor.SetWidth(min(a.width-4, 90))
	}
	a.nameInput.Width = 40
}

func (a *App) View() string {
	if a.width == 0 || a.height == 0 {
		return "Loading..."
	}

	filters := lipgloss.JoinHorizontal(lipgloss.Top, a.search.View(), a.tagFilter.View())

	var body string
	switch {
	case a.confirm.Active():
		body = lipgloss.Place(a.width, a.paneHeight(), lipgloss.Center, lipgloss.Center,
			a.confirm.View())
	case a.overlay != noOverlay:
		body = lipgloss.Place(a.width, a.paneHeight(), lipgloss.Center, lipgloss.Center,
			a.overlayView())
	default:
		body = a.panesView()
	}

	header := renderHeader(a.width, a.titleText(), len(a.panel.Entries()), len(a.panel.Stack()),
		string(a.panel.Filters().Mode))
	return lipgloss.JoinVertical(lipgloss.Left, header, filters, body, a.statusBar())
}

func (a *App) panesView() string {
	height := a.paneHeight()
	right := a.width - a.leftWidth()
	stackHeight := height / 2

	if entry, ok := a.focusedEntry(); ok {
		a.details.Show(&entry)
	} else {
		a.details.Show(nil)
	}

	stack := (&StackRenderer{
		Width:        right,
		Height:       stackHeight,
		IsActive:     a.active == stackPane,
		Cursor:       a.stackCursor,
		Items:        a.panel.Stack(),
		PrimaryOnly:  a.panel.PrimaryOnly(),
		ActivePreset: a.panel.ActivePreset(),
	}).Render()
	details := InactiveBorderStyle.
		Width(right - 2).
		Render(paneHeader("DETAILS", false, right-4) + "\n\n" + HeaderPaddingStyle.Render(a.details.View()))
	column := lipgloss.JoinVertical(lipgloss.Left, stack, details)

	if a.panel.Collapsed() {
		return column
	}

	catalog := (&CatalogRenderer{
		Width:    a.leftWidth(),
		Height:   height,
		IsActive: a.active == catalogPane,
		Cursor:   a.catalogCursor,
		Entries:  a.panel.VisibleEntries(),
		Selected: a.panel.IsSelected,
		Sync:     a.panel.SyncState,
		Page:     a.panel.Cursor(),
		Filters:  a.panel.Filters(),
		Spinner:  a.spinner.View(),
	}).Render()

	return lipgloss.JoinHorizontal(lipgloss.Top, catalog, column)
}

func (a *App) statusBar() string {
	if msg, _, ok := a.status.Current(); ok {
		return StatusBarStyle.Render(msg)
	}
	return HelpStyle.Render("? help • tab switch pane • / name • t tags • p presets • q quit")
}

func (a *App) titleText() string {
	if a.title == "" {
		return "lora gallery"
	}
	return a.title
}
