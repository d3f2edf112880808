package tui

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/pluqqy/lora-gallery/pkg/gallery"
	"github.com/pluqqy/lora-gallery/pkg/models"
)

// StatusMsg shows a transient message in the status bar
type StatusMsg string

// fetchDoneMsg carries a finished catalog request back to the loop
type fetchDoneMsg struct {
	ticket gallery.FetchTicket
	result models.PageResult
}

// debounceMsg fires when the quiet period of a name filter keystroke ends
type debounceMsg struct{ token int }

type tagsLoadedMsg struct {
	tags []string
	err  error
}

// updateDoneMsg acknowledges (or rejects) a metadata edit
type updateDoneMsg struct {
	name   string
	update models.MetadataUpdate
	err    error
}

// bulkTagDoneMsg reports a tag added or removed across several entries
type bulkTagDoneMsg struct {
	tag     string
	add     bool
	applied map[string]models.MetadataUpdate
	errs    []error
}

// syncDoneMsg settles an external sync
type syncDoneMsg struct {
	name string
	opts models.SyncOptions
	meta *models.SyncedMetadata
	err  error
	// toEditor routes the payload into the open edit form
	toEditor bool
}

// syncExpiredMsg redraws once an error mark has run its course
type syncExpiredMsg struct{ name string }

type presetsDoneMsg struct {
	action string
	name   string
	book   models.PresetBook
	err    error
}

type eventMsg struct{ event models.MetadataChangedEvent }

type eventsClosedMsg struct{}

type trainingInfoMsg struct {
	name string
	info map[string]string
	err  error
}

// TrainingInfoSource reads the embedded training metadata of an entry
type TrainingInfoSource interface {
	TrainingInfo(ctx context.Context, name string) (map[string]string, error)
}

// fetchCmd opens a catalog request on the panel and runs it off the loop
func fetchCmd(ctx context.Context, p *gallery.Panel, fresh bool) tea.Cmd {
	t, ok := p.BeginFetch(fresh)
	if !ok {
		return nil
	}
	return func() tea.Msg {
		return fetchDoneMsg{ticket: t, result: p.RunFetch(ctx, t)}
	}
}

func debounceCmd(d time.Duration, token int) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg {
		return debounceMsg{token: token}
	})
}

func loadTagsCmd(ctx context.Context, remote gallery.CatalogSource) tea.Cmd {
	return func() tea.Msg {
		tags, err := remote.AllTags(ctx)
		return tagsLoadedMsg{tags: tags, err: err}
	}
}

func updateCmd(ctx context.Context, p *gallery.Panel, name string, update models.MetadataUpdate) tea.Cmd {
	return func() tea.Msg {
		return updateDoneMsg{name: name, update: update, err: p.SendUpdate(ctx, name, update)}
	}
}

// bulkTagCmd sends the edits one entry at a time; failures do not stop the rest
func bulkTagCmd(ctx context.Context, p *gallery.Panel, names []string, tag string, add bool, edits map[string]models.MetadataUpdate) tea.Cmd {
	return func() tea.Msg {
		done := bulkTagDoneMsg{tag: tag, add: add, applied: make(map[string]models.MetadataUpdate)}
		for _, name := range names {
			update, ok := edits[name]
			if !ok {
				continue
			}
			if err := p.SendUpdate(ctx, name, update); err != nil {
				done.errs = append(done.errs, err)
				continue
			}
			done.applied[name] = update
		}
		return done
	}
}

func syncCmd(ctx context.Context, p *gallery.Panel, name string, opts models.SyncOptions, toEditor bool) tea.Cmd {
	return func() tea.Msg {
		meta, err := p.RemoteSync(ctx, name, opts)
		return syncDoneMsg{name: name, opts: opts, meta: meta, err: err, toEditor: toEditor}
	}
}

func syncExpiryCmd(name string, until time.Time) tea.Cmd {
	if until.IsZero() {
		return nil
	}
	return tea.Tick(time.Until(until)+10*time.Millisecond, func(time.Time) tea.Msg {
		return syncExpiredMsg{name: name}
	})
}

func savePresetCmd(ctx context.Context, store gallery.PresetStore, name string, items []models.SelectionItem) tea.Cmd {
	return func() tea.Msg {
		book, err := store.SavePreset(ctx, name, items)
		if err != nil {
			err = fmt.Errorf("failed to save preset %q: %w", name, err)
		}
		return presetsDoneMsg{action: "saved", name: name, book: book, err: err}
	}
}

func deletePresetCmd(ctx context.Context, store gallery.PresetStore, name string) tea.Cmd {
	return func() tea.Msg {
		book, err := store.DeletePreset(ctx, name)
		if err != nil {
			err = fmt.Errorf("failed to delete preset %q: %w", name, err)
		}
		return presetsDoneMsg{action: "deleted", name: name, book: book, err: err}
	}
}

// waitForEvent reads the next change pushed by the server
func waitForEvent(events <-chan models.MetadataChangedEvent) tea.Cmd {
	if events == nil {
		return nil
	}
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return eventsClosedMsg{}
		}
		return eventMsg{event: ev}
	}
}

func trainingInfoCmd(ctx context.Context, src TrainingInfoSource, name string) tea.Cmd {
	return func() tea.Msg {
		info, err := src.TrainingInfo(ctx, name)
		return trainingInfoMsg{name: name, info: info, err: err}
	}
}
