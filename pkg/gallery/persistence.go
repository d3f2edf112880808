package gallery

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pluqqy/lora-gallery/pkg/models"
)

// remoteWriteTimeout bounds a fire-and-forget UI-state write
const remoteWriteTimeout = 10 * time.Second

// Bridge keeps the Selection Stack in the host serialization and mirrors the
// panel's UI state to the remote store.
type Bridge struct {
	host   HostStore
	remote UIStateStore
	key    PanelKey
	log    *slog.Logger

	mu      sync.Mutex
	pending []map[string]any
	running bool
	wg      sync.WaitGroup
}

// NewBridge wires a bridge for the panel identified by key
func NewBridge(host HostStore, remote UIStateStore, key PanelKey, log *slog.Logger) *Bridge {
	return &Bridge{host: host, remote: remote, key: key, log: log}
}

// Key returns the panel key
func (b *Bridge) Key() PanelKey {
	return b.key
}

// Resolve decides the panel's starting state.
//
// The remote record is read first; when it is missing or unreadable the
// defaults apply. If the panel was deserialized from a saved workflow, the
// stack stored in the host wins over the remote one. The chosen stack is
// then written back to the host right away.
func (b *Bridge) Resolve(ctx context.Context, deserialized bool) models.PanelUIState {
	state, err := b.remote.GetUIState(ctx, b.key)
	if err != nil {
		b.log.Warn("failed to read panel state, using defaults", "key", b.key.String(), "error", err)
		state = models.DefaultUIState()
	}
	state.Mode = models.ParseTagMode(string(state.Mode))

	if deserialized {
		state.Stack = b.hostStack()
	}
	if state.Stack == nil {
		state.Stack = []models.SelectionItem{}
	}

	if err := b.writeHost(state.Stack); err != nil {
		b.log.Warn("failed to write selection to host", "error", err)
	}
	return state
}

func (b *Bridge) hostStack() []models.SelectionItem {
	raw, ok := b.host.SelectionData()
	if !ok {
		return []models.SelectionItem{}
	}
	items, err := models.ParseSelection(raw)
	if err != nil {
		b.log.Warn("host selection data is not valid, starting empty", "error", err)
		return []models.SelectionItem{}
	}
	return items
}

func (b *Bridge) writeHost(stack []models.SelectionItem) error {
	data, err := json.Marshal(stack)
	if err != nil {
		return fmt.Errorf("failed to encode selection: %w", err)
	}
	return b.host.SetSelectionData(string(data))
}

// PersistStack writes the stack to the host now and pushes the collapse flag
// and the stack to the remote store in the background.
func (b *Bridge) PersistStack(collapsed bool, stack []models.SelectionItem) error {
	stack = models.CloneItems(stack)
	err := b.writeHost(stack)
	b.push(map[string]any{
		"is_collapsed": collapsed,
		"lora_stack":   stack,
	})
	return err
}

// PersistFilters pushes the tag text, mode and folder in the background
func (b *Bridge) PersistFilters(filters models.FilterState) {
	b.push(map[string]any{
		"filter_tag":    filters.TagText,
		"filter_mode":   string(filters.Mode),
		"filter_folder": filters.Folder,
	})
}

// push queues a remote write. Writes go out one at a time in the order they
// were queued, so the store ends up with the latest state.
func (b *Bridge) push(fields map[string]any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pending = append(b.pending, fields)
	if b.running {
		return
	}
	b.running = true
	b.wg.Add(1)
	go b.drain()
}

func (b *Bridge) drain() {
	defer b.wg.Done()
	for {
		b.mu.Lock()
		if len(b.pending) == 0 {
			b.running = false
			b.mu.Unlock()
			return
		}
		fields := b.pending[0]
		b.pending = b.pending[1:]
		b.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), remoteWriteTimeout)
		if err := b.remote.SetUIState(ctx, b.key, fields); err != nil {
			b.log.Warn("failed to save panel state", "key", b.key.String(), "error", err)
		}
		cancel()
	}
}

// Wait blocks until background writes have finished
func (b *Bridge) Wait() {
	b.wg.Wait()
}
