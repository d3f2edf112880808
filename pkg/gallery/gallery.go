// Package gallery holds the state and rules of a gallery panel: the catalog
// view with its incremental loading, the Selection Stack, filters and presets,
// metadata edits and the persistence of all of it. It performs no rendering;
// the terminal UI and the CLI drive it through Panel.
package gallery

import (
	"context"
	"errors"
	"fmt"

	"github.com/pluqqy/lora-gallery/pkg/models"
)

var (
	ErrIndexOutOfRange = errors.New("index out of range")
	ErrEmptyPresetName = errors.New("preset name cannot be empty")
	ErrEmptyStack      = errors.New("selection stack is empty")
	ErrNotConfirmed    = errors.New("operation requires confirmation")
	ErrPresetNotFound  = errors.New("preset not found")
	ErrPrimaryOnly     = errors.New("panel applies a primary strength only")
	ErrUnknownField    = errors.New("unknown field")
	ErrEntryNotLoaded  = errors.New("entry is not in the current view")
)

// CatalogSource pages through the remote catalog. FetchPage never fails:
// problems are logged by the implementation and an empty page comes back.
type CatalogSource interface {
	FetchPage(ctx context.Context, filters models.FilterState, page int, excluded []string) models.PageResult
	AllTags(ctx context.Context) ([]string, error)
}

// MetadataService persists entry edits and pulls metadata from the external source
type MetadataService interface {
	UpdateMetadata(ctx context.Context, name string, update models.MetadataUpdate) error
	SyncExternal(ctx context.Context, name string, opts models.SyncOptions) (*models.SyncedMetadata, error)
}

// PresetStore is the remote preset book. Writes return the book as stored.
type PresetStore interface {
	ListPresets(ctx context.Context) (models.PresetBook, error)
	SavePreset(ctx context.Context, name string, items []models.SelectionItem) (models.PresetBook, error)
	DeletePreset(ctx context.Context, name string) (models.PresetBook, error)
}

// UIStateStore is the remote per-panel state. SetUIState merges the given
// keys into what is stored.
type UIStateStore interface {
	GetUIState(ctx context.Context, key PanelKey) (models.PanelUIState, error)
	SetUIState(ctx context.Context, key PanelKey, fields map[string]any) error
}

// HostStore is the host editor's serialization of the panel's node
type HostStore interface {
	SelectionData() (string, bool)
	SetSelectionData(raw string) error
}

// Remote bundles every remote collaborator a Panel needs
type Remote interface {
	CatalogSource
	MetadataService
	PresetStore
	UIStateStore
}

// PanelKey identifies a panel in the remote UI-state store
type PanelKey struct {
	NodeID    string
	GalleryID string
}

// String is the storage key, "<gallery_id>_<node_id>"
func (k PanelKey) String() string {
	return fmt.Sprintf("%s_%s", k.GalleryID, k.NodeID)
}
