package server

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
)

const (
	StoreJSON   = "json"
	StoreSQLite = "sqlite"
)

// Presets maps a preset name to its stack exactly as the client sent it
type Presets map[string]json.RawMessage

// Store keeps the per-panel UI state and the preset book
type Store interface {
	// UIState returns the stored state of key and whether there was any
	UIState(ctx context.Context, key string) (map[string]any, bool, error)
	// MergeUIState writes fields over the stored state of key
	MergeUIState(ctx context.Context, key string, fields map[string]any) error

	Presets(ctx context.Context) (Presets, error)
	SavePreset(ctx context.Context, name string, data json.RawMessage) (Presets, error)
	DeletePreset(ctx context.Context, name string) (Presets, error)

	Close() error
}

// OpenStore opens the backend named by kind inside dir
func OpenStore(ctx context.Context, kind, dir string) (Store, error) {
	switch kind {
	case "", StoreJSON:
		return OpenJSONStore(dir)
	case StoreSQLite:
		return OpenSQLiteStore(ctx, filepath.Join(dir, "lora_gallery.sqlite"))
	default:
		return nil, fmt.Errorf("unknown store %q", kind)
	}
}
