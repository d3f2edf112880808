package server

import (
	"context"
	"encoding/json"
	"maps"
	"path/filepath"
	"sync"

	"github.com/pluqqy/lora-gallery/pkg/files"
)

const (
	uiStateFile = "lora_gallery_ui_state.json"
	presetsFile = "lora_gallery_presets.json"
)

// JSONStore keeps both documents as JSON files in one directory. The files
// are read once on open; every write replaces the file atomically.
type JSONStore struct {
	mu      sync.RWMutex
	dir     string
	states  map[string]map[string]any
	presets Presets
}

// OpenJSONStore loads the store files in dir. Missing files start empty.
func OpenJSONStore(dir string) (*JSONStore, error) {
	s := &JSONStore{
		dir:     dir,
		states:  map[string]map[string]any{},
		presets: Presets{},
	}
	if _, err := files.ReadJSON(filepath.Join(dir, uiStateFile), &s.states); err != nil {
		return nil, err
	}
	if _, err := files.ReadJSON(filepath.Join(dir, presetsFile), &s.presets); err != nil {
		return nil, err
	}
	if s.states == nil {
		s.states = map[string]map[string]any{}
	}
	if s.presets == nil {
		s.presets = Presets{}
	}
	return s, nil
}

func (s *JSONStore) UIState(_ context.Context, key string) (map[string]any, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.states[key]
	if !ok {
		return nil, false, nil
	}
	return maps.Clone(state), true, nil
}

func (s *JSONStore) MergeUIState(_ context.Context, key string, fields map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := maps.Clone(s.states)
	state := maps.Clone(next[key])
	if state == nil {
		state = map[string]any{}
	}
	maps.Copy(state, fields)
	next[key] = state

	if err := files.WriteJSON(filepath.Join(s.dir, uiStateFile), next); err != nil {
		return err
	}
	s.states = next
	return nil
}

func (s *JSONStore) Presets(context.Context) (Presets, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.presets), nil
}

func (s *JSONStore) SavePreset(_ context.Context, name string, data json.RawMessage) (Presets, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := maps.Clone(s.presets)
	next[name] = append(json.RawMessage(nil), data...)
	if err := files.WriteJSON(filepath.Join(s.dir, presetsFile), next); err != nil {
		return nil, err
	}
	s.presets = next
	return maps.Clone(next), nil
}

func (s *JSONStore) DeletePreset(_ context.Context, name string) (Presets, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.presets[name]; !ok {
		return maps.Clone(s.presets), nil
	}
	next := maps.Clone(s.presets)
	delete(next, name)
	if err := files.WriteJSON(filepath.Join(s.dir, presetsFile), next); err != nil {
		return nil, err
	}
	s.presets = next
	return maps.Clone(next), nil
}

func (s *JSONStore) Close() error { return nil }
