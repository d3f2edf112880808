package api

import (
	"context"
	"fmt"
	"net/url"

	"github.com/pluqqy/lora-gallery/pkg/gallery"
	"github.com/pluqqy/lora-gallery/pkg/models"
)

// GetUIState reads the stored state of a panel. A panel the server has never
// seen comes back with the defaults.
func (c *Client) GetUIState(ctx context.Context, key gallery.PanelKey) (models.PanelUIState, error) {
	q := url.Values{}
	q.Set("node_id", key.NodeID)
	q.Set("gallery_id", key.GalleryID)

	state := models.DefaultUIState()
	if err := c.getJSON(ctx, "get_ui_state", q, &state); err != nil {
		return models.PanelUIState{}, fmt.Errorf("failed to read state of %s: %w", key, err)
	}
	state.Mode = models.ParseTagMode(string(state.Mode))
	return state, nil
}

type uiStateRequest struct {
	NodeID    string         `json:"node_id"`
	GalleryID string         `json:"gallery_id"`
	State     map[string]any `json:"state"`
}

// SetUIState merges fields into the stored state of a panel
func (c *Client) SetUIState(ctx context.Context, key gallery.PanelKey, fields map[string]any) error {
	req := uiStateRequest{NodeID: key.NodeID, GalleryID: key.GalleryID, State: fields}
	var reply statusReply
	if err := c.postJSON(ctx, "set_ui_state", req, &reply); err != nil {
		return fmt.Errorf("failed to save state of %s: %w", key, err)
	}
	return reply.err()
}

// ListPresets returns the whole preset book
func (c *Client) ListPresets(ctx context.Context) (models.PresetBook, error) {
	book := models.PresetBook{}
	if err := c.getJSON(ctx, "get_presets", nil, &book); err != nil {
		return nil, fmt.Errorf("failed to load presets: %w", err)
	}
	return book, nil
}

type presetReply struct {
	statusReply
	Presets models.PresetBook `json:"presets"`
}

func (r presetReply) book() (models.PresetBook, error) {
	if err := r.err(); err != nil {
		return nil, err
	}
	if r.Presets == nil {
		return models.PresetBook{}, nil
	}
	return r.Presets, nil
}

// SavePreset stores items under name and returns the book as stored
func (c *Client) SavePreset(ctx context.Context, name string, items []models.SelectionItem) (models.PresetBook, error) {
	body := struct {
		Name string                 `json:"name"`
		Data []models.SelectionItem `json:"data"`
	}{Name: name, Data: items}

	var reply presetReply
	if err := c.postJSON(ctx, "save_preset", body, &reply); err != nil {
		return nil, err
	}
	return reply.book()
}

// DeletePreset removes name and returns the book as stored
func (c *Client) DeletePreset(ctx context.Context, name string) (models.PresetBook, error) {
	var reply presetReply
	if err := c.postJSON(ctx, "delete_preset", map[string]string{"name": name}, &reply); err != nil {
		return nil, err
	}
	return reply.book()
}

var _ gallery.Remote = (*Client)(nil)
