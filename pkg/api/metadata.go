package api

import (
	"context"
	"fmt"

	"github.com/pluqqy/lora-gallery/pkg/models"
)

type updateRequest struct {
	Name string `json:"lora_name"`
	models.MetadataUpdate
}

// UpdateMetadata merges update into the stored metadata of name
func (c *Client) UpdateMetadata(ctx context.Context, name string, update models.MetadataUpdate) error {
	var reply statusReply
	if err := c.postJSON(ctx, "update_metadata", updateRequest{Name: name, MetadataUpdate: update}, &reply); err != nil {
		return err
	}
	return reply.err()
}

type syncRequest struct {
	Name string `json:"lora_name"`
	models.SyncOptions
}

// SyncExternal asks the server to pull name's metadata from the external source
func (c *Client) SyncExternal(ctx context.Context, name string, opts models.SyncOptions) (*models.SyncedMetadata, error) {
	var reply models.SyncResult
	if err := c.postJSON(ctx, "sync_civitai", syncRequest{Name: name, SyncOptions: opts}, &reply); err != nil {
		return nil, err
	}
	if reply.Status != "ok" {
		return nil, fmt.Errorf("sync of %s failed: %s", name, reply.Message)
	}
	if reply.Metadata == nil {
		reply.Metadata = &models.SyncedMetadata{PreviewKind: models.PreviewNone}
	}
	return reply.Metadata, nil
}
