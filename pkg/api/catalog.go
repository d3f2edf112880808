package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/pluqqy/lora-gallery/pkg/models"
)

var ErrNoPreview = errors.New("entry has no preview")

// FetchPage loads one page of the catalog. It never fails: any problem is
// logged and an empty single page comes back, so the caller's pagination
// simply stops.
func (c *Client) FetchPage(ctx context.Context, filters models.FilterState, page int, excluded []string) models.PageResult {
	page = max(page, 1)

	q := url.Values{}
	q.Set("filter_tag", filters.TagText)
	q.Set("mode", string(models.ParseTagMode(string(filters.Mode))))
	q.Set("folder", filters.Folder)
	q.Set("page", strconv.Itoa(page))
	q.Set("name_filter", filters.NameFilter)
	if c.perPage > 0 {
		q.Set("per_page", strconv.Itoa(c.perPage))
	}
	for _, name := range excluded {
		q.Add("selected_loras", name)
	}

	var result models.PageResult
	if err := c.getJSON(ctx, "get_loras", q, &result); err != nil {
		c.log.Warn("failed to fetch catalog page", "page", page, "error", err)
		return models.EmptyPage()
	}
	if result.Entries == nil {
		result.Entries = []models.CatalogEntry{}
	}
	if result.Folders == nil {
		result.Folders = []string{}
	}
	return result
}

// AllTags returns the tag vocabulary of the whole catalog
func (c *Client) AllTags(ctx context.Context) ([]string, error) {
	var reply struct {
		Tags []string `json:"tags"`
	}
	if err := c.getJSON(ctx, "get_all_tags", nil, &reply); err != nil {
		return nil, fmt.Errorf("failed to load tags: %w", err)
	}
	if reply.Tags == nil {
		reply.Tags = []string{}
	}
	return reply.Tags, nil
}

// Preview downloads a preview asset. previewURL is the server-relative URL
// found on a catalog entry.
func (c *Client) Preview(ctx context.Context, previewURL string) ([]byte, string, error) {
	if previewURL == "" {
		return nil, "", ErrNoPreview
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.ResolveURL(previewURL), nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create request: %w", err)
	}

	c.inFlight.Add(1)
	defer c.inFlight.Add(-1)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to download preview: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, "", &StatusError{Code: resp.StatusCode, Message: replyMessage(body)}
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read preview: %w", err)
	}
	return data, resp.Header.Get("Content-Type"), nil
}

// TrainingInfo returns the metadata embedded in an adapter file's header
func (c *Client) TrainingInfo(ctx context.Context, name string) (map[string]string, error) {
	var reply struct {
		statusReply
		Metadata map[string]string `json:"metadata"`
	}
	if err := c.postJSON(ctx, "get_lora_training_info", map[string]string{"lora_name": name}, &reply); err != nil {
		return nil, fmt.Errorf("failed to read training info of %s: %w", name, err)
	}
	if err := reply.err(); err != nil {
		return nil, err
	}
	return reply.Metadata, nil
}
