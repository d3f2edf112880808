package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"github.com/spf13/viper"

	"github.com/pluqqy/lora-gallery/internal/config"
	"github.com/pluqqy/lora-gallery/internal/logger"
	"github.com/pluqqy/lora-gallery/pkg/api"
	"github.com/pluqqy/lora-gallery/pkg/composer"
	"github.com/pluqqy/lora-gallery/pkg/gallery"
	"github.com/pluqqy/lora-gallery/pkg/host"
	"github.com/pluqqy/lora-gallery/pkg/models"
)

// ErrEntryNotFound is returned when no catalog entry has the exact name
var ErrEntryNotFound = errors.New("entry not found")

// CommandContext carries the resolved settings and the lazily built client
// shared by the subcommands
type CommandContext struct {
	Settings *models.Settings
	Log      *slog.Logger
	client   *api.Client
}

// NewCommandContext resolves the settings from the global viper instance
func NewCommandContext() (*CommandContext, error) {
	settings, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, err
	}
	return &CommandContext{Settings: settings, Log: logger.Get()}, nil
}

// Client returns the client of the configured gallery service
func (c *CommandContext) Client() (*api.Client, error) {
	if c.client != nil {
		return c.client, nil
	}
	client, err := api.New(api.Options{
		BaseURL: c.Settings.Server.URL,
		Prefix:  c.Settings.Server.Prefix,
		Timeout: c.Settings.Server.Timeout,
		PerPage: c.Settings.Panel.PerPage,
		Logger:  c.Log,
	})
	if err != nil {
		return nil, err
	}
	c.client = client
	return client, nil
}

// PanelSession is a panel restored from the workflow file and the service
type PanelSession struct {
	Panel    *gallery.Panel
	Client   *api.Client
	Workflow *host.Workflow
	Node     *host.Node
}

// Close waits for the state writes the panel still has queued
func (s *PanelSession) Close() {
	s.Panel.Wait()
}

// OpenPanel loads the configured workflow node, adding it when the workflow
// has none, and restores its panel. The catalog is not fetched.
func (c *CommandContext) OpenPanel(ctx context.Context) (*PanelSession, error) {
	client, err := c.Client()
	if err != nil {
		return nil, err
	}

	wf, err := host.Open(c.Settings.Panel.Workflow)
	if err != nil {
		return nil, fmt.Errorf("failed to open workflow %s: %w", c.Settings.Panel.Workflow, err)
	}
	node := wf.EnsureNode(c.Settings.Panel.NodeID, c.Settings.Panel.ModelOnly)

	galleryID := c.Settings.Panel.GalleryID
	if galleryID == "" {
		if galleryID, err = node.GalleryID(); err != nil {
			return nil, err
		}
	}

	panel := gallery.NewPanel(client, node, gallery.Options{
		Key:              gallery.PanelKey{NodeID: node.ID(), GalleryID: galleryID},
		PrimaryOnly:      node.ModelOnly(),
		SyncErrorDisplay: c.Settings.Panel.SyncErrorDisplay,
		Logger:           c.Log,
	})
	panel.Init(ctx, node.Deserialized())

	return &PanelSession{Panel: panel, Client: client, Workflow: wf, Node: node}, nil
}

// EntryResolver finds catalog entries by their exact name
type EntryResolver struct {
	source gallery.CatalogSource
}

// NewEntryResolver creates a new entry resolver
func NewEntryResolver(source gallery.CatalogSource) *EntryResolver {
	return &EntryResolver{source: source}
}

// Find narrows the catalog by name and pages through it until the entry
// with exactly that name turns up
func (r *EntryResolver) Find(ctx context.Context, name string) (models.CatalogEntry, error) {
	filters := models.FilterState{Mode: models.TagModeOR, NameFilter: name}
	for page := 1; ; page++ {
		result := r.source.FetchPage(ctx, filters, page, nil)
		for _, e := range result.Entries {
			if e.Name == name {
				return e, nil
			}
		}
		if page >= result.TotalPages {
			return models.CatalogEntry{}, fmt.Errorf("%w: %s", ErrEntryNotFound, name)
		}
	}
}

// Lookup resolves every name it can. Names that could not be found are
// returned alongside.
func (r *EntryResolver) Lookup(ctx context.Context, names []string) (composer.EntryMap, []string) {
	found := make(composer.EntryMap, len(names))
	var missing []string
	for _, name := range names {
		if _, ok := found[name]; ok {
			continue
		}
		e, err := r.Find(ctx, name)
		if err != nil {
			missing = append(missing, name)
			continue
		}
		found[name] = e
	}
	return found, missing
}

// EditorLauncher opens text in the user's editor
type EditorLauncher struct {
	DefaultEditor string
}

// NewEditorLauncher picks $EDITOR, falling back to vi
func NewEditorLauncher() *EditorLauncher {
	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = "vi"
	}
	return &EditorLauncher{DefaultEditor: editor}
}

// OpenFile opens a file in the configured editor
func (e *EditorLauncher) OpenFile(path string) error {
	parts := strings.Fields(e.DefaultEditor)
	if len(parts) == 0 {
		return errors.New("no editor configured")
	}

	editorCmd := exec.Command(parts[0], append(parts[1:], path)...)
	editorCmd.Stdin = os.Stdin
	editorCmd.Stdout = os.Stdout
	editorCmd.Stderr = os.Stderr

	if err := editorCmd.Run(); err != nil {
		return fmt.Errorf("failed to open editor: %w", err)
	}
	return nil
}

// EditText hands content to the editor in a temp file and returns what was saved
func (e *EditorLauncher) EditText(pattern, content string) (string, error) {
	tmpFile, err := os.CreateTemp("", pattern)
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	name := tmpFile.Name()
	defer os.Remove(name)

	if _, err := tmpFile.WriteString(content); err != nil {
		tmpFile.Close()
		return "", fmt.Errorf("failed to write to temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return "", err
	}

	if err := e.OpenFile(name); err != nil {
		return "", err
	}

	edited, err := os.ReadFile(name)
	if err != nil {
		return "", fmt.Errorf("failed to read edited file: %w", err)
	}
	return string(edited), nil
}
