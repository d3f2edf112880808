package server

import (
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pluqqy/lora-gallery/internal/logger"
	"github.com/pluqqy/lora-gallery/pkg/files"
	"github.com/pluqqy/lora-gallery/pkg/models"
)

// writeEntry creates an adapter file below root, with a sidecar when meta is not nil
func writeEntry(t *testing.T, root, name string, meta map[string]any) string {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(name))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
	require.NoError(t, os.WriteFile(p, []byte("weights:"+name), 0644))
	if meta != nil {
		require.NoError(t, files.WriteJSON(files.SidecarPath(p), meta))
	}
	return p
}

func testCatalog(t *testing.T) (*Catalog, string) {
	t.Helper()
	root := t.TempDir()
	writeEntry(t, root, "beta.safetensors", map[string]any{"tags": []string{"Style", "anime"}})
	writeEntry(t, root, "Alpha.safetensors", map[string]any{"tags": []string{"style"}, "activation text": "alpha"})
	writeEntry(t, root, "chars/gamma.pt", map[string]any{"tags": []string{"character", "anime"}})
	writeEntry(t, root, "chars/delta.ckpt", nil)
	require.NoError(t, os.WriteFile(filepath.Join(root, "notes.txt"), []byte("x"), 0644))
	return NewCatalog([]string{root}, DefaultPrefix, logger.Discard()), root
}

func TestCatalog_PageSortsAndListsFolders(t *testing.T) {
	c, _ := testCatalog(t)

	got := c.Page(Query{Page: 1, PerPage: 50})
	assert.Equal(t, []string{"Alpha.safetensors", "beta.safetensors", "chars/delta.ckpt", "chars/gamma.pt"}, entryNames(got.Entries))
	assert.Equal(t, []string{".", "chars"}, got.Folders)
	assert.Equal(t, 1, got.TotalPages)
	assert.Equal(t, 1, got.CurrentPage)

	alpha := got.Entries[0]
	assert.Equal(t, "alpha", alpha.TriggerText)
	assert.Equal(t, ".", alpha.Folder)

	delta := got.Entries[2]
	assert.Equal(t, models.DefaultPreferredWeight, delta.PreferredWeight)
	assert.Equal(t, models.DefaultSDVersion, delta.SDVersion)
	assert.Equal(t, models.PreviewNone, delta.PreviewKind)
	assert.Empty(t, delta.PreviewURL)
	assert.NotNil(t, delta.Tags)
}

func TestCatalog_PageFilters(t *testing.T) {
	c, _ := testCatalog(t)

	tests := []struct {
		name  string
		query url.Values
		want  []string
	}{
		{"name filter ignores case", url.Values{"name_filter": {"ALP"}}, []string{"Alpha.safetensors"}},
		{"folder", url.Values{"folder": {"chars"}}, []string{"chars/delta.ckpt", "chars/gamma.pt"}},
		{"root folder", url.Values{"folder": {"."}}, []string{"Alpha.safetensors", "beta.safetensors"}},
		{"tags or", url.Values{"filter_tag": {"STYLE, character"}}, []string{"Alpha.safetensors", "beta.safetensors", "chars/gamma.pt"}},
		{"tags and", url.Values{"filter_tag": {"anime,style"}, "mode": {"AND"}}, []string{"beta.safetensors"}},
		{"unknown tag", url.Values{"filter_tag": {"nope"}}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := ParseQuery(tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.want, entryNames(c.Page(q).Entries))
		})
	}
}

func TestCatalog_PinnedFirstAndPagination(t *testing.T) {
	c, _ := testCatalog(t)

	q := Query{
		Pinned:  []string{"chars/gamma.pt", "missing.safetensors", "beta.safetensors"},
		Page:    1,
		PerPage: 3,
	}
	first := c.Page(q)
	assert.Equal(t, []string{"chars/gamma.pt", "beta.safetensors", "Alpha.safetensors"}, entryNames(first.Entries))
	assert.Equal(t, 2, first.TotalPages)

	q.Page = 2
	second := c.Page(q)
	assert.Equal(t, []string{"chars/delta.ckpt"}, entryNames(second.Entries))

	q.Page = 9
	assert.Empty(t, c.Page(q).Entries)
}

func TestCatalog_EmptyCatalogHasNoPages(t *testing.T) {
	c := NewCatalog([]string{t.TempDir()}, DefaultPrefix, logger.Discard())
	got := c.Page(Query{Page: 1})
	assert.Equal(t, 0, got.TotalPages)
	assert.Empty(t, got.Entries)
	assert.Empty(t, got.Folders)
}

func TestCatalog_PreviewDiscovery(t *testing.T) {
	c, root := testCatalog(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "chars", "gamma.mp4"), []byte("v"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "chars", "gamma.webp"), []byte("i"), 0644))

	e, err := c.Entry("chars/gamma.pt")
	require.NoError(t, err)
	assert.Equal(t, models.PreviewImage, e.PreviewKind)
	assert.Equal(t, "/LocalLoraGalleryRemix/preview?filename=gamma.webp&lora_name=chars%2Fgamma.pt", e.PreviewURL)

	require.NoError(t, os.Remove(filepath.Join(root, "chars", "gamma.webp")))
	e, err = c.Entry("chars/gamma.pt")
	require.NoError(t, err)
	assert.Equal(t, models.PreviewVideo, e.PreviewKind)
}

func TestCatalog_Resolve(t *testing.T) {
	c, root := testCatalog(t)

	p, err := c.Resolve("chars/gamma.pt")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "chars", "gamma.pt"), p)

	for _, bad := range []string{"", "../x.safetensors", "/etc/passwd", `chars\gamma.pt`} {
		_, err := c.Resolve(bad)
		assert.ErrorIs(t, err, ErrBadEntryName, bad)
	}
	_, err = c.Resolve("nope.safetensors")
	assert.ErrorIs(t, err, ErrEntryNotFound)
	_, err = c.Resolve("notes.txt")
	assert.ErrorIs(t, err, ErrEntryNotFound)
}

func TestCatalog_FirstRootWins(t *testing.T) {
	a, b := t.TempDir(), t.TempDir()
	writeEntry(t, a, "same.safetensors", map[string]any{"notes": "from a"})
	writeEntry(t, b, "same.safetensors", map[string]any{"notes": "from b"})
	writeEntry(t, b, "only-b.safetensors", nil)

	c := NewCatalog([]string{a, b}, DefaultPrefix, logger.Discard())
	got := c.Page(Query{Page: 1})
	assert.Equal(t, []string{"only-b.safetensors", "same.safetensors"}, entryNames(got.Entries))
	assert.Equal(t, "from a", got.Entries[1].Notes)
}

func TestCatalog_AllTags(t *testing.T) {
	c, _ := testCatalog(t)
	assert.Equal(t, []string{"anime", "character", "Style", "style"}, c.AllTags())
}

func TestParseQuery(t *testing.T) {
	q, err := ParseQuery(url.Values{})
	require.NoError(t, err)
	assert.Equal(t, 1, q.Page)
	assert.Equal(t, DefaultPerPage, q.PerPage)
	assert.Equal(t, models.TagModeOR, q.Mode)

	q, err = ParseQuery(url.Values{"page": {"-3"}, "selected_loras": {"a", "b"}})
	require.NoError(t, err)
	assert.Equal(t, 1, q.Page)
	assert.Equal(t, []string{"a", "b"}, q.Pinned)

	_, err = ParseQuery(url.Values{"page": {"x"}})
	assert.Error(t, err)
	_, err = ParseQuery(url.Values{"per_page": {"0"}})
	assert.Error(t, err)
}

func TestCatalog_MigrateLegacy(t *testing.T) {
	c, _ := testCatalog(t)
	legacy := filepath.Join(t.TempDir(), "lora_gallery_metadata.json")
	require.NoError(t, files.WriteJSON(legacy, map[string]any{
		"Alpha.safetensors": map[string]any{"trigger_words": "old", "sd_version": "SDXL"},
		"chars/delta.ckpt":  map[string]any{"tags": "not-a-list", "negative_prompt": "blurry"},
		"gone.safetensors":  map[string]any{"notes": "x"},
	}))

	n, err := c.MigrateLegacy(legacy)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	alpha, err := c.Entry("Alpha.safetensors")
	require.NoError(t, err)
	assert.Equal(t, "alpha", alpha.TriggerText, "existing keys win")
	assert.Equal(t, "SDXL", alpha.SDVersion)

	delta, err := c.Entry("chars/delta.ckpt")
	require.NoError(t, err)
	assert.Equal(t, "blurry", delta.NegativeText)
	assert.Empty(t, delta.Tags)

	assert.False(t, files.Exists(legacy))
	assert.True(t, files.Exists(legacy+".migrated"))

	n, err = c.MigrateLegacy(legacy)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func entryNames(entries []models.CatalogEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Name
	}
	return out
}
