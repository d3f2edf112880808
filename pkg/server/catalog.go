package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pluqqy/lora-gallery/pkg/files"
	"github.com/pluqqy/lora-gallery/pkg/models"
)

const DefaultPerPage = 50

var (
	ErrEntryNotFound = errors.New("entry not found")
	ErrBadEntryName  = errors.New("invalid entry name")
)

var (
	// ModelExtensions are the adapter file types the catalog lists
	ModelExtensions = []string{".safetensors", ".pt", ".ckpt", ".bin"}

	imageExtensions = []string{".png", ".jpg", ".jpeg", ".webp", ".gif"}
	videoExtensions = []string{".mp4", ".webm", ".mov", ".avi"}
)

// Catalog lists the adapter files below a set of root directories. Names are
// slash separated paths relative to their root; when two roots hold the same
// name the first root wins.
type Catalog struct {
	roots  []string
	prefix string
	log    *slog.Logger
}

// NewCatalog builds a catalog over roots. prefix is the route prefix used in
// preview URLs.
func NewCatalog(roots []string, prefix string, log *slog.Logger) *Catalog {
	clean := make([]string, 0, len(roots))
	for _, r := range roots {
		if r = strings.TrimSpace(r); r != "" {
			clean = append(clean, filepath.Clean(r))
		}
	}
	return &Catalog{roots: clean, prefix: prefix, log: log}
}

type catalogFile struct {
	Name   string
	Path   string
	Folder string
}

func isModelFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range ModelExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// files walks every root. Unreadable roots are logged and skipped.
func (c *Catalog) files() []catalogFile {
	var out []catalogFile
	seen := map[string]bool{}

	for _, root := range c.roots {
		err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				c.log.Warn("failed to read catalog path", "path", p, "error", err)
				if d != nil && d.IsDir() && p != root {
					return fs.SkipDir
				}
				return nil
			}
			if d.IsDir() {
				if p != root && strings.HasPrefix(d.Name(), ".") {
					return fs.SkipDir
				}
				return nil
			}
			if !isModelFile(d.Name()) {
				return nil
			}

			rel, err := filepath.Rel(root, p)
			if err != nil {
				return nil
			}
			name := filepath.ToSlash(rel)
			if seen[name] {
				return nil
			}
			seen[name] = true

			folder := path.Dir(name)
			out = append(out, catalogFile{Name: name, Path: p, Folder: folder})
			return nil
		})
		if err != nil {
			c.log.Warn("failed to scan catalog root", "root", root, "error", err)
		}
	}
	return out
}

// Resolve maps an entry name to its file
func (c *Catalog) Resolve(name string) (string, error) {
	if name == "" || strings.Contains(name, "\\") || path.IsAbs(name) {
		return "", fmt.Errorf("%w: %q", ErrBadEntryName, name)
	}
	clean := path.Clean(name)
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("%w: %q", ErrBadEntryName, name)
	}
	if !isModelFile(clean) {
		return "", fmt.Errorf("%w: %s", ErrEntryNotFound, name)
	}
	for _, root := range c.roots {
		p := filepath.Join(root, filepath.FromSlash(clean))
		if files.Exists(p) {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrEntryNotFound, name)
}

// Names lists every entry name in scan order
func (c *Catalog) Names() []string {
	all := c.files()
	names := make([]string, len(all))
	for i, f := range all {
		names[i] = f.Name
	}
	return names
}

// Query is a parsed get_loras request
type Query struct {
	Tags    []string
	Mode    models.TagMode
	Folder  string
	Name    string
	Pinned  []string
	Page    int
	PerPage int
}

// ParseQuery reads the catalog query parameters
func ParseQuery(v url.Values) (Query, error) {
	q := Query{
		Tags:    models.ParseTagList(strings.ToLower(v.Get("filter_tag"))),
		Mode:    models.ParseTagMode(v.Get("mode")),
		Folder:  strings.TrimSpace(v.Get("folder")),
		Name:    strings.ToLower(strings.TrimSpace(v.Get("name_filter"))),
		Pinned:  v["selected_loras"],
		Page:    1,
		PerPage: DefaultPerPage,
	}

	if s := v.Get("page"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return Query{}, fmt.Errorf("invalid page %q", s)
		}
		q.Page = max(n, 1)
	}
	if s := v.Get("per_page"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			return Query{}, fmt.Errorf("invalid per_page %q", s)
		}
		q.PerPage = n
	}
	return q, nil
}

// Page filters, orders and slices the catalog. Pinned entries that pass the
// filters come first in the order given, the rest follow sorted by name
// ignoring case. Folders always lists every folder of the catalog.
func (c *Catalog) Page(q Query) models.PageResult {
	folderSet := map[string]bool{}
	var matched []catalogFile

	for _, f := range c.files() {
		folderSet[f.Folder] = true

		if q.Name != "" && !strings.Contains(strings.ToLower(f.Name), q.Name) {
			continue
		}
		if q.Folder != "" && q.Folder != f.Folder {
			continue
		}
		if len(q.Tags) > 0 {
			meta, err := loadSidecar(f.Path)
			if err != nil {
				c.log.Warn("failed to read metadata", "entry", f.Name, "error", err)
			}
			if !models.MatchTags(meta.tags(), q.Tags, q.Mode) {
				continue
			}
		}
		matched = append(matched, f)
	}

	byName := make(map[string]catalogFile, len(matched))
	for _, f := range matched {
		byName[f.Name] = f
	}

	ordered := make([]catalogFile, 0, len(matched))
	pinned := map[string]bool{}
	for _, name := range q.Pinned {
		if f, ok := byName[name]; ok && !pinned[name] {
			pinned[name] = true
			ordered = append(ordered, f)
		}
	}
	rest := make([]string, 0, len(matched))
	for _, f := range matched {
		if !pinned[f.Name] {
			rest = append(rest, f.Name)
		}
	}
	models.SortFold(rest)
	for _, name := range rest {
		ordered = append(ordered, byName[name])
	}

	perPage := q.PerPage
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	page := max(q.Page, 1)
	total := (len(ordered) + perPage - 1) / perPage

	start := min((page-1)*perPage, len(ordered))
	end := min(start+perPage, len(ordered))

	entries := make([]models.CatalogEntry, 0, end-start)
	for _, f := range ordered[start:end] {
		entries = append(entries, c.entry(f))
	}

	folders := make([]string, 0, len(folderSet))
	for f := range folderSet {
		folders = append(folders, f)
	}
	models.SortFold(folders)

	return models.PageResult{
		Entries:     entries,
		Folders:     folders,
		TotalPages:  total,
		CurrentPage: page,
	}
}

// Entry builds the catalog record of a single entry
func (c *Catalog) Entry(name string) (models.CatalogEntry, error) {
	p, err := c.Resolve(name)
	if err != nil {
		return models.CatalogEntry{}, err
	}
	return c.entry(catalogFile{Name: name, Path: p, Folder: path.Dir(name)}), nil
}

func (c *Catalog) entry(f catalogFile) models.CatalogEntry {
	meta, err := loadSidecar(f.Path)
	if err != nil {
		c.log.Warn("failed to read metadata", "entry", f.Name, "error", err)
	}
	e := meta.entry()
	e.Name = f.Name
	e.Folder = f.Folder
	e.PreviewURL, e.PreviewKind = c.preview(f.Name, f.Path)
	return e
}

// preview finds the first preview asset next to the entry file
func (c *Catalog) preview(name, entryPath string) (string, models.PreviewKind) {
	base := strings.TrimSuffix(entryPath, filepath.Ext(entryPath))

	try := func(exts []string, kind models.PreviewKind) (string, models.PreviewKind, bool) {
		for _, ext := range exts {
			if files.Exists(base + ext) {
				return c.previewURL(filepath.Base(base+ext), name), kind, true
			}
		}
		return "", models.PreviewNone, false
	}

	if u, kind, ok := try(imageExtensions, models.PreviewImage); ok {
		return u, kind
	}
	if u, kind, ok := try(videoExtensions, models.PreviewVideo); ok {
		return u, kind
	}
	return "", models.PreviewNone
}

func (c *Catalog) previewURL(filename, name string) string {
	return fmt.Sprintf("%s/preview?filename=%s&lora_name=%s",
		c.prefix, url.QueryEscape(filename), url.QueryEscape(name))
}

// AllTags is the tag vocabulary of every entry, sorted ignoring case
func (c *Catalog) AllTags() []string {
	set := map[string]bool{}
	for _, f := range c.files() {
		meta, err := loadSidecar(f.Path)
		if err != nil {
			continue
		}
		for _, t := range meta.tags() {
			set[t] = true
		}
	}
	tags := make([]string, 0, len(set))
	for t := range set {
		tags = append(tags, t)
	}
	sort.Strings(tags)
	models.SortFold(tags)
	return tags
}

// sidecar is the free-form metadata document stored next to an entry. Keys
// the gallery does not know, such as the cached hash, are kept on write.
type sidecar map[string]any

const keyHash = "hash"

func loadSidecar(entryPath string) (sidecar, error) {
	meta := sidecar{}
	if _, err := files.ReadJSON(files.SidecarPath(entryPath), &meta); err != nil {
		return sidecar{}, err
	}
	return meta, nil
}

// mergeSidecar writes fields over the stored document
func mergeSidecar(entryPath string, fields map[string]any) (sidecar, error) {
	meta, err := loadSidecar(entryPath)
	if err != nil {
		return nil, err
	}
	for k, v := range fields {
		meta[k] = v
	}
	if err := files.WriteJSON(files.SidecarPath(entryPath), meta); err != nil {
		return nil, err
	}
	return meta, nil
}

func (m sidecar) tags() []string {
	raw, ok := m["tags"].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, t := range raw {
		if s, ok := t.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func (m sidecar) str(key string) string {
	s, _ := m[key].(string)
	return s
}

// entry decodes the known keys with the catalog defaults
func (m sidecar) entry() models.CatalogEntry {
	var e models.CatalogEntry
	known := map[string]any{}
	for _, k := range []string{"tags", "activation text", "preferred weight", "negative text", "sd version", "notes", "download_url"} {
		if v, ok := m[k]; ok && v != nil {
			known[k] = v
		}
	}
	data, _ := json.Marshal(known)
	if err := json.Unmarshal(data, &e); err != nil {
		// a malformed field falls back to the defaults
		_ = json.Unmarshal([]byte("{}"), &e)
		e.Tags = models.CleanTags(m.tags())
		e.TriggerText = m.str("activation text")
		e.NegativeText = m.str("negative text")
		e.Notes = m.str("notes")
		e.DownloadURL = m.str("download_url")
	}
	return e
}
