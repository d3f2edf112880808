package models

import (
	"encoding/json"
	"strings"
)

// PreviewKind tells the renderer how to show an entry's preview asset
type PreviewKind string

const (
	PreviewImage PreviewKind = "image"
	PreviewVideo PreviewKind = "video"
	PreviewNone  PreviewKind = "none"
)

const (
	DefaultPreferredWeight = 1.0
	DefaultSDVersion       = "Unknown"
	RootFolder             = "."
)

// SDVersions are the base model families an entry can be marked with
var SDVersions = []string{"SD1", "SD2", "SDXL", DefaultSDVersion}

// CatalogEntry is one adapter file as described by the remote catalog.
// JSON keys follow the remote service, including the ones with spaces.
type CatalogEntry struct {
	Name            string      `json:"name" yaml:"name"`
	Tags            []string    `json:"tags" yaml:"tags"`
	TriggerText     string      `json:"activation text" yaml:"trigger_text"`
	PreferredWeight float64     `json:"preferred weight" yaml:"preferred_weight"`
	NegativeText    string      `json:"negative text" yaml:"negative_text"`
	SDVersion       string      `json:"sd version" yaml:"sd_version"`
	Notes           string      `json:"notes" yaml:"notes"`
	DownloadURL     string      `json:"download_url" yaml:"download_url"`
	PreviewURL      string      `json:"preview_url" yaml:"preview_url,omitempty"`
	PreviewKind     PreviewKind `json:"preview_type" yaml:"preview_type,omitempty"`
	Folder          string      `json:"folder,omitempty" yaml:"folder,omitempty"`
}

// UnmarshalJSON fills the defaults the catalog omits for entries without a sidecar
func (e *CatalogEntry) UnmarshalJSON(data []byte) error {
	type plain CatalogEntry
	out := plain{
		PreferredWeight: DefaultPreferredWeight,
		SDVersion:       DefaultSDVersion,
		PreviewKind:     PreviewNone,
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return err
	}
	if out.Tags == nil {
		out.Tags = []string{}
	}
	*e = CatalogEntry(out)
	return nil
}

// DisplayTags returns the entry's tags with duplicates collapsed, first occurrence kept
func (e CatalogEntry) DisplayTags() []string {
	return UniqueTags(e.Tags)
}

// Clone returns a copy that shares no slices with e
func (e CatalogEntry) Clone() CatalogEntry {
	out := e
	out.Tags = append([]string(nil), e.Tags...)
	return out
}

// SelectionItem is one row of the Selection Stack. StrengthClip is nil for
// panels that only apply a primary strength.
type SelectionItem struct {
	On           bool     `json:"on" yaml:"on"`
	EntryName    string   `json:"entry_name" yaml:"entry_name"`
	Strength     float64  `json:"strength" yaml:"strength"`
	StrengthClip *float64 `json:"strength_clip,omitempty" yaml:"strength_clip,omitempty"`
	UseTrigger   bool     `json:"use_trigger" yaml:"use_trigger"`
}

// UnmarshalJSON accepts the older "lora" key for the entry name and treats
// missing flags as enabled.
func (s *SelectionItem) UnmarshalJSON(data []byte) error {
	var raw struct {
		On           *bool    `json:"on"`
		EntryName    string   `json:"entry_name"`
		Lora         string   `json:"lora"`
		Strength     *float64 `json:"strength"`
		StrengthClip *float64 `json:"strength_clip"`
		UseTrigger   *bool    `json:"use_trigger"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	item := SelectionItem{
		On:           true,
		EntryName:    raw.EntryName,
		Strength:     DefaultPreferredWeight,
		StrengthClip: raw.StrengthClip,
		UseTrigger:   true,
	}
	if item.EntryName == "" {
		item.EntryName = raw.Lora
	}
	if raw.On != nil {
		item.On = *raw.On
	}
	if raw.Strength != nil {
		item.Strength = *raw.Strength
	}
	if raw.UseTrigger != nil {
		item.UseTrigger = *raw.UseTrigger
	}
	*s = item
	return nil
}

// Clone returns a copy that does not alias StrengthClip
func (s SelectionItem) Clone() SelectionItem {
	out := s
	if s.StrengthClip != nil {
		v := *s.StrengthClip
		out.StrengthClip = &v
	}
	return out
}

// ClipStrength returns the secondary strength, falling back to the primary one
func (s SelectionItem) ClipStrength() float64 {
	if s.StrengthClip == nil {
		return s.Strength
	}
	return *s.StrengthClip
}

// CloneItems deep-copies a stack
func CloneItems(items []SelectionItem) []SelectionItem {
	out := make([]SelectionItem, len(items))
	for i, it := range items {
		out[i] = it.Clone()
	}
	return out
}

// ParseSelection decodes a serialized stack. Blank data is an empty stack.
func ParseSelection(raw string) ([]SelectionItem, error) {
	items := []SelectionItem{}
	if strings.TrimSpace(raw) == "" {
		return items, nil
	}
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, err
	}
	if items == nil {
		items = []SelectionItem{}
	}
	return items, nil
}

// Float returns a pointer to v
func Float(v float64) *float64 {
	return &v
}

// TagMode is the combination rule for selected tags
type TagMode string

const (
	TagModeOR  TagMode = "OR"
	TagModeAND TagMode = "AND"
)

// ParseTagMode is lenient; anything that is not AND is OR
func ParseTagMode(s string) TagMode {
	if strings.EqualFold(strings.TrimSpace(s), string(TagModeAND)) {
		return TagModeAND
	}
	return TagModeOR
}

// Flip returns the other mode
func (m TagMode) Flip() TagMode {
	if m == TagModeAND {
		return TagModeOR
	}
	return TagModeAND
}

// FilterState is what narrows the catalog view
type FilterState struct {
	NameFilter string  `json:"name_filter" yaml:"name_filter"`
	TagText    string  `json:"filter_tag" yaml:"filter_tag"`
	Mode       TagMode `json:"filter_mode" yaml:"filter_mode"`
	Folder     string  `json:"filter_folder" yaml:"filter_folder"`
}

// SelectedTags derives the tag set from the comma separated text
func (f FilterState) SelectedTags() []string {
	return ParseTagList(f.TagText)
}

// PaginationCursor tracks how far the incremental load has progressed
type PaginationCursor struct {
	CurrentPage int  `json:"current_page"`
	TotalPages  int  `json:"total_pages"`
	Loading     bool `json:"loading"`
}

// HasMore reports whether a next page exists
func (c PaginationCursor) HasMore() bool {
	return c.CurrentPage < c.TotalPages
}

// PanelUIState is the per-panel record kept in the remote UI-state store
type PanelUIState struct {
	Collapsed bool            `json:"is_collapsed"`
	Stack     []SelectionItem `json:"lora_stack,omitempty"`
	TagText   string          `json:"filter_tag"`
	Mode      TagMode         `json:"filter_mode"`
	Folder    string          `json:"filter_folder"`
}

// DefaultUIState is used when the remote store has nothing for a panel
func DefaultUIState() PanelUIState {
	return PanelUIState{Stack: []SelectionItem{}, Mode: TagModeOR}
}

// Filters returns the persisted part of the filter state
func (s PanelUIState) Filters() FilterState {
	return FilterState{TagText: s.TagText, Mode: ParseTagMode(string(s.Mode)), Folder: s.Folder}
}

// PresetBook maps a preset name to its stored stack
type PresetBook map[string][]SelectionItem

// Names returns the preset names sorted case-insensitively
func (b PresetBook) Names() []string {
	names := make([]string, 0, len(b))
	for name := range b {
		names = append(names, name)
	}
	SortFold(names)
	return names
}

// Clone deep-copies the book
func (b PresetBook) Clone() PresetBook {
	out := make(PresetBook, len(b))
	for name, items := range b {
		out[name] = CloneItems(items)
	}
	return out
}

// PageResult is one page of the catalog
type PageResult struct {
	Entries     []CatalogEntry `json:"loras"`
	Folders     []string       `json:"folders"`
	TotalPages  int            `json:"total_pages"`
	CurrentPage int            `json:"current_page"`
}

// EmptyPage is what a failed fetch resolves to
func EmptyPage() PageResult {
	return PageResult{Entries: []CatalogEntry{}, Folders: []string{}, TotalPages: 1, CurrentPage: 1}
}

// MetadataUpdate carries the fields of an edit; nil fields are left untouched
type MetadataUpdate struct {
	Tags            []string `json:"tags"`
	TriggerText     *string  `json:"activation text,omitempty"`
	PreferredWeight *float64 `json:"preferred weight,omitempty"`
	NegativeText    *string  `json:"negative text,omitempty"`
	SDVersion       *string  `json:"sd version,omitempty"`
	Notes           *string  `json:"notes,omitempty"`
	DownloadURL     *string  `json:"download_url,omitempty"`
}

// Empty reports whether the update would change nothing
func (u MetadataUpdate) Empty() bool {
	return u.Tags == nil && u.TriggerText == nil && u.PreferredWeight == nil &&
		u.NegativeText == nil && u.SDVersion == nil && u.Notes == nil && u.DownloadURL == nil
}

// Apply writes the set fields onto e
func (u MetadataUpdate) Apply(e *CatalogEntry) {
	if u.Tags != nil {
		e.Tags = CleanTags(u.Tags)
	}
	if u.TriggerText != nil {
		e.TriggerText = *u.TriggerText
	}
	if u.PreferredWeight != nil {
		e.PreferredWeight = *u.PreferredWeight
	}
	if u.NegativeText != nil {
		e.NegativeText = *u.NegativeText
	}
	if u.SDVersion != nil {
		e.SDVersion = *u.SDVersion
	}
	if u.Notes != nil {
		e.Notes = *u.Notes
	}
	if u.DownloadURL != nil {
		e.DownloadURL = *u.DownloadURL
	}
}

// String returns a pointer to v
func String(v string) *string {
	return &v
}

// SyncOptions selects what an external sync pulls in
type SyncOptions struct {
	Image        bool `json:"sync_image"`
	Meta         bool `json:"sync_meta"`
	UpdateMemory bool `json:"-"`
}

// SyncedMetadata is what an external sync brought back
type SyncedMetadata struct {
	PreviewURL  string      `json:"preview_url"`
	PreviewKind PreviewKind `json:"preview_type"`
	TriggerText *string     `json:"activation text,omitempty"`
	DownloadURL *string     `json:"download_url,omitempty"`
	Tags        []string    `json:"tags,omitempty"`
}

// SyncResult is the reply of the external sync operation
type SyncResult struct {
	Status   string          `json:"status"`
	Message  string          `json:"message,omitempty"`
	Metadata *SyncedMetadata `json:"metadata,omitempty"`
}

// MetadataChangedEvent is pushed to subscribers after an entry changes on the server
type MetadataChangedEvent struct {
	Type   string       `json:"type"`
	Name   string       `json:"name"`
	Entry  CatalogEntry `json:"entry"`
	Source string       `json:"source,omitempty"`
}

const EventMetadataChanged = "metadata-changed"
