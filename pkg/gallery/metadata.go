package gallery

import (
	"time"

	"github.com/pluqqy/lora-gallery/pkg/models"
)

// DefaultSyncErrorDisplay is how long a failed sync keeps its error mark
const DefaultSyncErrorDisplay = 2 * time.Second

// SyncState is the state of an entry's sync indicator
type SyncState int

const (
	SyncIdle SyncState = iota
	SyncLoading
	SyncFailed
)

func (s SyncState) String() string {
	switch s {
	case SyncLoading:
		return "loading"
	case SyncFailed:
		return "error"
	default:
		return "idle"
	}
}

type syncIndicator struct {
	state SyncState
	until time.Time
}

// syncIndicators tracks per-entry sync marks. A failure mark expires on its own.
type syncIndicators struct {
	marks   map[string]syncIndicator
	display time.Duration
	now     func() time.Time
}

func newSyncIndicators(display time.Duration, now func() time.Time) *syncIndicators {
	if display <= 0 {
		display = DefaultSyncErrorDisplay
	}
	if now == nil {
		now = time.Now
	}
	return &syncIndicators{marks: make(map[string]syncIndicator), display: display, now: now}
}

func (s *syncIndicators) start(name string) {
	s.marks[name] = syncIndicator{state: SyncLoading}
}

func (s *syncIndicators) finish(name string, failed bool) time.Time {
	if !failed {
		delete(s.marks, name)
		return time.Time{}
	}
	until := s.now().Add(s.display)
	s.marks[name] = syncIndicator{state: SyncFailed, until: until}
	return until
}

func (s *syncIndicators) state(name string) SyncState {
	mark, ok := s.marks[name]
	if !ok {
		return SyncIdle
	}
	if mark.state == SyncFailed && !s.now().Before(mark.until) {
		delete(s.marks, name)
		return SyncIdle
	}
	return mark.state
}

// applySynced merges a sync payload into an entry, honoring the flags:
// the preview only when the image was requested and one came back, the text
// fields only when metadata was requested.
func applySynced(e *models.CatalogEntry, opts models.SyncOptions, meta *models.SyncedMetadata) {
	if meta == nil {
		return
	}
	if opts.Image && meta.PreviewURL != "" {
		e.PreviewURL = meta.PreviewURL
		e.PreviewKind = meta.PreviewKind
		if e.PreviewKind == "" {
			e.PreviewKind = models.PreviewNone
		}
	}
	if opts.Meta {
		if meta.TriggerText != nil {
			e.TriggerText = *meta.TriggerText
		}
		if meta.DownloadURL != nil {
			e.DownloadURL = *meta.DownloadURL
		}
		if meta.Tags != nil {
			e.Tags = append([]string(nil), meta.Tags...)
		}
	}
}

// CommonTags returns the tags every given entry carries, in the order of the first
func CommonTags(entries []models.CatalogEntry) []string {
	if len(entries) == 0 {
		return nil
	}
	common := entries[0].DisplayTags()
	for _, e := range entries[1:] {
		keep := common[:0:0]
		for _, t := range common {
			for _, other := range e.Tags {
				if other == t {
					keep = append(keep, t)
					break
				}
			}
		}
		common = keep
	}
	return common
}
