package gallery

import (
	"slices"

	"github.com/pluqqy/lora-gallery/pkg/models"
)

// FetchTicket describes one catalog request. It carries a snapshot of what
// the request needs, so it can run away from the state it was taken from.
type FetchTicket struct {
	Fresh      bool
	Page       int
	Filters    models.FilterState
	Excluded   []string
	Generation uint64
}

// Pager guards the pagination cursor.
//
// An incremental request is refused while another request is loading or when
// the last page has been reached. A fresh request is always accepted and
// bumps the generation, so any request still in flight is superseded and its
// result is dropped when it arrives.
//
// The names pinned ahead of the catalog are fixed per generation. Every page
// of a generation is cut from the same server ordering, so a stack edit
// between pages cannot shift entries past the cursor.
type Pager struct {
	cursor     models.PaginationCursor
	generation uint64
	pinned     []string
}

// NewPager starts on page 1 of 1
func NewPager() *Pager {
	return &Pager{cursor: models.PaginationCursor{CurrentPage: 1, TotalPages: 1}}
}

// Cursor returns the current cursor
func (p *Pager) Cursor() models.PaginationCursor {
	return p.cursor
}

// Begin opens a request. ok is false when an incremental request is refused.
func (p *Pager) Begin(fresh bool) (page int, generation uint64, ok bool) {
	if !fresh {
		if p.cursor.Loading || !p.cursor.HasMore() {
			return 0, 0, false
		}
		page = p.cursor.CurrentPage + 1
	} else {
		p.generation++
		page = 1
	}
	p.cursor.Loading = true
	return page, p.generation, true
}

// Pin records the names pinned for the current generation
func (p *Pager) Pin(names []string) {
	p.pinned = slices.Clone(names)
}

// Pinned returns the names pinned for the current generation
func (p *Pager) Pinned() []string {
	return slices.Clone(p.pinned)
}

// Finish closes the request of generation with its result. It returns false
// for a superseded request, leaving the cursor alone.
func (p *Pager) Finish(generation uint64, result models.PageResult) bool {
	if generation != p.generation {
		return false
	}
	p.cursor.Loading = false
	p.cursor.CurrentPage = max(result.CurrentPage, 1)
	p.cursor.TotalPages = max(result.TotalPages, 1)
	return true
}
