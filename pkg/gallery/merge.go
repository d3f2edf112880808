package gallery

import (
	"strings"

	"github.com/pluqqy/lora-gallery/pkg/models"
)

// MergeIncoming folds a fetched page into the entries on screen.
//
// A fresh query replaces the view with incoming. Otherwise incoming entries
// are appended unless an entry with the same name is already present, so a
// retried page leaves the view unchanged.
func MergeIncoming(existing, incoming []models.CatalogEntry, fresh bool) []models.CatalogEntry {
	if fresh {
		out := make([]models.CatalogEntry, len(incoming))
		copy(out, incoming)
		return out
	}

	seen := make(map[string]bool, len(existing)+len(incoming))
	out := make([]models.CatalogEntry, 0, len(existing)+len(incoming))
	for _, e := range existing {
		seen[e.Name] = true
		out = append(out, e)
	}
	for _, e := range incoming {
		if seen[e.Name] {
			continue
		}
		seen[e.Name] = true
		out = append(out, e)
	}
	return out
}

// VisibleEntries applies the name filter locally, case-insensitively
func VisibleEntries(entries []models.CatalogEntry, nameFilter string) []models.CatalogEntry {
	needle := strings.ToLower(strings.TrimSpace(nameFilter))
	if needle == "" {
		return entries
	}
	out := make([]models.CatalogEntry, 0, len(entries))
	for _, e := range entries {
		if strings.Contains(strings.ToLower(e.Name), needle) {
			out = append(out, e)
		}
	}
	return out
}
