package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/truncate"

	"github.com/pluqqy/lora-gallery/pkg/gallery"
	"github.com/pluqqy/lora-gallery/pkg/models"
)

// cardHeight is the number of lines one entry takes in the catalog pane
const cardHeight = 3

// CatalogRenderer draws the catalog pane: one card per loaded entry that
// passes the name filter, plus the pagination footer
type CatalogRenderer struct {
	Width    int
	Height   int
	IsActive bool
	Cursor   int
	Entries  []models.CatalogEntry
	Selected func(name string) bool
	Sync     func(name string) gallery.SyncState
	Page     models.PaginationCursor
	Filters  models.FilterState
	Spinner  string
}

// cardsFit is how many cards fit between the header and the footer
func cardsFit(height int) int {
	return max((height-6)/cardHeight, 1)
}

func (r *CatalogRenderer) Render() string {
	var content strings.Builder
	inner := max(r.Width-4, 10)

	content.WriteString(paneHeader("CATALOG", r.IsActive, inner))
	content.WriteString("\n\n")

	fit := cardsFit(r.Height)
	if len(r.Entries) == 0 {
		msg := "No entries"
		if r.Page.Loading {
			msg = r.Spinner + " Loading..."
		} else if filtersActive(r.Filters) {
			msg = "No entries match the filters"
		}
		content.WriteString(HeaderPaddingStyle.Render(EmptyStyle.Render(msg)))
		content.WriteString(strings.Repeat("\n", fit*cardHeight-1))
	} else {
		start := scrollStart(r.Cursor, fit, len(r.Entries))
		end := min(start+fit, len(r.Entries))
		for i := start; i < end; i++ {
			content.WriteString(r.renderCard(r.Entries[i], i == r.Cursor, inner))
			if i < end-1 {
				content.WriteString("\n")
			}
		}
		content.WriteString(strings.Repeat("\n", (fit-(end-start))*cardHeight))
	}

	content.WriteString("\n\n")
	content.WriteString(HeaderPaddingStyle.Render(r.footer()))

	return GetBorderStyle(r.IsActive).
		Width(r.Width - 2).
		Render(content.String())
}

func (r *CatalogRenderer) renderCard(e models.CatalogEntry, focused bool, width int) string {
	pointer := "  "
	if focused {
		pointer = CursorMark() + " "
	}

	mark := OffStyle.Render("○")
	if r.Selected != nil && r.Selected(e.Name) {
		mark = OnStyle.Render("●")
	}

	right := fmt.Sprintf("%.2f", e.PreferredWeight)
	if r.Sync != nil {
		if s := syncMark(r.Sync(e.Name)); s != "" {
			right = s + " " + right
		}
	}
	if e.PreviewKind == models.PreviewVideo {
		right = "▶ " + right
	}

	nameWidth := max(width-lipgloss.Width(right)-8, 8)
	name := truncate.StringWithTail(e.Name, uint(nameWidth), "…")
	nameStyle := NormalStyle
	if focused {
		nameStyle = SelectedStyle
	}
	gap := max(width-6-lipgloss.Width(name)-lipgloss.Width(right), 1)
	line1 := pointer + mark + " " + nameStyle.Render(name) + strings.Repeat(" ", gap) + DescriptionStyle.Render(right)

	line2 := "    " + renderTagChips(e.DisplayTags(), width-6)

	trigger := e.TriggerText
	if trigger == "" {
		trigger = EmptyStyle.Render("No triggers")
	} else {
		trigger = DescriptionStyle.Render(truncate.StringWithTail(trigger, uint(max(width-6, 4)), "…"))
	}
	line3 := "    " + trigger

	return HeaderPaddingStyle.Render(line1 + "\n" + line2 + "\n" + line3)
}

func (r *CatalogRenderer) footer() string {
	parts := []string{fmt.Sprintf("page %d/%d", r.Page.CurrentPage, r.Page.TotalPages)}
	parts = append(parts, fmt.Sprintf("%d shown", len(r.Entries)))
	if r.Filters.Folder != "" {
		parts = append(parts, "folder "+r.Filters.Folder)
	}
	if tags := r.Filters.SelectedTags(); len(tags) > 0 {
		parts = append(parts, fmt.Sprintf("%s %s", r.Filters.Mode, strings.Join(tags, ",")))
	}
	line := DescriptionStyle.Render(strings.Join(parts, " • "))
	if r.Page.Loading {
		line = r.Spinner + " " + line
	} else if r.Page.HasMore() {
		line += DescriptionStyle.Render(" • more below")
	}
	return line
}

// renderTagChips lays out colored chips on one line, eliding what does not fit
func renderTagChips(tags []string, width int) string {
	if len(tags) == 0 {
		return EmptyStyle.Render("no tags")
	}
	var (
		out  []string
		used int
	)
	for i, tag := range tags {
		chip := GetTagChipStyle(models.GetTagColor(tag)).Render(tag)
		more := ""
		if i < len(tags)-1 {
			more = fmt.Sprintf(" +%d", len(tags)-i-1)
		}
		if used+lipgloss.Width(chip)+len(more)+1 > width && len(out) > 0 {
			out = append(out, DescriptionStyle.Render(fmt.Sprintf("+%d", len(tags)-i)))
			break
		}
		out = append(out, chip)
		used += lipgloss.Width(chip) + 1
	}
	return strings.Join(out, " ")
}

func filtersActive(f models.FilterState) bool {
	return f.NameFilter != "" || f.Folder != "" || len(f.SelectedTags()) > 0
}

// scrollStart keeps cursor within a window of fit rows
func scrollStart(cursor, fit, total int) int {
	if total <= fit || cursor < fit {
		return 0
	}
	return min(cursor-fit+1, total-fit)
}

// paneHeader renders a pane title followed by a rule of colons
func paneHeader(title string, active bool, width int) string {
	rule := max(width-len(title)-3, 0)
	return HeaderPaddingStyle.Render(
		GetActiveHeaderStyle(active).Render(title) + " " +
			GetActiveColonStyle(active).Render(strings.Repeat(":", rule)))
}

// CursorMark is the pointer drawn in front of the focused row
func CursorMark() string {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(ColorActive)).Bold(true).Render("▸")
}
