package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/glamour"
	"github.com/muesli/reflow/wordwrap"

	"github.com/pluqqy/lora-gallery/pkg/models"
)

// DetailsView shows the focused entry: its fields, and its notes rendered as
// markdown in a scrollable viewport
type DetailsView struct {
	viewport  viewport.Model
	renderer  *glamour.TermRenderer
	wrap      int
	showNotes bool
	shown     string
	info      map[string]string
	infoFor   string
}

func NewDetailsView(showNotes bool) *DetailsView {
	return &DetailsView{
		viewport:  viewport.New(40, 10),
		showNotes: showNotes,
	}
}

// SetSize resizes the viewport; the markdown renderer is rebuilt lazily for
// the new wrap width
func (d *DetailsView) SetSize(width, height int) {
	d.viewport.Width = max(width, 10)
	d.viewport.Height = max(height, 3)
	if d.wrap != d.viewport.Width {
		d.wrap = d.viewport.Width
		d.renderer = nil
		d.shown = ""
	}
}

func (d *DetailsView) markdown(content string) string {
	if d.renderer == nil {
		r, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle("dark"),
			glamour.WithWordWrap(d.wrap),
		)
		if err != nil {
			return wordwrap.String(content, d.wrap)
		}
		d.renderer = r
	}
	out, err := d.renderer.Render(content)
	if err != nil {
		return wordwrap.String(content, d.wrap)
	}
	return strings.TrimRight(out, "\n")
}

// SetTrainingInfo attaches the embedded training metadata of name
func (d *DetailsView) SetTrainingInfo(name string, info map[string]string) {
	d.infoFor = name
	d.info = info
	d.shown = ""
}

// Show points the view at entry, keeping the scroll position when the
// content did not change
func (d *DetailsView) Show(entry *models.CatalogEntry) {
	content := d.render(entry)
	if content == d.shown {
		return
	}
	d.shown = content
	d.viewport.SetContent(content)
	d.viewport.GotoTop()
}

func (d *DetailsView) render(entry *models.CatalogEntry) string {
	if entry == nil {
		return EmptyStyle.Render("No entry selected")
	}

	var b strings.Builder
	field := func(label, value string) {
		if value == "" {
			return
		}
		b.WriteString(DescriptionStyle.Render(label+": ") + wordwrap.String(value, max(d.wrap-len(label)-2, 10)))
		b.WriteString("\n")
	}
	field("Folder", entry.Folder)
	field("SD version", entry.SDVersion)
	field("Weight", fmt.Sprintf("%.2f", entry.PreferredWeight))
	field("Negative", entry.NegativeText)
	field("Preview", previewLabel(entry))
	field("Download", entry.DownloadURL)

	if d.infoFor == entry.Name && len(d.info) > 0 {
		b.WriteString("\n" + GetActiveHeaderStyle(false).Render("TRAINING INFO") + "\n")
		keys := make([]string, 0, len(d.info))
		for k := range d.info {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			field(k, d.info[k])
		}
	}

	if d.showNotes && strings.TrimSpace(entry.Notes) != "" {
		b.WriteString("\n")
		b.WriteString(d.markdown(entry.Notes))
	}
	return strings.TrimRight(b.String(), "\n")
}

func previewLabel(e *models.CatalogEntry) string {
	if e.PreviewKind == models.PreviewNone || e.PreviewURL == "" {
		return ""
	}
	return string(e.PreviewKind)
}

func (d *DetailsView) ScrollDown() {
	d.viewport.HalfViewDown()
}

func (d *DetailsView) ScrollUp() {
	d.viewport.HalfViewUp()
}

func (d *DetailsView) View() string {
	return d.viewport.View()
}
