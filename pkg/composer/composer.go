// Package composer turns a Selection Stack into what the host applies: the
// ordered list of adapters with their strengths and the collected trigger
// text of the enabled entries.
package composer

import (
	"fmt"
	"strings"

	"github.com/pluqqy/lora-gallery/pkg/files"
	"github.com/pluqqy/lora-gallery/pkg/models"
)

const (
	DefaultOutputFile = "LORA_STACK.md"
	textSeparator     = ", "
)

// Lookup resolves an entry's stored metadata by name
type Lookup interface {
	Lookup(name string) (models.CatalogEntry, bool)
}

// LookupFunc adapts a function to Lookup
type LookupFunc func(name string) (models.CatalogEntry, bool)

func (f LookupFunc) Lookup(name string) (models.CatalogEntry, bool) {
	return f(name)
}

// EntryMap is a Lookup over entries already in memory
type EntryMap map[string]models.CatalogEntry

func (m EntryMap) Lookup(name string) (models.CatalogEntry, bool) {
	e, ok := m[name]
	return e, ok
}

// NewEntryMap indexes entries by name
func NewEntryMap(entries []models.CatalogEntry) EntryMap {
	m := make(EntryMap, len(entries))
	for _, e := range entries {
		m[e.Name] = e
	}
	return m
}

// Application is one adapter to apply, in stack order
type Application struct {
	EntryName     string  `json:"entry_name" yaml:"entry_name"`
	ModelStrength float64 `json:"strength" yaml:"strength"`
	ClipStrength  float64 `json:"strength_clip,omitempty" yaml:"strength_clip,omitempty"`
}

// Result is a composed stack
type Result struct {
	Plan                 []Application `json:"plan" yaml:"plan"`
	TriggerWords         string        `json:"trigger_words" yaml:"trigger_words"`
	NegativeTriggerWords string        `json:"negative_trigger_words" yaml:"negative_trigger_words"`
	Skipped              []string      `json:"skipped,omitempty" yaml:"skipped,omitempty"`
}

// Compose walks the stack in order. Disabled or unnamed items are ignored.
// Trigger text is taken from every enabled item that uses it, even when its
// strengths are zero; such items are then left out of the plan.
func Compose(items []models.SelectionItem, lookup Lookup, modelOnly bool) Result {
	var (
		result    Result
		triggers  []string
		negatives []string
	)

	for _, item := range items {
		if !item.On || item.EntryName == "" {
			continue
		}

		if item.UseTrigger && lookup != nil {
			if e, ok := lookup.Lookup(item.EntryName); ok {
				if t := strings.TrimSpace(e.TriggerText); t != "" {
					triggers = append(triggers, t)
				}
				if n := strings.TrimSpace(e.NegativeText); n != "" {
					negatives = append(negatives, n)
				}
			}
		}

		model := item.Strength
		clip := item.ClipStrength()
		if modelOnly {
			if model == 0 {
				result.Skipped = append(result.Skipped, item.EntryName)
				continue
			}
			result.Plan = append(result.Plan, Application{EntryName: item.EntryName, ModelStrength: model})
			continue
		}
		if model == 0 && clip == 0 {
			result.Skipped = append(result.Skipped, item.EntryName)
			continue
		}
		result.Plan = append(result.Plan, Application{EntryName: item.EntryName, ModelStrength: model, ClipStrength: clip})
	}

	result.TriggerWords = strings.Join(triggers, textSeparator)
	result.NegativeTriggerWords = strings.Join(negatives, textSeparator)
	return result
}

// ComposeJSON decodes a serialized stack, as stored in the host, and composes
// it. Data that does not decode composes to nothing.
func ComposeJSON(selectionData string, lookup Lookup, modelOnly bool) Result {
	items, err := models.ParseSelection(selectionData)
	if err != nil {
		return Result{}
	}
	return Compose(items, lookup, modelOnly)
}

// Markdown renders the result for display
func (r Result) Markdown() string {
	var out strings.Builder
	out.WriteString("# Lora stack\n\n")

	if len(r.Plan) == 0 {
		out.WriteString("_Nothing to apply._\n\n")
	} else {
		out.WriteString("| # | Entry | Strength | Clip |\n|---|---|---|---|\n")
		for i, a := range r.Plan {
			out.WriteString(fmt.Sprintf("| %d | %s | %.2f | %.2f |\n", i+1, a.EntryName, a.ModelStrength, a.ClipStrength))
		}
		out.WriteString("\n")
	}

	if r.TriggerWords != "" {
		out.WriteString("## Trigger words\n\n")
		out.WriteString(r.TriggerWords + "\n\n")
	}
	if r.NegativeTriggerWords != "" {
		out.WriteString("## Negative trigger words\n\n")
		out.WriteString(r.NegativeTriggerWords + "\n\n")
	}
	if len(r.Skipped) > 0 {
		out.WriteString("Skipped at zero strength: " + strings.Join(r.Skipped, ", ") + "\n")
	}
	return out.String()
}

// WriteOutput writes the rendered result to outputPath
func WriteOutput(content string, outputPath string) error {
	if outputPath == "" {
		outputPath = DefaultOutputFile
	}
	if err := files.WriteAtomic(outputPath, []byte(content)); err != nil {
		return fmt.Errorf("failed to write %s: %w", outputPath, err)
	}
	return nil
}
