package gallery

import (
	"fmt"
	"math"

	"github.com/pluqqy/lora-gallery/pkg/models"
)

const (
	MinStrength  = -2.0
	MaxStrength  = 2.0
	StrengthStep = 0.05
)

// ItemField names an editable column of a SelectionItem
type ItemField string

const (
	FieldOn           ItemField = "on"
	FieldUseTrigger   ItemField = "use_trigger"
	FieldStrength     ItemField = "strength"
	FieldStrengthClip ItemField = "strength_clip"
)

// ParseItemField accepts the persisted key names
func ParseItemField(s string) (ItemField, error) {
	switch f := ItemField(s); f {
	case FieldOn, FieldUseTrigger, FieldStrength, FieldStrengthClip:
		return f, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownField, s)
}

// ClampStrength bounds v to the range the UI offers and snaps it to the step
func ClampStrength(v float64) float64 {
	v = math.Max(MinStrength, math.Min(MaxStrength, v))
	return math.Round(v/StrengthStep) * StrengthStep
}

// StepStrength moves v by n UI steps, clamped
func StepStrength(v float64, n int) float64 {
	return ClampStrength(v + float64(n)*StrengthStep)
}

// SelectionStack is the ordered list of applied entries. Entry names are
// unique. Every successful mutation is reported once to the change observer.
type SelectionStack struct {
	items       []models.SelectionItem
	primaryOnly bool
	onChange    func([]models.SelectionItem)
}

// NewSelectionStack creates an empty stack. primaryOnly stacks carry no
// secondary strength.
func NewSelectionStack(primaryOnly bool) *SelectionStack {
	return &SelectionStack{items: []models.SelectionItem{}, primaryOnly: primaryOnly}
}

// OnChange registers the observer called after every mutation
func (s *SelectionStack) OnChange(fn func([]models.SelectionItem)) {
	s.onChange = fn
}

func (s *SelectionStack) changed() {
	if s.onChange != nil {
		s.onChange(s.Items())
	}
}

// Items returns a deep copy of the stack
func (s *SelectionStack) Items() []models.SelectionItem {
	return models.CloneItems(s.items)
}

// Len returns the number of items
func (s *SelectionStack) Len() int {
	return len(s.items)
}

// At returns a copy of item i
func (s *SelectionStack) At(i int) (models.SelectionItem, error) {
	if err := s.checkIndex(i); err != nil {
		return models.SelectionItem{}, err
	}
	return s.items[i].Clone(), nil
}

// Names returns the entry names in stack order
func (s *SelectionStack) Names() []string {
	names := make([]string, len(s.items))
	for i, it := range s.items {
		names[i] = it.EntryName
	}
	return names
}

// IndexOf returns the position of name, or -1
func (s *SelectionStack) IndexOf(name string) int {
	for i, it := range s.items {
		if it.EntryName == name {
			return i
		}
	}
	return -1
}

// Contains reports whether name is in the stack
func (s *SelectionStack) Contains(name string) bool {
	return s.IndexOf(name) >= 0
}

// PrimaryOnly reports whether items carry only a primary strength
func (s *SelectionStack) PrimaryOnly() bool {
	return s.primaryOnly
}

// Toggle removes name if present, otherwise appends it enabled at the
// entry's preferred weight (1.0 when unknown). Returns true when added.
func (s *SelectionStack) Toggle(name string, preferredWeight *float64) bool {
	if i := s.IndexOf(name); i >= 0 {
		s.items = append(s.items[:i], s.items[i+1:]...)
		s.changed()
		return false
	}

	weight := models.DefaultPreferredWeight
	if preferredWeight != nil {
		weight = *preferredWeight
	}
	item := models.SelectionItem{
		On:         true,
		EntryName:  name,
		Strength:   weight,
		UseTrigger: true,
	}
	if !s.primaryOnly {
		item.StrengthClip = models.Float(weight)
	}
	s.items = append(s.items, item)
	s.changed()
	return true
}

// Remove deletes item i
func (s *SelectionStack) Remove(i int) error {
	if err := s.checkIndex(i); err != nil {
		return err
	}
	s.items = append(s.items[:i], s.items[i+1:]...)
	s.changed()
	return nil
}

// Reorder moves item from to position to: one extraction, one reinsertion.
func (s *SelectionStack) Reorder(from, to int) error {
	if err := s.checkIndex(from); err != nil {
		return err
	}
	if err := s.checkIndex(to); err != nil {
		return err
	}
	if from == to {
		return nil
	}

	moved := s.items[from]
	s.items = append(s.items[:from], s.items[from+1:]...)
	s.items = append(s.items[:to], append([]models.SelectionItem{moved}, s.items[to:]...)...)
	s.changed()
	return nil
}

// SetField stores value into field of item i. Strengths are stored as given;
// clamping is the input widget's job, so imported values survive untouched.
func (s *SelectionStack) SetField(i int, field ItemField, value any) error {
	if err := s.checkIndex(i); err != nil {
		return err
	}

	item := &s.items[i]
	switch field {
	case FieldOn, FieldUseTrigger:
		b, ok := value.(bool)
		if !ok {
			return fmt.Errorf("field %s expects a bool, got %T", field, value)
		}
		if field == FieldOn {
			item.On = b
		} else {
			item.UseTrigger = b
		}
	case FieldStrength, FieldStrengthClip:
		f, err := toFloat(value)
		if err != nil {
			return fmt.Errorf("field %s: %w", field, err)
		}
		if field == FieldStrength {
			item.Strength = f
		} else {
			if s.primaryOnly {
				return ErrPrimaryOnly
			}
			item.StrengthClip = models.Float(f)
		}
	default:
		return fmt.Errorf("%w: %s", ErrUnknownField, field)
	}

	s.changed()
	return nil
}

// ToggleAllEnabled turns every item off when all are on, otherwise turns all on
func (s *SelectionStack) ToggleAllEnabled() {
	allOn := true
	for _, it := range s.items {
		if !it.On {
			allOn = false
			break
		}
	}
	for i := range s.items {
		s.items[i].On = !allOn
	}
	s.changed()
}

// Clear empties the stack
func (s *SelectionStack) Clear() {
	s.items = []models.SelectionItem{}
	s.changed()
}

// Replace swaps the whole stack for a deep copy of items
func (s *SelectionStack) Replace(items []models.SelectionItem) {
	s.items = s.adopt(items)
	s.changed()
}

// Load sets the stack without notifying, used while restoring saved state
func (s *SelectionStack) Load(items []models.SelectionItem) {
	s.items = s.adopt(items)
}

// adopt copies items saved elsewhere, possibly by a full panel
func (s *SelectionStack) adopt(items []models.SelectionItem) []models.SelectionItem {
	out := models.CloneItems(items)
	if s.primaryOnly {
		for i := range out {
			out[i].StrengthClip = nil
		}
	}
	return out
}

func (s *SelectionStack) checkIndex(i int) error {
	if i < 0 || i >= len(s.items) {
		return fmt.Errorf("%w: %d (stack has %d items)", ErrIndexOutOfRange, i, len(s.items))
	}
	return nil
}

func toFloat(value any) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	default:
		return 0, fmt.Errorf("expected a number, got %T", value)
	}
}
