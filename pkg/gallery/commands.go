package gallery

import "github.com/pluqqy/lora-gallery/pkg/models"

// Effects tells the caller what to schedule after a command was applied
type Effects struct {
	// FreshFetch asks for the catalog view to be reloaded from page 1
	FreshFetch bool
	// Debounce is a token for SetNameFilter; fetch only if still current later
	Debounce int
}

// Command is a typed mutation of the panel state
type Command interface {
	apply(p *Panel) (Effects, error)
}

// Dispatch applies cmd. Failed commands leave the state untouched.
func (p *Panel) Dispatch(cmd Command) (Effects, error) {
	return cmd.apply(p)
}

// ToggleEntry adds an entry to the stack or takes it out
type ToggleEntry struct{ Name string }

func (c ToggleEntry) apply(p *Panel) (Effects, error) {
	var weight *float64
	if e, ok := p.Entry(c.Name); ok {
		weight = models.Float(e.PreferredWeight)
	}
	p.stack.Toggle(c.Name, weight)
	return Effects{}, nil
}

// RemoveItem drops the stack item at Index
type RemoveItem struct{ Index int }

func (c RemoveItem) apply(p *Panel) (Effects, error) {
	if err := p.stack.Remove(c.Index); err != nil {
		return Effects{}, err
	}
	return Effects{FreshFetch: true}, nil
}

// MoveItem reorders the stack
type MoveItem struct{ From, To int }

func (c MoveItem) apply(p *Panel) (Effects, error) {
	return Effects{}, p.stack.Reorder(c.From, c.To)
}

// SetItemField edits one column of a stack item
type SetItemField struct {
	Index int
	Field ItemField
	Value any
}

func (c SetItemField) apply(p *Panel) (Effects, error) {
	return Effects{}, p.stack.SetField(c.Index, c.Field, c.Value)
}

// ToggleAll flips the enabled flag of the whole stack
type ToggleAll struct{}

func (ToggleAll) apply(p *Panel) (Effects, error) {
	p.stack.ToggleAllEnabled()
	return Effects{}, nil
}

// ClearStack empties the stack
type ClearStack struct{}

func (ClearStack) apply(p *Panel) (Effects, error) {
	p.stack.Clear()
	return Effects{FreshFetch: true}, nil
}

// LoadPreset replaces the stack with a copy of a stored preset
type LoadPreset struct{ Name string }

func (c LoadPreset) apply(p *Panel) (Effects, error) {
	items, err := p.presets.Get(c.Name)
	if err != nil {
		return Effects{}, err
	}
	p.stack.Replace(items)
	p.activePreset = c.Name
	return Effects{FreshFetch: true}, nil
}

// ToggleCollapsed shows or hides the catalog view
type ToggleCollapsed struct{}

func (ToggleCollapsed) apply(p *Panel) (Effects, error) {
	p.collapsed = !p.collapsed
	if err := p.bridge.PersistStack(p.collapsed, p.stack.Items()); err != nil {
		p.log.Warn("failed to write selection to host", "error", err)
	}
	return Effects{}, nil
}

// SetTagText replaces the tag filter text
type SetTagText struct{ Text string }

func (c SetTagText) apply(p *Panel) (Effects, error) {
	return p.filterChanged(p.filters.SetTagText(c.Text)), nil
}

// ToggleTag checks or unchecks a tag in the checklist
type ToggleTag struct{ Tag string }

func (c ToggleTag) apply(p *Panel) (Effects, error) {
	return p.filterChanged(p.filters.ToggleChecklistTag(c.Tag)), nil
}

// ClearTags drops the tag filter
type ClearTags struct{}

func (ClearTags) apply(p *Panel) (Effects, error) {
	return p.filterChanged(p.filters.ClearTags()), nil
}

// FlipMode switches the tag filter between OR and AND
type FlipMode struct{}

func (FlipMode) apply(p *Panel) (Effects, error) {
	p.filters.FlipMode()
	return p.filterChanged(true), nil
}

// SetFolder restricts the view to a folder
type SetFolder struct{ Folder string }

func (c SetFolder) apply(p *Panel) (Effects, error) {
	return p.filterChanged(p.filters.SetFolder(c.Folder)), nil
}

// SetNameFilter narrows the loaded entries at once and asks for a debounced fetch
type SetNameFilter struct{ Text string }

func (c SetNameFilter) apply(p *Panel) (Effects, error) {
	return Effects{Debounce: p.filters.SetNameFilter(c.Text)}, nil
}

// DebounceExpired is sent when the quiet period of a name filter token ends
type DebounceExpired struct{ Token int }

func (c DebounceExpired) apply(p *Panel) (Effects, error) {
	return Effects{FreshFetch: p.filters.DebounceCurrent(c.Token)}, nil
}

// filterChanged persists the filter state and asks for a fresh view
func (p *Panel) filterChanged(changed bool) Effects {
	if !changed {
		return Effects{}
	}
	p.bridge.PersistFilters(p.filters.State())
	return Effects{FreshFetch: true}
}
