package tui

import (
	"github.com/charmbracelet/bubbles/key"
)

// keyMap holds the bindings of the panes. Overlays handle their own keys.
type keyMap struct {
	Up, Down       key.Binding
	SwitchPane     key.Binding
	Quit           key.Binding
	Help           key.Binding
	Search         key.Binding
	TagText        key.Binding
	Checklist      key.Binding
	FlipMode       key.Binding
	Folder         key.Binding
	Presets        key.Binding
	SavePreset     key.Binding
	Collapse       key.Binding
	Copy           key.Binding
	Refresh        key.Binding
	ScrollDetails  key.Binding
	ScrollDetailsU key.Binding

	// catalog pane
	Toggle   key.Binding
	Edit     key.Binding
	Sync     key.Binding
	Info     key.Binding
	BulkTags key.Binding
	LoadMore key.Binding

	// stack pane
	Enable     key.Binding
	UseTrigger key.Binding
	StrengthUp key.Binding
	StrengthDn key.Binding
	ClipUp     key.Binding
	ClipDn     key.Binding
	MoveUp     key.Binding
	MoveDown   key.Binding
	Remove     key.Binding
	ToggleAll  key.Binding
	ClearStack key.Binding
}

var keys = keyMap{
	Up:             key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
	Down:           key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
	SwitchPane:     key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "switch pane")),
	Quit:           key.NewBinding(key.WithKeys("q"), key.WithHelp("q", "quit")),
	Help:           key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
	Search:         key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "filter by name")),
	TagText:        key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "edit tag filter")),
	Checklist:      key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "tag checklist")),
	FlipMode:       key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "OR/AND")),
	Folder:         key.NewBinding(key.WithKeys("F"), key.WithHelp("F", "folder")),
	Presets:        key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "presets")),
	SavePreset:     key.NewBinding(key.WithKeys("P"), key.WithHelp("P", "save preset")),
	Collapse:       key.NewBinding(key.WithKeys("g"), key.WithHelp("g", "hide/show catalog")),
	Copy:           key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "copy trigger words")),
	Refresh:        key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload")),
	ScrollDetails:  key.NewBinding(key.WithKeys("ctrl+d"), key.WithHelp("ctrl+d", "scroll details")),
	ScrollDetailsU: key.NewBinding(key.WithKeys("ctrl+u"), key.WithHelp("ctrl+u", "scroll details up")),

	Toggle:   key.NewBinding(key.WithKeys("enter", " "), key.WithHelp("enter", "select/unselect")),
	Edit:     key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "edit metadata")),
	Sync:     key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "sync from civitai")),
	Info:     key.NewBinding(key.WithKeys("i"), key.WithHelp("i", "training info")),
	BulkTags: key.NewBinding(key.WithKeys("T"), key.WithHelp("T", "tag the stack")),
	LoadMore: key.NewBinding(key.WithKeys("pgdown", "G"), key.WithHelp("pgdn", "load more")),

	Enable:     key.NewBinding(key.WithKeys(" ", "enter"), key.WithHelp("space", "on/off")),
	UseTrigger: key.NewBinding(key.WithKeys("u"), key.WithHelp("u", "use trigger")),
	StrengthUp: key.NewBinding(key.WithKeys("right", "l", "+", "="), key.WithHelp("→/+", "strength up")),
	StrengthDn: key.NewBinding(key.WithKeys("left", "h", "-"), key.WithHelp("←/-", "strength down")),
	ClipUp:     key.NewBinding(key.WithKeys("]"), key.WithHelp("]", "clip up")),
	ClipDn:     key.NewBinding(key.WithKeys("["), key.WithHelp("[", "clip down")),
	MoveUp:     key.NewBinding(key.WithKeys("K", "shift+up"), key.WithHelp("K", "move up")),
	MoveDown:   key.NewBinding(key.WithKeys("J", "shift+down"), key.WithHelp("J", "move down")),
	Remove:     key.NewBinding(key.WithKeys("d", "x", "delete"), key.WithHelp("d", "remove")),
	ToggleAll:  key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "toggle all")),
	ClearStack: key.NewBinding(key.WithKeys("X"), key.WithHelp("X", "clear stack")),
}

type helpSection struct {
	title    string
	bindings []key.Binding
}

// helpSections groups the bindings for the help overlay
func helpSections() []helpSection {
	return []helpSection{
		{"General", []key.Binding{keys.SwitchPane, keys.Search, keys.TagText, keys.Checklist, keys.FlipMode,
			keys.Folder, keys.Presets, keys.SavePreset, keys.Collapse, keys.Copy, keys.Refresh,
			keys.ScrollDetails, keys.Quit}},
		{"Catalog", []key.Binding{keys.Toggle, keys.Edit, keys.Sync, keys.Info, keys.BulkTags, keys.LoadMore}},
		{"Stack", []key.Binding{keys.Enable, keys.UseTrigger, keys.StrengthUp, keys.StrengthDn,
			keys.ClipUp, keys.ClipDn, keys.MoveUp, keys.MoveDown, keys.Remove, keys.ToggleAll, keys.ClearStack}},
	}
}
