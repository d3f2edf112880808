package models

import "time"

// Settings represents the application configuration
type Settings struct {
	Server ServerSettings `yaml:"server" mapstructure:"server"`
	Panel  PanelSettings  `yaml:"panel" mapstructure:"panel"`
	UI     UISettings     `yaml:"ui" mapstructure:"ui"`
	Log    LogSettings    `yaml:"log" mapstructure:"log"`
	Serve  ServeSettings  `yaml:"serve" mapstructure:"serve"`
}

// ServerSettings points the panel at the remote gallery service
type ServerSettings struct {
	URL     string        `yaml:"url" mapstructure:"url"`
	Prefix  string        `yaml:"prefix" mapstructure:"prefix"`
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// PanelSettings identifies the panel and tunes its behavior
type PanelSettings struct {
	NodeID           string        `yaml:"node_id" mapstructure:"node_id"`
	GalleryID        string        `yaml:"gallery_id" mapstructure:"gallery_id"`
	Workflow         string        `yaml:"workflow" mapstructure:"workflow"`
	ModelOnly        bool          `yaml:"model_only" mapstructure:"model_only"`
	PerPage          int           `yaml:"per_page" mapstructure:"per_page"`
	SearchDebounce   time.Duration `yaml:"search_debounce" mapstructure:"search_debounce"`
	SyncErrorDisplay time.Duration `yaml:"sync_error_display" mapstructure:"sync_error_display"`
}

// UISettings controls UI preferences
type UISettings struct {
	ShowNotes bool `yaml:"show_notes" mapstructure:"show_notes"`
}

// LogSettings controls where diagnostics go
type LogSettings struct {
	Level string `yaml:"level" mapstructure:"level"`
	File  string `yaml:"file" mapstructure:"file"`
}

// ServeSettings configures the local gallery backend
type ServeSettings struct {
	Addr       string   `yaml:"addr" mapstructure:"addr"`
	LoraDirs   []string `yaml:"lora_dirs" mapstructure:"lora_dirs"`
	StateDir   string   `yaml:"state_dir" mapstructure:"state_dir"`
	Store      string   `yaml:"store" mapstructure:"store"` // "json" or "sqlite"
	CivitaiURL string   `yaml:"civitai_url" mapstructure:"civitai_url"`
}

// DefaultSettings returns the default configuration
func DefaultSettings() *Settings {
	return &Settings{
		Server: ServerSettings{
			URL:     "http://127.0.0.1:8188",
			Prefix:  "/LocalLoraGalleryRemix",
			Timeout: 15 * time.Second,
		},
		Panel: PanelSettings{
			NodeID:           "1",
			Workflow:         "workflow.json",
			PerPage:          50,
			SearchDebounce:   300 * time.Millisecond,
			SyncErrorDisplay: 2 * time.Second,
		},
		UI: UISettings{
			ShowNotes: true,
		},
		Log: LogSettings{
			Level: "info",
		},
		Serve: ServeSettings{
			Addr:       ":8188",
			StateDir:   ".",
			Store:      "json",
			CivitaiURL: "https://civitai.com",
		},
	}
}
