package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/pluqqy/lora-gallery/pkg/models"
)

const (
	// EnvPrefix is prepended to every environment override, e.g. LORAGALLERY_SERVER_URL
	EnvPrefix = "LORAGALLERY"
	// FileName is the config file looked up in the home directory
	FileName = ".loragallery"
)

// SetDefaults seeds v with DefaultSettings so every key resolves
func SetDefaults(v *viper.Viper) {
	d := models.DefaultSettings()

	v.SetDefault("server.url", d.Server.URL)
	v.SetDefault("server.prefix", d.Server.Prefix)
	v.SetDefault("server.timeout", d.Server.Timeout)

	v.SetDefault("panel.node_id", d.Panel.NodeID)
	v.SetDefault("panel.gallery_id", d.Panel.GalleryID)
	v.SetDefault("panel.workflow", d.Panel.Workflow)
	v.SetDefault("panel.model_only", d.Panel.ModelOnly)
	v.SetDefault("panel.per_page", d.Panel.PerPage)
	v.SetDefault("panel.search_debounce", d.Panel.SearchDebounce)
	v.SetDefault("panel.sync_error_display", d.Panel.SyncErrorDisplay)

	v.SetDefault("ui.show_notes", d.UI.ShowNotes)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.file", d.Log.File)

	v.SetDefault("serve.addr", d.Serve.Addr)
	v.SetDefault("serve.lora_dirs", d.Serve.LoraDirs)
	v.SetDefault("serve.state_dir", d.Serve.StateDir)
	v.SetDefault("serve.store", d.Serve.Store)
	v.SetDefault("serve.civitai_url", d.Serve.CivitaiURL)
}

// Init prepares v to read cfgFile, or $HOME/.loragallery.yaml when cfgFile is
// empty, plus LORAGALLERY_* environment overrides. A missing file is not an error.
func Init(v *viper.Viper, cfgFile string) error {
	SetDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(home)
		}
		v.AddConfigPath(".")
		v.SetConfigType("yaml")
		v.SetConfigName(FileName)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read config: %w", err)
	}
	return nil
}

// Load resolves the effective settings from v
func Load(v *viper.Viper) (*models.Settings, error) {
	settings := models.DefaultSettings()
	if err := v.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := Validate(settings); err != nil {
		return nil, err
	}
	return settings, nil
}

// Validate rejects settings the panel cannot work with
func Validate(s *models.Settings) error {
	if s.Server.URL == "" {
		return fmt.Errorf("server.url cannot be empty")
	}
	if s.Panel.NodeID == "" {
		return fmt.Errorf("panel.node_id cannot be empty")
	}
	if s.Panel.PerPage <= 0 {
		return fmt.Errorf("panel.per_page must be positive, got %d", s.Panel.PerPage)
	}
	switch s.Serve.Store {
	case "json", "sqlite":
	default:
		return fmt.Errorf("serve.store must be json or sqlite, got %q", s.Serve.Store)
	}
	return nil
}

// DefaultPath is where a new config file is written
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, FileName+".yaml"), nil
}

// Write saves settings as yaml, refusing to clobber an existing file unless force is set
func Write(path string, s *models.Settings, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file already exists: %s", path)
		}
	}
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return os.Rename(tmp, path)
}
