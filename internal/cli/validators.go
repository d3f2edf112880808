package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/pluqqy/lora-gallery/pkg/gallery"
	"github.com/pluqqy/lora-gallery/pkg/models"
)

// ValidateOutputFormat validates the output format flag
func ValidateOutputFormat(format string) error {
	switch OutputFormat(format) {
	case FormatText, FormatJSON, FormatYAML:
		return nil
	}
	return fmt.Errorf("invalid output format: %s (must be: text, json, or yaml)", format)
}

// ValidateTagMode accepts OR and AND in any case
func ValidateTagMode(mode string) (models.TagMode, error) {
	switch strings.ToUpper(strings.TrimSpace(mode)) {
	case "", string(models.TagModeOR):
		return models.TagModeOR, nil
	case string(models.TagModeAND):
		return models.TagModeAND, nil
	}
	return "", fmt.Errorf("invalid tag mode: %s (must be: OR or AND)", mode)
}

// ValidateSDVersion checks value against the known model families
func ValidateSDVersion(value string) error {
	if slices.Contains(models.SDVersions, value) {
		return nil
	}
	return fmt.Errorf("invalid sd version: %s (must be one of %s)", value, strings.Join(models.SDVersions, ", "))
}

// ValidatePresetName validates a preset name
func ValidatePresetName(name string) error {
	if strings.TrimSpace(name) == "" {
		return gallery.ErrEmptyPresetName
	}
	return nil
}

// ParseIndex reads a 1-based stack position and returns the 0-based index
func ParseIndex(arg string, size int) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(arg))
	if err != nil {
		return 0, fmt.Errorf("invalid position %q: must be a number", arg)
	}
	if n < 1 || n > size {
		return 0, fmt.Errorf("%w: position %d, stack has %d item(s)", gallery.ErrIndexOutOfRange, n, size)
	}
	return n - 1, nil
}

// ParseFieldValue converts the text of a stack column to the type the field takes
func ParseFieldValue(field gallery.ItemField, raw string) (any, error) {
	switch field {
	case gallery.FieldOn, gallery.FieldUseTrigger:
		v, err := strconv.ParseBool(strings.TrimSpace(raw))
		if err != nil {
			return nil, fmt.Errorf("invalid value %q for %s: must be true or false", raw, field)
		}
		return v, nil
	case gallery.FieldStrength, gallery.FieldStrengthClip:
		v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid value %q for %s: must be a number", raw, field)
		}
		return v, nil
	}
	return nil, fmt.Errorf("%w: %s", gallery.ErrUnknownField, field)
}

// ValidateFilePath validates that a file path exists and is a file
func ValidateFilePath(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("path does not exist: %s", path)
		}
		return fmt.Errorf("error accessing path: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("path is a directory, expected file: %s", path)
	}
	return nil
}

// ValidateDirectoryPath validates that a directory path exists
func ValidateDirectoryPath(path string) error {
	if !filepath.IsAbs(path) {
		path, _ = filepath.Abs(path)
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("directory does not exist: %s", path)
		}
		return fmt.Errorf("error accessing directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", path)
	}
	return nil
}
