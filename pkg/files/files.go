package files

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	SidecarExt = ".json"
	jsonIndent = "    "
)

// WriteAtomic writes data to a temp file next to path and renames it over path
func WriteAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", path, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to set mode of %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}

// ReadJSON decodes the file at path into v. A missing or empty file leaves
// v untouched and reports found as false.
func ReadJSON(path string, v any) (found bool, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return true, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return true, nil
}

// WriteJSON encodes v indented and writes it atomically
func WriteJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", jsonIndent)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	return WriteAtomic(path, append(data, '\n'))
}

// SidecarPath is the metadata file kept next to an adapter file
func SidecarPath(entryPath string) string {
	return strings.TrimSuffix(entryPath, filepath.Ext(entryPath)) + SidecarExt
}

// Exists reports whether path names an existing regular file
func Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
