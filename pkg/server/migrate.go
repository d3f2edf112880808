package server

import (
	"fmt"
	"os"

	"github.com/pluqqy/lora-gallery/pkg/files"
)

// legacyKeys renames the keys of the old single-file metadata store
var legacyKeys = map[string]string{
	"trigger_words":    "activation text",
	"preferred_weight": "preferred weight",
	"negative_prompt":  "negative text",
	"sd_version":       "sd version",
}

// MigrateLegacy copies entries of an old combined metadata file into the
// per-entry sidecars. Keys already present in a sidecar win. The legacy file
// is renamed to <path>.migrated afterwards. It returns how many sidecars
// were written; a missing legacy file is not an error.
func (c *Catalog) MigrateLegacy(legacyPath string) (int, error) {
	var legacy map[string]map[string]any
	found, err := files.ReadJSON(legacyPath, &legacy)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, nil
	}

	migrated := 0
	for name, old := range legacy {
		entryPath, err := c.Resolve(name)
		if err != nil {
			continue
		}
		current, err := loadSidecar(entryPath)
		if err != nil {
			c.log.Warn("skipping unreadable sidecar", "entry", name, "error", err)
			continue
		}

		add := map[string]any{}
		for oldKey, v := range old {
			key := oldKey
			if renamed, ok := legacyKeys[oldKey]; ok {
				key = renamed
			}
			if _, exists := current[key]; exists {
				continue
			}
			if v == nil || v == "" {
				continue
			}
			if _, isList := v.([]any); key == "tags" && !isList {
				continue
			}
			add[key] = v
		}
		if len(add) == 0 {
			continue
		}
		if _, err := mergeSidecar(entryPath, add); err != nil {
			return migrated, fmt.Errorf("failed to migrate %s: %w", name, err)
		}
		migrated++
	}

	if err := os.Rename(legacyPath, legacyPath+".migrated"); err != nil {
		c.log.Warn("migration finished but the legacy file was not renamed", "error", err)
	}
	return migrated, nil
}
