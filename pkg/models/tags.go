package models

import (
	"errors"
	"hash/fnv"
	"sort"
	"strings"
)

// Tag-related errors
var (
	ErrEmptyTagName   = errors.New("tag name cannot be empty")
	ErrTagNameTooLong = errors.New("tag name cannot exceed 50 characters")
	ErrTagHasComma    = errors.New("tag name cannot contain a comma")
)

// DefaultColorPalette provides a curated set of colors for tag chips
var DefaultColorPalette = []string{
	"#e74c3c", // red
	"#3498db", // blue
	"#2ecc71", // green
	"#f39c12", // orange
	"#9b59b6", // purple
	"#1abc9c", // turquoise
	"#e67e22", // dark orange
	"#16a085", // dark turquoise
	"#8e44ad", // dark purple
	"#f1c40f", // yellow
	"#d35400", // pumpkin
	"#27ae60", // nephritis
	"#2980b9", // belize hole
	"#c0392b", // pomegranate
}

// GetTagColor returns a stable color for a tag. Case does not matter.
func GetTagColor(tagName string) string {
	h := fnv.New32a()
	h.Write([]byte(NormalizeTagName(tagName)))
	return DefaultColorPalette[int(h.Sum32()%uint32(len(DefaultColorPalette)))]
}

// NormalizeTagName is the form used when tags are compared during filtering
func NormalizeTagName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// ValidateTagName checks a tag typed by the user
func ValidateTagName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrEmptyTagName
	}
	if len(name) > 50 {
		return ErrTagNameTooLong
	}
	if strings.Contains(name, ",") {
		return ErrTagHasComma
	}
	return nil
}

// ParseTagList splits comma separated tag text, dropping blanks
func ParseTagList(text string) []string {
	var tags []string
	for _, part := range strings.Split(text, ",") {
		if t := strings.TrimSpace(part); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

// JoinTagList is the inverse of ParseTagList
func JoinTagList(tags []string) string {
	return strings.Join(tags, ",")
}

// UniqueTags drops repeated tags, keeping the first occurrence and its order
func UniqueTags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

// CleanTags trims every tag and drops empty ones
func CleanTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// ContainsTag reports whether tags holds tag, ignoring case
func ContainsTag(tags []string, tag string) bool {
	want := NormalizeTagName(tag)
	for _, t := range tags {
		if NormalizeTagName(t) == want {
			return true
		}
	}
	return false
}

// MatchTags applies the OR/AND rule of the tag filter to an entry's tags
func MatchTags(entryTags, filterTags []string, mode TagMode) bool {
	if len(filterTags) == 0 {
		return true
	}
	for _, ft := range filterTags {
		found := ContainsTag(entryTags, ft)
		if mode == TagModeAND && !found {
			return false
		}
		if mode != TagModeAND && found {
			return true
		}
	}
	return mode == TagModeAND
}

// SortFold sorts in place, case-insensitively
func SortFold(values []string) {
	sort.SliceStable(values, func(i, j int) bool {
		return strings.ToLower(values[i]) < strings.ToLower(values[j])
	})
}
