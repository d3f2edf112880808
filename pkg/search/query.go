// Package search parses the one-line catalog query used by the command line:
//
//	tag:ink tag:"oil paint" folder:styles mode:and portrait
//
// Fields are tag (repeatable), folder, name and mode. Words without a field
// are joined into the name filter. Values with spaces are quoted.
package search

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/pluqqy/lora-gallery/pkg/models"
)

// Field names a query field
type Field string

const (
	FieldTag    Field = "tag"
	FieldFolder Field = "folder"
	FieldName   Field = "name"
	FieldMode   Field = "mode"
)

var fieldPattern = regexp.MustCompile(`^(\w+):(.*)$`)

// Parser turns query text into catalog filters
type Parser struct{}

// NewParser creates a new query parser
func NewParser() *Parser {
	return &Parser{}
}

// Parse reads input into a FilterState. Tag mode defaults to OR.
func (p *Parser) Parse(input string) (models.FilterState, error) {
	state := models.FilterState{Mode: models.TagModeOR}
	var tags, words []string

	for _, token := range p.tokenize(input) {
		m := fieldPattern.FindStringSubmatch(token)
		if m == nil {
			words = append(words, unquote(token))
			continue
		}

		value := unquote(m[2])
		if value == "" {
			return models.FilterState{}, fmt.Errorf("empty value for %s", m[1])
		}
		switch Field(strings.ToLower(m[1])) {
		case FieldTag:
			tags = append(tags, value)
		case FieldFolder:
			state.Folder = value
		case FieldName:
			words = append(words, value)
		case FieldMode:
			switch strings.ToUpper(value) {
			case string(models.TagModeAND):
				state.Mode = models.TagModeAND
			case string(models.TagModeOR):
				state.Mode = models.TagModeOR
			default:
				return models.FilterState{}, fmt.Errorf("invalid mode %q: must be OR or AND", value)
			}
		default:
			return models.FilterState{}, fmt.Errorf("unknown field %q", m[1])
		}
	}

	state.TagText = models.JoinTagList(tags)
	state.NameFilter = strings.Join(words, " ")
	return state, nil
}

// tokenize splits on spaces outside double quotes
func (p *Parser) tokenize(input string) []string {
	var tokens []string
	var current strings.Builder
	inQuotes := false

	flush := func() {
		if current.Len() > 0 {
			tokens = append(tokens, current.String())
			current.Reset()
		}
	}
	for _, r := range input {
		switch {
		case r == '"':
			inQuotes = !inQuotes
			current.WriteRune(r)
		case (r == ' ' || r == '\t') && !inQuotes:
			flush()
		default:
			current.WriteRune(r)
		}
	}
	flush()
	return tokens
}

func unquote(s string) string {
	if len(s) >= 2 && strings.HasPrefix(s, `"`) && strings.HasSuffix(s, `"`) {
		return s[1 : len(s)-1]
	}
	return s
}

// Format renders filters back into query text
func Format(f models.FilterState) string {
	var parts []string
	for _, tag := range models.ParseTagList(f.TagText) {
		parts = append(parts, "tag:"+quote(tag))
	}
	if f.Folder != "" {
		parts = append(parts, "folder:"+quote(f.Folder))
	}
	if f.Mode == models.TagModeAND {
		parts = append(parts, "mode:and")
	}
	if f.NameFilter != "" {
		parts = append(parts, "name:"+quote(f.NameFilter))
	}
	return strings.Join(parts, " ")
}

func quote(s string) string {
	if strings.ContainsAny(s, " \t") {
		return `"` + s + `"`
	}
	return s
}
