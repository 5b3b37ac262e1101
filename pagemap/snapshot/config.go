package snapshot

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"unicode"
)

// DefaultTextTruncateLength is the default maximum number of runes kept in
// Element.Text.
const DefaultTextTruncateLength = 60

// Config selects what a single snapshot call captures. Every call carries its
// own Config; nothing is shared between calls.
type Config struct {
	IncludeTitle         bool `json:"include_title" yaml:"include_title"`
	IncludeMetadata      bool `json:"include_metadata" yaml:"include_metadata"`
	IncludeViewportInfo  bool `json:"include_viewport_info" yaml:"include_viewport_info"`
	CaptureOutOfViewport bool `json:"capture_out_of_viewport" yaml:"capture_out_of_viewport"`
	IncludePosition      bool `json:"include_position" yaml:"include_position"`
	IncludeShadowDOM     bool `json:"include_shadow_dom" yaml:"include_shadow_dom"`

	// ElementFilter replaces the default relevant-tag set when non-empty.
	// Matching is exact and case-insensitive.
	ElementFilter []string `json:"element_filter,omitempty" yaml:"element_filter"`

	// TextTruncateLength caps Element.Text in runes. Zero means the default.
	TextTruncateLength int `json:"text_truncate_length,omitempty" yaml:"text_truncate_length"`
}

// DefaultConfig returns a Config with every section enabled.
func DefaultConfig() Config {
	return Config{
		IncludeTitle:         true,
		IncludeMetadata:      true,
		IncludeViewportInfo:  true,
		CaptureOutOfViewport: true,
		IncludePosition:      true,
		IncludeShadowDOM:     true,
		TextTruncateLength:   DefaultTextTruncateLength,
	}
}

// Overlay decodes the JSON fields present in raw over base. Absent fields
// keep base's values; an empty or null raw returns base unchanged.
func Overlay(base Config, raw []byte) (Config, error) {
	cfg := base
	cfg.ElementFilter = slices.Clone(base.ElementFilter)
	if len(bytes.TrimSpace(raw)) == 0 || string(bytes.TrimSpace(raw)) == "null" {
		return cfg, nil
	}
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return base, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	return cfg, nil
}

// Validate reports a configuration error wrapping ErrConfiguration.
func (c Config) Validate() error {
	if c.TextTruncateLength < 0 {
		return fmt.Errorf("%w: text_truncate_length must be >= 0, got %d",
			ErrConfiguration, c.TextTruncateLength)
	}
	for _, tag := range c.ElementFilter {
		if !ValidTagName(strings.TrimSpace(tag)) {
			return fmt.Errorf("%w: invalid tag %q in element_filter", ErrConfiguration, tag)
		}
	}
	return nil
}

// TruncateLength returns the effective truncation length.
func (c Config) TruncateLength() int {
	if c.TextTruncateLength <= 0 {
		return DefaultTextTruncateLength
	}
	return c.TextTruncateLength
}

// Filter returns the lowercased ElementFilter as a set, or nil when the
// default relevant set applies.
func (c Config) Filter() map[string]bool {
	if len(c.ElementFilter) == 0 {
		return nil
	}
	set := make(map[string]bool, len(c.ElementFilter))
	for _, tag := range c.ElementFilter {
		set[strings.ToLower(strings.TrimSpace(tag))] = true
	}
	return set
}

// ValidTagName reports whether s can name an element in a locator step or
// a filter entry. A name starts with a letter, '_' or ':'. After that the
// HTML parser keeps any character except whitespace, '/' and '>', so only
// the characters locator syntax reserves are refused.
func ValidTagName(s string) bool {
	for i, r := range s {
		if i == 0 && !unicode.IsLetter(r) && r != '_' && r != ':' {
			return false
		}
		switch {
		case unicode.IsSpace(r), unicode.IsControl(r):
			return false
		case r == '/', r == '[', r == ']', r == '<', r == '>':
			return false
		}
	}
	return s != ""
}
