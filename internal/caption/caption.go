// Package caption renders final post captions from a user template, a key
// and a key style. Rendering is pure: captions are always recomputed from the
// original template, never derived from previously rendered text.
package caption

import (
	"regexp"
	"strings"
)

// Placeholder is the literal substitution token inside caption templates.
// It is the only supported templating mechanism.
const Placeholder = "Key -"

// Style selects how the key is rendered inside a caption.
type Style int

const (
	// StylePlain renders the key as-is.
	StylePlain Style = iota
	// StyleQuoted renders the key as a blockquote line holding inline code.
	StyleQuoted
	// StyleMonospace renders the key as inline code.
	StyleMonospace
)

// String returns the style name used in logs and callback payloads.
func (s Style) String() string {
	switch s {
	case StyleQuoted:
		return "quoted"
	case StyleMonospace:
		return "monospace"
	default:
		return "plain"
	}
}

var keyPattern = regexp.MustCompile(`Key -\s*(\S+)`)

// HasPlaceholder reports whether the template contains the substitution token.
func HasPlaceholder(template string) bool {
	return strings.Contains(template, Placeholder)
}

// ExtractKey pulls an inline key out of an upload caption, e.g. "Key - AB12".
func ExtractKey(text string) (string, bool) {
	m := keyPattern.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// StyleKey applies the markup for the given style to a raw key.
func StyleKey(key string, style Style) string {
	switch style {
	case StyleMonospace:
		return "`" + key + "`"
	case StyleQuoted:
		return ">`" + key + "`"
	default:
		return key
	}
}

// Render computes the caption for one file of a batch.
//
// Only the last item of a batch carries the full template; earlier items get
// a bare styled-key line. position is 1-based.
func Render(template, key string, style Style, position, batchSize int) string {
	styled := StyleKey(key, style)
	if batchSize > 1 && position < batchSize {
		return styled
	}
	return strings.Replace(template, Placeholder, styled, 1)
}

// RenderBatch computes captions for every file of a batch in order.
func RenderBatch(template, key string, style Style, batchSize int) []string {
	out := make([]string, 0, batchSize)
	for pos := 1; pos <= batchSize; pos++ {
		out = append(out, Render(template, key, style, pos, batchSize))
	}
	return out
}
