// Package metrics holds the planner's prometheus counters and the size
// features reported for task text.
package metrics

import (
	"strings"
	"unicode/utf8"
)

// Features are size counts of a piece of text. They stand in for the text in
// telemetry so nothing user-authored is persisted.
type Features struct {
	Bytes int
	Runes int
	Words int
	Lines int
}

// CountFeatures returns byte, rune, word and line counts for s.
// Words split on Unicode whitespace; an empty string has zero lines,
// otherwise lines is one plus the number of '\n'.
func CountFeatures(s string) Features {
	f := Features{
		Bytes: len(s),
		Runes: utf8.RuneCountInString(s),
		Words: len(strings.Fields(s)),
	}
	if s != "" {
		f.Lines = 1 + strings.Count(s, "\n")
	}
	return f
}

// Fields renders f for a JSON event.
func (f Features) Fields() map[string]any {
	return map[string]any{
		"bytes": f.Bytes,
		"runes": f.Runes,
		"words": f.Words,
		"lines": f.Lines,
	}
}
