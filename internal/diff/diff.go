// Package diff renders before/after previews for replacement
// confirmations: inline sentence diffs and the context window shown for
// long sentences.
package diff

import (
	"unicode"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// Span is one run of an inline sentence diff.
type Span struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

const (
	SpanEqual   = "equal"
	SpanRemoved = "removed"
	SpanAdded   = "added"
)

// Sentence computes an inline diff between a sentence before and after a
// replacement. Concatenating equal+removed spans reproduces the original,
// equal+added the result.
func Sentence(before, after string) []Span {
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(before, after, false)
	diffs = dmp.DiffCleanupSemantic(diffs)
	spans := make([]Span, 0, len(diffs))
	for _, d := range diffs {
		span := Span{Text: d.Text}
		switch d.Type {
		case diffmatchpatch.DiffEqual:
			span.Type = SpanEqual
		case diffmatchpatch.DiffDelete:
			span.Type = SpanRemoved
		case diffmatchpatch.DiffInsert:
			span.Type = SpanAdded
		}
		spans = append(spans, span)
	}
	return spans
}

const windowThreshold = 100
const windowMargin = 40

// Window shortens a sentence longer than 100 runes to a context window
// around the first case-insensitive occurrence of search. Shorter
// sentences, and long ones where search cannot be found, come back
// unchanged.
func Window(sentence, search string) string {
	runes := []rune(sentence)
	if len(runes) <= windowThreshold || search == "" {
		return sentence
	}
	needle := []rune(search)
	pos := indexFold(runes, needle)
	if pos < 0 {
		return sentence
	}
	start := pos - windowMargin
	if start < 0 {
		start = 0
	}
	end := pos + len(needle) + windowMargin
	if end > len(runes) {
		end = len(runes)
	}
	return "..." + string(runes[start:end]) + "..."
}

// indexFold finds needle in haystack comparing runes case-insensitively.
func indexFold(haystack, needle []rune) int {
	if len(needle) == 0 || len(needle) > len(haystack) {
		return -1
	}
	for i := 0; i+len(needle) <= len(haystack); i++ {
		match := true
		for j, r := range needle {
			if unicode.ToLower(haystack[i+j]) != unicode.ToLower(r) {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}
