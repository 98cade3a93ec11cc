package edit

import (
	"regexp"
	"strings"

	"dochelper/internal/docx"
)

// Occurrence pinpoints one match of a search string: a running ordinal,
// the trimmed sentence the match sits in, and the index of the container
// it came from in traversal order.
type Occurrence struct {
	Index          int    `json:"index"`
	Sentence       string `json:"sentence"`
	ContainerIndex int    `json:"container_index"`
}

var sentenceEnd = regexp.MustCompile(`[.!?]\s+`)

// Locate finds every occurrence of search across the document in traversal
// order. A sentence containing search twice yields two occurrences with the
// same sentence text. Indices start at 0 and increase strictly across the
// whole call. Pure read.
func Locate(d *docx.Document, search string) []Occurrence {
	out := []Occurrence{}
	if search == "" {
		return out
	}
	next := 0
	for ci, c := range d.Containers() {
		text := c.Text()
		if !strings.Contains(text, search) {
			continue
		}
		for _, sentence := range splitSentences(text) {
			n := strings.Count(sentence, search)
			trimmed := strings.TrimSpace(sentence)
			for i := 0; i < n; i++ {
				out = append(out, Occurrence{Index: next, Sentence: trimmed, ContainerIndex: ci})
				next++
			}
		}
	}
	return out
}

// splitSentences cuts text at terminal punctuation followed by whitespace.
// The punctuation stays with its sentence; the separating whitespace is
// consumed.
func splitSentences(text string) []string {
	var parts []string
	prev := 0
	for _, m := range sentenceEnd.FindAllStringIndex(text, -1) {
		parts = append(parts, text[prev:m[0]+1])
		prev = m[1]
	}
	if prev < len(text) {
		parts = append(parts, text[prev:])
	}
	return parts
}
