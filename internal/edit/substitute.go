// Package edit performs format-preserving text mutation over parsed
// documents: single-container substitution, document-wide occurrence
// location, and batch fix application.
package edit

import (
	"strings"

	"dochelper/internal/docx"
)

// Substitute replaces search with replace inside one container and returns
// the number of occurrences replaced. Matches that lie wholly inside a
// single run are replaced in place, leaving run formatting untouched. When
// a match only exists across run boundaries the container collapses: the
// first run keeps its formatting and receives the whole replaced text, all
// other runs are cleared. An empty search is a no-op.
func Substitute(c *docx.Container, search, replace string) int {
	if search == "" {
		return 0
	}
	if n := replaceWithinRuns(c, search, replace); n > 0 {
		return n
	}
	return collapseAcrossRuns(c, search, replace)
}

func replaceWithinRuns(c *docx.Container, search, replace string) int {
	handled := 0
	for _, r := range c.Runs() {
		n := strings.Count(r.Text(), search)
		if n == 0 {
			continue
		}
		r.SetText(strings.ReplaceAll(r.Text(), search, replace))
		handled += n
	}
	return handled
}

func collapseAcrossRuns(c *docx.Container, search, replace string) int {
	runs := c.Runs()
	if len(runs) == 0 {
		return 0
	}
	full := c.Text()
	n := strings.Count(full, search)
	if n == 0 {
		return 0
	}
	runs[0].SetText(strings.ReplaceAll(full, search, replace))
	for _, r := range runs[1:] {
		r.SetText("")
	}
	return n
}
