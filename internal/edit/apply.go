package edit

import (
	"strings"

	"dochelper/internal/docx"
)

// Fix is one search-and-replace instruction. It is well formed when search
// is non-empty and differs from replace.
type Fix struct {
	Search  string `json:"search"`
	Replace string `json:"replace"`
}

// Result partitions attempted fixes: every input fix lands in exactly one
// of Applied or Skipped, and the counts always sum to the input length.
type Result struct {
	Applied      []Fix `json:"applied"`
	Skipped      []Fix `json:"skipped"`
	AppliedCount int   `json:"applied_count"`
	SkippedCount int   `json:"skipped_count"`
}

// ApplyAll attempts every fix, in order, against every container. Malformed
// fixes are skipped without touching the document; a fix counts as applied
// when at least one container reports a replacement. No early termination.
func ApplyAll(d *docx.Document, fixes []Fix) Result {
	res := Result{Applied: []Fix{}, Skipped: []Fix{}}
	for _, fix := range fixes {
		if fix.Search == "" || fix.Search == fix.Replace {
			res.Skipped = append(res.Skipped, fix)
			continue
		}
		total := 0
		for _, c := range d.Containers() {
			total += Substitute(c, fix.Search, fix.Replace)
		}
		if total > 0 {
			res.Applied = append(res.Applied, fix)
		} else {
			res.Skipped = append(res.Skipped, fix)
		}
	}
	res.AppliedCount = len(res.Applied)
	res.SkippedCount = len(res.Skipped)
	return res
}

// CountText sums the occurrences of search across all containers.
func CountText(d *docx.Document, search string) int {
	if search == "" {
		return 0
	}
	total := 0
	for _, c := range d.Containers() {
		total += strings.Count(c.Text(), search)
	}
	return total
}
