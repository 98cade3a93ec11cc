package brain

import (
	"encoding/json"
	"regexp"
	"strings"

	"dochelper/internal/edit"
)

var (
	fencedJSON = regexp.MustCompile("(?s)```json\\s*(.*?)\\s*```")
	// Greedy on purpose: a response can hold several objects and the match
	// must span the whole array, not stop at the first closing brace.
	rawFixArray  = regexp.MustCompile(`(?s)\[\s*\{.*\}\s*\]`)
	trailingJSON = regexp.MustCompile(`\[\s*\{[^\]]*\}\s*\]\s*$`)
)

// extractFixes pulls the fix array out of a review response. The model is
// told to fence it, but a bare trailing array is accepted too. Anything
// unparseable yields an empty list, never an error.
func extractFixes(response string) []edit.Fix {
	var jsonStr string
	if m := fencedJSON.FindStringSubmatch(response); m != nil {
		jsonStr = m[1]
	} else if m := rawFixArray.FindString(response); m != "" {
		jsonStr = m
	} else {
		return []edit.Fix{}
	}
	var entries []any
	if err := json.Unmarshal([]byte(jsonStr), &entries); err != nil {
		return []edit.Fix{}
	}
	return filterFixes(entries, false)
}

// parseGeneratedFixes decodes a response that should be nothing but a JSON
// array, tolerating markdown fences around it.
func parseGeneratedFixes(response string) ([]edit.Fix, error) {
	content := strings.TrimSpace(response)
	content = strings.ReplaceAll(content, "```json", "")
	content = strings.ReplaceAll(content, "```", "")
	var entries []any
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &entries); err != nil {
		return nil, err
	}
	return filterFixes(entries, true), nil
}

func filterFixes(entries []any, trim bool) []edit.Fix {
	fixes := make([]edit.Fix, 0, len(entries))
	for _, entry := range entries {
		obj, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		search, okSearch := obj["search"].(string)
		replace, okReplace := obj["replace"].(string)
		if !okSearch || !okReplace {
			continue
		}
		if trim {
			search = strings.TrimSpace(search)
			replace = strings.TrimSpace(replace)
		}
		if search == "" || search == replace {
			continue
		}
		fixes = append(fixes, edit.Fix{Search: search, Replace: replace})
	}
	return fixes
}

// cleanResponse strips the machine-readable fix JSON from a review so only
// the prose reaches the user. If stripping would leave nothing, the
// original text is returned untouched.
func cleanResponse(response string) string {
	cleaned := fencedJSON.ReplaceAllString(response, "")
	cleaned = trailingJSON.ReplaceAllString(cleaned, "")
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		return strings.TrimSpace(response)
	}
	return cleaned
}
