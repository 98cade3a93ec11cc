package diff

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func reconstruct(spans []Span, side string) string {
	var b strings.Builder
	for _, span := range spans {
		if span.Type == SpanEqual || span.Type == side {
			b.WriteString(span.Text)
		}
	}
	return b.String()
}

func TestSentenceDiffReconstructsBothSides(t *testing.T) {
	before := "The teh quick brown fox jumps."
	after := "The the quick brown fox jumps."
	spans := Sentence(before, after)

	if got := reconstruct(spans, SpanRemoved); got != before {
		t.Fatalf("equal+removed = %q, want %q", got, before)
	}
	if got := reconstruct(spans, SpanAdded); got != after {
		t.Fatalf("equal+added = %q, want %q", got, after)
	}
	changed := false
	for _, span := range spans {
		if span.Type != SpanEqual {
			changed = true
		}
	}
	if !changed {
		t.Fatal("expected at least one changed span")
	}
}

func TestSentenceDiffEqualInput(t *testing.T) {
	spans := Sentence("Same text.", "Same text.")
	if len(spans) != 1 || spans[0].Type != SpanEqual || spans[0].Text != "Same text." {
		t.Fatalf("unexpected spans: %+v", spans)
	}
}

func TestSentenceDiffWholeReplacement(t *testing.T) {
	spans := Sentence("old", "completely different")
	if got := reconstruct(spans, SpanRemoved); got != "old" {
		t.Fatalf("equal+removed = %q", got)
	}
	if got := reconstruct(spans, SpanAdded); got != "completely different" {
		t.Fatalf("equal+added = %q", got)
	}
}

func TestWindowShortSentenceUnchanged(t *testing.T) {
	s := "A short sentence with the target inside."
	if got := Window(s, "target"); got != s {
		t.Fatalf("short sentence should pass through, got %q", got)
	}
}

func TestWindowLongSentence(t *testing.T) {
	s := strings.Repeat("a", 60) + " target " + strings.Repeat("b", 60)
	got := Window(s, "target")
	if !strings.HasPrefix(got, "...") || !strings.HasSuffix(got, "...") {
		t.Fatalf("window should be ellipsized: %q", got)
	}
	if !strings.Contains(got, "target") {
		t.Fatalf("window should contain the search text: %q", got)
	}
	// 40 runes of margin each side plus the match plus the ellipses.
	if n := utf8.RuneCountInString(got); n != 6+40+6+40 {
		t.Fatalf("window length = %d runes: %q", n, got)
	}
}

func TestWindowMatchNearStart(t *testing.T) {
	s := "target " + strings.Repeat("x", 120)
	got := Window(s, "target")
	if !strings.HasPrefix(got, "...target") {
		t.Fatalf("start-anchored window should not lose the match: %q", got)
	}
}

func TestWindowCaseInsensitive(t *testing.T) {
	s := strings.Repeat("a", 60) + " Target " + strings.Repeat("b", 60)
	got := Window(s, "TARGET")
	if !strings.Contains(got, "Target") {
		t.Fatalf("case-insensitive match failed: %q", got)
	}
}

func TestWindowSearchMissingKeepsSentence(t *testing.T) {
	s := strings.Repeat("a", 150)
	if got := Window(s, "absent"); got != s {
		t.Fatalf("missing search should keep the sentence, got %q", got)
	}
}

func TestWindowRuneSafe(t *testing.T) {
	s := strings.Repeat("ж", 70) + " цель " + strings.Repeat("ю", 70)
	got := Window(s, "цель")
	if !utf8.ValidString(got) {
		t.Fatalf("window produced invalid UTF-8: %q", got)
	}
	if !strings.Contains(got, "цель") {
		t.Fatalf("window lost the match: %q", got)
	}
	if n := utf8.RuneCountInString(got); n != 6+40+4+40 {
		t.Fatalf("window length = %d runes: %q", n, got)
	}
}
