package envutil

import (
	"testing"
	"time"
)

func TestParseBool(t *testing.T) {
	cases := map[string]bool{
		"1":     true,
		"true":  true,
		"TRUE":  true,
		"yes":   true,
		"on":    true,
		"false": false,
		"0":     false,
		"":      false,
	}
	for input, want := range cases {
		if got := ParseBool(input); got != want {
			t.Fatalf("ParseBool(%q) = %v, want %v", input, got, want)
		}
	}
}

func TestString(t *testing.T) {
	t.Setenv("DOCHELPER_TEST_STRING", "  value  ")
	if got := String("DOCHELPER_TEST_STRING", "fallback"); got != "value" {
		t.Fatalf("String = %q, want %q", got, "value")
	}
	if got := String("DOCHELPER_TEST_STRING_MISSING", "fallback"); got != "fallback" {
		t.Fatalf("String missing = %q, want fallback", got)
	}
}

func TestInt(t *testing.T) {
	t.Setenv("DOCHELPER_TEST_INT", "42")
	if got := Int("DOCHELPER_TEST_INT", 7); got != 42 {
		t.Fatalf("Int = %d, want 42", got)
	}
	t.Setenv("DOCHELPER_TEST_INT", "not-a-number")
	if got := Int("DOCHELPER_TEST_INT", 7); got != 7 {
		t.Fatalf("Int invalid = %d, want fallback 7", got)
	}
}

func TestFloat(t *testing.T) {
	t.Setenv("DOCHELPER_TEST_FLOAT", "2.5")
	if got := Float("DOCHELPER_TEST_FLOAT", 1.0); got != 2.5 {
		t.Fatalf("Float = %v, want 2.5", got)
	}
}

func TestDuration(t *testing.T) {
	t.Setenv("DOCHELPER_TEST_DURATION", "90s")
	if got := Duration("DOCHELPER_TEST_DURATION", time.Minute); got != 90*time.Second {
		t.Fatalf("Duration = %v, want 90s", got)
	}
	t.Setenv("DOCHELPER_TEST_DURATION", "300")
	if got := Duration("DOCHELPER_TEST_DURATION", time.Minute); got != 300*time.Second {
		t.Fatalf("Duration bare seconds = %v, want 300s", got)
	}
	t.Setenv("DOCHELPER_TEST_DURATION", "bogus")
	if got := Duration("DOCHELPER_TEST_DURATION", time.Minute); got != time.Minute {
		t.Fatalf("Duration invalid = %v, want fallback", got)
	}
}
