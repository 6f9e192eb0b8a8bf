package env

import "testing"

func TestGet(t *testing.T) {
	t.Setenv("SALESRANK_TEST_SET", "  json ")
	t.Setenv("SALESRANK_TEST_BLANK", "   ")

	if got := Get("SALESRANK_TEST_SET", "console"); got != "json" {
		t.Fatalf("expected trimmed value, got %q", got)
	}
	if got := Get("SALESRANK_TEST_BLANK", "console"); got != "console" {
		t.Fatalf("expected fallback for blank value, got %q", got)
	}
	if got := Get("SALESRANK_TEST_UNSET", "console"); got != "console" {
		t.Fatalf("expected fallback for unset key, got %q", got)
	}
}

func TestFirstPrefersEarlierKeys(t *testing.T) {
	t.Setenv("SALESRANK_TEST_PRIMARY", "")
	t.Setenv("SALESRANK_TEST_SECONDARY", "web.2")
	t.Setenv("SALESRANK_TEST_TERTIARY", "pod-7")

	if got := First("local", "SALESRANK_TEST_PRIMARY", "SALESRANK_TEST_SECONDARY", "SALESRANK_TEST_TERTIARY"); got != "web.2" {
		t.Fatalf("unexpected %q", got)
	}
	if got := First("local"); got != "local" {
		t.Fatalf("expected fallback without keys, got %q", got)
	}
}
