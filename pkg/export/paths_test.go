package export

import (
	"strings"
	"testing"
)

func TestSanitizeSegment(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		fallback string
		want     string
	}{
		{"plain", "Quarterly Report", "file", "Quarterly Report"},
		{"unsafe characters", `a\b/c:d*e?f"g<h>i|j`, "file", "a-b-c-d-e-f-g-h-i-j"},
		{"collapses runs", "a//??**b", "file", "a-b"},
		{"strips non-ascii", "résumé.pdf", "file", "rsum.pdf"},
		{"trims dots and dashes", "..-report-..", "file", "report"},
		{"empty falls back", "", "file", "file"},
		{"only unsafe falls back", "???", "folder", "folder"},
		{"control characters dropped", "a\x00b\tc", "file", "abc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sanitizeSegment(tt.input, tt.fallback); got != tt.want {
				t.Errorf("sanitizeSegment(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestSanitizeSegment_CapsLength(t *testing.T) {
	long := strings.Repeat("a", 200)
	got := sanitizeSegment(long, "file")
	if len(got) != maxSegmentLen {
		t.Errorf("expected %d characters, got %d", maxSegmentLen, len(got))
	}
}

func TestSanitizeMailboxPath(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Inbox/Projects/2024", "Inbox/Projects/2024"},
		{"Inbox//Archive", "Inbox/Archive"},
		{"", "folder"},
		{"///", "folder"},
		{"Inbox/??", "Inbox/folder"},
	}
	for _, tt := range tests {
		if got := sanitizeMailboxPath(tt.input); got != tt.want {
			t.Errorf("sanitizeMailboxPath(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
