package processor

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/fableforge/tales/internal/models"
)

// TestTruncateText asserts the write-side bound and marker.
func TestTruncateText(t *testing.T) {
	short := "a short story"
	if got := truncateText(short, 100); got != short {
		t.Errorf("short text modified: %q", got)
	}

	long := strings.Repeat("x", 500)
	got := truncateText(long, 100)
	if len(got) != 100 {
		t.Errorf("truncated length %d != 100", len(got))
	}
	if !strings.HasSuffix(got, truncationMarker) {
		t.Errorf("marker missing: %q", got[80:])
	}
}

// TestSanitizeMeta asserts bounding and the not-provided sentinel.
func TestSanitizeMeta(t *testing.T) {
	if got := sanitizeMeta("  Ana  ", 200); got != "Ana" {
		t.Errorf("trim: %q", got)
	}
	if got := sanitizeMeta("", 200); got != models.MetadataNotProvided {
		t.Errorf("sentinel: %q", got)
	}
	if got := sanitizeMeta("   ", 200); got != models.MetadataNotProvided {
		t.Errorf("whitespace sentinel: %q", got)
	}
	if got := sanitizeMeta(strings.Repeat("y", 300), 200); len(got) != 200 {
		t.Errorf("bound: %d", len(got))
	}
}

// TestTruncateText_MultibyteSafe asserts truncation never splits a rune: the
// store rejects invalid UTF-8, so a byte-boundary cut would fail the insert.
func TestTruncateText_MultibyteSafe(t *testing.T) {
	long := strings.Repeat("história é", 50)
	got := truncateText(long, 100)
	if len(got) > 100 {
		t.Errorf("truncated length %d > 100", len(got))
	}
	if !utf8.ValidString(got) {
		t.Errorf("truncated text is not valid UTF-8: %q", got)
	}
	if !strings.HasSuffix(got, truncationMarker) {
		t.Errorf("marker missing: %q", got)
	}
}

// TestTruncateText_TinyBound asserts a bound smaller than the marker still
// yields a bounded, valid string instead of panicking.
func TestTruncateText_TinyBound(t *testing.T) {
	got := truncateText(strings.Repeat("日", 20), 10)
	if len(got) > 10 {
		t.Errorf("length %d > 10", len(got))
	}
	if !utf8.ValidString(got) {
		t.Errorf("not valid UTF-8: %q", got)
	}
}

// TestSanitizeMeta_MultibyteSafe asserts the metadata bound lands on a rune
// boundary.
func TestSanitizeMeta_MultibyteSafe(t *testing.T) {
	got := sanitizeMeta(strings.Repeat("日", 100), 200)
	if len(got) > 200 {
		t.Errorf("length %d > 200", len(got))
	}
	if !utf8.ValidString(got) {
		t.Errorf("not valid UTF-8 (len=%d)", len(got))
	}
}
