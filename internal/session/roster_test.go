package session

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeRoster(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "users.txt")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write roster: %v", err)
	}
	return path
}

func TestParseRoster_AllFormats(t *testing.T) {
	path := writeRoster(t, `
# pilot cohort
u-100|May 16, 2025|June 11, 2025
u-200|2025-05-16
u-300

u-400|June 11, 2025 1:32:45.275 PM GMT+2
`)

	entries, err := ParseRoster(path)
	if err != nil {
		t.Fatalf("ParseRoster failed: %v", err)
	}
	if len(entries) != 4 {
		t.Fatalf("got %d entries, want 4", len(entries))
	}

	if entries[0].UserID != "u-100" {
		t.Errorf("entry 0 user = %s", entries[0].UserID)
	}
	if entries[0].FirstSeen.Format("2006-01-02") != "2025-05-16" {
		t.Errorf("entry 0 first seen = %v", entries[0].FirstSeen)
	}
	if entries[0].LastSeen.Format("2006-01-02") != "2025-06-11" {
		t.Errorf("entry 0 last seen = %v", entries[0].LastSeen)
	}

	if !entries[1].LastSeen.IsZero() {
		t.Error("entry 1 should have no last-seen date")
	}
	if !entries[2].FirstSeen.IsZero() {
		t.Error("entry 2 should have no dates")
	}
	if entries[3].FirstSeen.Format("2006-01-02") != "2025-06-11" {
		t.Errorf("entry 3 first seen = %v", entries[3].FirstSeen)
	}
}

func TestParseRoster_MalformedDate(t *testing.T) {
	path := writeRoster(t, "u-1|not a date\n")
	if _, err := ParseRoster(path); err == nil {
		t.Error("expected error for malformed date")
	}
}

func TestParseRoster_EmptyUserID(t *testing.T) {
	path := writeRoster(t, "|May 16, 2025\n")
	if _, err := ParseRoster(path); err == nil {
		t.Error("expected error for empty user id")
	}
}

func TestParseRoster_MissingFile(t *testing.T) {
	if _, err := ParseRoster(filepath.Join(t.TempDir(), "missing.txt")); err == nil {
		t.Error("expected error for missing roster")
	}
}

func TestDateRange(t *testing.T) {
	now := time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)
	first := time.Date(2025, 5, 16, 0, 0, 0, 0, time.UTC)
	last := time.Date(2025, 6, 11, 0, 0, 0, 0, time.UTC)

	t.Run("full span", func(t *testing.T) {
		start, end := RosterEntry{UserID: "u", FirstSeen: first, LastSeen: last}.DateRange(now, 3)
		if start.Format("20060102") != "20250515" {
			t.Errorf("start = %v, want one day before first seen", start)
		}
		if end != last {
			t.Errorf("end = %v, want last seen", end)
		}
	})

	t.Run("open-ended", func(t *testing.T) {
		start, end := RosterEntry{UserID: "u", FirstSeen: first}.DateRange(now, 3)
		if start.Format("20060102") != "20250515" {
			t.Errorf("start = %v", start)
		}
		if end != now {
			t.Errorf("end = %v, want now", end)
		}
	})

	t.Run("no dates falls back to lookback", func(t *testing.T) {
		start, end := RosterEntry{UserID: "u"}.DateRange(now, 3)
		if start.Format("20060102") != "20250628" {
			t.Errorf("start = %v, want now minus 3 days", start)
		}
		if end != now {
			t.Errorf("end = %v, want now", end)
		}
	})
}
