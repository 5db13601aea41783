package session

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	apperrors "github.com/ampline/ampline/internal/errors"
)

// RosterEntry is one user from the roster file, with the optional date span
// the export API should be queried over.
type RosterEntry struct {
	UserID    string
	FirstSeen time.Time // zero when the roster carries no dates
	LastSeen  time.Time // zero when the roster carries no end date
}

// ParseRoster reads a roster file. Accepted line formats:
//
//	UserID|FirstSeen|LastSeen
//	UserID|FirstSeen
//	UserID
//
// Dates may be in any common human format ("May 16, 2025", "2025-05-16", ...).
// Blank lines and lines starting with '#' are ignored.
func ParseRoster(path string) ([]RosterEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCategorySession, apperrors.CodeInvalidRoster,
			fmt.Sprintf("cannot open roster file %s", path), err)
	}
	defer f.Close()

	var entries []RosterEntry
	scanner := bufio.NewScanner(f)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		entry, err := parseRosterLine(line)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.ErrCategorySession, apperrors.CodeInvalidRoster,
				fmt.Sprintf("roster line %d is malformed", lineNum), err)
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCategorySession, apperrors.CodeInvalidRoster,
			fmt.Sprintf("failed reading roster file %s", path), err)
	}

	return entries, nil
}

func parseRosterLine(line string) (RosterEntry, error) {
	parts := strings.Split(line, "|")
	entry := RosterEntry{UserID: strings.TrimSpace(parts[0])}
	if entry.UserID == "" {
		return RosterEntry{}, fmt.Errorf("empty user id")
	}

	if len(parts) > 3 {
		return RosterEntry{}, fmt.Errorf("too many fields: %d", len(parts))
	}

	if len(parts) >= 2 {
		first, err := parseHumanDate(parts[1])
		if err != nil {
			return RosterEntry{}, fmt.Errorf("bad first-seen date %q: %w", parts[1], err)
		}
		entry.FirstSeen = first
	}
	if len(parts) == 3 {
		last, err := parseHumanDate(parts[2])
		if err != nil {
			return RosterEntry{}, fmt.Errorf("bad last-seen date %q: %w", parts[2], err)
		}
		entry.LastSeen = last
	}

	return entry, nil
}

// parseHumanDate accepts the date formats users paste from analytics UIs,
// including trailing "GMT+2"-style suffixes dateparse does not understand.
func parseHumanDate(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if idx := strings.Index(s, " GMT"); idx >= 0 {
		s = s[:idx]
	}
	return dateparse.ParseAny(s)
}

// DateRange computes the inclusive export range for this entry. The start is
// one day before first-seen because export days are coarse and boundary
// events land on either side of midnight. Entries without dates fall back to
// lookbackDays ending at now.
func (e RosterEntry) DateRange(now time.Time, lookbackDays int) (start, end time.Time) {
	switch {
	case !e.FirstSeen.IsZero() && !e.LastSeen.IsZero():
		return e.FirstSeen.AddDate(0, 0, -1), e.LastSeen
	case !e.FirstSeen.IsZero():
		return e.FirstSeen.AddDate(0, 0, -1), now
	default:
		if lookbackDays < 1 {
			lookbackDays = 1
		}
		return now.AddDate(0, 0, -lookbackDays), now
	}
}
