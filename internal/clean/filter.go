// Package clean transforms raw export events into per-user clean records:
// user-level attributes are extracted once, grouped fields are stripped from
// each event, and an optional allow-list drops unwanted event types.
package clean

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strings"
)

// Filter is an event-type allow-list. An empty filter keeps every event.
type Filter struct {
	allowed map[string]struct{}
}

// NewFilter creates a filter from the given event types. Matching is exact
// and case-sensitive.
func NewFilter(eventTypes []string) *Filter {
	allowed := make(map[string]struct{}, len(eventTypes))
	for _, et := range eventTypes {
		if et != "" {
			allowed[et] = struct{}{}
		}
	}
	return &Filter{allowed: allowed}
}

// LoadFilterFile reads an allow-list file: one event type per line, blank
// lines and '#' comments ignored. A missing file means "no filtering", not
// an error.
func LoadFilterFile(path string) (*Filter, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewFilter(nil), nil
		}
		return nil, fmt.Errorf("failed to open filter file %s: %w", path, err)
	}
	defer f.Close()

	var eventTypes []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		eventTypes = append(eventTypes, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read filter file %s: %w", path, err)
	}

	return NewFilter(eventTypes), nil
}

// ShouldKeep reports whether an event of the given type survives filtering.
func (f *Filter) ShouldKeep(eventType string) bool {
	if f == nil || len(f.allowed) == 0 {
		return true
	}
	_, ok := f.allowed[eventType]
	return ok
}

// Empty reports whether the filter keeps all events.
func (f *Filter) Empty() bool {
	return f == nil || len(f.allowed) == 0
}

// Len returns the number of allowed event types.
func (f *Filter) Len() int {
	if f == nil {
		return 0
	}
	return len(f.allowed)
}

// EventTypes returns the allowed event types in sorted order.
func (f *Filter) EventTypes() []string {
	if f == nil {
		return nil
	}
	out := make([]string, 0, len(f.allowed))
	for et := range f.allowed {
		out = append(out, et)
	}
	sort.Strings(out)
	return out
}
