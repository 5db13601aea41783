package isolate

import (
	"sort"

	"github.com/ampline/ampline/pkg/types"
)

// AvailableEventTypes returns the sorted distinct event types observed in the
// given clean records. sampleLimit bounds how many records are scanned;
// a non-positive limit scans them all. Sampling keeps the scan cheap on large
// runs, the same trade the original tooling made.
func AvailableEventTypes(records []*types.CleanRecord, sampleLimit int) []string {
	if sampleLimit > 0 && sampleLimit < len(records) {
		records = records[:sampleLimit]
	}

	seen := make(map[string]struct{})
	for _, record := range records {
		if record == nil {
			continue
		}
		for _, event := range record.Events {
			seen[event.EventType] = struct{}{}
		}
	}

	out := make([]string, 0, len(seen))
	for et := range seen {
		out = append(out, et)
	}
	sort.Strings(out)
	return out
}

// SelectDefaultAnchor picks the first of the preferred anchors that actually
// occurs in availableEvents, falling back to the first available type. An
// empty availableEvents yields "", ok=false.
func SelectDefaultAnchor(availableEvents, preferred []string) (string, bool) {
	if len(availableEvents) == 0 {
		return "", false
	}

	available := make(map[string]struct{}, len(availableEvents))
	for _, et := range availableEvents {
		available[et] = struct{}{}
	}
	for _, candidate := range preferred {
		if _, ok := available[candidate]; ok {
			return candidate, true
		}
	}
	return availableEvents[0], true
}
