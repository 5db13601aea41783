// Package analyze summarizes a user's raw event stream: how often each event
// type occurs and which events bracket the timeline. The census is what an
// operator looks at before choosing a filter allow-list or an anchor event.
package analyze

import (
	"sort"

	"github.com/ampline/ampline/pkg/types"
)

// unknownType stands in for events missing an event_type field.
const unknownType = "UNKNOWN"

// TypeCount is one event type and its occurrence count.
type TypeCount struct {
	EventType string `json:"event_type"`
	Count     int    `json:"count"`
}

// EventStub is a compact (type, time) view of one event.
type EventStub struct {
	EventType string `json:"event_type"`
	EventTime string `json:"event_time"`
}

// Census summarizes one user's raw events.
type Census struct {
	// TotalEvents is the raw event count.
	TotalEvents int `json:"total_events"`

	// Counts holds per-type occurrence counts, most frequent first; ties
	// break alphabetically so the census is deterministic.
	Counts []TypeCount `json:"counts"`

	// First and Last are the chronologically earliest and latest events,
	// up to the bracket size passed to CensusOf.
	First []EventStub `json:"first"`
	Last  []EventStub `json:"last"`
}

// CensusOf builds a census over the given raw events. bracket bounds how
// many earliest/latest events are retained; a non-positive bracket keeps
// none.
func CensusOf(events []types.RawEvent, bracket int) Census {
	census := Census{TotalEvents: len(events)}
	if len(events) == 0 {
		return census
	}

	counts := make(map[string]int)
	stubs := make([]EventStub, len(events))
	for i, event := range events {
		et := event.EventType()
		if et == "" {
			et = unknownType
		}
		counts[et]++
		stubs[i] = EventStub{EventType: et, EventTime: event.EventTime()}
	}

	census.Counts = make([]TypeCount, 0, len(counts))
	for et, n := range counts {
		census.Counts = append(census.Counts, TypeCount{EventType: et, Count: n})
	}
	sort.Slice(census.Counts, func(i, j int) bool {
		if census.Counts[i].Count != census.Counts[j].Count {
			return census.Counts[i].Count > census.Counts[j].Count
		}
		return census.Counts[i].EventType < census.Counts[j].EventType
	})

	if bracket > 0 {
		sort.SliceStable(stubs, func(i, j int) bool {
			return stubs[i].EventTime < stubs[j].EventTime
		})
		if bracket > len(stubs) {
			bracket = len(stubs)
		}
		census.First = append([]EventStub(nil), stubs[:bracket]...)
		census.Last = append([]EventStub(nil), stubs[len(stubs)-bracket:]...)
	}

	return census
}

// DistinctTypes returns the census's event types in alphabetical order.
func (c Census) DistinctTypes() []string {
	out := make([]string, 0, len(c.Counts))
	for _, tc := range c.Counts {
		out = append(out, tc.EventType)
	}
	sort.Strings(out)
	return out
}
