package isolate

import (
	"testing"

	"github.com/ampline/ampline/pkg/types"
)

func cleanRecord(userID string, eventTypes ...string) *types.CleanRecord {
	events := make([]types.CleanEvent, len(eventTypes))
	for i, et := range eventTypes {
		events[i] = types.CleanEvent{
			EventType:       et,
			EventTime:       "2025-05-16 10:00:0" + string(rune('0'+i%10)),
			EventProperties: map[string]interface{}{},
		}
	}
	return &types.CleanRecord{
		UserData:    types.UserData{UserID: userID, CohortData: map[string]interface{}{}},
		Events:      events,
		TotalEvents: len(events),
	}
}

func TestIsolate_AnchorFound(t *testing.T) {
	record := cleanRecord("u-1", "A", "B", "C", "D")

	result := Isolate(record, "C")

	if result.Outcome != OutcomeIsolated {
		t.Fatalf("outcome = %s, want isolated", result.Outcome)
	}
	info := result.Record.IsolationInfo
	if info.EventsBeforeIsolation != 2 || info.EventsAfterIsolation != 2 {
		t.Errorf("before/after = %d/%d, want 2/2", info.EventsBeforeIsolation, info.EventsAfterIsolation)
	}
	if result.Record.Events[0].EventType != "C" {
		t.Errorf("first isolated event = %q, want the anchor", result.Record.Events[0].EventType)
	}
	if result.Record.TotalEvents != 2 {
		t.Errorf("total = %d, want 2", result.Record.TotalEvents)
	}
	if info.IsolationDate != result.Record.Events[0].EventTime {
		t.Errorf("isolation date = %q, want anchor event time", info.IsolationDate)
	}
	if result.Record.UserData.UserID != "u-1" {
		t.Errorf("user data not carried over: %+v", result.Record.UserData)
	}
}

func TestIsolate_AnchorAtStart(t *testing.T) {
	result := Isolate(cleanRecord("u-1", "A", "B"), "A")

	if result.Outcome != OutcomeIsolated {
		t.Fatalf("outcome = %s", result.Outcome)
	}
	info := result.Record.IsolationInfo
	if info.EventsBeforeIsolation != 0 || info.EventsAfterIsolation != 2 {
		t.Errorf("before/after = %d/%d, want 0/2", info.EventsBeforeIsolation, info.EventsAfterIsolation)
	}
}

func TestIsolate_FirstOccurrenceWins(t *testing.T) {
	result := Isolate(cleanRecord("u-1", "A", "B", "A", "B"), "B")

	if result.Record.IsolationInfo.EventsBeforeIsolation != 1 {
		t.Errorf("anchor index = %d, want 1 (first occurrence)",
			result.Record.IsolationInfo.EventsBeforeIsolation)
	}
}

func TestIsolate_AnchorNotFound(t *testing.T) {
	result := Isolate(cleanRecord("u-1", "A", "B"), "Z")

	if result.Outcome != OutcomeAnchorNotFound {
		t.Fatalf("outcome = %s, want anchor_not_found", result.Outcome)
	}
	if result.Record != nil {
		t.Error("no record must be produced when the anchor is missing")
	}
	if result.TotalEvents != 2 || result.IsolatedEvents != 0 {
		t.Errorf("totals = %d/%d, want 2/0", result.TotalEvents, result.IsolatedEvents)
	}
}

func TestIsolate_NoEvents(t *testing.T) {
	result := Isolate(cleanRecord("u-1"), "A")

	if result.Outcome != OutcomeNoEvents {
		t.Fatalf("outcome = %s, want no_events", result.Outcome)
	}
	if result.TotalEvents != 0 || result.IsolatedEvents != 0 {
		t.Errorf("totals = %d/%d, want 0/0", result.TotalEvents, result.IsolatedEvents)
	}
}

func TestIsolate_NilRecord(t *testing.T) {
	if result := Isolate(nil, "A"); result.Outcome != OutcomeNoEvents {
		t.Errorf("nil record outcome = %s, want no_events", result.Outcome)
	}
}

// Re-isolating an already-isolated record's events with the same anchor
// returns them unchanged: the anchor is at index 0.
func TestIsolate_Idempotent(t *testing.T) {
	first := Isolate(cleanRecord("u-1", "A", "B", "C", "D"), "C")
	if first.Outcome != OutcomeIsolated {
		t.Fatalf("setup failed: %s", first.Outcome)
	}

	again := Isolate(&types.CleanRecord{
		UserData:    first.Record.UserData,
		Events:      first.Record.Events,
		TotalEvents: first.Record.TotalEvents,
	}, "C")

	if again.Outcome != OutcomeIsolated {
		t.Fatalf("second isolation outcome = %s", again.Outcome)
	}
	if again.Record.IsolationInfo.EventsBeforeIsolation != 0 {
		t.Errorf("anchor should be at index 0, got %d",
			again.Record.IsolationInfo.EventsBeforeIsolation)
	}
	if len(again.Record.Events) != len(first.Record.Events) {
		t.Errorf("events changed: %d vs %d", len(again.Record.Events), len(first.Record.Events))
	}
}

func TestNewNotFoundNotice(t *testing.T) {
	notice := NewNotFoundNotice("u-1", "Z", 7, []string{"A", "B"})

	if notice.Status != types.StatusEventNotFound {
		t.Errorf("status = %q", notice.Status)
	}
	if notice.UserID != "u-1" || notice.IsolationEvent != "Z" {
		t.Errorf("notice = %+v", notice)
	}
	if notice.TotalEventsInUserData != 7 {
		t.Errorf("total = %d, want 7", notice.TotalEventsInUserData)
	}
	if len(notice.AvailableEvents) != 2 {
		t.Errorf("available events = %v", notice.AvailableEvents)
	}
}
