package clean

import (
	"errors"

	"github.com/ampline/ampline/pkg/types"
)

// Sentinel outcomes of the clean-record build. Both describe recognized
// per-user states, not failures of the batch.
var (
	// ErrNoRawEvents means the user had no raw events at all.
	ErrNoRawEvents = errors.New("clean: no raw events for user")

	// ErrNoRemainingEvents means every raw event was dropped by the filter.
	ErrNoRemainingEvents = errors.New("clean: no events remaining after filtering")
)

// BuildCleanRecord collapses a user's raw event sequence into one clean
// record. Events are filtered and reduced in a single ordered pass. The
// user-level attributes always come from the first raw event, whether or not
// that event survives filtering: which events pass the filter must never
// change who the user is.
func BuildCleanRecord(rawEvents []types.RawEvent, userID string, filter *Filter) (*types.CleanRecord, error) {
	if len(rawEvents) == 0 {
		return nil, ErrNoRawEvents
	}

	events := make([]types.CleanEvent, 0, len(rawEvents))
	for _, raw := range rawEvents {
		if !filter.ShouldKeep(raw.EventType()) {
			continue
		}
		events = append(events, ReduceEvent(raw))
	}

	if len(events) == 0 {
		return nil, ErrNoRemainingEvents
	}

	return &types.CleanRecord{
		UserData:    ExtractUserData(rawEvents[0], userID),
		Events:      events,
		TotalEvents: len(events),
	}, nil
}
