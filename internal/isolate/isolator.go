// Package isolate truncates clean per-user records at an anchor event and
// aggregates batch-level statistics over a run.
package isolate

import (
	"fmt"

	"github.com/ampline/ampline/pkg/types"
)

// Outcome is the terminal state of isolating one clean record.
type Outcome string

const (
	// OutcomeIsolated means the anchor was found and a record produced.
	OutcomeIsolated Outcome = "isolated"

	// OutcomeAnchorNotFound means the record has events but none match.
	OutcomeAnchorNotFound Outcome = "anchor_not_found"

	// OutcomeNoEvents means the record has no events at all.
	OutcomeNoEvents Outcome = "no_events"
)

// Result describes the isolation of one clean record.
type Result struct {
	// Outcome is the terminal state.
	Outcome Outcome

	// Record is the isolated record; nil unless Outcome is OutcomeIsolated.
	Record *types.IsolatedRecord

	// TotalEvents is the clean record's event count before isolation.
	TotalEvents int

	// IsolatedEvents is the number of retained events; zero unless isolated.
	IsolatedEvents int
}

// Isolate finds the first event whose type matches anchorEvent and produces
// a record holding that event and everything after it. The search is a
// linear scan; records are per-user and bounded, so nothing fancier is
// warranted. The result depends only on the record's event order and the
// anchor; not-found and no-events are recognized states, never errors.
func Isolate(record *types.CleanRecord, anchorEvent string) Result {
	if record == nil || len(record.Events) == 0 {
		return Result{Outcome: OutcomeNoEvents}
	}

	anchorIndex := -1
	for i, event := range record.Events {
		if event.EventType == anchorEvent {
			anchorIndex = i
			break
		}
	}

	if anchorIndex < 0 {
		return Result{
			Outcome:     OutcomeAnchorNotFound,
			TotalEvents: len(record.Events),
		}
	}

	isolated := record.Events[anchorIndex:]
	return Result{
		Outcome: OutcomeIsolated,
		Record: &types.IsolatedRecord{
			UserData: record.UserData,
			IsolationInfo: types.IsolationInfo{
				IsolationEvent:        anchorEvent,
				IsolationDate:         isolated[0].EventTime,
				EventsBeforeIsolation: anchorIndex,
				EventsAfterIsolation:  len(isolated),
			},
			Events:      isolated,
			TotalEvents: len(isolated),
		},
		TotalEvents:    len(record.Events),
		IsolatedEvents: len(isolated),
	}
}

// NewNotFoundNotice builds the persisted artifact for a record whose anchor
// was not found. availableEvents should come from the batch-wide event-type
// scan so the notice can guide the operator toward a usable anchor.
func NewNotFoundNotice(userID, anchorEvent string, totalEvents int, availableEvents []string) types.NotFoundNotice {
	return types.NotFoundNotice{
		UserID:         userID,
		IsolationEvent: anchorEvent,
		Status:         types.StatusEventNotFound,
		Message: fmt.Sprintf("isolation event %q not found in this user's data (%d events)",
			anchorEvent, totalEvents),
		TotalEventsInUserData: totalEvents,
		AvailableEvents:       availableEvents,
	}
}
