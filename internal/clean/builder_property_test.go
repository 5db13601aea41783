package clean

import (
	"reflect"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/ampline/ampline/pkg/types"
)

func genEventType() gopter.Gen {
	return gen.OneConstOf("A", "B", "C", "D", "E")
}

func rawEventsOf(eventTypes []string) []types.RawEvent {
	raws := make([]types.RawEvent, len(eventTypes))
	for i, et := range eventTypes {
		raws[i] = types.RawEvent{
			"event_type": et,
			"event_time": "2025-05-16 10:00:00",
			"user_properties": map[string]interface{}{
				"af_status": "organic",
				"session":   i,
			},
		}
	}
	return raws
}

// With no filtering configured, the clean events are a field-reduced copy of
// the input: same length, same order.
func TestProperty_NoFilterPreservesSequence(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("empty allow-list preserves order and length", prop.ForAll(
		func(eventTypes []string) bool {
			if len(eventTypes) == 0 {
				return true
			}
			record, err := BuildCleanRecord(rawEventsOf(eventTypes), "u", nil)
			if err != nil {
				return false
			}
			if record.TotalEvents != len(eventTypes) {
				return false
			}
			for i, event := range record.Events {
				if event.EventType != eventTypes[i] {
					return false
				}
			}
			return true
		},
		gen.SliceOf(genEventType()),
	))

	properties.TestingRun(t)
}

// With a non-empty allow-list, every surviving event's type is allowed and
// the output is a subsequence of the input.
func TestProperty_FilterYieldsAllowedSubsequence(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("filtered output is an allowed subsequence", prop.ForAll(
		func(eventTypes []string, allowed []string) bool {
			if len(eventTypes) == 0 || len(allowed) == 0 {
				return true
			}
			filter := NewFilter(allowed)
			record, err := BuildCleanRecord(rawEventsOf(eventTypes), "u", filter)
			if err == ErrNoRemainingEvents {
				// Legitimate outcome; nothing allowed survived.
				for _, et := range eventTypes {
					if filter.ShouldKeep(et) {
						return false
					}
				}
				return true
			}
			if err != nil {
				return false
			}

			// Membership
			for _, event := range record.Events {
				if !filter.ShouldKeep(event.EventType) {
					return false
				}
			}

			// Subsequence of the input order
			i := 0
			for _, et := range eventTypes {
				if i < len(record.Events) && record.Events[i].EventType == et && filter.ShouldKeep(et) {
					i++
				}
			}
			return i == len(record.Events)
		},
		gen.SliceOf(genEventType()),
		gen.SliceOf(genEventType()),
	))

	properties.TestingRun(t)
}

// UserData depends only on the first raw event, never on the allow-list.
func TestProperty_UserDataFilterInvariance(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("user data is identical for any allow-list", prop.ForAll(
		func(eventTypes []string, allowed []string) bool {
			if len(eventTypes) == 0 {
				return true
			}
			raws := rawEventsOf(eventTypes)

			unfiltered := ExtractUserData(raws[0], "u")
			record, err := BuildCleanRecord(raws, "u", NewFilter(allowed))
			if err != nil {
				// No record built; invariance is vacuous but extraction
				// itself must still agree.
				return reflect.DeepEqual(unfiltered, ExtractUserData(raws[0], "u"))
			}
			return reflect.DeepEqual(unfiltered, record.UserData)
		},
		gen.SliceOf(genEventType()),
		gen.SliceOf(genEventType()),
	))

	properties.TestingRun(t)
}

// A reduced event never carries an empty user_properties mapping.
func TestProperty_NoEmptyUserProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("grouped-only user_properties is omitted", prop.ForAll(
		func(hasExtra bool) bool {
			props := map[string]interface{}{
				"af_status":    "organic",
				"cohort_month": "2025-01",
			}
			if hasExtra {
				props["plan"] = "trial"
			}
			event := ReduceEvent(types.RawEvent{"event_type": "X", "user_properties": props})
			if hasExtra {
				return len(event.UserProperties) == 1
			}
			return event.UserProperties == nil
		},
		gen.Bool(),
	))

	properties.TestingRun(t)
}
