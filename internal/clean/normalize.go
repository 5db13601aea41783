package clean

import (
	"github.com/ampline/ampline/pkg/types"
)

// afStatusKey and cohortFields are the user-level fields grouped out of each
// event and deduplicated into UserData.
const afStatusKey = "af_status"

var cohortFields = []string{"cohort_month", "cohort_year", "cohort_day", "cohort_week"}

// ExtractUserData pulls the user-level attributes from a user's first raw
// event. Missing or malformed user_properties means "no cohort/status data",
// never a failure.
func ExtractUserData(first types.RawEvent, userID string) types.UserData {
	userData := types.UserData{
		UserID:     userID,
		Country:    first["country"],
		Language:   first["language"],
		AfStatus:   nil,
		CohortData: map[string]interface{}{},
	}

	props, ok := first.UserProperties()
	if !ok {
		return userData
	}

	if v, present := props[afStatusKey]; present {
		userData.AfStatus = v
	}
	for _, field := range cohortFields {
		if v, present := props[field]; present {
			userData.CohortData[field] = v
		}
	}

	return userData
}

// ReduceEvent strips the grouped user-level fields out of a raw event. The
// remaining user_properties are included only when non-empty after removal.
func ReduceEvent(raw types.RawEvent) types.CleanEvent {
	event := types.CleanEvent{
		EventType:       raw.EventType(),
		EventTime:       raw.EventTime(),
		EventProperties: raw.EventProperties(),
	}

	props, ok := raw.UserProperties()
	if !ok {
		return event
	}

	remaining := make(map[string]interface{}, len(props))
	for k, v := range props {
		remaining[k] = v
	}
	delete(remaining, afStatusKey)
	for _, field := range cohortFields {
		delete(remaining, field)
	}

	if len(remaining) > 0 {
		event.UserProperties = remaining
	}

	return event
}
