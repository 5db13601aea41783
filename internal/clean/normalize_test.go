package clean

import (
	"reflect"
	"testing"

	"github.com/ampline/ampline/pkg/types"
)

func TestExtractUserData_FullEvent(t *testing.T) {
	first := types.RawEvent{
		"country":  "DE",
		"language": "German",
		"user_properties": map[string]interface{}{
			"af_status":    "organic",
			"cohort_month": "2025-01",
			"cohort_week":  "2025-03",
			"plan":         "trial",
		},
	}

	userData := ExtractUserData(first, "u-1")

	if userData.UserID != "u-1" {
		t.Errorf("user id = %q", userData.UserID)
	}
	if userData.Country != "DE" || userData.Language != "German" {
		t.Errorf("country/language = %v/%v", userData.Country, userData.Language)
	}
	if userData.AfStatus != "organic" {
		t.Errorf("af_status = %v", userData.AfStatus)
	}
	wantCohort := map[string]interface{}{"cohort_month": "2025-01", "cohort_week": "2025-03"}
	if !reflect.DeepEqual(userData.CohortData, wantCohort) {
		t.Errorf("cohort data = %v, want %v", userData.CohortData, wantCohort)
	}
}

func TestExtractUserData_MissingFields(t *testing.T) {
	userData := ExtractUserData(types.RawEvent{"event_type": "X"}, "u-2")

	if userData.Country != nil || userData.Language != nil || userData.AfStatus != nil {
		t.Errorf("absent fields should be null: %+v", userData)
	}
	if userData.CohortData == nil || len(userData.CohortData) != 0 {
		t.Errorf("cohort data should be an empty mapping, got %v", userData.CohortData)
	}
}

func TestExtractUserData_MalformedUserProperties(t *testing.T) {
	userData := ExtractUserData(types.RawEvent{"user_properties": []interface{}{"nope"}}, "u-3")
	if userData.AfStatus != nil || len(userData.CohortData) != 0 {
		t.Errorf("malformed user_properties should yield no status/cohort data: %+v", userData)
	}
}

func TestReduceEvent_StripsGroupedFields(t *testing.T) {
	raw := types.RawEvent{
		"event_type":       "purchase",
		"event_time":       "2025-05-16 10:00:00",
		"event_properties": map[string]interface{}{"price": 9.99},
		"user_properties": map[string]interface{}{
			"af_status":    "organic",
			"cohort_month": "2025-01",
			"cohort_year":  "2025",
			"cohort_day":   "2025-01-03",
			"cohort_week":  "2025-01",
			"plan":         "trial",
		},
	}

	event := ReduceEvent(raw)

	if event.EventType != "purchase" || event.EventTime != "2025-05-16 10:00:00" {
		t.Errorf("event header = %q/%q", event.EventType, event.EventTime)
	}
	want := map[string]interface{}{"plan": "trial"}
	if !reflect.DeepEqual(event.UserProperties, want) {
		t.Errorf("user_properties = %v, want %v", event.UserProperties, want)
	}
}

func TestReduceEvent_OmitsEmptyRemainder(t *testing.T) {
	raw := types.RawEvent{
		"event_type": "X",
		"user_properties": map[string]interface{}{
			"af_status":    "organic",
			"cohort_month": "2025-01",
		},
	}

	event := ReduceEvent(raw)

	if event.UserProperties != nil {
		t.Errorf("user_properties should be absent when only grouped fields existed, got %v",
			event.UserProperties)
	}
	if event.EventProperties == nil {
		t.Error("event_properties must default to an empty mapping")
	}
}

func TestReduceEvent_DoesNotMutateSource(t *testing.T) {
	props := map[string]interface{}{"af_status": "organic", "plan": "trial"}
	raw := types.RawEvent{"event_type": "X", "user_properties": props}

	ReduceEvent(raw)

	if _, ok := props["af_status"]; !ok {
		t.Error("reduction must not mutate the raw event's user_properties")
	}
}
