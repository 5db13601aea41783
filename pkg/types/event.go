// Package types provides core data types for the Ampline pipeline.
package types

import (
	"encoding/json"
	"strconv"
)

// RawEvent is a single event as returned by the export API. The export
// format is schemaless, so the event is kept as a raw key/value mapping
// until the clean stage reduces it.
type RawEvent map[string]interface{}

// EventType returns the event_type field, or "" when absent or not a string.
func (e RawEvent) EventType() string {
	return e.stringField("event_type")
}

// EventTime returns the event_time field, or "" when absent or not a string.
func (e RawEvent) EventTime() string {
	return e.stringField("event_time")
}

// EventProperties returns the event_properties mapping, or an empty mapping
// when absent or malformed.
func (e RawEvent) EventProperties() map[string]interface{} {
	if m, ok := e["event_properties"].(map[string]interface{}); ok {
		return m
	}
	return map[string]interface{}{}
}

// UserProperties returns the user_properties mapping. The second return
// value is false when the field is absent or not a mapping; callers treat
// that as "no user-level data", never as an error.
func (e RawEvent) UserProperties() (map[string]interface{}, bool) {
	m, ok := e["user_properties"].(map[string]interface{})
	return m, ok
}

// MatchesUser reports whether the event belongs to the given user. The
// export API carries several identifier fields and users may appear under
// any of them.
func (e RawEvent) MatchesUser(userID string) bool {
	if userID == "" {
		return true
	}
	for _, key := range []string{"user_id", "device_id", "uuid"} {
		if e.stringField(key) == userID {
			return true
		}
	}
	// amplitude_id is numeric in the export format
	return fieldAsString(e["amplitude_id"]) == userID
}

func (e RawEvent) stringField(key string) string {
	if s, ok := e[key].(string); ok {
		return s
	}
	return ""
}

// fieldAsString renders an identifier field for comparison. Numeric
// identifiers must not pick up an exponent during formatting.
func fieldAsString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	case int64:
		return strconv.FormatInt(t, 10)
	case int:
		return strconv.Itoa(t)
	default:
		return ""
	}
}

// CleanEvent is a reduced event with user-level fields stripped out.
// UserProperties is omitted entirely when nothing remains after removing
// the grouped fields.
type CleanEvent struct {
	EventType       string                 `json:"event_type"`
	EventTime       string                 `json:"event_time"`
	EventProperties map[string]interface{} `json:"event_properties"`
	UserProperties  map[string]interface{} `json:"user_properties,omitempty"`
}

// UserData holds the user-level attributes extracted once per user from
// their first raw event.
type UserData struct {
	UserID     string                 `json:"user_id"`
	Country    interface{}            `json:"country"`
	Language   interface{}            `json:"language"`
	AfStatus   interface{}            `json:"af_status"`
	CohortData map[string]interface{} `json:"cohort_data"`
}
