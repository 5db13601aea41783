package types

// CleanRecord is the persisted per-user clean artifact. Field order matches
// the on-disk key order: user_data, events, total_events.
type CleanRecord struct {
	UserData    UserData     `json:"user_data"`
	Events      []CleanEvent `json:"events"`
	TotalEvents int          `json:"total_events"`
}

// IsolationInfo describes where a clean record was truncated.
type IsolationInfo struct {
	// IsolationEvent is the anchor event type the truncation was based on.
	IsolationEvent string `json:"isolation_event"`

	// IsolationDate is the event_time of the anchor event.
	IsolationDate string `json:"isolation_date"`

	// EventsBeforeIsolation is the number of events dropped before the anchor.
	EventsBeforeIsolation int `json:"events_before_isolation"`

	// EventsAfterIsolation is the number of events retained, anchor included.
	EventsAfterIsolation int `json:"events_after_isolation"`
}

// IsolatedRecord is the persisted per-user isolated artifact. Field order
// matches the on-disk key order: user_data, isolation_info, events,
// total_events.
type IsolatedRecord struct {
	UserData      UserData      `json:"user_data"`
	IsolationInfo IsolationInfo `json:"isolation_info"`
	Events        []CleanEvent  `json:"events"`
	TotalEvents   int           `json:"total_events"`
}

// StatusEventNotFound is the status value written into not-found notices.
const StatusEventNotFound = "event_not_found"

// NotFoundNotice is the persisted artifact for a user whose clean record
// does not contain the anchor event. It replaces the isolated record; the
// condition is informational, not an error.
type NotFoundNotice struct {
	UserID                string   `json:"user_id"`
	IsolationEvent        string   `json:"isolation_event"`
	Status                string   `json:"status"`
	Message               string   `json:"message"`
	TotalEventsInUserData int      `json:"total_events_in_user_data"`
	AvailableEvents       []string `json:"available_events"`
}
