package types

// BatchSummary aggregates the outcomes of one isolation run. The summary
// covers every input record exactly once:
//
//	FilesProcessed == SuccessfulIsolations + FilesWithoutEvent + FilesNoData
type BatchSummary struct {
	// IsolationEvent is the anchor event type the run was executed with.
	IsolationEvent string `json:"isolation_event"`

	// FilesProcessed is the number of clean records examined.
	FilesProcessed int `json:"files_processed"`

	// SuccessfulIsolations counts records where the anchor was found.
	SuccessfulIsolations int `json:"successful_isolations"`

	// FilesWithoutEvent counts records that had events but no anchor.
	FilesWithoutEvent int `json:"files_without_event"`

	// FilesNoData counts records with zero events. These are tracked
	// separately so a roster hole is never mistaken for a missing anchor.
	FilesNoData int `json:"files_no_data"`

	// TotalEventsBefore is the sum of record totals prior to isolation.
	TotalEventsBefore int `json:"total_events_before"`

	// TotalEventsAfter is the sum of retained event counts for successful
	// isolations only.
	TotalEventsAfter int `json:"total_events_after"`
}

// ReductionPercent returns the percentage of events removed by isolation.
// The second return value is false when no events were seen, in which case
// the percentage is undefined.
func (s BatchSummary) ReductionPercent() (float64, bool) {
	if s.TotalEventsBefore == 0 {
		return 0, false
	}
	before := float64(s.TotalEventsBefore)
	after := float64(s.TotalEventsAfter)
	return (before - after) / before * 100, true
}
