package isolate

import (
	"github.com/ampline/ampline/pkg/types"
)

// Input pairs a user with their clean record. The caller enumerates and
// loads records; the reporter never touches the filesystem.
type Input struct {
	UserID string
	Record *types.CleanRecord
}

// RecordResult is the per-user outcome of a batch run, in input order.
type RecordResult struct {
	UserID string
	Result Result
}

// ProgressFunc observes each record as it is processed. May be nil.
type ProgressFunc func(index, total int, userID string, result Result)

// RunBatch isolates every input record against the anchor event, in input
// order, and accumulates the run summary. No per-record state is fatal: the
// batch always completes and the summary covers every input exactly once.
// Records with zero events land in the FilesNoData bucket, distinct from
// FilesWithoutEvent.
func RunBatch(inputs []Input, anchorEvent string, progress ProgressFunc) (types.BatchSummary, []RecordResult) {
	summary := types.BatchSummary{IsolationEvent: anchorEvent}
	results := make([]RecordResult, 0, len(inputs))

	for i, input := range inputs {
		result := Isolate(input.Record, anchorEvent)

		summary.FilesProcessed++
		summary.TotalEventsBefore += result.TotalEvents
		switch result.Outcome {
		case OutcomeIsolated:
			summary.SuccessfulIsolations++
			summary.TotalEventsAfter += result.IsolatedEvents
		case OutcomeAnchorNotFound:
			summary.FilesWithoutEvent++
		case OutcomeNoEvents:
			summary.FilesNoData++
		}

		results = append(results, RecordResult{UserID: input.UserID, Result: result})
		if progress != nil {
			progress(i, len(inputs), input.UserID, result)
		}
	}

	return summary, results
}
