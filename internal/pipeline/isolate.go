package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/ampline/ampline/internal/catalog"
	"github.com/ampline/ampline/internal/isolate"
	"github.com/ampline/ampline/internal/session"
	"github.com/ampline/ampline/pkg/types"
)

// IsolateRunner truncates every clean record at the anchor event and writes
// isolated records or not-found notices, plus the batch summary.
type IsolateRunner struct {
	Catalog catalog.Catalog // may be nil
	RunID   string

	// ScanSampleFiles bounds the available-event scan; 0 means scan all.
	ScanSampleFiles int

	// Out receives progress lines and the summary block; nil means stdout.
	Out io.Writer
}

func (r *IsolateRunner) out() io.Writer {
	if r.Out != nil {
		return r.Out
	}
	return os.Stdout
}

// AvailableEvents returns the sorted distinct event types across the
// session's clean records, sampled per ScanSampleFiles. Used for anchor
// selection before a run.
func (r *IsolateRunner) AvailableEvents(sess *session.Session) ([]string, error) {
	records, _, err := r.loadCleanRecords(sess)
	if err != nil {
		return nil, err
	}
	return isolate.AvailableEventTypes(records, r.ScanSampleFiles), nil
}

// Run isolates every clean record in the session against anchorEvent, in
// file-name order, and prints per-record progress plus the summary block.
// Unreadable records are logged and skipped; nothing per record is fatal.
func (r *IsolateRunner) Run(ctx context.Context, sess *session.Session, anchorEvent string) (types.BatchSummary, error) {
	records, userIDs, err := r.loadCleanRecords(sess)
	if err != nil {
		return types.BatchSummary{}, err
	}
	if err := ctx.Err(); err != nil {
		return types.BatchSummary{}, err
	}

	// Not-found notices carry the distinct types observed across the batch,
	// sample-limited like the interactive scan.
	available := isolate.AvailableEventTypes(records, r.ScanSampleFiles)

	inputs := make([]isolate.Input, len(records))
	for i := range records {
		inputs[i] = isolate.Input{UserID: userIDs[i], Record: records[i]}
	}

	progress := func(index, total int, userID string, result isolate.Result) {
		switch result.Outcome {
		case isolate.OutcomeIsolated:
			fmt.Fprintf(r.out(), "[%d/%d] %s: isolated %d of %d events\n",
				index+1, total, userID, result.IsolatedEvents, result.TotalEvents)
		case isolate.OutcomeAnchorNotFound:
			fmt.Fprintf(r.out(), "[%d/%d] %s: event %q not found in %d events\n",
				index+1, total, userID, anchorEvent, result.TotalEvents)
		case isolate.OutcomeNoEvents:
			fmt.Fprintf(r.out(), "[%d/%d] %s: no events\n", index+1, total, userID)
		}
	}

	summary, results := isolate.RunBatch(inputs, anchorEvent, progress)

	for _, rr := range results {
		r.writeResult(ctx, sess, anchorEvent, rr, available)
	}

	r.printSummary(summary)
	return summary, nil
}

// writeResult persists one record's outcome. A failed artifact write is
// logged and recorded as failed; it never aborts the batch.
func (r *IsolateRunner) writeResult(ctx context.Context, sess *session.Session, anchorEvent string, rr isolate.RecordResult, available []string) {
	switch rr.Result.Outcome {
	case isolate.OutcomeIsolated:
		path := filepath.Join(sess.IsolateDir, isolatedPrefix+rr.UserID+artifactFileExt)
		if err := writeJSON(path, rr.Result.Record); err != nil {
			log.Printf("isolate: user %s: %v", rr.UserID, err)
			r.recordStage(ctx, rr.UserID, catalog.OutcomeFailed, 0, "", err.Error())
			return
		}
		r.recordStage(ctx, rr.UserID, catalog.OutcomeOK, rr.Result.IsolatedEvents, path, "")

	case isolate.OutcomeAnchorNotFound:
		notice := isolate.NewNotFoundNotice(rr.UserID, anchorEvent, rr.Result.TotalEvents, available)
		path := filepath.Join(sess.IsolateDir, notFoundPrefix+rr.UserID+artifactFileExt)
		if err := writeJSON(path, notice); err != nil {
			log.Printf("isolate: user %s: %v", rr.UserID, err)
			r.recordStage(ctx, rr.UserID, catalog.OutcomeFailed, 0, "", err.Error())
			return
		}
		r.recordStage(ctx, rr.UserID, catalog.OutcomeEventNotFound, rr.Result.TotalEvents, path, "")

	case isolate.OutcomeNoEvents:
		r.recordStage(ctx, rr.UserID, catalog.OutcomeNoData, 0, "", "")
	}
}

// loadCleanRecords reads every clean artifact in name order. Unreadable
// records are logged and skipped.
func (r *IsolateRunner) loadCleanRecords(sess *session.Session) ([]*types.CleanRecord, []string, error) {
	names, err := listArtifacts(sess.CleanDir, cleanFilePrefix)
	if err != nil {
		return nil, nil, err
	}

	var records []*types.CleanRecord
	var userIDs []string
	for _, name := range names {
		userID, ok := userIDFromPrefixedFile(name, cleanFilePrefix)
		if !ok {
			continue
		}

		data, err := os.ReadFile(filepath.Join(sess.CleanDir, name))
		if err != nil {
			log.Printf("isolate: skipping unreadable file %s: %v", name, err)
			continue
		}
		var record types.CleanRecord
		if err := json.Unmarshal(data, &record); err != nil {
			log.Printf("isolate: skipping undecodable file %s: %v", name, err)
			continue
		}

		records = append(records, &record)
		userIDs = append(userIDs, userID)
	}
	return records, userIDs, nil
}

func (r *IsolateRunner) printSummary(summary types.BatchSummary) {
	w := r.out()
	fmt.Fprintln(w, "==================================================")
	fmt.Fprintln(w, "ISOLATION SUMMARY")
	fmt.Fprintf(w, "Isolation event:       %s\n", summary.IsolationEvent)
	fmt.Fprintf(w, "Files processed:       %d\n", summary.FilesProcessed)
	fmt.Fprintf(w, "Successful isolations: %d\n", summary.SuccessfulIsolations)
	fmt.Fprintf(w, "Files without event:   %d\n", summary.FilesWithoutEvent)
	fmt.Fprintf(w, "Files with no data:    %d\n", summary.FilesNoData)
	fmt.Fprintf(w, "Events before:         %d\n", summary.TotalEventsBefore)
	fmt.Fprintf(w, "Events after:          %d\n", summary.TotalEventsAfter)
	if pct, ok := summary.ReductionPercent(); ok {
		fmt.Fprintf(w, "Reduction:             %.1f%%\n", pct)
	}
	fmt.Fprintln(w, "==================================================")
}

func (r *IsolateRunner) recordStage(ctx context.Context, userID, outcome string, count int, path, errText string) {
	if r.Catalog == nil {
		return
	}
	err := r.Catalog.RecordStage(ctx, catalog.StageRecord{
		RunID:        r.RunID,
		UserID:       userID,
		Stage:        catalog.StageIsolate,
		Outcome:      outcome,
		EventCount:   int64(count),
		ArtifactPath: path,
		ErrorText:    errText,
	})
	if err != nil {
		log.Printf("isolate: failed to record catalog entry for %s: %v", userID, err)
	}
}
