package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"os"
	"path/filepath"

	"github.com/ampline/ampline/internal/catalog"
	"github.com/ampline/ampline/internal/clean"
	"github.com/ampline/ampline/internal/session"
	"github.com/ampline/ampline/pkg/types"
)

// CleanRunner turns raw artifacts into clean records. Users whose events are
// entirely filtered away are dropped (no clean artifact), with the drop
// reported per user rather than silently.
type CleanRunner struct {
	Filter  *clean.Filter
	Catalog catalog.Catalog // may be nil
	RunID   string
}

// CleanReport summarizes one clean stage run.
type CleanReport struct {
	FilesProcessed  int
	RecordsWritten  int
	UsersNoData     int
	UsersDropped    int
	UnreadableFiles int
	WriteFailures   int
}

// Run processes every raw artifact in the session, in name order. Unreadable
// files and failed artifact writes are logged, recorded as failed, and
// skipped; they never abort the stage.
func (r *CleanRunner) Run(ctx context.Context, sess *session.Session) (CleanReport, error) {
	names, err := listArtifacts(sess.RawDir, rawFilePrefix)
	if err != nil {
		return CleanReport{}, err
	}

	var report CleanReport
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		userID, ok := userIDFromRawFile(name)
		if !ok {
			continue
		}

		rawEvents, err := readRawEvents(filepath.Join(sess.RawDir, name))
		if err != nil {
			log.Printf("clean: skipping unreadable file %s: %v", name, err)
			report.UnreadableFiles++
			r.recordStage(ctx, userID, catalog.OutcomeFailed, 0, "", err.Error())
			continue
		}
		report.FilesProcessed++

		record, err := clean.BuildCleanRecord(rawEvents, userID, r.Filter)
		if err != nil {
			switch {
			case errors.Is(err, clean.ErrNoRawEvents):
				log.Printf("clean: user %s has no events", userID)
				report.UsersNoData++
				r.recordStage(ctx, userID, catalog.OutcomeNoData, 0, "", "")
			case errors.Is(err, clean.ErrNoRemainingEvents):
				log.Printf("clean: user %s dropped, no events survive the filter (%d raw)",
					userID, len(rawEvents))
				report.UsersDropped++
				r.recordStage(ctx, userID, catalog.OutcomeNoData, 0, "", "")
			default:
				log.Printf("clean: user %s: %v", userID, err)
				report.UnreadableFiles++
				r.recordStage(ctx, userID, catalog.OutcomeFailed, 0, "", err.Error())
			}
			continue
		}

		path := filepath.Join(sess.CleanDir, cleanFilePrefix+userID+artifactFileExt)
		if err := writeJSON(path, record); err != nil {
			log.Printf("clean: user %s: %v", userID, err)
			report.WriteFailures++
			r.recordStage(ctx, userID, catalog.OutcomeFailed, 0, "", err.Error())
			continue
		}
		report.RecordsWritten++
		log.Printf("clean: user %s: %d of %d events kept", userID, record.TotalEvents, len(rawEvents))
		r.recordStage(ctx, userID, catalog.OutcomeOK, record.TotalEvents, path, "")
	}

	return report, nil
}

func readRawEvents(path string) ([]types.RawEvent, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var events []types.RawEvent
	if err := json.Unmarshal(data, &events); err != nil {
		return nil, err
	}
	return events, nil
}

func (r *CleanRunner) recordStage(ctx context.Context, userID, outcome string, count int, path, errText string) {
	if r.Catalog == nil {
		return
	}
	err := r.Catalog.RecordStage(ctx, catalog.StageRecord{
		RunID:        r.RunID,
		UserID:       userID,
		Stage:        catalog.StageClean,
		Outcome:      outcome,
		EventCount:   int64(count),
		ArtifactPath: path,
		ErrorText:    errText,
	})
	if err != nil {
		log.Printf("clean: failed to record catalog entry for %s: %v", userID, err)
	}
}
