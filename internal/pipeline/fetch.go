package pipeline

import (
	"context"
	"log"
	"path/filepath"
	"time"

	"github.com/ampline/ampline/internal/catalog"
	"github.com/ampline/ampline/internal/fetch"
	"github.com/ampline/ampline/internal/session"
	"github.com/ampline/ampline/pkg/types"
)

// FetchRunner downloads per-user raw events for every roster entry and writes
// one raw artifact per user. A raw file is always written, even when the user
// has no events, so downstream stages see every roster user.
type FetchRunner struct {
	Source       fetch.EventSource
	Catalog      catalog.Catalog // may be nil
	RunID        string
	LookbackDays int

	// Now stubs the clock in tests; nil means time.Now.
	Now func() time.Time
}

// FetchReport summarizes one fetch stage run.
type FetchReport struct {
	UsersProcessed  int
	UsersWithEvents int
	TotalEvents     int
	SourceFailures  int
	WriteFailures   int
}

// Run fetches events for every roster entry in order. Source and artifact
// write failures are recorded per user and never abort the stage.
func (r *FetchRunner) Run(ctx context.Context, sess *session.Session, roster []session.RosterEntry) (FetchReport, error) {
	now := time.Now()
	if r.Now != nil {
		now = r.Now()
	}

	var report FetchReport
	for _, entry := range roster {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		start, end := entry.DateRange(now, r.LookbackDays)

		events, err := r.Source.Events(ctx, entry.UserID, start, end)
		outcome := catalog.OutcomeOK
		errText := ""
		if err != nil {
			log.Printf("fetch: user %s: %v (recording zero events)", entry.UserID, err)
			events = nil
			outcome = catalog.OutcomeFailed
			errText = err.Error()
			report.SourceFailures++
		}
		if events == nil {
			events = []types.RawEvent{}
		}

		name := rawFileName(entry.UserID, start.Format("2006-01-02"), end.Format("2006-01-02"))
		path := filepath.Join(sess.RawDir, name)
		if err := writeJSON(path, events); err != nil {
			log.Printf("fetch: user %s: %v", entry.UserID, err)
			report.WriteFailures++
			r.recordStage(ctx, catalog.StageRecord{
				UserID:     entry.UserID,
				Outcome:    catalog.OutcomeFailed,
				RangeStart: start.Format("2006-01-02"),
				RangeEnd:   end.Format("2006-01-02"),
				ErrorText:  err.Error(),
			})
			continue
		}

		report.UsersProcessed++
		if len(events) > 0 {
			report.UsersWithEvents++
			report.TotalEvents += len(events)
		} else if outcome == catalog.OutcomeOK {
			outcome = catalog.OutcomeNoData
		}

		log.Printf("fetch: user %s: %d events (%s to %s)",
			entry.UserID, len(events), start.Format("2006-01-02"), end.Format("2006-01-02"))

		r.recordStage(ctx, catalog.StageRecord{
			UserID:       entry.UserID,
			Outcome:      outcome,
			EventCount:   int64(len(events)),
			ArtifactPath: path,
			RangeStart:   start.Format("2006-01-02"),
			RangeEnd:     end.Format("2006-01-02"),
			ErrorText:    errText,
		})
	}

	return report, nil
}

func (r *FetchRunner) recordStage(ctx context.Context, rec catalog.StageRecord) {
	if r.Catalog == nil {
		return
	}
	rec.RunID = r.RunID
	rec.Stage = catalog.StageFetch
	if err := r.Catalog.RecordStage(ctx, rec); err != nil {
		log.Printf("fetch: failed to record catalog entry for %s: %v", rec.UserID, err)
	}
}
