package catalog

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func newTestCatalog(t *testing.T) *SQLiteCatalog {
	t.Helper()
	c, err := NewCatalog(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("failed to create catalog: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestCatalog_BeginAndGetRun(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()

	started := time.Now().Truncate(time.Second)
	run := RunRecord{
		RunID:       "run-001",
		SessionName: "roster_2025-05-16",
		RosterFile:  "roster.txt",
		AnchorEvent: "trial_started",
		Mode:        "all",
		StartedAt:   started,
	}
	if err := c.BeginRun(ctx, run); err != nil {
		t.Fatalf("failed to begin run: %v", err)
	}

	got, err := c.GetRun(ctx, "run-001")
	if err != nil {
		t.Fatalf("failed to get run: %v", err)
	}
	if got.SessionName != run.SessionName {
		t.Errorf("session_name mismatch: got %s, want %s", got.SessionName, run.SessionName)
	}
	if got.AnchorEvent != run.AnchorEvent {
		t.Errorf("anchor_event mismatch: got %s, want %s", got.AnchorEvent, run.AnchorEvent)
	}
	if !got.StartedAt.Equal(started) {
		t.Errorf("started_at mismatch: got %v, want %v", got.StartedAt, started)
	}
	if got.FinishedAt != nil {
		t.Errorf("finished_at should be nil for an unfinished run")
	}
}

func TestCatalog_FinishRun(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()

	if err := c.BeginRun(ctx, RunRecord{
		RunID: "run-002", SessionName: "s", RosterFile: "r", Mode: "fetch",
		StartedAt: time.Now(),
	}); err != nil {
		t.Fatalf("failed to begin run: %v", err)
	}

	finished := time.Now().Truncate(time.Second)
	if err := c.FinishRun(ctx, "run-002", finished); err != nil {
		t.Fatalf("failed to finish run: %v", err)
	}

	got, err := c.GetRun(ctx, "run-002")
	if err != nil {
		t.Fatalf("failed to get run: %v", err)
	}
	if got.FinishedAt == nil || !got.FinishedAt.Equal(finished) {
		t.Errorf("finished_at mismatch: got %v, want %v", got.FinishedAt, finished)
	}

	if err := c.FinishRun(ctx, "no-such-run", finished); err == nil {
		t.Error("expected error finishing unknown run")
	}
}

func TestCatalog_RecordStageAndCounts(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()

	if err := c.BeginRun(ctx, RunRecord{
		RunID: "run-003", SessionName: "s", RosterFile: "r", Mode: "isolate",
		StartedAt: time.Now(),
	}); err != nil {
		t.Fatalf("failed to begin run: %v", err)
	}

	records := []StageRecord{
		{RunID: "run-003", UserID: "u-1", Stage: StageIsolate, Outcome: OutcomeOK, EventCount: 10},
		{RunID: "run-003", UserID: "u-2", Stage: StageIsolate, Outcome: OutcomeOK, EventCount: 3},
		{RunID: "run-003", UserID: "u-3", Stage: StageIsolate, Outcome: OutcomeEventNotFound},
		{RunID: "run-003", UserID: "u-4", Stage: StageIsolate, Outcome: OutcomeNoData},
	}
	for _, rec := range records {
		if err := c.RecordStage(ctx, rec); err != nil {
			t.Fatalf("failed to record stage for %s: %v", rec.UserID, err)
		}
	}

	counts, err := c.StageCounts(ctx, "run-003", StageIsolate)
	if err != nil {
		t.Fatalf("failed to query stage counts: %v", err)
	}
	if counts.Total != 4 || counts.OK != 2 || counts.EventNotFound != 1 || counts.NoData != 1 || counts.Failed != 0 {
		t.Errorf("unexpected counts: %+v", counts)
	}
}

func TestCatalog_RecordStageReplacesEarlierRow(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()

	first := StageRecord{RunID: "run-004", UserID: "u-1", Stage: StageFetch, Outcome: OutcomeFailed}
	if err := c.RecordStage(ctx, first); err != nil {
		t.Fatalf("failed to record stage: %v", err)
	}

	retry := StageRecord{RunID: "run-004", UserID: "u-1", Stage: StageFetch, Outcome: OutcomeOK, EventCount: 42}
	if err := c.RecordStage(ctx, retry); err != nil {
		t.Fatalf("failed to re-record stage: %v", err)
	}

	counts, err := c.StageCounts(ctx, "run-004", StageFetch)
	if err != nil {
		t.Fatalf("failed to query stage counts: %v", err)
	}
	if counts.Total != 1 || counts.OK != 1 || counts.Failed != 0 {
		t.Errorf("retried user should keep a single record: %+v", counts)
	}
}

func TestCatalog_UsersWithOutcome(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()

	for _, rec := range []StageRecord{
		{RunID: "run-005", UserID: "u-b", Stage: StageClean, Outcome: OutcomeOK},
		{RunID: "run-005", UserID: "u-a", Stage: StageClean, Outcome: OutcomeOK},
		{RunID: "run-005", UserID: "u-c", Stage: StageClean, Outcome: OutcomeNoData},
	} {
		if err := c.RecordStage(ctx, rec); err != nil {
			t.Fatalf("failed to record stage: %v", err)
		}
	}

	users, err := c.UsersWithOutcome(ctx, "run-005", StageClean, OutcomeOK)
	if err != nil {
		t.Fatalf("failed to query users: %v", err)
	}
	if len(users) != 2 || users[0] != "u-a" || users[1] != "u-b" {
		t.Errorf("users = %v, want [u-a u-b]", users)
	}
}

func TestCatalog_FailedStages(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()

	for _, rec := range []StageRecord{
		{RunID: "run-007", UserID: "u-1", Stage: StageFetch, Outcome: OutcomeOK, EventCount: 5,
			RangeStart: "2025-05-15", RangeEnd: "2025-05-17"},
		{RunID: "run-007", UserID: "u-2", Stage: StageFetch, Outcome: OutcomeFailed,
			RangeStart: "2025-05-15", RangeEnd: "2025-05-17", ErrorText: "export request failed: 503"},
	} {
		if err := c.RecordStage(ctx, rec); err != nil {
			t.Fatalf("failed to record stage: %v", err)
		}
	}

	failed, err := c.FailedStages(ctx, "run-007", StageFetch)
	if err != nil {
		t.Fatalf("failed to query failed stages: %v", err)
	}
	if len(failed) != 1 {
		t.Fatalf("failed records = %d, want 1", len(failed))
	}
	if failed[0].UserID != "u-2" {
		t.Errorf("failed user = %s, want u-2", failed[0].UserID)
	}
	if failed[0].ErrorText != "export request failed: 503" {
		t.Errorf("error text = %q", failed[0].ErrorText)
	}
	if failed[0].RangeStart != "2025-05-15" || failed[0].RangeEnd != "2025-05-17" {
		t.Errorf("range = %s to %s", failed[0].RangeStart, failed[0].RangeEnd)
	}
}

func TestCatalog_MissingUsers(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()

	if err := c.RecordStage(ctx, StageRecord{
		RunID: "run-006", UserID: "u-2", Stage: StageFetch, Outcome: OutcomeOK,
	}); err != nil {
		t.Fatalf("failed to record stage: %v", err)
	}

	roster := []string{"u-1", "u-2", "u-3"}
	missing, err := c.MissingUsers(ctx, "run-006", StageFetch, roster)
	if err != nil {
		t.Fatalf("failed to query missing users: %v", err)
	}
	if len(missing) != 2 || missing[0] != "u-1" || missing[1] != "u-3" {
		t.Errorf("missing = %v, want [u-1 u-3]", missing)
	}
}
