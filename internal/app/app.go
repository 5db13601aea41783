// Package app wires configuration, session, catalog, storage, and the stage
// runners into one pipeline run.
package app

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ampline/ampline/internal/analyze"
	"github.com/ampline/ampline/internal/catalog"
	"github.com/ampline/ampline/internal/clean"
	"github.com/ampline/ampline/internal/config"
	apperrors "github.com/ampline/ampline/internal/errors"
	"github.com/ampline/ampline/internal/fetch"
	"github.com/ampline/ampline/internal/isolate"
	"github.com/ampline/ampline/internal/pipeline"
	"github.com/ampline/ampline/internal/session"
	"github.com/ampline/ampline/internal/storage"
	"github.com/ampline/ampline/pkg/types"
)

// censusBracket is how many earliest/latest events the census prints.
const censusBracket = 3

// App runs the configured pipeline stages over one session.
type App struct {
	cfg *config.Config

	// Shared resources
	catalog  catalog.Catalog
	store    storage.ObjectStorage
	archiver *storage.Archiver
	source   fetch.EventSource

	// In and Out carry the interactive anchor prompt; tests inject both.
	In  io.Reader
	Out io.Writer
}

// New creates an App with the given configuration.
func New(cfg *config.Config) (*App, error) {
	cfg.Resolve()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to create directories: %w", err)
	}

	return &App{
		cfg: cfg,
		In:  os.Stdin,
		Out: os.Stdout,
	}, nil
}

// SetEventSource overrides the export client, for tests.
func (a *App) SetEventSource(source fetch.EventSource) {
	a.source = source
}

// Run executes the configured stages sequentially and records the run in the
// catalog.
func (a *App) Run(ctx context.Context) error {
	if err := a.initSharedResources(ctx); err != nil {
		return err
	}
	defer a.cleanup()

	sess, err := a.resolveSession()
	if err != nil {
		return err
	}

	run := catalog.RunRecord{
		RunID:       sess.RunID,
		SessionName: sess.Name,
		RosterFile:  sess.RosterFile,
		AnchorEvent: a.cfg.Isolate.AnchorEvent,
		Mode:        string(a.cfg.Mode),
		StartedAt:   time.Now(),
	}
	if err := a.catalog.BeginRun(ctx, run); err != nil {
		log.Printf("app: failed to register run: %v", err)
	}

	if a.cfg.ShouldRunFetch() {
		if err := a.runFetch(ctx, sess); err != nil {
			return err
		}
	}
	if a.cfg.ShouldRunClean() {
		if err := a.runClean(ctx, sess); err != nil {
			return err
		}
	}
	if a.cfg.ShouldRunIsolate() {
		if err := a.runIsolate(ctx, sess); err != nil {
			return err
		}
	}

	a.printRunReport(ctx, sess)

	if err := a.catalog.FinishRun(ctx, sess.RunID, time.Now()); err != nil {
		log.Printf("app: failed to finish run: %v", err)
	}
	return nil
}

// printRunReport logs per-stage outcome totals from the catalog, plus the
// roster users the fetch stage never recorded and any per-user errors.
func (a *App) printRunReport(ctx context.Context, sess *session.Session) {
	stages := []struct {
		name string
		run  bool
	}{
		{catalog.StageFetch, a.cfg.ShouldRunFetch()},
		{catalog.StageClean, a.cfg.ShouldRunClean()},
		{catalog.StageIsolate, a.cfg.ShouldRunIsolate()},
	}

	for _, st := range stages {
		if !st.run {
			continue
		}
		counts, err := a.catalog.StageCounts(ctx, sess.RunID, st.name)
		if err != nil {
			log.Printf("app: failed to read %s stage counts: %v", st.name, err)
			continue
		}
		log.Printf("Run report: %s: %d users (%d ok, %d no data, %d event not found, %d failed)",
			st.name, counts.Total, counts.OK, counts.NoData, counts.EventNotFound, counts.Failed)

		if counts.Failed > 0 {
			failed, err := a.catalog.FailedStages(ctx, sess.RunID, st.name)
			if err != nil {
				log.Printf("app: failed to read %s stage failures: %v", st.name, err)
				continue
			}
			for _, rec := range failed {
				log.Printf("Run report: %s: user %s failed: %s", st.name, rec.UserID, rec.ErrorText)
			}
		}
	}

	if a.cfg.ShouldRunFetch() {
		roster, err := session.ParseRoster(sess.RosterFile)
		if err != nil {
			log.Printf("app: failed to parse roster for missing-user check: %v", err)
			return
		}
		ids := make([]string, len(roster))
		for i, entry := range roster {
			ids[i] = entry.UserID
		}
		missing, err := a.catalog.MissingUsers(ctx, sess.RunID, catalog.StageFetch, ids)
		if err != nil {
			log.Printf("app: failed to check missing users: %v", err)
			return
		}
		if len(missing) > 0 {
			log.Printf("Run report: %d roster users were never fetched: %v", len(missing), missing)
		}
	}
}

// initSharedResources initializes the catalog, archive storage, and the
// export client.
func (a *App) initSharedResources(ctx context.Context) error {
	cat, err := catalog.NewCatalog(a.cfg.CatalogPath())
	if err != nil {
		return err
	}
	a.catalog = cat
	log.Printf("Run catalog initialized: %s", a.cfg.CatalogPath())

	switch a.cfg.Storage.Type {
	case "local":
		a.store, err = storage.NewLocalStorage(a.cfg.Storage.Path)
	case "s3":
		a.store, err = storage.NewS3Storage(ctx, a.cfg.Storage.S3.Bucket, storage.S3Config{
			Region:   a.cfg.Storage.S3.Region,
			Endpoint: a.cfg.Storage.S3.Endpoint,
		})
	default:
		return fmt.Errorf("unsupported storage type: %s", a.cfg.Storage.Type)
	}
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	a.archiver = storage.NewArchiver(a.store, "archive")
	log.Printf("Storage initialized: type=%s, archive=%v", a.cfg.Storage.Type, a.cfg.Storage.Archive)

	if a.source == nil && a.cfg.ShouldRunFetch() {
		a.source = fetch.NewClient(a.cfg.Export)
	}
	return nil
}

// resolveSession creates a new session when fetch runs, otherwise resumes
// the saved one.
func (a *App) resolveSession() (*session.Session, error) {
	if a.cfg.ShouldRunFetch() {
		sess := session.New(a.cfg.RosterFile, a.cfg.DataDir)
		if err := sess.EnsureDirectories(); err != nil {
			return nil, err
		}
		if err := sess.Save(a.cfg.DataDir); err != nil {
			return nil, err
		}
		log.Printf("Session %s started (run %s)", sess.Name, sess.RunID)
		return sess, nil
	}

	sess, err := session.Load(a.cfg.DataDir)
	if err != nil {
		return nil, err
	}
	log.Printf("Session %s resumed (run %s)", sess.Name, sess.RunID)
	return sess, nil
}

func (a *App) runFetch(ctx context.Context, sess *session.Session) error {
	roster, err := session.ParseRoster(sess.RosterFile)
	if err != nil {
		return err
	}
	log.Printf("Fetch stage: %d roster users", len(roster))

	runner := &pipeline.FetchRunner{
		Source:       a.source,
		Catalog:      a.catalog,
		RunID:        sess.RunID,
		LookbackDays: a.cfg.Export.LookbackDays,
	}
	report, err := runner.Run(ctx, sess, roster)
	if err != nil {
		return err
	}
	log.Printf("Fetch stage done: %d users, %d with events, %d events, %d source failures, %d write failures",
		report.UsersProcessed, report.UsersWithEvents, report.TotalEvents, report.SourceFailures, report.WriteFailures)

	return a.archiveStage(ctx, sess, sess.RawDir)
}

func (a *App) runClean(ctx context.Context, sess *session.Session) error {
	filter, err := clean.LoadFilterFile(a.cfg.Clean.FilterFile)
	if err != nil {
		return err
	}
	if filter.Empty() {
		log.Printf("Clean stage: no event filter, keeping all event types")
	} else {
		log.Printf("Clean stage: filtering to %d event types", filter.Len())
	}

	runner := &pipeline.CleanRunner{
		Filter:  filter,
		Catalog: a.catalog,
		RunID:   sess.RunID,
	}
	report, err := runner.Run(ctx, sess)
	if err != nil {
		return err
	}
	log.Printf("Clean stage done: %d records written, %d no data, %d dropped by filter, %d unreadable, %d write failures",
		report.RecordsWritten, report.UsersNoData, report.UsersDropped, report.UnreadableFiles, report.WriteFailures)

	return a.archiveStage(ctx, sess, sess.CleanDir)
}

func (a *App) runIsolate(ctx context.Context, sess *session.Session) error {
	runner := &pipeline.IsolateRunner{
		Catalog:         a.catalog,
		RunID:           sess.RunID,
		ScanSampleFiles: a.cfg.Isolate.ScanSampleFiles,
		Out:             a.Out,
	}

	anchor, err := a.resolveAnchor(runner, sess)
	if err != nil {
		return err
	}
	log.Printf("Isolate stage: anchor event %q", anchor)

	if _, err := runner.Run(ctx, sess, anchor); err != nil {
		return err
	}

	return a.archiveStage(ctx, sess, sess.IsolateDir)
}

// resolveAnchor picks the isolation anchor: explicit config wins, then the
// auto-default list, then an interactive prompt over the observed types.
func (a *App) resolveAnchor(runner *pipeline.IsolateRunner, sess *session.Session) (string, error) {
	if a.cfg.Isolate.AnchorEvent != "" {
		return a.cfg.Isolate.AnchorEvent, nil
	}

	available, err := runner.AvailableEvents(sess)
	if err != nil {
		return "", err
	}
	if len(available) == 0 {
		return "", apperrors.NewIsolateError(apperrors.CodeNoCleanRecords,
			"no clean records with events to select an anchor from")
	}

	if a.cfg.Isolate.Auto {
		anchor, ok := isolate.SelectDefaultAnchor(available, a.cfg.Isolate.DefaultAnchors)
		if !ok {
			return "", apperrors.NewIsolateError(apperrors.CodeNoCleanRecords,
				"no usable anchor event found")
		}
		return anchor, nil
	}

	return a.promptAnchor(available)
}

// promptAnchor lists the observed event types and reads a selection, either
// a number from the list or a literal event type.
func (a *App) promptAnchor(available []string) (string, error) {
	fmt.Fprintln(a.Out, "Available event types:")
	for i, et := range available {
		fmt.Fprintf(a.Out, "  %d. %s\n", i+1, et)
	}
	fmt.Fprint(a.Out, "Select the isolation event (number or name): ")

	scanner := bufio.NewScanner(a.In)
	if !scanner.Scan() {
		return "", apperrors.NewIsolateError(apperrors.CodeNoCleanRecords,
			"no anchor event selected")
	}
	choice := strings.TrimSpace(scanner.Text())
	if choice == "" {
		return "", apperrors.NewIsolateError(apperrors.CodeNoCleanRecords,
			"no anchor event selected")
	}

	if n, err := strconv.Atoi(choice); err == nil {
		if n < 1 || n > len(available) {
			return "", apperrors.NewIsolateError(apperrors.CodeNoCleanRecords,
				fmt.Sprintf("selection %d out of range", n))
		}
		return available[n-1], nil
	}
	return choice, nil
}

// PrintCensus summarizes one user's raw events from the active session: per-
// type counts plus the first and last events chronologically.
func (a *App) PrintCensus(userID string) error {
	sess, err := session.Load(a.cfg.DataDir)
	if err != nil {
		return err
	}

	matches, err := filepath.Glob(filepath.Join(sess.RawDir, "user_"+userID+"_events_*.json"))
	if err != nil || len(matches) == 0 {
		return apperrors.NewCleanError(apperrors.CodeUnreadableRecord,
			fmt.Sprintf("no raw events found for user %s in session %s", userID, sess.Name), err)
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		return apperrors.NewCleanError(apperrors.CodeUnreadableRecord,
			fmt.Sprintf("failed to read raw events for user %s", userID), err)
	}
	var events []types.RawEvent
	if err := json.Unmarshal(data, &events); err != nil {
		return apperrors.NewCleanError(apperrors.CodeUnreadableRecord,
			fmt.Sprintf("failed to decode raw events for user %s", userID), err)
	}

	census := analyze.CensusOf(events, censusBracket)

	fmt.Fprintf(a.Out, "Event census for user %s (%d events)\n", userID, census.TotalEvents)
	for _, tc := range census.Counts {
		fmt.Fprintf(a.Out, "  %6d  %s\n", tc.Count, tc.EventType)
	}
	if len(census.First) > 0 {
		fmt.Fprintln(a.Out, "First events:")
		for _, stub := range census.First {
			fmt.Fprintf(a.Out, "  %s  %s\n", stub.EventTime, stub.EventType)
		}
		fmt.Fprintln(a.Out, "Last events:")
		for _, stub := range census.Last {
			fmt.Fprintf(a.Out, "  %s  %s\n", stub.EventTime, stub.EventType)
		}
	}
	return nil
}

// archiveStage uploads a stage directory's artifacts when archiving is on.
func (a *App) archiveStage(ctx context.Context, sess *session.Session, dir string) error {
	if !a.cfg.Storage.Archive {
		return nil
	}
	keys, err := a.archiver.ArchiveDir(ctx, sess.Name, dir)
	if err != nil {
		return apperrors.NewStorageError(apperrors.CodeUploadFailed,
			fmt.Sprintf("failed to archive %s", dir), err)
	}
	log.Printf("Archived %d artifacts from %s", len(keys), dir)
	return nil
}

// cleanup releases shared resources.
func (a *App) cleanup() {
	if a.catalog != nil {
		a.catalog.Close()
	}
}
