package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	apperrors "github.com/ampline/ampline/internal/errors"
)

// Stage names recorded in the catalog.
const (
	StageFetch   = "fetch"
	StageClean   = "clean"
	StageIsolate = "isolate"
)

// Outcome values recorded per user stage.
const (
	OutcomeOK            = "ok"
	OutcomeNoData        = "no_data"
	OutcomeEventNotFound = "event_not_found"
	OutcomeFailed        = "failed"
)

// RunRecord represents one pipeline invocation.
type RunRecord struct {
	RunID       string
	SessionName string
	RosterFile  string
	AnchorEvent string
	Mode        string
	StartedAt   time.Time
	FinishedAt  *time.Time
}

// StageRecord represents the outcome of one stage for one user.
type StageRecord struct {
	RunID        string
	UserID       string
	Stage        string
	Outcome      string
	EventCount   int64
	ArtifactPath string
	RangeStart   string
	RangeEnd     string
	ErrorText    string
	RecordedAt   time.Time
}

// StageCounts aggregates outcomes for one stage of a run.
type StageCounts struct {
	Total         int64
	OK            int64
	NoData        int64
	EventNotFound int64
	Failed        int64
}

// Catalog records pipeline runs and per-user stage outcomes.
type Catalog interface {
	// BeginRun registers a new run.
	BeginRun(ctx context.Context, run RunRecord) error

	// FinishRun stamps a run's completion time.
	FinishRun(ctx context.Context, runID string, finishedAt time.Time) error

	// RecordStage records (or replaces) a user's outcome for a stage.
	RecordStage(ctx context.Context, rec StageRecord) error

	// StageCounts returns the outcome breakdown for one stage of a run.
	StageCounts(ctx context.Context, runID, stage string) (StageCounts, error)

	// UsersWithOutcome returns the users that reached the given outcome for a
	// stage, sorted by user ID.
	UsersWithOutcome(ctx context.Context, runID, stage, outcome string) ([]string, error)

	// MissingUsers returns the subset of roster users with no record at all
	// for the given stage of a run, preserving roster order.
	MissingUsers(ctx context.Context, runID, stage string, roster []string) ([]string, error)

	// FailedStages returns the failed records for a stage, with their error
	// text, sorted by user ID.
	FailedStages(ctx context.Context, runID, stage string) ([]StageRecord, error)

	// GetRun retrieves a run by ID.
	GetRun(ctx context.Context, runID string) (*RunRecord, error)

	// Close closes the catalog database connections.
	Close() error
}

// SQLiteCatalog implements Catalog using SQLite.
type SQLiteCatalog struct {
	db     *sql.DB // Write connection (single writer)
	readDB *sql.DB // Read connection pool (concurrent readers)
	dbPath string
	mu     sync.Mutex // Write-only lock

	insertStageStmt *sql.Stmt
}

// NewCatalog opens (or creates) the run catalog at dbPath.
func NewCatalog(dbPath string) (*SQLiteCatalog, error) {
	// Write connection: single writer with WAL mode
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, apperrors.NewCatalogError(apperrors.CodeCatalogOpenFailed,
			"failed to open catalog database", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	// Read connection pool: concurrent readers
	readDB, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		db.Close()
		return nil, apperrors.NewCatalogError(apperrors.CodeCatalogOpenFailed,
			"failed to open catalog read connection", err)
	}
	readDB.SetMaxOpenConns(4)
	readDB.SetMaxIdleConns(4)
	readDB.SetConnMaxLifetime(5 * time.Minute)

	c := &SQLiteCatalog{
		db:     db,
		readDB: readDB,
		dbPath: dbPath,
	}

	if err := c.initSchema(); err != nil {
		readDB.Close()
		db.Close()
		return nil, apperrors.NewCatalogError(apperrors.CodeCatalogOpenFailed,
			"failed to initialize catalog schema", err)
	}

	insertStmt, err := db.Prepare(`
		INSERT OR REPLACE INTO user_stages (
			run_id, user_id, stage, outcome, event_count, artifact_path,
			range_start, range_end, error_text, recorded_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		readDB.Close()
		db.Close()
		return nil, apperrors.NewCatalogError(apperrors.CodeCatalogOpenFailed,
			"failed to prepare stage insert statement", err)
	}
	c.insertStageStmt = insertStmt

	return c, nil
}

func (c *SQLiteCatalog) initSchema() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, stmt := range AllSchemaSQL() {
		if _, err := c.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}
	return nil
}

// BeginRun registers a new run.
func (c *SQLiteCatalog) BeginRun(ctx context.Context, run RunRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, err := c.db.ExecContext(ctx,
		`INSERT INTO runs (run_id, session_name, roster_file, anchor_event, mode, started_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		run.RunID, run.SessionName, run.RosterFile, run.AnchorEvent, run.Mode, run.StartedAt.Unix(),
	)
	if err != nil {
		return apperrors.NewCatalogError(apperrors.CodeCatalogWriteFailed,
			fmt.Sprintf("failed to register run %s", run.RunID), err)
	}
	return nil
}

// FinishRun stamps a run's completion time.
func (c *SQLiteCatalog) FinishRun(ctx context.Context, runID string, finishedAt time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	result, err := c.db.ExecContext(ctx,
		"UPDATE runs SET finished_at = ? WHERE run_id = ?",
		finishedAt.Unix(), runID,
	)
	if err != nil {
		return apperrors.NewCatalogError(apperrors.CodeCatalogWriteFailed,
			fmt.Sprintf("failed to finish run %s", runID), err)
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return apperrors.NewCatalogError(apperrors.CodeCatalogWriteFailed,
			fmt.Sprintf("run %s not found", runID), nil)
	}
	return nil
}

// RecordStage records (or replaces) a user's outcome for a stage. Re-recording
// the same (run, user, stage) replaces the earlier row, so retried users keep
// a single record.
func (c *SQLiteCatalog) RecordStage(ctx context.Context, rec StageRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	recordedAt := rec.RecordedAt
	if recordedAt.IsZero() {
		recordedAt = time.Now()
	}

	_, err := c.insertStageStmt.ExecContext(ctx,
		rec.RunID, rec.UserID, rec.Stage, rec.Outcome,
		rec.EventCount, rec.ArtifactPath,
		rec.RangeStart, rec.RangeEnd, rec.ErrorText, recordedAt.Unix(),
	)
	if err != nil {
		return apperrors.NewCatalogError(apperrors.CodeCatalogWriteFailed,
			fmt.Sprintf("failed to record %s stage for user %s", rec.Stage, rec.UserID), err)
	}
	return nil
}

// StageCounts returns the outcome breakdown for one stage of a run.
func (c *SQLiteCatalog) StageCounts(ctx context.Context, runID, stage string) (StageCounts, error) {
	rows, err := c.readDB.QueryContext(ctx,
		"SELECT outcome, COUNT(*) FROM user_stages WHERE run_id = ? AND stage = ? GROUP BY outcome",
		runID, stage,
	)
	if err != nil {
		return StageCounts{}, fmt.Errorf("catalog: failed to query stage counts: %w", err)
	}
	defer rows.Close()

	var counts StageCounts
	for rows.Next() {
		var outcome string
		var n int64
		if err := rows.Scan(&outcome, &n); err != nil {
			return StageCounts{}, fmt.Errorf("catalog: failed to scan stage count: %w", err)
		}
		counts.Total += n
		switch outcome {
		case OutcomeOK:
			counts.OK = n
		case OutcomeNoData:
			counts.NoData = n
		case OutcomeEventNotFound:
			counts.EventNotFound = n
		case OutcomeFailed:
			counts.Failed = n
		}
	}
	if err := rows.Err(); err != nil {
		return StageCounts{}, fmt.Errorf("catalog: error iterating stage counts: %w", err)
	}
	return counts, nil
}

// UsersWithOutcome returns the users that reached the given outcome for a
// stage, sorted by user ID.
func (c *SQLiteCatalog) UsersWithOutcome(ctx context.Context, runID, stage, outcome string) ([]string, error) {
	rows, err := c.readDB.QueryContext(ctx,
		`SELECT user_id FROM user_stages
		 WHERE run_id = ? AND stage = ? AND outcome = ?
		 ORDER BY user_id`,
		runID, stage, outcome,
	)
	if err != nil {
		return nil, fmt.Errorf("catalog: failed to query users by outcome: %w", err)
	}
	defer rows.Close()

	var users []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("catalog: failed to scan user ID: %w", err)
		}
		users = append(users, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("catalog: error iterating users: %w", err)
	}
	return users, nil
}

// MissingUsers returns the subset of roster users with no record at all for
// the given stage of a run, preserving roster order.
func (c *SQLiteCatalog) MissingUsers(ctx context.Context, runID, stage string, roster []string) ([]string, error) {
	rows, err := c.readDB.QueryContext(ctx,
		"SELECT user_id FROM user_stages WHERE run_id = ? AND stage = ?",
		runID, stage,
	)
	if err != nil {
		return nil, fmt.Errorf("catalog: failed to query recorded users: %w", err)
	}
	defer rows.Close()

	recorded := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("catalog: failed to scan user ID: %w", err)
		}
		recorded[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("catalog: error iterating recorded users: %w", err)
	}

	var missing []string
	for _, id := range roster {
		if _, ok := recorded[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

// FailedStages returns the failed records for a stage, with their error text,
// sorted by user ID.
func (c *SQLiteCatalog) FailedStages(ctx context.Context, runID, stage string) ([]StageRecord, error) {
	rows, err := c.readDB.QueryContext(ctx,
		`SELECT user_id, event_count, artifact_path, range_start, range_end, error_text, recorded_at
		 FROM user_stages
		 WHERE run_id = ? AND stage = ? AND outcome = ?
		 ORDER BY user_id`,
		runID, stage, OutcomeFailed,
	)
	if err != nil {
		return nil, fmt.Errorf("catalog: failed to query failed stages: %w", err)
	}
	defer rows.Close()

	var records []StageRecord
	for rows.Next() {
		rec := StageRecord{RunID: runID, Stage: stage, Outcome: OutcomeFailed}
		var artifact, rangeStart, rangeEnd, errText sql.NullString
		var recordedAtUnix int64
		if err := rows.Scan(&rec.UserID, &rec.EventCount, &artifact,
			&rangeStart, &rangeEnd, &errText, &recordedAtUnix); err != nil {
			return nil, fmt.Errorf("catalog: failed to scan failed stage: %w", err)
		}
		rec.ArtifactPath = artifact.String
		rec.RangeStart = rangeStart.String
		rec.RangeEnd = rangeEnd.String
		rec.ErrorText = errText.String
		rec.RecordedAt = time.Unix(recordedAtUnix, 0)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("catalog: error iterating failed stages: %w", err)
	}
	return records, nil
}

// GetRun retrieves a run by ID.
func (c *SQLiteCatalog) GetRun(ctx context.Context, runID string) (*RunRecord, error) {
	row := c.readDB.QueryRowContext(ctx,
		`SELECT run_id, session_name, roster_file, anchor_event, mode, started_at, finished_at
		 FROM runs WHERE run_id = ?`,
		runID,
	)

	var run RunRecord
	var anchor sql.NullString
	var startedAtUnix int64
	var finishedAtUnix sql.NullInt64
	err := row.Scan(&run.RunID, &run.SessionName, &run.RosterFile, &anchor,
		&run.Mode, &startedAtUnix, &finishedAtUnix)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("catalog: run %s not found", runID)
		}
		return nil, fmt.Errorf("catalog: failed to scan run: %w", err)
	}

	run.AnchorEvent = anchor.String
	run.StartedAt = time.Unix(startedAtUnix, 0)
	if finishedAtUnix.Valid {
		t := time.Unix(finishedAtUnix.Int64, 0)
		run.FinishedAt = &t
	}
	return &run, nil
}

// RunAnalyze runs ANALYZE to update SQLite query planner statistics.
func (c *SQLiteCatalog) RunAnalyze(ctx context.Context) error {
	_, err := c.db.ExecContext(ctx, AnalyzeSQL)
	if err != nil {
		return fmt.Errorf("catalog: failed to run ANALYZE: %w", err)
	}
	return nil
}

// Close closes the catalog database connections.
func (c *SQLiteCatalog) Close() error {
	if c.insertStageStmt != nil {
		c.insertStageStmt.Close()
	}
	if err := c.readDB.Close(); err != nil {
		c.db.Close()
		return err
	}
	return c.db.Close()
}
