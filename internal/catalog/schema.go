// Package catalog provides the run catalog for tracking pipeline runs and
// per-user stage outcomes.
package catalog

// Schema contains the SQL schema definitions for the run catalog (catalog.db).
// The run catalog is a SQLite database that records every pipeline run and the
// outcome of each stage for each user, so partial runs can be resumed and
// audited.

// CreateRunsTableSQL creates the runs table. One row per pipeline invocation.
const CreateRunsTableSQL = `
CREATE TABLE IF NOT EXISTS runs (
    run_id TEXT PRIMARY KEY,
    session_name TEXT NOT NULL,
    roster_file TEXT NOT NULL,
    anchor_event TEXT,
    mode TEXT NOT NULL,
    started_at INTEGER NOT NULL,
    finished_at INTEGER
)`

// CreateUserStagesTableSQL creates the user_stages table. One row per user per
// stage per run, recording the outcome and where the artifact landed.
const CreateUserStagesTableSQL = `
CREATE TABLE IF NOT EXISTS user_stages (
    run_id TEXT NOT NULL,
    user_id TEXT NOT NULL,
    stage TEXT NOT NULL,
    outcome TEXT NOT NULL,
    event_count INTEGER NOT NULL DEFAULT 0,
    artifact_path TEXT,
    range_start TEXT,
    range_end TEXT,
    error_text TEXT,
    recorded_at INTEGER NOT NULL,
    PRIMARY KEY (run_id, user_id, stage),
    FOREIGN KEY (run_id) REFERENCES runs(run_id)
)`

// CreateUserStagesIndexesSQL creates indexes for the common catalog queries.
var CreateUserStagesIndexesSQL = []string{
	// Index for per-run stage summaries
	`CREATE INDEX IF NOT EXISTS idx_user_stages_run_stage ON user_stages(run_id, stage)`,

	// Index for per-user history across runs
	`CREATE INDEX IF NOT EXISTS idx_user_stages_user ON user_stages(user_id)`,

	// Index for outcome breakdowns
	`CREATE INDEX IF NOT EXISTS idx_user_stages_outcome ON user_stages(run_id, stage, outcome)`,
}

// AnalyzeSQL updates SQLite query planner statistics.
const AnalyzeSQL = `ANALYZE`

// AllSchemaSQL returns all schema statements in execution order.
func AllSchemaSQL() []string {
	stmts := []string{
		CreateRunsTableSQL,
		CreateUserStagesTableSQL,
	}
	stmts = append(stmts, CreateUserStagesIndexesSQL...)
	return stmts
}
