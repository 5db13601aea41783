// Package session manages the per-run session descriptor: the selected user
// roster plus the raw, clean, and isolate stage directories. The descriptor
// is an explicit value handed to every stage; there is no process-wide
// session state.
package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/ampline/ampline/internal/errors"
)

// contextFileName is the on-disk handoff file between stage binaries.
const contextFileName = ".session.json"

// Session describes one pipeline run: which roster drives it and where each
// stage reads and writes its artifacts.
type Session struct {
	// RunID uniquely identifies this run.
	RunID string `json:"run_id"`

	// Name is the human-readable session name, derived from the roster
	// file and the start date.
	Name string `json:"name"`

	// RosterFile is the user roster file the run was started with.
	RosterFile string `json:"roster_file"`

	// RawDir holds per-user raw export files.
	RawDir string `json:"raw_dir"`

	// CleanDir holds per-user clean records.
	CleanDir string `json:"clean_dir"`

	// IsolateDir holds per-user isolated records and not-found notices.
	IsolateDir string `json:"isolate_dir"`

	// CreatedAt is when the session was created.
	CreatedAt time.Time `json:"created_at"`
}

// New creates a session for the given roster under dataDir. Stage
// directories are laid out under dataDir/sessions/<name>/.
func New(rosterFile, dataDir string) *Session {
	base := strings.TrimSuffix(filepath.Base(rosterFile), filepath.Ext(rosterFile))
	if base == "" || base == "." {
		base = "default"
	}
	createdAt := time.Now()
	name := base + "_" + createdAt.Format("2006-01-02")
	root := filepath.Join(dataDir, "sessions", name)

	return &Session{
		RunID:      uuid.New().String(),
		Name:       name,
		RosterFile: rosterFile,
		RawDir:     filepath.Join(root, "raw"),
		CleanDir:   filepath.Join(root, "clean"),
		IsolateDir: filepath.Join(root, "isolate"),
		CreatedAt:  createdAt,
	}
}

// EnsureDirectories creates the three stage directories.
func (s *Session) EnsureDirectories() error {
	for _, dir := range []string{s.RawDir, s.CleanDir, s.IsolateDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create session directory %s: %w", dir, err)
		}
	}
	return nil
}

// ContextPath returns the session handoff file path under dataDir.
func ContextPath(dataDir string) string {
	return filepath.Join(dataDir, contextFileName)
}

// Save persists the session descriptor so per-stage binaries can resume it.
func (s *Session) Save(dataDir string) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return apperrors.NewInternalError("failed to encode session context", err)
	}
	if err := os.WriteFile(ContextPath(dataDir), data, 0644); err != nil {
		return fmt.Errorf("failed to write session context: %w", err)
	}
	return nil
}

// Load reads a previously saved session descriptor from dataDir.
func Load(dataDir string) (*Session, error) {
	data, err := os.ReadFile(ContextPath(dataDir))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.NewSessionError(apperrors.CodeNoSession,
				"no active session found; run the fetch stage first")
		}
		return nil, fmt.Errorf("failed to read session context: %w", err)
	}

	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, apperrors.NewSessionError(apperrors.CodeNoSession,
			"session context is corrupt; run the fetch stage again")
	}
	return &s, nil
}

// Clear removes the session handoff file. Missing files are not an error.
func Clear(dataDir string) error {
	if err := os.Remove(ContextPath(dataDir)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
