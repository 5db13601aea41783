// Package config provides unified configuration for all Ampline stages.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Mode represents the pipeline stage(s) to run.
type Mode string

const (
	ModeAll     Mode = "all"
	ModeFetch   Mode = "fetch"
	ModeClean   Mode = "clean"
	ModeIsolate Mode = "isolate"
)

// Config holds the unified configuration for all Ampline stages.
type Config struct {
	// Mode specifies which stages to run: all, fetch, clean, isolate
	Mode Mode `json:"mode" yaml:"mode"`

	// DataDir is the base directory for all session data
	DataDir string `json:"data_dir" yaml:"data_dir"`

	// RosterFile is the user roster file driving the run
	RosterFile string `json:"roster_file" yaml:"roster_file"`

	// Export API configuration
	Export ExportConfig `json:"export" yaml:"export"`

	// Clean stage configuration
	Clean CleanConfig `json:"clean" yaml:"clean"`

	// Isolate stage configuration
	Isolate IsolateConfig `json:"isolate" yaml:"isolate"`

	// Storage configuration for session archiving
	Storage StorageConfig `json:"storage" yaml:"storage"`
}

// ExportConfig holds export API client configuration.
type ExportConfig struct {
	// BaseURL is the export API base URL
	BaseURL string `json:"base_url" yaml:"base_url"`

	// APIKey is the export API key
	APIKey string `json:"api_key" yaml:"api_key"`

	// SecretKey is the export API secret key
	SecretKey string `json:"secret_key" yaml:"secret_key"`

	// LookbackDays is the fallback range when the roster carries no dates
	LookbackDays int `json:"lookback_days" yaml:"lookback_days"`

	// RequestTimeout is the per-request timeout
	RequestTimeout time.Duration `json:"request_timeout" yaml:"request_timeout"`

	// MaxRetries is the number of retries per hourly request
	MaxRetries int `json:"max_retries" yaml:"max_retries"`
}

// CleanConfig holds clean stage configuration.
type CleanConfig struct {
	// FilterFile is the event-type allow-list file; empty or missing
	// means keep all event types
	FilterFile string `json:"filter_file" yaml:"filter_file"`
}

// IsolateConfig holds isolate stage configuration.
type IsolateConfig struct {
	// AnchorEvent is the event type to isolate from; empty means select
	// interactively or via the default list
	AnchorEvent string `json:"anchor_event" yaml:"anchor_event"`

	// Auto enables non-interactive anchor selection from DefaultAnchors
	Auto bool `json:"auto" yaml:"auto"`

	// DefaultAnchors are tried in order when Auto is set
	DefaultAnchors []string `json:"default_anchors" yaml:"default_anchors"`

	// ScanSampleFiles is the number of clean records sampled when listing
	// available event types; 0 scans every record
	ScanSampleFiles int `json:"scan_sample_files" yaml:"scan_sample_files"`
}

// StorageConfig holds session archive storage configuration.
type StorageConfig struct {
	// Type is the storage type: local, s3
	Type string `json:"type" yaml:"type"`

	// Path is the local storage path (for local type)
	Path string `json:"path" yaml:"path"`

	// Archive enables uploading session artifacts after each stage
	Archive bool `json:"archive" yaml:"archive"`

	// S3 configuration (for s3 type)
	S3 S3Config `json:"s3" yaml:"s3"`
}

// S3Config holds S3 storage configuration.
type S3Config struct {
	// Bucket is the S3 bucket name
	Bucket string `json:"bucket" yaml:"bucket"`

	// Region is the AWS region
	Region string `json:"region" yaml:"region"`

	// Endpoint is the S3 endpoint (for S3-compatible storage)
	Endpoint string `json:"endpoint" yaml:"endpoint"`
}

// DefaultConfig returns the default configuration for local runs.
func DefaultConfig() *Config {
	return &Config{
		Mode:       ModeAll,
		DataDir:    "./data/ampline",
		RosterFile: "",
		Export: ExportConfig{
			BaseURL:        "https://amplitude.com",
			LookbackDays:   3,
			RequestTimeout: 60 * time.Second,
			MaxRetries:     3,
		},
		Clean: CleanConfig{
			FilterFile: "",
		},
		Isolate: IsolateConfig{
			Auto:            false,
			DefaultAnchors:  []string{"trial_started", "app_start", "session_start", "first_open"},
			ScanSampleFiles: 5,
		},
		Storage: StorageConfig{
			Type:    "local",
			Path:    "",
			Archive: false,
		},
	}
}

// Resolve resolves relative paths and sets defaults based on DataDir.
func (c *Config) Resolve() {
	if c.DataDir == "" {
		c.DataDir = "./data/ampline"
	}

	if c.Storage.Path == "" {
		c.Storage.Path = filepath.Join(c.DataDir, "archive")
	}

	if c.Clean.FilterFile == "" {
		c.Clean.FilterFile = filepath.Join(c.DataDir, "config", "events_filter.txt")
	}
}

// CatalogPath returns the path to the run catalog database.
func (c *Config) CatalogPath() string {
	return filepath.Join(c.DataDir, "catalog.db")
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	switch c.Mode {
	case ModeAll, ModeFetch, ModeClean, ModeIsolate:
		// Valid modes
	default:
		return fmt.Errorf("invalid mode: %s (must be all, fetch, clean, or isolate)", c.Mode)
	}

	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}

	if c.Storage.Type != "local" && c.Storage.Type != "s3" {
		return fmt.Errorf("invalid storage type: %s (must be local or s3)", c.Storage.Type)
	}

	if c.Storage.Type == "s3" && c.Storage.S3.Bucket == "" {
		return fmt.Errorf("s3.bucket is required when storage type is s3")
	}

	if c.ShouldRunFetch() {
		if c.Export.APIKey == "" || c.Export.SecretKey == "" {
			return fmt.Errorf("export.api_key and export.secret_key are required for fetch mode")
		}
		if c.Export.LookbackDays < 1 {
			return fmt.Errorf("export.lookback_days must be at least 1, got %d", c.Export.LookbackDays)
		}
	}

	if c.Isolate.ScanSampleFiles < 0 {
		return fmt.Errorf("isolate.scan_sample_files must be 0 (scan all) or positive, got %d", c.Isolate.ScanSampleFiles)
	}

	return nil
}

// ShouldRunFetch returns true if the fetch stage should run.
func (c *Config) ShouldRunFetch() bool {
	return c.Mode == ModeAll || c.Mode == ModeFetch
}

// ShouldRunClean returns true if the clean stage should run.
func (c *Config) ShouldRunClean() bool {
	return c.Mode == ModeAll || c.Mode == ModeClean
}

// ShouldRunIsolate returns true if the isolate stage should run.
func (c *Config) ShouldRunIsolate() bool {
	return c.Mode == ModeAll || c.Mode == ModeIsolate
}

// LoadFromFile loads configuration from a YAML or JSON file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file format: %s", ext)
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables.
// Environment variables use the AMPLINE_ prefix.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("AMPLINE_MODE"); v != "" {
		cfg.Mode = Mode(v)
	}
	if v := os.Getenv("AMPLINE_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("AMPLINE_ROSTER_FILE"); v != "" {
		cfg.RosterFile = v
	}

	// Export configuration
	if v := os.Getenv("AMPLINE_EXPORT_BASE_URL"); v != "" {
		cfg.Export.BaseURL = v
	}
	if v := os.Getenv("AMPLINE_API_KEY"); v != "" {
		cfg.Export.APIKey = v
	}
	if v := os.Getenv("AMPLINE_SECRET_KEY"); v != "" {
		cfg.Export.SecretKey = v
	}
	if v := os.Getenv("AMPLINE_EXPORT_LOOKBACK_DAYS"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Export.LookbackDays)
	}
	if v := os.Getenv("AMPLINE_EXPORT_REQUEST_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Export.RequestTimeout = d
		}
	}
	if v := os.Getenv("AMPLINE_EXPORT_MAX_RETRIES"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Export.MaxRetries)
	}

	// Clean configuration
	if v := os.Getenv("AMPLINE_FILTER_FILE"); v != "" {
		cfg.Clean.FilterFile = v
	}

	// Isolate configuration
	if v := os.Getenv("AMPLINE_ANCHOR_EVENT"); v != "" {
		cfg.Isolate.AnchorEvent = v
	}
	if v := os.Getenv("AMPLINE_ISOLATE_AUTO"); v != "" {
		cfg.Isolate.Auto = v == "true" || v == "1"
	}

	// Storage configuration
	if v := os.Getenv("AMPLINE_STORAGE_TYPE"); v != "" {
		cfg.Storage.Type = v
	}
	if v := os.Getenv("AMPLINE_STORAGE_PATH"); v != "" {
		cfg.Storage.Path = v
	}
	if v := os.Getenv("AMPLINE_STORAGE_ARCHIVE"); v != "" {
		cfg.Storage.Archive = v == "true" || v == "1"
	}
	if v := os.Getenv("AMPLINE_S3_BUCKET"); v != "" {
		cfg.Storage.S3.Bucket = v
	}
	if v := os.Getenv("AMPLINE_S3_REGION"); v != "" {
		cfg.Storage.S3.Region = v
	}
	if v := os.Getenv("AMPLINE_S3_ENDPOINT"); v != "" {
		cfg.Storage.S3.Endpoint = v
	}
}

// EnsureDirectories creates all required directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.DataDir,
		c.Storage.Path,
	}

	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}
