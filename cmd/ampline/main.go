// Package main implements the unified ampline binary. It can run the whole
// fetch → clean → isolate pipeline or individual stages via the --mode flag.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/ampline/ampline/internal/app"
	"github.com/ampline/ampline/internal/config"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	// Load .env before anything reads the environment. Missing files are fine.
	_ = godotenv.Load()

	var (
		configFile  string
		dataDir     string
		rosterFile  string
		mode        string
		anchorEvent string
		autoAnchor  bool
		filterFile  string
		archive     bool
		censusUser  string
		showVersion bool
		showHelp    bool
	)

	flag.StringVar(&configFile, "config", "", "Path to configuration file (YAML or JSON)")
	flag.StringVar(&dataDir, "data-dir", "", "Base directory for session data")
	flag.StringVar(&rosterFile, "roster", "", "User roster file (UserID|FirstSeen|LastSeen per line)")
	flag.StringVar(&mode, "mode", "", "Pipeline mode: all, fetch, clean, isolate")
	flag.StringVar(&anchorEvent, "anchor", "", "Isolation anchor event type (skips selection)")
	flag.BoolVar(&autoAnchor, "auto", false, "Select the anchor from the default list without prompting")
	flag.StringVar(&filterFile, "filter", "", "Event-type allow-list file for the clean stage")
	flag.BoolVar(&archive, "archive", false, "Archive session artifacts to object storage after each stage")
	flag.StringVar(&censusUser, "census", "", "Print an event-type census for the given user and exit")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.BoolVar(&showHelp, "help", false, "Show help message")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Ampline - user event export, clean, and isolation pipeline\n\n")
		fmt.Fprintf(os.Stderr, "Usage: ampline [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  ampline --roster users.txt --data-dir /data/ampline\n")
		fmt.Fprintf(os.Stderr, "  ampline --mode isolate --anchor trial_started\n")
		fmt.Fprintf(os.Stderr, "  ampline --config /etc/ampline/config.yaml\n")
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  AMPLINE_MODE            Pipeline mode (all, fetch, clean, isolate)\n")
		fmt.Fprintf(os.Stderr, "  AMPLINE_DATA_DIR        Base directory for session data\n")
		fmt.Fprintf(os.Stderr, "  AMPLINE_ROSTER_FILE     User roster file\n")
		fmt.Fprintf(os.Stderr, "  AMPLINE_API_KEY         Export API key\n")
		fmt.Fprintf(os.Stderr, "  AMPLINE_SECRET_KEY      Export API secret key\n")
		fmt.Fprintf(os.Stderr, "  AMPLINE_ANCHOR_EVENT    Isolation anchor event type\n")
		fmt.Fprintf(os.Stderr, "  AMPLINE_STORAGE_TYPE    Archive storage type (local, s3)\n")
	}

	flag.Parse()

	if showHelp {
		flag.Usage()
		os.Exit(0)
	}

	if showVersion {
		fmt.Printf("ampline version %s (commit: %s)\n", version, commit)
		os.Exit(0)
	}

	cfg, err := loadConfig(configFile, dataDir, rosterFile, mode, anchorEvent, autoAnchor, filterFile, archive)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if censusUser != "" {
		application, err := app.New(cfg)
		if err != nil {
			log.Fatalf("Failed to create application: %v", err)
		}
		if err := application.PrintCensus(censusUser); err != nil {
			log.Fatalf("Census failed: %v", err)
		}
		return
	}

	printBanner(cfg)

	application, err := app.New(cfg)
	if err != nil {
		log.Fatalf("Failed to create application: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if err := application.Run(ctx); err != nil {
		log.Fatalf("Pipeline failed: %v", err)
	}
}

// loadConfig loads configuration from file, environment, and command line
// flags, in increasing priority.
func loadConfig(configFile, dataDir, rosterFile, mode, anchorEvent string, autoAnchor bool, filterFile string, archive bool) (*config.Config, error) {
	var cfg *config.Config
	var err error

	if configFile != "" {
		cfg, err = config.LoadFromFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	} else {
		cfg = config.DefaultConfig()
	}

	config.LoadFromEnv(cfg)

	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	if rosterFile != "" {
		cfg.RosterFile = rosterFile
	}
	if mode != "" {
		cfg.Mode = config.Mode(mode)
	}
	if anchorEvent != "" {
		cfg.Isolate.AnchorEvent = anchorEvent
	}
	if autoAnchor {
		cfg.Isolate.Auto = true
	}
	if filterFile != "" {
		cfg.Clean.FilterFile = filterFile
	}
	if archive {
		cfg.Storage.Archive = true
	}

	return cfg, nil
}

// printBanner prints the startup banner with configuration summary.
func printBanner(cfg *config.Config) {
	log.Printf("╔═══════════════════════════════════════════════════════════╗")
	log.Printf("║                      AMPLINE                              ║")
	log.Printf("║     User event export, clean, and isolation pipeline      ║")
	log.Printf("╚═══════════════════════════════════════════════════════════╝")
	log.Printf("")
	log.Printf("Configuration:")
	log.Printf("  Mode:     %s", cfg.Mode)
	log.Printf("  Data Dir: %s", cfg.DataDir)
	log.Printf("  Storage:  %s", cfg.Storage.Type)
	log.Printf("")

	if cfg.ShouldRunFetch() {
		log.Printf("Fetch Stage:")
		log.Printf("  Roster:   %s", cfg.RosterFile)
		log.Printf("  Export:   %s", cfg.Export.BaseURL)
	}

	if cfg.ShouldRunClean() {
		log.Printf("Clean Stage:")
		if cfg.Clean.FilterFile != "" {
			log.Printf("  Filter:   %s", cfg.Clean.FilterFile)
		} else {
			log.Printf("  Filter:   (none, all event types kept)")
		}
	}

	if cfg.ShouldRunIsolate() {
		log.Printf("Isolate Stage:")
		if cfg.Isolate.AnchorEvent != "" {
			log.Printf("  Anchor:   %s", cfg.Isolate.AnchorEvent)
		} else if cfg.Isolate.Auto {
			log.Printf("  Anchor:   auto (%v)", cfg.Isolate.DefaultAnchors)
		} else {
			log.Printf("  Anchor:   interactive selection")
		}
	}

	log.Printf("")
}
