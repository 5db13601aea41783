// Package main implements the ampline-isolate binary. It runs only the
// isolate stage over the active session's clean records.
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

func main() {
	_ = godotenv.Load()

	var (
		configFile  string
		dataDir     string
		anchorEvent string
		autoAnchor  bool
	)

	flag.StringVar(&configFile, "config", "", "Path to configuration file (YAML or JSON)")
	flag.StringVar(&dataDir, "data-dir", "", "Base directory for session data")
	flag.StringVar(&anchorEvent, "anchor", "", "Isolation anchor event type (skips selection)")
	flag.BoolVar(&autoAnchor, "auto", false, "Select the anchor from the default list without prompting")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "ampline-isolate - truncate clean records at an anchor event\n\n")
		fmt.Fprintf(os.Stderr, "Usage: ampline-isolate [options]\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg, err := loadConfig(configFile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	cfg.Mode = config.ModeIsolate
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	if anchorEvent != "" {
		cfg.Isolate.AnchorEvent = anchorEvent
	}
	if autoAnchor {
		cfg.Isolate.Auto = true
	}

	application, err := app.New(cfg)
	if err != nil {
		log.Fatalf("Failed to create application: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if err := application.Run(ctx); err != nil {
		log.Fatalf("Isolate stage failed: %v", err)
	}
}

func loadConfig(configFile string) (*config.Config, error) {
	var cfg *config.Config
	var err error
	if configFile != "" {
		cfg, err = config.LoadFromFile(configFile)
		if err != nil {
			return nil, err
		}
	} else {
		cfg = config.DefaultConfig()
	}
	config.LoadFromEnv(cfg)
	return cfg, nil
}
