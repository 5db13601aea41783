// Package main implements the ampline-clean binary. It runs only the clean
// stage over the active session's raw artifacts.
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
		configFile string
		dataDir    string
		filterFile string
	)

	flag.StringVar(&configFile, "config", "", "Path to configuration file (YAML or JSON)")
	flag.StringVar(&dataDir, "data-dir", "", "Base directory for session data")
	flag.StringVar(&filterFile, "filter", "", "Event-type allow-list file")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "ampline-clean - build clean per-user records from raw events\n\n")
		fmt.Fprintf(os.Stderr, "Usage: ampline-clean [options]\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg, err := loadConfig(configFile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	cfg.Mode = config.ModeClean
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	if filterFile != "" {
		cfg.Clean.FilterFile = filterFile
	}

	application, err := app.New(cfg)
	if err != nil {
		log.Fatalf("Failed to create application: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if err := application.Run(ctx); err != nil {
		log.Fatalf("Clean stage failed: %v", err)
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
