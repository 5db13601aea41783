// Package main implements the ampline-fetch binary. It runs only the fetch
// stage: roster in, per-user raw event artifacts out, session saved for the
// downstream stages.
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
		rosterFile string
		lookback   int
	)

	flag.StringVar(&configFile, "config", "", "Path to configuration file (YAML or JSON)")
	flag.StringVar(&dataDir, "data-dir", "", "Base directory for session data")
	flag.StringVar(&rosterFile, "roster", "", "User roster file (UserID|FirstSeen|LastSeen per line)")
	flag.IntVar(&lookback, "lookback", 0, "Fallback range in days when the roster carries no dates")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "ampline-fetch - download per-user raw events from the export API\n\n")
		fmt.Fprintf(os.Stderr, "Usage: ampline-fetch [options]\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg, err := loadConfig(configFile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	cfg.Mode = config.ModeFetch
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	if rosterFile != "" {
		cfg.RosterFile = rosterFile
	}
	if lookback > 0 {
		cfg.Export.LookbackDays = lookback
	}

	application, err := app.New(cfg)
	if err != nil {
		log.Fatalf("Failed to create application: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if err := application.Run(ctx); err != nil {
		log.Fatalf("Fetch stage failed: %v", err)
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
