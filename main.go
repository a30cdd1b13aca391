package main

import (
	stdlog "log"

	"github.com/joho/godotenv"

	"fakturnik/cmd"
	"fakturnik/internal/config"
	"fakturnik/internal/logger"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		// A missing .env is normal; real configuration problems
		// surface when config.Load runs.
		stdlog.Printf("Note: no .env file loaded: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		stdlog.Printf("Warning: could not load configuration: %v", err)
		if err := logger.Setup(logger.DefaultConfig()); err != nil {
			stdlog.Fatalf("Failed to initialize logger: %v", err)
		}
	} else {
		if err := logger.Setup(cfg.GetLoggerConfig()); err != nil {
			stdlog.Fatalf("Failed to initialize logger: %v", err)
		}
	}

	cmd.Execute()
}
