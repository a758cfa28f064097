package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/existflow/irontrack/internal/logger"
	"github.com/existflow/irontrack/server"
)

func main() {
	cfg, err := server.ConfigFromEnv()
	if err != nil {
		fatal("Invalid configuration", err)
	}

	logCfg := logger.DefaultConfig()
	logCfg.Console = true
	logCfg.Level = logger.ParseLevel(os.Getenv("LOG_LEVEL"))
	logCfg.FilePath = os.Getenv("LOG_FILE")
	if err := logger.Init(logCfg); err != nil {
		fatal("Failed to initialize logger", err)
	}
	defer logger.Close()

	srv, err := server.New(cfg)
	if err != nil {
		fatal("Failed to create server", err)
	}
	defer func() {
		if err := srv.Close(); err != nil {
			logger.Error("Error closing server", logger.Err(err))
		}
	}()

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		<-sig

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Shutdown failed", logger.Err(err))
		}
	}()

	logger.Info("IronTrack server starting",
		logger.F("port", cfg.Port),
		logger.F("maxOpen", cfg.MaxOpenDuration.String()),
		logger.F("sweepInterval", cfg.SweepInterval.String()))
	if err := srv.Start(":" + cfg.Port); err != nil {
		logger.Error("Server failed", logger.Err(err))
		os.Exit(1)
	}
}

// fatal logs through the global logger, or straight to stderr before it exists
func fatal(msg string, err error) {
	log := logger.Default()
	if log == nil {
		log = logger.NewWriter(os.Stderr, logger.ERROR)
	}
	log.Error(msg, logger.Err(err))
	os.Exit(1)
}
