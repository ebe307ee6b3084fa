// Package main is the entry point for the snapfeed API server.
//
// main stays small: load configuration, build the logger, make sure the data
// directory exists, then hand everything to internal/server.
package main

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/sakif/snapfeed/internal/config"
	"github.com/sakif/snapfeed/internal/server"
)

func main() {
	// Bootstrap logger for configuration errors; replaced once LOG_LEVEL is known.
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	slog.SetDefault(logger)

	if !cfg.GoogleEnabled() {
		logger.Warn("GOOGLE_CLIENT_ID not set, Google sign-in is disabled")
	}
	if cfg.HuggingFaceAPIKey == "" {
		logger.Warn("HUGGINGFACE_API_KEY not set, captions will fall back to the prompt")
	}

	// os.MkdirAll is a no-op when the directory already exists.
	dbDir := filepath.Dir(cfg.DBPath)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		logger.Error("failed to create database directory",
			slog.String("dir", dbDir),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}

	srv, err := server.New(cfg, logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start blocks until SIGINT or SIGTERM.
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
