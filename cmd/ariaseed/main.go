package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/Rise0x00/Linux-Aria2-Torrent-Client/internal/app"
	"github.com/Rise0x00/Linux-Aria2-Torrent-Client/internal/config"
	"github.com/Rise0x00/Linux-Aria2-Torrent-Client/internal/downloader"
	"github.com/Rise0x00/Linux-Aria2-Torrent-Client/internal/logger"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", config.DefaultPath, "Path to config file")
	logLevel := flag.String("log-level", "", "Log level (overrides config)")
	flag.Parse()

	// A missing .env is the normal case.
	_ = godotenv.Load()

	cfg, err := config.Resolve(*configPath, os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to prepare configuration: %v\n", err)
		return 1
	}

	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}

	log := logger.New(logger.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Path:       cfg.Logging.Path,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Compress:   cfg.Logging.Compress,
	})
	defer log.Close()

	log.Debug().
		Str("config", *configPath).
		Int("maxDownloadKBps", cfg.MaxDownloadSpeed).
		Int("maxUploadKBps", cfg.MaxUploadSpeed).
		Float64("interval", cfg.ConsoleUpdateInterval).
		Str("transport", cfg.Engine.Transport).
		Msg("configuration resolved")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a := app.New(app.Config{
		Settings: cfg,
		In:       os.Stdin,
		Out:      os.Stdout,
	}, log.Logger)

	if err := a.Run(ctx); err != nil {
		var subErr *downloader.SubmissionError
		switch {
		case errors.Is(err, downloader.ErrInvalidSource), errors.As(err, &subErr):
			log.Debug().Err(err).Msg("download not started")
		default:
			log.Error().Err(err).Msg("run failed")
		}
	}
	return 0
}
