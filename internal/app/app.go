// Package app runs one download from the prompts to the final engine stop.
package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/Rise0x00/Linux-Aria2-Torrent-Client/internal/config"
	"github.com/Rise0x00/Linux-Aria2-Torrent-Client/internal/downloader"
	"github.com/Rise0x00/Linux-Aria2-Torrent-Client/internal/downloader/types"
	"github.com/Rise0x00/Linux-Aria2-Torrent-Client/internal/engine"
	"github.com/Rise0x00/Linux-Aria2-Torrent-Client/internal/monitor"
	"github.com/Rise0x00/Linux-Aria2-Torrent-Client/internal/startup"
)

// ErrConnectionFailed is returned when aria2c never answered on its RPC port.
var ErrConnectionFailed = errors.New("failed to connect to aria2c via RPC")

// Engine is a running aria2c.
type Engine interface {
	Stop() error
}

// Launcher starts the engine.
type Launcher interface {
	Launch(cfg *config.Config) (Engine, error)
}

// LauncherFunc adapts a function to Launcher.
type LauncherFunc func(cfg *config.Config) (Engine, error)

// Launch calls f(cfg).
func (f LauncherFunc) Launch(cfg *config.Config) (Engine, error) {
	return f(cfg)
}

// EngineLauncher starts a real aria2c process.
func EngineLauncher(logger zerolog.Logger) Launcher {
	return LauncherFunc(func(cfg *config.Config) (Engine, error) {
		p, err := engine.Start(cfg, logger)
		if err != nil {
			return nil, err
		}
		return p, nil
	})
}

// Config holds the collaborators of an App. Zero fields get the real
// implementations.
type Config struct {
	Settings  *config.Config
	In        io.Reader
	Out       io.Writer
	Launcher  Launcher
	NewClient func(cfg *types.ClientConfig) types.Client
	Clock     clockwork.Clock
}

// App drives a single download session. It is not safe for concurrent use
// and Run is meant to be called once.
type App struct {
	settings  *config.Config
	in        io.Reader
	out       io.Writer
	launcher  Launcher
	newClient func(cfg *types.ClientConfig) types.Client
	clock     clockwork.Clock
	logger    zerolog.Logger
}

// New creates an App from cfg, filling unset collaborators with the default
// config, a real aria2c launcher, the aria2 RPC client and the wall clock.
func New(cfg Config, logger zerolog.Logger) *App {
	a := &App{
		settings:  cfg.Settings,
		in:        cfg.In,
		out:       cfg.Out,
		launcher:  cfg.Launcher,
		newClient: cfg.NewClient,
		clock:     cfg.Clock,
		logger:    logger.With().Str("component", "app").Logger(),
	}
	if a.settings == nil {
		a.settings = config.Default()
	}
	if a.launcher == nil {
		a.launcher = EngineLauncher(logger)
	}
	if a.newClient == nil {
		a.newClient = downloader.NewClient
	}
	if a.clock == nil {
		a.clock = clockwork.NewRealClock()
	}
	return a
}

// Run asks for the source and folder, starts aria2c, submits the download
// and monitors it until ctx is cancelled. Once aria2c has been launched it is
// stopped exactly once before Run returns, whatever the outcome.
//
// Outcomes the user already saw a message for are still returned as errors
// so the caller can log them. Cancellation is not an error.
func (a *App) Run(ctx context.Context) error {
	answers, err := a.ask(ctx)
	if err != nil {
		if ctx.Err() != nil {
			a.terminated()
			return nil
		}
		return err
	}

	dir := answers.Dir
	if dir == "" {
		dir = downloader.DefaultDownloadDir
	}

	eng, err := a.launcher.Launch(a.settings)
	if err != nil {
		fmt.Fprintf(a.out, "Failed to start aria2c: %v\n", err)
		return err
	}
	defer a.stop(eng)

	client := a.newClient(clientConfig(&a.settings.Engine))
	defer func() {
		if err := client.Close(); err != nil {
			a.logger.Debug().Err(err).Msg("failed to close RPC client")
		}
	}()

	if err := a.connect(ctx, client); err != nil {
		if ctx.Err() != nil {
			a.terminated()
			return nil
		}
		fmt.Fprintln(a.out, "Failed to connect to aria2c via RPC")
		return fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	task, err := downloader.NewSubmitter(client, a.logger).Submit(ctx, answers.Source, dir)
	switch {
	case errors.Is(err, downloader.ErrInvalidSource):
		fmt.Fprintln(a.out, "Invalid source. Please use a magnet link or .torrent file.")
		return err
	case err != nil:
		if ctx.Err() != nil {
			a.terminated()
			return nil
		}
		fmt.Fprintf(a.out, "Error adding download: %v\n", err)
		return err
	}

	a.logger.Info().
		Str("gid", task.ID()).
		Str("dir", task.Item().DownloadDir).
		Bool("metadata", task.Item().Metadata).
		Msg("download submitted")
	fmt.Fprintf(a.out, "Download started: %s\n", task.Name())
	fmt.Fprint(a.out, "Press Ctrl+C to stop\n\n")

	mon := monitor.New(task, monitor.Config{
		Interval: a.settings.PollInterval(),
		Out:      a.out,
		Clock:    a.clock,
	}, a.logger)

	if err := mon.Run(ctx); err != nil {
		fmt.Fprintf(a.out, "\n\nError while monitoring download: %v\n", err)
		return err
	}

	a.terminated()
	return nil
}

// ask reads the prompts without blocking cancellation. The reader goroutine
// is left behind if ctx ends first; the process is about to exit anyway.
func (a *App) ask(ctx context.Context) (Answers, error) {
	type result struct {
		answers Answers
		err     error
	}

	done := make(chan result, 1)
	go func() {
		answers, err := Ask(bufio.NewReader(a.in), a.out)
		done <- result{answers, err}
	}()

	select {
	case <-ctx.Done():
		return Answers{}, ctx.Err()
	case r := <-done:
		return r.answers, r.err
	}
}

func (a *App) connect(ctx context.Context, client types.Client) error {
	retryCfg := startup.RetryConfig{
		MaxAttempts: a.settings.Engine.ConnectAttempts,
		Delay:       time.Second,
		Clock:       a.clock,
	}

	err := startup.Retry(ctx, "aria2c RPC connection", retryCfg, func(ctx context.Context) error {
		_, err := client.List(ctx)
		if errors.Is(err, types.ErrAuthFailed) {
			return startup.Permanent(err)
		}
		return err
	}, &a.logger)
	if err != nil {
		return err
	}

	if version, err := client.Version(ctx); err != nil {
		a.logger.Warn().Err(err).Msg("failed to read aria2c version")
	} else {
		a.logger.Info().Str("version", version).Msg("connected to aria2c")
	}
	return nil
}

func (a *App) stop(eng Engine) {
	fmt.Fprintln(a.out, "Stopping aria2c...")
	if err := eng.Stop(); err != nil {
		a.logger.Error().Err(err).Msg("failed to stop aria2c")
	}
}

func (a *App) terminated() {
	fmt.Fprint(a.out, "\n\nOperation terminated by user\n")
}

func clientConfig(cfg *config.EngineConfig) *types.ClientConfig {
	return &types.ClientConfig{
		Host:      cfg.Host,
		Port:      cfg.Port,
		Secret:    cfg.Secret,
		Transport: types.Transport(cfg.Transport),
	}
}
