// Package monitor polls the download task and keeps a one-line status on
// the console, first while downloading and then, forever, while seeding.
package monitor

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/Rise0x00/Linux-Aria2-Torrent-Client/internal/downloader/types"
)

// Phase is the monitor state.
type Phase int

const (
	PhaseDownloading Phase = iota
	PhaseSeeding
)

func (p Phase) String() string {
	switch p {
	case PhaseDownloading:
		return "downloading"
	case PhaseSeeding:
		return "seeding"
	default:
		return "unknown"
	}
}

// Task is the download being watched.
type Task interface {
	Refresh(ctx context.Context) error
	Item() types.DownloadItem
	Complete() bool
}

// Config holds monitor settings.
type Config struct {
	Interval time.Duration
	Out      io.Writer
	Clock    clockwork.Clock // nil means the real clock
}

type Monitor struct {
	task     Task
	out      io.Writer
	interval time.Duration
	clock    clockwork.Clock
	logger   zerolog.Logger
	phase    Phase
	ticks    int
}

func New(task Task, cfg Config, logger zerolog.Logger) *Monitor {
	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Monitor{
		task:     task,
		out:      cfg.Out,
		interval: cfg.Interval,
		clock:    clock,
		logger:   logger.With().Str("component", "monitor").Logger(),
		phase:    PhaseDownloading,
	}
}

// Phase returns the current state.
func (m *Monitor) Phase() Phase {
	return m.phase
}

// Ticks returns how many polls completed.
func (m *Monitor) Ticks() int {
	return m.ticks
}

// Run polls until ctx is cancelled, which is the only way out of the
// seeding phase and returns nil. A failed poll ends the loop with an error.
func (m *Monitor) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}

		if err := m.task.Refresh(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("poll task: %w", err)
		}
		m.ticks++

		if m.phase == PhaseDownloading && m.task.Complete() {
			m.phase = PhaseSeeding
			item := m.task.Item()
			m.logger.Info().
				Int("tick", m.ticks).
				Int("seeders", item.Seeders).
				Str("dir", item.DownloadDir).
				Msg("download complete, seeding")
			fmt.Fprint(m.out, "\n\nDownload complete! Starting to seed...\nPress Ctrl+C to stop\n\n")
		}

		m.render()

		select {
		case <-ctx.Done():
			return nil
		case <-m.clock.After(m.interval):
		}
	}
}

func (m *Monitor) render() {
	item := m.task.Item()

	var text string
	switch m.phase {
	case PhaseSeeding:
		text = SeedingLine(item)
	default:
		text = DownloadingLine(item)
	}
	fmt.Fprint(m.out, StatusLine(text))
}
