// Package engine starts and stops the aria2c process.
package engine

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Rise0x00/Linux-Aria2-Torrent-Client/internal/config"
)

// LaunchError is returned when the engine executable cannot be spawned.
type LaunchError struct {
	Path string
	Err  error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("failed to launch %s: %v", e.Path, e.Err)
}

func (e *LaunchError) Unwrap() error {
	return e.Err
}

type osProcess interface {
	Signal(sig os.Signal) error
	Kill() error
}

var _ osProcess = (*os.Process)(nil)

// Process owns one running aria2c. Stop may be called any number of times;
// only the first call signals the process.
type Process struct {
	proc   osProcess
	pid    int
	exited <-chan struct{}
	grace  time.Duration
	logger zerolog.Logger

	once sync.Once
	err  error
}

// Start spawns aria2c with the RPC endpoint and rate limits from cfg.
func Start(cfg *config.Config, logger zerolog.Logger) (*Process, error) {
	args := Args(cfg)

	cmd := exec.Command(cfg.Engine.Path, args...)
	cmd.Stderr = os.Stderr
	cmd.SysProcAttr = sysProcAttr()

	if err := cmd.Start(); err != nil {
		return nil, &LaunchError{Path: cfg.Engine.Path, Err: err}
	}

	exited := make(chan struct{})
	go func() {
		_ = cmd.Wait()
		close(exited)
	}()

	p := newProcess(cmd.Process, cmd.Process.Pid, exited, cfg.Engine.StopGrace(), logger)
	p.logger.Info().Int("pid", p.pid).Strs("args", args).Msg("aria2c started")
	return p, nil
}

func newProcess(proc osProcess, pid int, exited <-chan struct{}, grace time.Duration, logger zerolog.Logger) *Process {
	return &Process{
		proc:   proc,
		pid:    pid,
		exited: exited,
		grace:  grace,
		logger: logger.With().Str("component", "engine").Logger(),
	}
}

// Pid returns the operating system process id.
func (p *Process) Pid() int {
	return p.pid
}

// Stop asks aria2c to exit and kills it if it is still running after the
// grace period.
func (p *Process) Stop() error {
	p.once.Do(func() {
		p.logger.Info().Int("pid", p.pid).Msg("stopping aria2c")

		if err := terminate(p.proc); err != nil {
			if errors.Is(err, os.ErrProcessDone) {
				return
			}
			p.logger.Warn().Err(err).Msg("failed to signal aria2c, killing")
			p.err = p.kill()
			return
		}

		select {
		case <-p.exited:
			p.logger.Debug().Int("pid", p.pid).Msg("aria2c exited")
		case <-time.After(p.grace):
			p.logger.Warn().Dur("grace", p.grace).Msg("aria2c did not exit in time, killing")
			p.err = p.kill()
		}
	})
	return p.err
}

func (p *Process) kill() error {
	if err := p.proc.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("failed to kill aria2c: %w", err)
	}
	return nil
}
