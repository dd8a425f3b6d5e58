// Package logger builds the process logger: a console sink on stderr and,
// when a log directory is configured, a size-rotated file.
package logger

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// FileName is the active log file inside Config.Path.
const FileName = "ariaseed.log"

// Logger is a zerolog.Logger that owns its log file, if any.
type Logger struct {
	zerolog.Logger
	file *lumberjack.Logger
}

// Config holds logger configuration. Zero rotation values fall back to
// 10 MB, 5 backups and 30 days.
type Config struct {
	Level      string
	Format     string    // "console" or "json"
	Path       string    // log directory, empty disables the file
	Out        io.Writer // console sink, os.Stderr when nil
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool // gzip rotated files
}

// IsDevBuild reports whether the binary was built by "go run", whose
// executables live under a go-build temp directory.
func IsDevBuild() bool {
	exe, err := os.Executable()
	if err != nil {
		return false
	}
	return strings.Contains(exe, "go-build")
}

// New creates the logger. Console output never goes to stdout, which
// carries the in-place status line.
func New(cfg Config) *Logger {
	level := parseLevel(cfg.Level)
	if IsDevBuild() && level > zerolog.DebugLevel {
		level = zerolog.DebugLevel
	}

	sink := console(cfg)
	file := rotatingFile(cfg)
	if file != nil {
		sink = io.MultiWriter(sink, file)
	}

	return &Logger{
		Logger: zerolog.New(sink).Level(level).With().Timestamp().Logger(),
		file:   file,
	}
}

// Close flushes and closes the log file.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

func console(cfg Config) io.Writer {
	out := cfg.Out
	if out == nil {
		out = os.Stderr
	}
	if cfg.Format == "json" {
		return out
	}
	return zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen}
}

// rotatingFile returns nil when file logging is off or the directory
// cannot be created.
func rotatingFile(cfg Config) *lumberjack.Logger {
	if cfg.Path == "" {
		return nil
	}
	if err := os.MkdirAll(cfg.Path, 0o755); err != nil {
		return nil
	}
	return &lumberjack.Logger{
		Filename:   filepath.Join(cfg.Path, FileName),
		MaxSize:    orDefault(cfg.MaxSizeMB, 10),
		MaxBackups: orDefault(cfg.MaxBackups, 5),
		MaxAge:     orDefault(cfg.MaxAgeDays, 30),
		Compress:   cfg.Compress,
		LocalTime:  true,
	}
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	case "disabled", "off":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}
