package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DefaultPath is where the config file lives unless -config says otherwise.
const DefaultPath = "./config.json"

var (
	ErrNotFound  = errors.New("configuration file not found")
	ErrMalformed = errors.New("malformed configuration file")
)

// Config holds all application configuration.
type Config struct {
	MaxDownloadSpeed      int           `mapstructure:"max_download_speed"` // KB/s, 0 = unlimited
	MaxUploadSpeed        int           `mapstructure:"max_upload_speed"`   // KB/s, 0 = unlimited
	ConsoleUpdateInterval float64       `mapstructure:"console_update_interval"`
	Engine                EngineConfig  `mapstructure:"engine"`
	Logging               LoggingConfig `mapstructure:"logging"`
}

// EngineConfig holds aria2c process and RPC settings.
type EngineConfig struct {
	Path                  string  `mapstructure:"path"`
	Host                  string  `mapstructure:"host"`
	Port                  int     `mapstructure:"port"`
	Secret                string  `mapstructure:"secret"`
	Transport             string  `mapstructure:"transport"`
	TrackerConnectTimeout int     `mapstructure:"tracker_connect_timeout"`
	ConnectAttempts       int     `mapstructure:"connect_attempts"`
	StopTimeout           float64 `mapstructure:"stop_timeout"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Path       string `mapstructure:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// fileConfig is the shape of the config file written for new installs.
type fileConfig struct {
	MaxDownloadSpeed      int     `json:"max_download_speed"`
	MaxUploadSpeed        int     `json:"max_upload_speed"`
	ConsoleUpdateInterval float64 `json:"console_update_interval"`
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		MaxDownloadSpeed:      0,
		MaxUploadSpeed:        0,
		ConsoleUpdateInterval: 1,
		Engine: EngineConfig{
			Path:                  "aria2c",
			Host:                  "localhost",
			Port:                  6800,
			Secret:                "",
			Transport:             "http",
			TrackerConnectTimeout: 60,
			ConnectAttempts:       10,
			StopTimeout:           5,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "console",
			MaxSizeMB:  10,
			MaxBackups: 5,
			MaxAgeDays: 30,
		},
	}
}

// LoadOrDefault reads the config file at path. It never writes anything.
// When the file is missing or cannot be parsed, defaulted is true, cfg holds
// the defaults (plus environment overrides) and reason says why.
// Priority: environment variables > config file > defaults
func LoadOrDefault(path string) (cfg *Config, defaulted bool, reason error) {
	v := newViper(path)

	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return fromViper(v), true, fmt.Errorf("%w: %s", ErrNotFound, path)
	}

	if err := v.ReadInConfig(); err != nil {
		return fromViper(newViper(path)), true, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	cfg = &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return fromViper(newViper(path)), true, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	cfg.normalize()

	return cfg, false, nil
}

// WriteDefaults (re)creates the config file with the documented defaults.
func WriteDefaults(path string) error {
	d := Default()
	data, err := json.MarshalIndent(fileConfig{
		MaxDownloadSpeed:      d.MaxDownloadSpeed,
		MaxUploadSpeed:        d.MaxUploadSpeed,
		ConsoleUpdateInterval: d.ConsoleUpdateInterval,
	}, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to marshal default config: %w", err)
	}

	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Resolve loads the config at path, recreating it with defaults when it is
// missing or malformed, and prints a confirmation to out.
func Resolve(path string, out io.Writer) (*Config, error) {
	cfg, defaulted, reason := LoadOrDefault(path)
	if !defaulted {
		fmt.Fprintf(out, "Configuration loaded: %s\n", cfg.Summary())
		return cfg, nil
	}

	if errors.Is(reason, ErrMalformed) {
		fmt.Fprintf(out, "Error reading configuration file: %v\n", reason)
		fmt.Fprintln(out, "Creating configuration file with default parameters...")
	} else {
		fmt.Fprintln(out, "Configuration file not found! Creating new one with default parameters...")
	}

	if err := WriteDefaults(path); err != nil {
		return nil, err
	}

	fmt.Fprintf(out, "Configuration file created: %s\n", cfg.Summary())
	fmt.Fprintf(out, "You can edit the %s file to set your settings.\n", path)
	return cfg, nil
}

// Summary describes the rate limits, showing UNLIMITED for zero values.
func (c *Config) Summary() string {
	return fmt.Sprintf("download - %s KB/s, upload - %s KB/s",
		limitString(c.MaxDownloadSpeed), limitString(c.MaxUploadSpeed))
}

// PollInterval returns the console update interval.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.ConsoleUpdateInterval * float64(time.Second))
}

// StopGrace returns how long aria2c gets to exit before it is killed.
func (c *EngineConfig) StopGrace() time.Duration {
	return time.Duration(c.StopTimeout * float64(time.Second))
}

func limitString(kbps int) string {
	if kbps > 0 {
		return fmt.Sprint(kbps)
	}
	return "UNLIMITED"
}

// normalize replaces out-of-range values. Negative limits mean unlimited,
// like zero.
func (c *Config) normalize() {
	d := Default()
	if c.MaxDownloadSpeed < 0 {
		c.MaxDownloadSpeed = 0
	}
	if c.MaxUploadSpeed < 0 {
		c.MaxUploadSpeed = 0
	}
	if c.ConsoleUpdateInterval <= 0 {
		c.ConsoleUpdateInterval = d.ConsoleUpdateInterval
	}
	if c.Engine.ConnectAttempts <= 0 {
		c.Engine.ConnectAttempts = d.Engine.ConnectAttempts
	}
	if c.Engine.StopTimeout <= 0 {
		c.Engine.StopTimeout = d.Engine.StopTimeout
	}
	if c.Engine.Path == "" {
		c.Engine.Path = d.Engine.Path
	}
}

func newViper(path string) *viper.Viper {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	v.SetConfigFile(path)
	v.SetConfigType("json")

	// Environment variable settings
	v.SetEnvPrefix("ARIASEED")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		// Only a bad environment override can get here.
		return Default()
	}
	cfg.normalize()
	return cfg
}

// setDefaults sets default values in viper
func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("max_download_speed", d.MaxDownloadSpeed)
	v.SetDefault("max_upload_speed", d.MaxUploadSpeed)
	v.SetDefault("console_update_interval", d.ConsoleUpdateInterval)

	// Engine defaults
	v.SetDefault("engine.path", d.Engine.Path)
	v.SetDefault("engine.host", d.Engine.Host)
	v.SetDefault("engine.port", d.Engine.Port)
	v.SetDefault("engine.secret", d.Engine.Secret)
	v.SetDefault("engine.transport", d.Engine.Transport)
	v.SetDefault("engine.tracker_connect_timeout", d.Engine.TrackerConnectTimeout)
	v.SetDefault("engine.connect_attempts", d.Engine.ConnectAttempts)
	v.SetDefault("engine.stop_timeout", d.Engine.StopTimeout)

	// Logging defaults
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.path", d.Logging.Path)
	v.SetDefault("logging.max_size_mb", d.Logging.MaxSizeMB)
	v.SetDefault("logging.max_backups", d.Logging.MaxBackups)
	v.SetDefault("logging.max_age_days", d.Logging.MaxAgeDays)
	v.SetDefault("logging.compress", d.Logging.Compress)
}
