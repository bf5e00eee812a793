package model

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// APIConfig holds settings for the REST API.
type APIConfig struct {
	// BaseURL is the root of the REST API, including the /api prefix.
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`

	// TimeoutSec bounds a single HTTP round trip.
	TimeoutSec int `mapstructure:"timeout_sec" yaml:"timeout_sec"`

	// MaxRetries is how many times a rate limited (429) call is retried.
	MaxRetries int `mapstructure:"max_retries" yaml:"max_retries"`
}

// StreamConfig holds settings for the live notification stream.
type StreamConfig struct {
	// Path is appended to the API base URL to reach the event stream.
	Path string `mapstructure:"path" yaml:"path"`

	// ReconnectDelayMs is the fixed wait before retrying a dropped stream.
	ReconnectDelayMs int `mapstructure:"reconnect_delay_ms" yaml:"reconnect_delay_ms"`

	// TokenInQuery sends the bearer as ?token= instead of a header, for
	// servers fronted by proxies that strip Authorization on streams.
	TokenInQuery bool `mapstructure:"token_in_query" yaml:"token_in_query"`
}

// DisplayConfig holds UI/rendering preferences.
type DisplayConfig struct {
	Theme           string `mapstructure:"theme" yaml:"theme"`
	PollIntervalSec int    `mapstructure:"poll_interval_sec" yaml:"poll_interval_sec"`
	PageSize        int    `mapstructure:"page_size" yaml:"page_size"`
}

// DesktopConfig controls desktop notification mirroring.
type DesktopConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

// LogConfig controls the log level and destination.
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
	File  string `mapstructure:"file" yaml:"file"`
}

// DBConfig locates the local cache database.
type DBConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	API     APIConfig     `mapstructure:"api" yaml:"api"`
	Stream  StreamConfig  `mapstructure:"stream" yaml:"stream"`
	Display DisplayConfig `mapstructure:"display" yaml:"display"`
	Desktop DesktopConfig `mapstructure:"desktop" yaml:"desktop"`
	Log     LogConfig     `mapstructure:"log" yaml:"log"`
	DB      DBConfig      `mapstructure:"db" yaml:"db"`
}

// ReconnectDelay returns the stream reconnect delay as a duration.
func (c StreamConfig) ReconnectDelay() time.Duration {
	return time.Duration(c.ReconnectDelayMs) * time.Millisecond
}

// Timeout returns the per-request HTTP timeout.
func (c APIConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSec) * time.Second
}

// ConfigDir returns ~/.config/puttnotify, falling back to the working
// directory when the home directory cannot be resolved.
func ConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "puttnotify")
}

// DefaultConfigPath returns the default path for the configuration file.
func DefaultConfigPath() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// defaultAppConfig returns a sensible default configuration.
func defaultAppConfig() *AppConfig {
	return &AppConfig{
		API: APIConfig{
			BaseURL:    "http://localhost:3000/api",
			TimeoutSec: 30,
			MaxRetries: 3,
		},
		Stream: StreamConfig{
			Path:             "/notifications/stream",
			ReconnectDelayMs: 5000,
		},
		Display: DisplayConfig{
			Theme:           "default",
			PollIntervalSec: 60,
			PageSize:        20,
		},
		Desktop: DesktopConfig{Enabled: true},
		Log: LogConfig{
			Level: "info",
			File:  filepath.Join(ConfigDir(), "puttnotify.log"),
		},
		DB: DBConfig{
			Path: filepath.Join(ConfigDir(), "cache.db"),
		},
	}
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// If the file does not exist, it returns a default configuration.
// PUTTNOTIFY_* environment variables override file values.
func LoadConfig(path string) (*AppConfig, error) {
	defaults := defaultAppConfig()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("puttnotify")
	v.AutomaticEnv()

	// Set defaults so missing keys resolve to sensible values.
	v.SetDefault("api.base_url", defaults.API.BaseURL)
	v.SetDefault("api.timeout_sec", defaults.API.TimeoutSec)
	v.SetDefault("api.max_retries", defaults.API.MaxRetries)
	v.SetDefault("stream.path", defaults.Stream.Path)
	v.SetDefault("stream.reconnect_delay_ms", defaults.Stream.ReconnectDelayMs)
	v.SetDefault("stream.token_in_query", false)
	v.SetDefault("display.theme", defaults.Display.Theme)
	v.SetDefault("display.poll_interval_sec", defaults.Display.PollIntervalSec)
	v.SetDefault("display.page_size", defaults.Display.PageSize)
	v.SetDefault("desktop.enabled", defaults.Desktop.Enabled)
	v.SetDefault("log.level", defaults.Log.Level)
	v.SetDefault("log.file", defaults.Log.File)
	v.SetDefault("db.path", defaults.DB.Path)

	if err := v.ReadInConfig(); err != nil {
		var pathErr *os.PathError
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &pathErr) && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := defaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if cfg.Display.PageSize <= 0 {
		cfg.Display.PageSize = defaults.Display.PageSize
	}
	if cfg.Stream.ReconnectDelayMs <= 0 {
		cfg.Stream.ReconnectDelayMs = defaults.Stream.ReconnectDelayMs
	}

	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("api", cfg.API)
	v.Set("stream", cfg.Stream)
	v.Set("display", cfg.Display)
	v.Set("desktop", cfg.Desktop)
	v.Set("log", cfg.Log)
	v.Set("db", cfg.DB)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
