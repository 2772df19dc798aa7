// Package config loads the JSON settings shared by the daemon and the
// query commands.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/natefinch/atomic"
	"golang.org/x/xerrors"

	"github.com/fakeyudi/dwell/internal/timeline"
)

// Duration is a time.Duration written as a Go duration string ("1m30s").
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	if d == 0 {
		return []byte(`""`), nil
	}
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return xerrors.Errorf("duration must be a string such as \"1s\": %w", err)
	}
	if s == "" {
		*d = 0
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config holds all configurable dwell settings. Zero values mean "not set"
// and are filled in by Merge.
type Config struct {
	DataDir            string   `json:"data_dir"`
	CollectionInterval Duration `json:"collection_interval"`
	AFKThreshold       Duration `json:"afk_threshold"`
	QueueSize          int      `json:"queue_size"`
	FetchConcurrency   int      `json:"fetch_concurrency"`
	LockTimeout        Duration `json:"lock_timeout"`
	MinPercentage      string   `json:"min_percentage"` // "1" or "1%"
	DateStyle          string   `json:"date_style"`     // "uk" | "us"
	LogLevel           string   `json:"log_level"`      // "debug" | "info" | "warn" | "error"
}

// Defaults returns sensible default configuration values.
func Defaults() Config {
	return Config{
		DataDir:            filepath.Join(xdg.StateHome, "dwell"),
		CollectionInterval: Duration(time.Second),
		AFKThreshold:       Duration(2 * time.Minute),
		QueueSize:          10,
		FetchConcurrency:   timeline.DefaultConcurrency,
		LockTimeout:        Duration(5 * time.Second),
		MinPercentage:      "1",
		DateStyle:          "uk",
		LogLevel:           "debug",
	}
}

// GlobalPath is $XDG_CONFIG_HOME/dwell/config.json.
func GlobalPath() string {
	return filepath.Join(xdg.ConfigHome, "dwell", "config.json")
}

// LoadGlobal reads the global config file.
// Returns defaults if the file is absent.
func LoadGlobal() (*Config, error) {
	return loadFile(GlobalPath(), true)
}

// LoadFile reads a config file named on the command line. Unlike
// LoadGlobal, a missing file is an error.
func LoadFile(path string) (*Config, error) {
	return loadFile(path, false)
}

func loadFile(path string, returnDefaults bool) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && returnDefaults {
			d := Defaults()
			return &d, nil
		}
		return nil, xerrors.Errorf("read config: %w", err)
	}
	var cfg Config
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	return &cfg, nil
}

// Save writes cfg to path atomically, creating the directory if needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return xerrors.Errorf("create config directory: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return xerrors.Errorf("marshal config: %w", err)
	}
	if err := atomic.WriteFile(path, bytes.NewReader(append(data, '\n'))); err != nil {
		return xerrors.Errorf("write config %s: %w", path, err)
	}
	return nil
}

// Merge combines global and override configs, with override taking
// precedence. Missing keys fall back to global, then defaults.
func Merge(global, override *Config) Config {
	result := Defaults()
	for _, c := range []*Config{global, override} {
		if c == nil {
			continue
		}
		if c.DataDir != "" {
			result.DataDir = c.DataDir
		}
		if c.CollectionInterval != 0 {
			result.CollectionInterval = c.CollectionInterval
		}
		if c.AFKThreshold != 0 {
			result.AFKThreshold = c.AFKThreshold
		}
		if c.QueueSize != 0 {
			result.QueueSize = c.QueueSize
		}
		if c.FetchConcurrency != 0 {
			result.FetchConcurrency = c.FetchConcurrency
		}
		if c.LockTimeout != 0 {
			result.LockTimeout = c.LockTimeout
		}
		if c.MinPercentage != "" {
			result.MinPercentage = c.MinPercentage
		}
		if c.DateStyle != "" {
			result.DateStyle = c.DateStyle
		}
		if c.LogLevel != "" {
			result.LogLevel = c.LogLevel
		}
	}
	return result
}

// ErrInvalid is wrapped by every Validate failure.
var ErrInvalid = xerrors.New("invalid configuration")

// Validate reports the first setting that cannot be used.
func (c Config) Validate() error {
	switch {
	case c.DataDir == "":
		return xerrors.Errorf("data_dir is empty: %w", ErrInvalid)
	case c.CollectionInterval <= 0:
		return xerrors.Errorf("collection_interval must be positive: %w", ErrInvalid)
	case c.AFKThreshold <= 0:
		return xerrors.Errorf("afk_threshold must be positive: %w", ErrInvalid)
	case c.QueueSize <= 0:
		return xerrors.Errorf("queue_size must be positive: %w", ErrInvalid)
	case c.FetchConcurrency <= 0:
		return xerrors.Errorf("fetch_concurrency must be positive: %w", ErrInvalid)
	case c.LockTimeout <= 0:
		return xerrors.Errorf("lock_timeout must be positive: %w", ErrInvalid)
	}
	if _, err := timeline.ParsePercentage(c.MinPercentage); err != nil {
		return xerrors.Errorf("min_percentage: %v: %w", err, ErrInvalid)
	}
	switch strings.ToLower(c.DateStyle) {
	case "uk", "us":
	default:
		return xerrors.Errorf("date_style %q (want uk or us): %w", c.DateStyle, ErrInvalid)
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return xerrors.Errorf("log_level %q: %w", c.LogLevel, ErrInvalid)
	}
	return nil
}

// ParseError is returned when a config file exists but cannot be parsed.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return "failed to parse config file " + e.Path + ": " + e.Err.Error()
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
