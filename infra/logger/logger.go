package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"

	corelogger "github.com/kilianp07/rainbarrel/core/logger"
)

// Logger mirrors the core logger interface.
type Logger = corelogger.Logger

// Config controls the level and destinations of every component logger.
type Config struct {
	// Level is one of debug, info, warn or error.
	Level string `json:"level"`
	// File optionally duplicates logs into a rotated file.
	File       string `json:"file"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
	MaxAgeDays int    `json:"max_age_days"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
	if c.File != "" && c.MaxSizeMB == 0 {
		c.MaxSizeMB = 10
	}
}

// Validate checks the level name.
func (c Config) Validate() error {
	if _, err := zerolog.ParseLevel(strings.ToLower(c.Level)); err != nil {
		return fmt.Errorf("log level %q: %w", c.Level, err)
	}
	return nil
}

// NopLogger discards everything.
type NopLogger = corelogger.NopLogger

var (
	mu      sync.RWMutex
	output  io.Writer = os.Stdout
	level             = zerolog.InfoLevel
	rotator *lumberjack.Logger
)

// Configure sets the level and outputs used by loggers created afterwards.
// The returned closer releases the log file, if any.
func Configure(cfg Config) (io.Closer, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	lvl, _ := zerolog.ParseLevel(strings.ToLower(cfg.Level))

	mu.Lock()
	defer mu.Unlock()
	level = lvl
	output = os.Stdout
	rotator = nil
	if cfg.File != "" {
		rotator = &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
		}
		output = zerolog.MultiLevelWriter(os.Stdout, rotator)
		return rotator, nil
	}
	return nopCloser{}, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// New returns a Logger for the given component. The console format is
// selected via the APP_ENV variable.
func New(component string) Logger {
	return NewZerologLogger(component)
}
