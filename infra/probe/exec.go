// Package probe runs the external moisture probe program.
package probe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/kilianp07/rainbarrel/core/logger"
)

// Config describes the probe command.
type Config struct {
	// Command is run through the shell, e.g. "python adc.py".
	Command        string `json:"command"`
	Dir            string `json:"dir"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// SetDefaults applies the stock ADC reader.
func (c *Config) SetDefaults() {
	if c.Command == "" {
		c.Command = "python adc.py"
	}
	if c.TimeoutSeconds == 0 {
		c.TimeoutSeconds = 30
	}
}

// Validate checks the command.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Command) == "" {
		return errors.New("probe command is required")
	}
	if c.TimeoutSeconds < 0 {
		return errors.New("probe timeout must not be negative")
	}
	return nil
}

// ErrStderr is returned when the probe writes to stderr.
var ErrStderr = errors.New("probe wrote to stderr")

// ExecProbe runs a shell command and returns its stdout.
type ExecProbe struct {
	cfg   Config
	shell []string
	log   logger.Logger
}

// New creates an ExecProbe.
func New(cfg Config, log logger.Logger) *ExecProbe {
	cfg.SetDefaults()
	if log == nil {
		log = logger.NopLogger{}
	}
	return &ExecProbe{cfg: cfg, shell: []string{"/bin/sh", "-c"}, log: log}
}

// Measure runs the command once. A non-zero exit, any stderr output or the
// timeout make it fail.
func (p *ExecProbe) Measure(ctx context.Context) (string, error) {
	if p.cfg.TimeoutSeconds > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(p.cfg.TimeoutSeconds)*time.Second)
		defer cancel()
	}
	args := append(append([]string(nil), p.shell[1:]...), p.cfg.Command)
	cmd := exec.CommandContext(ctx, p.shell[0], args...)
	cmd.Dir = p.cfg.Dir
	cmd.WaitDelay = time.Second
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	p.log.Debugw("probe run", map[string]any{"command": p.cfg.Command, "elapsed_ms": time.Since(start).Milliseconds()})
	if ctx.Err() != nil {
		return "", fmt.Errorf("probe %q: %w", p.cfg.Command, ctx.Err())
	}
	if err != nil {
		return "", fmt.Errorf("probe %q: %w: %s", p.cfg.Command, err, strings.TrimSpace(stderr.String()))
	}
	if stderr.Len() > 0 {
		return "", fmt.Errorf("probe %q: %w: %s", p.cfg.Command, ErrStderr, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}
