package config

import (
	"errors"
	"time"

	"github.com/kilianp07/rainbarrel/core/factory"
	"github.com/kilianp07/rainbarrel/core/sampling"
	"github.com/kilianp07/rainbarrel/core/telemetry"
)

// BarrelConfig configures the rain barrel agent.
type BarrelConfig struct {
	ClientID       string `json:"client_id"`
	CommandTopic   string `json:"command_topic"`
	TelemetryTopic string `json:"telemetry_topic"`
	PeriodSeconds  int    `json:"period_seconds"`
	// SamplesPerTick ranges the distance several times and publishes the
	// median.
	SamplesPerTick int                   `json:"samples_per_tick"`
	SampleGapMS    int                   `json:"sample_gap_ms"`
	Calibration    telemetry.Calibration `json:"calibration"`
	// MaxDurationSeconds caps a single watering. Zero disables the cap.
	MaxDurationSeconds float64 `json:"max_duration_seconds"`
	// Hardware selects the board implementation, gpio or sim.
	Hardware factory.ModuleConfig `json:"hardware"`
}

// SetDefaults fills unset fields.
func (c *BarrelConfig) SetDefaults() {
	if c.ClientID == "" {
		c.ClientID = "barrel-pi"
	}
	if c.CommandTopic == "" {
		c.CommandTopic = "Den/Barrel/cmd"
	}
	if c.TelemetryTopic == "" {
		c.TelemetryTopic = "Den/Barrel/measurements"
	}
	if c.PeriodSeconds == 0 {
		c.PeriodSeconds = int(sampling.DefaultPeriod / time.Second)
	}
	if c.SamplesPerTick == 0 {
		c.SamplesPerTick = 1
	}
	if c.SampleGapMS == 0 {
		c.SampleGapMS = 60
	}
	if c.Calibration.Offset == 0 && c.Calibration.Span == 0 {
		clamp := c.Calibration.Clamp
		c.Calibration = telemetry.DefaultCalibration()
		c.Calibration.Clamp = clamp
	}
	if c.Hardware.Type == "" {
		c.Hardware.Type = "gpio"
	}
}

// Validate checks mandatory fields.
func (c BarrelConfig) Validate() error {
	if c.CommandTopic == "" || c.TelemetryTopic == "" {
		return errors.New("command_topic and telemetry_topic are required")
	}
	if c.PeriodSeconds <= 0 {
		return errors.New("period_seconds must be positive")
	}
	if c.SamplesPerTick <= 0 || c.SampleGapMS < 0 {
		return errors.New("samples_per_tick must be positive and sample_gap_ms not negative")
	}
	if c.MaxDurationSeconds < 0 {
		return errors.New("max_duration_seconds must not be negative")
	}
	return c.Calibration.Validate()
}

// Period returns the sampling period.
func (c BarrelConfig) Period() time.Duration {
	return time.Duration(c.PeriodSeconds) * time.Second
}

// SampleGap returns the pause between burst readings.
func (c BarrelConfig) SampleGap() time.Duration {
	return time.Duration(c.SampleGapMS) * time.Millisecond
}

// MaxDuration returns the watering cap, zero when disabled.
func (c BarrelConfig) MaxDuration() time.Duration {
	return time.Duration(c.MaxDurationSeconds * float64(time.Second))
}
