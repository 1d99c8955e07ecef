package config

import (
	"errors"
	"time"

	"github.com/kilianp07/rainbarrel/core/sampling"
	"github.com/kilianp07/rainbarrel/core/telemetry"
	"github.com/kilianp07/rainbarrel/infra/probe"
)

// PlantConfig configures the plant moisture agent.
type PlantConfig struct {
	ClientID       string                 `json:"client_id"`
	TelemetryTopic string                 `json:"telemetry_topic"`
	PeriodSeconds  int                    `json:"period_seconds"`
	Probe          probe.Config           `json:"probe"`
	WaterRequest   telemetry.WaterRequest `json:"water_request"`
}

// SetDefaults fills unset fields.
func (c *PlantConfig) SetDefaults() {
	if c.ClientID == "" {
		c.ClientID = "plant-jasmine"
	}
	if c.TelemetryTopic == "" {
		c.TelemetryTopic = "Den/Jasmine/measurements"
	}
	if c.PeriodSeconds == 0 {
		c.PeriodSeconds = int(sampling.DefaultPeriod / time.Second)
	}
	c.Probe.SetDefaults()
	c.WaterRequest.SetDefaults()
}

// Validate checks mandatory fields.
func (c PlantConfig) Validate() error {
	if c.TelemetryTopic == "" {
		return errors.New("telemetry_topic is required")
	}
	if c.PeriodSeconds <= 0 {
		return errors.New("period_seconds must be positive")
	}
	if err := c.Probe.Validate(); err != nil {
		return err
	}
	return c.WaterRequest.Validate()
}

// Period returns the sampling period.
func (c PlantConfig) Period() time.Duration {
	return time.Duration(c.PeriodSeconds) * time.Second
}
