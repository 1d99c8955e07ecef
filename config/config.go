package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/rainbarrel/core/command/journal"
	"github.com/kilianp07/rainbarrel/core/metrics"
	"github.com/kilianp07/rainbarrel/infra/logger"
	"github.com/kilianp07/rainbarrel/infra/mqtt"
)

// EnvPrefix prefixes environment overrides. Nested keys are separated by a
// double underscore, e.g. RB_MQTT__BROKER.
const EnvPrefix = "RB_"

// Config is the configuration shared by both agents. Each agent reads the
// common sections plus its own.
type Config struct {
	MQTT    mqtt.Config    `json:"mqtt"`
	Log     logger.Config  `json:"log"`
	Journal journal.Config `json:"journal"`
	Metrics metrics.Config `json:"metrics"`
	Sentry  SentryConfig   `json:"sentry"`
	Barrel  BarrelConfig   `json:"barrel"`
	Plant   PlantConfig    `json:"plant"`
}

// Load reads the configuration file at path, applies environment overrides
// and defaults, and validates the result. An empty path loads defaults and
// environment overrides only.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	if path != "" {
		ext := strings.ToLower(filepath.Ext(path))
		var parser koanf.Parser
		switch ext {
		case ".yaml", ".yml":
			parser = yaml.Parser()
		case ".json":
			parser = json.Parser()
		default:
			return nil, fmt.Errorf("unsupported config format: %s", ext)
		}
		if err := k.Load(file.Provider(path), parser); err != nil {
			return nil, err
		}
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), strings.ToLower(EnvPrefix))
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SetDefaults fills unset fields of every section. The MQTT client id is
// left to the agent, see BarrelMQTT and PlantMQTT.
func (c *Config) SetDefaults() {
	c.MQTT.SetDefaults("")
	c.Log.SetDefaults()
	c.Journal.SetDefaults()
	c.Barrel.SetDefaults()
	c.Plant.SetDefaults()
}

// Validate checks every section.
func (c Config) Validate() error {
	if err := c.MQTT.Validate(); err != nil {
		return err
	}
	if err := c.Log.Validate(); err != nil {
		return err
	}
	if err := c.Journal.Validate(); err != nil {
		return err
	}
	if err := c.Metrics.Validate(); err != nil {
		return err
	}
	if err := c.Sentry.Validate(); err != nil {
		return err
	}
	if err := c.Barrel.Validate(); err != nil {
		return fmt.Errorf("barrel: %w", err)
	}
	if err := c.Plant.Validate(); err != nil {
		return fmt.Errorf("plant: %w", err)
	}
	return nil
}

// BarrelMQTT returns the MQTT settings of the barrel agent.
func (c Config) BarrelMQTT() mqtt.Config {
	m := c.MQTT
	m.SetDefaults(c.Barrel.ClientID)
	return m
}

// PlantMQTT returns the MQTT settings of the plant agent.
func (c Config) PlantMQTT() mqtt.Config {
	m := c.MQTT
	m.SetDefaults(c.Plant.ClientID)
	return m
}
