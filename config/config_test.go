package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
	return path
}

//nolint:gocyclo
func TestLoad(t *testing.T) {
	path := writeConfig(t, "config.yaml", `mqtt:
  broker: "tcp://broker:1883"
  username: "user"
  password: "pass"
  qos:
    command: 2
log:
  level: "debug"
journal:
  backend: "sqlite"
  path: "/var/lib/rainbarrel/commands.db"
metrics:
  prometheus_addr: ":9100"
  sinks:
    - type: "prometheus"
sentry:
  dsn: "https://key@sentry.example/1"
  traces_sample_rate: 0.5
barrel:
  command_topic: "Garden/Barrel/cmd"
  period_seconds: 300
  samples_per_tick: 5
  calibration:
    offset: 4
    span: 70
    clamp: true
  max_duration_seconds: 120
  hardware:
    type: "sim"
    conf:
      start_cm: 20
plant:
  client_id: "plant-fern"
  probe:
    command: "./read-adc"
  water_request:
    enabled: true
    threshold: 450
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	checks := []struct {
		name string
		got  any
		want any
	}{
		{"broker", cfg.MQTT.Broker, "tcp://broker:1883"},
		{"username", cfg.MQTT.Username, "user"},
		{"qos.command", cfg.MQTT.QoS["command"], byte(2)},
		{"log.level", cfg.Log.Level, "debug"},
		{"journal.backend", cfg.Journal.Backend, "sqlite"},
		{"journal.path", cfg.Journal.Path, "/var/lib/rainbarrel/commands.db"},
		{"metrics.prometheus_addr", cfg.Metrics.PrometheusAddr, ":9100"},
		{"metrics.sinks", len(cfg.Metrics.Sinks) == 1 && cfg.Metrics.Sinks[0].Type == "prometheus", true},
		{"sentry.traces_sample_rate", cfg.Sentry.TracesSampleRate, 0.5},
		{"barrel.command_topic", cfg.Barrel.CommandTopic, "Garden/Barrel/cmd"},
		{"barrel.telemetry_topic", cfg.Barrel.TelemetryTopic, "Den/Barrel/measurements"},
		{"barrel.period", cfg.Barrel.Period(), 5 * time.Minute},
		{"barrel.samples_per_tick", cfg.Barrel.SamplesPerTick, 5},
		{"barrel.calibration.offset", cfg.Barrel.Calibration.Offset, 4.0},
		{"barrel.calibration.span", cfg.Barrel.Calibration.Span, 70.0},
		{"barrel.calibration.clamp", cfg.Barrel.Calibration.Clamp, true},
		{"barrel.max_duration", cfg.Barrel.MaxDuration(), 2 * time.Minute},
		{"barrel.hardware.type", cfg.Barrel.Hardware.Type, "sim"},
		{"plant.client_id", cfg.Plant.ClientID, "plant-fern"},
		{"plant.probe.command", cfg.Plant.Probe.Command, "./read-adc"},
		{"plant.water_request.threshold", cfg.Plant.WaterRequest.Threshold, 450.0},
		{"plant.water_request.topic", cfg.Plant.WaterRequest.Topic, "Den/Barrel/cmd"},
	}
	for _, c := range checks {
		assert.Equal(t, c.want, c.got, c.name)
	}
	assert.EqualValues(t, 20, cfg.Barrel.Hardware.Conf["start_cm"])
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "config.json", `{}`))
	require.NoError(t, err)

	assert.Equal(t, "tcp://localhost:1883", cfg.MQTT.Broker)
	assert.Empty(t, cfg.MQTT.ClientID)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "none", cfg.Journal.Backend)
	assert.Equal(t, "barrel-pi", cfg.Barrel.ClientID)
	assert.Equal(t, "Den/Barrel/cmd", cfg.Barrel.CommandTopic)
	assert.Equal(t, "Den/Barrel/measurements", cfg.Barrel.TelemetryTopic)
	assert.Equal(t, 10*time.Minute, cfg.Barrel.Period())
	assert.Equal(t, 1, cfg.Barrel.SamplesPerTick)
	assert.Equal(t, 5.0, cfg.Barrel.Calibration.Offset)
	assert.Equal(t, 67.0, cfg.Barrel.Calibration.Span)
	assert.False(t, cfg.Barrel.Calibration.Clamp)
	assert.Zero(t, cfg.Barrel.MaxDuration())
	assert.Equal(t, "gpio", cfg.Barrel.Hardware.Type)
	assert.Equal(t, "plant-jasmine", cfg.Plant.ClientID)
	assert.Equal(t, "Den/Jasmine/measurements", cfg.Plant.TelemetryTopic)
	assert.Equal(t, 10*time.Minute, cfg.Plant.Period())
	assert.Equal(t, "python adc.py", cfg.Plant.Probe.Command)
	assert.False(t, cfg.Plant.WaterRequest.Enabled)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("RB_MQTT__BROKER", "tcp://env-broker:1883")
	t.Setenv("RB_BARREL__PERIOD_SECONDS", "30")
	t.Setenv("RB_PLANT__TELEMETRY_TOPIC", "Den/Fern/measurements")

	path := writeConfig(t, "config.yaml", "mqtt:\n  broker: \"tcp://file:1883\"\n")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "tcp://env-broker:1883", cfg.MQTT.Broker)
	assert.Equal(t, 30*time.Second, cfg.Barrel.Period())
	assert.Equal(t, "Den/Fern/measurements", cfg.Plant.TelemetryTopic)
}

func TestLoadWithoutFile(t *testing.T) {
	t.Setenv("RB_LOG__LEVEL", "warn")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "tcp://localhost:1883", cfg.MQTT.Broker)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		file string
		data string
		want string
	}{
		{"format", "config.toml", "", "unsupported config format"},
		{"log level", "c.yaml", "log:\n  level: loud\n", "log level"},
		{"journal backend", "c.yaml", "journal:\n  backend: redis\n", "unknown journal backend"},
		{"metrics sink", "c.yaml", "metrics:\n  sinks:\n    - conf: {}\n", "type is required"},
		{"sentry rate", "c.yaml", "sentry:\n  traces_sample_rate: 2\n", "traces_sample_rate"},
		{"barrel span", "c.yaml", "barrel:\n  calibration:\n    offset: 5\n    span: -1\n", "barrel: calibration span"},
		{"barrel period", "c.yaml", "barrel:\n  period_seconds: -5\n", "barrel: period_seconds"},
		{"barrel cap", "c.yaml", "barrel:\n  max_duration_seconds: -1\n", "barrel: max_duration_seconds"},
		{"plant probe timeout", "c.yaml", "plant:\n  probe:\n    timeout_seconds: -1\n", "plant: probe timeout"},
		{"mqtt auth", "c.yaml", "mqtt:\n  auth_method: kerberos\n", "auth_method"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.file, tt.data))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestAgentMQTT(t *testing.T) {
	cfg := Config{}
	cfg.SetDefaults()
	assert.Equal(t, "barrel-pi", cfg.BarrelMQTT().ClientID)
	assert.Equal(t, "plant-jasmine", cfg.PlantMQTT().ClientID)

	cfg.MQTT.ClientID = "shared"
	assert.Equal(t, "shared", cfg.BarrelMQTT().ClientID)
	assert.Equal(t, "shared", cfg.PlantMQTT().ClientID)
}
