package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/kilianp07/rainbarrel/core/metrics"
)

// PromSink records agent activity in Prometheus metrics.
type PromSink struct {
	commands   *prometheus.CounterVec
	actuations *prometheus.CounterVec
	valveOpen  prometheus.Gauge
	samples    *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	fillLevel  prometheus.Gauge
}

// NewPromSink registers the metrics on the default Prometheus registerer.
// The HTTP endpoint is started separately with StartPromServer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer. Collectors
// already registered by an earlier sink are reused.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PromSink{
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rainbarrel_commands_total",
			Help: "Inbound command entries by outcome",
		}, []string{"command", "outcome"}),
		actuations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rainbarrel_actuations_total",
			Help: "Valve transitions by action",
		}, []string{"action"}),
		valveOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rainbarrel_valve_open",
			Help: "1 while the valve is energized",
		}),
		samples: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rainbarrel_samples_total",
			Help: "Sampling ticks by agent and outcome",
		}, []string{"agent", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rainbarrel_sample_duration_seconds",
			Help:    "Time spent in one sampling tick",
			Buckets: prometheus.DefBuckets,
		}, []string{"agent"}),
		fillLevel: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rainbarrel_fill_level_percent",
			Help: "Last published barrel fill level",
		}),
	}
	var err error
	if s.commands, err = register(reg, s.commands); err != nil {
		return nil, err
	}
	if s.actuations, err = register(reg, s.actuations); err != nil {
		return nil, err
	}
	if s.valveOpen, err = register(reg, s.valveOpen); err != nil {
		return nil, err
	}
	if s.samples, err = register(reg, s.samples); err != nil {
		return nil, err
	}
	if s.duration, err = register(reg, s.duration); err != nil {
		return nil, err
	}
	if s.fillLevel, err = register(reg, s.fillLevel); err != nil {
		return nil, err
	}
	return s, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// RecordSample counts the tick and updates the fill gauge for the barrel.
func (s *PromSink) RecordSample(rec coremetrics.SampleRecord) error {
	s.samples.WithLabelValues(rec.Agent, rec.Outcome).Inc()
	s.duration.WithLabelValues(rec.Agent).Observe(rec.Latency.Seconds())
	if rec.Agent == "barrel" && rec.Outcome == "published" {
		s.fillLevel.Set(rec.Value)
	}
	return nil
}

// RecordCommand counts a dispatched command entry.
func (s *PromSink) RecordCommand(rec coremetrics.CommandRecord) error {
	s.commands.WithLabelValues(rec.Command, rec.Outcome).Inc()
	return nil
}

// RecordActuation counts the transition and tracks the valve state.
func (s *PromSink) RecordActuation(rec coremetrics.ActuationRecord) error {
	s.actuations.WithLabelValues(rec.Action).Inc()
	if rec.Action != "rejected" {
		if rec.Open {
			s.valveOpen.Set(1)
		} else {
			s.valveOpen.Set(0)
		}
	}
	return nil
}
