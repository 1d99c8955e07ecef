package app

import (
	"context"

	"github.com/kilianp07/rainbarrel/config"
	"github.com/kilianp07/rainbarrel/core/command"
	"github.com/kilianp07/rainbarrel/core/hardware"
	"github.com/kilianp07/rainbarrel/core/sampling"
	"github.com/kilianp07/rainbarrel/core/telemetry"
	"github.com/kilianp07/rainbarrel/infra/logger"
	"github.com/kilianp07/rainbarrel/infra/probe"
)

// Plant reports soil moisture and may ask the barrel for water.
type Plant struct {
	*runtime
	sched *sampling.Scheduler
}

// NewPlant builds the plant agent from cfg.
func NewPlant(cfg *config.Config, opts ...Option) (*Plant, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	rt, err := newRuntime(telemetry.AgentPlant, cfg, cfg.PlantMQTT(), o)
	if err != nil {
		return nil, err
	}
	var p hardware.Probe = o.probe
	if p == nil {
		p = probe.New(cfg.Plant.Probe, logger.New("probe"))
	}

	job := telemetry.NewMoistureJob(p, rt.sess, cfg.Plant.TelemetryTopic,
		telemetry.WithLogger(logger.New("moisture")),
		telemetry.WithBus(rt.bus),
		telemetry.WithMonitor(rt.mon),
		telemetry.WithClock(rt.clk),
	)
	if cfg.Plant.WaterRequest.Enabled {
		job.EnableWaterRequest(cfg.Plant.WaterRequest, encodeWater)
	}
	sched := sampling.New(job, cfg.Plant.Period(),
		sampling.WithClock(rt.clk),
		sampling.WithLogger(logger.New("plant-scheduler")),
	)
	return &Plant{runtime: rt, sched: sched}, nil
}

func encodeWater(seconds float64) ([]byte, error) {
	return command.Encode(command.Water{Seconds: seconds})
}

// Run connects and samples the probe until ctx is done.
func (p *Plant) Run(ctx context.Context) error {
	return p.run(ctx, p.sched.Run, nil)
}

// Close releases the sinks and the log file.
func (p *Plant) Close() error { return p.close(nil) }
