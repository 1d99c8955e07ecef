package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/kilianp07/rainbarrel/config"
	"github.com/kilianp07/rainbarrel/core/actuator"
	"github.com/kilianp07/rainbarrel/core/command"
	"github.com/kilianp07/rainbarrel/core/command/journal"
	"github.com/kilianp07/rainbarrel/core/hardware"
	"github.com/kilianp07/rainbarrel/core/sampling"
	"github.com/kilianp07/rainbarrel/core/telemetry"
	infrahw "github.com/kilianp07/rainbarrel/infra/hardware"
	"github.com/kilianp07/rainbarrel/infra/logger"
)

// Barrel waters on command and reports the fill level of the barrel.
type Barrel struct {
	*runtime
	board   hardware.Board
	journal journal.Store
	ctl     *actuator.Controller
	disp    *command.Dispatcher
	sched   *sampling.Scheduler
}

// NewBarrel builds the barrel agent from cfg. Nothing touches the broker
// until Run.
func NewBarrel(cfg *config.Config, opts ...Option) (*Barrel, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	rt, err := newRuntime(telemetry.AgentBarrel, cfg, cfg.BarrelMQTT(), o)
	if err != nil {
		return nil, err
	}
	b := &Barrel{runtime: rt, board: o.board, journal: o.journal}

	if b.board == nil {
		if b.board, err = infrahw.NewBoard(cfg.Barrel.Hardware); err != nil {
			_ = rt.close(nil)
			return nil, fmt.Errorf("hardware %s: %w", cfg.Barrel.Hardware.Type, err)
		}
	}
	if b.journal == nil {
		if b.journal, err = journal.Open(cfg.Journal); err != nil {
			_ = rt.close(b.board.Close)
			return nil, fmt.Errorf("journal: %w", err)
		}
	}

	b.ctl = actuator.New(b.board.Valve(),
		actuator.WithClock(rt.clk),
		actuator.WithLogger(logger.New("valve")),
		actuator.WithBus(rt.bus),
		actuator.WithMaxDuration(cfg.Barrel.MaxDuration()),
	)
	b.disp = command.NewDispatcher(b.ctl,
		command.WithLogger(logger.New("dispatcher")),
		command.WithBus(rt.bus),
		command.WithJournal(b.journal),
		command.WithNow(rt.clk.Now),
	)
	job := telemetry.NewFillLevelJob(b.board.Ranger(), rt.sess, cfg.Barrel.TelemetryTopic, cfg.Barrel.Calibration,
		telemetry.WithLogger(logger.New("fill-level")),
		telemetry.WithBus(rt.bus),
		telemetry.WithMonitor(rt.mon),
		telemetry.WithClock(rt.clk),
	)
	job.SetBurst(cfg.Barrel.SamplesPerTick, cfg.Barrel.SampleGap())
	b.sched = sampling.New(job, cfg.Barrel.Period(),
		sampling.WithClock(rt.clk),
		sampling.WithLogger(logger.New("barrel-scheduler")),
	)
	return b, nil
}

// Run subscribes to the command topic, connects and samples the fill level
// until ctx is done. The valve is closed before Run returns.
func (b *Barrel) Run(ctx context.Context) error {
	if err := b.sess.Subscribe(b.cfg.Barrel.CommandTopic, b.disp.HandleMessage); err != nil {
		return fmt.Errorf("subscribe %s: %w", b.cfg.Barrel.CommandTopic, err)
	}
	return b.run(ctx, b.sched.Run, b.ctl.Shutdown)
}

// Valve reports the current valve state.
func (b *Barrel) Valve() actuator.State { return b.ctl.State() }

// Close closes the valve and releases the board, journal and sinks.
func (b *Barrel) Close() error {
	return b.close(func() error {
		b.ctl.Shutdown()
		return errors.Join(b.board.Close(), b.journal.Close())
	})
}
