// Package app wires the core components into the two device agents.
package app

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/kilianp07/rainbarrel/config"
	"github.com/kilianp07/rainbarrel/core/command/journal"
	"github.com/kilianp07/rainbarrel/core/events"
	"github.com/kilianp07/rainbarrel/core/hardware"
	coremetrics "github.com/kilianp07/rainbarrel/core/metrics"
	coremon "github.com/kilianp07/rainbarrel/core/monitoring"
	coremqtt "github.com/kilianp07/rainbarrel/core/mqtt"
	"github.com/kilianp07/rainbarrel/infra/logger"
	"github.com/kilianp07/rainbarrel/infra/metrics"
	"github.com/kilianp07/rainbarrel/infra/monitoring"
	"github.com/kilianp07/rainbarrel/infra/mqtt"
	"github.com/kilianp07/rainbarrel/internal/eventbus"
)

// Session is the broker connection an agent drives.
type Session interface {
	coremqtt.Session
	OnReady(f func())
	Connect(ctx context.Context) error
	Disconnect()
}

var _ Session = (*mqtt.Session)(nil)

type options struct {
	session Session
	clock   clock.Clock
	board   hardware.Board
	probe   hardware.Probe
	sink    coremetrics.MetricsSink
	monitor coremon.Monitor
	journal journal.Store
}

// Option replaces a collaborator that would otherwise be built from the
// configuration.
type Option func(*options)

// WithSession uses s instead of a paho session.
func WithSession(s Session) Option { return func(o *options) { o.session = s } }

// WithClock replaces the wall clock of timers and schedulers.
func WithClock(c clock.Clock) Option { return func(o *options) { o.clock = c } }

// WithBoard uses b instead of the configured hardware board.
func WithBoard(b hardware.Board) Option { return func(o *options) { o.board = b } }

// WithProbe uses p instead of the configured probe command.
func WithProbe(p hardware.Probe) Option { return func(o *options) { o.probe = p } }

// WithSink records metrics to s instead of the configured sinks.
func WithSink(s coremetrics.MetricsSink) Option { return func(o *options) { o.sink = s } }

// WithMonitor reports errors to m instead of Sentry.
func WithMonitor(m coremon.Monitor) Option { return func(o *options) { o.monitor = m } }

// WithJournal records commands to s instead of the configured journal.
func WithJournal(s journal.Store) Option { return func(o *options) { o.journal = s } }

// runtime holds what both agents share.
type runtime struct {
	name string
	cfg  *config.Config
	log  logger.Logger
	clk  clock.Clock
	bus  *eventbus.TypedBus[events.Event]
	sink coremetrics.MetricsSink
	mon  coremon.Monitor
	sess Session

	logCloser io.Closer
	startOnce sync.Once
	closeOnce sync.Once
}

func newRuntime(name string, cfg *config.Config, mqttCfg mqtt.Config, o *options) (*runtime, error) {
	closer, err := logger.Configure(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	r := &runtime{name: name, cfg: cfg, log: logger.New(name), clk: o.clock, logCloser: closer}
	if r.clk == nil {
		r.clk = clock.New()
	}

	r.mon = o.monitor
	if r.mon == nil {
		sc := cfg.Sentry
		if sc.ServerName == "" {
			sc.ServerName = mqttCfg.ClientID
		}
		if r.mon, err = monitoring.NewSentryMonitor(sc, name); err != nil {
			_ = closer.Close()
			return nil, err
		}
	}
	coremon.Init(r.mon)

	r.sink = o.sink
	if r.sink == nil {
		if r.sink, err = coremetrics.NewMetricsSink(cfg.Metrics.Sinks); err != nil {
			_ = closer.Close()
			return nil, fmt.Errorf("metrics sink: %w", err)
		}
	}

	r.sess = o.session
	if r.sess == nil {
		s, err := mqtt.NewSession(mqttCfg, logger.New("mqtt"))
		if err != nil {
			r.closeSink()
			_ = closer.Close()
			return nil, fmt.Errorf("mqtt session: %w", err)
		}
		r.sess = s
	}
	r.bus = eventbus.NewTyped[events.Event]()
	return r, nil
}

// run connects the session and starts loop once the first connection is
// ready. It blocks until ctx is done, then waits for loop, runs stop and
// disconnects.
func (r *runtime) run(parent context.Context, loop func(context.Context), stop func()) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	collected := metrics.StartEventCollector(ctx, r.bus, r.sink, logger.New("metrics"))
	if addr := r.cfg.Metrics.PrometheusAddr; addr != "" {
		go func() {
			if err := metrics.StartPromServer(ctx, addr, nil, r.log); err != nil {
				r.log.Errorf("prom server: %v", err)
			}
		}()
	}

	var wg sync.WaitGroup
	r.sess.OnReady(func() {
		r.startOnce.Do(func() {
			r.log.Infof("%s agent ready", r.name)
			wg.Add(1)
			go func() {
				defer wg.Done()
				runGuarded(ctx, loop)
			}()
		})
	})

	err := r.sess.Connect(ctx)
	if err == nil {
		<-ctx.Done()
	}
	cancel()
	// Blocks a concurrent start and prevents any later one.
	r.startOnce.Do(func() {})
	wg.Wait()
	if stop != nil {
		stop()
	}
	r.sess.Disconnect()
	<-collected
	if err != nil && parent.Err() == nil {
		r.log.Errorf("connect: %v", err)
		coremon.CaptureException(err, map[string]string{"agent": r.name, "module": "mqtt"})
		return err
	}
	r.log.Infof("%s agent stopped", r.name)
	return nil
}

func (r *runtime) closeSink() {
	if c, ok := r.sink.(coremetrics.Closer); ok {
		c.Close()
	}
}

// close releases the shared resources. It is safe to call more than once.
func (r *runtime) close(release func() error) error {
	var err error
	r.closeOnce.Do(func() {
		if release != nil {
			err = release()
		}
		r.bus.Close()
		r.closeSink()
		r.mon.Flush(2 * time.Second)
		if cerr := r.logCloser.Close(); cerr != nil && err == nil {
			err = cerr
		}
	})
	return err
}

// runGuarded reports a panicking loop to the monitor before it crashes the
// agent.
func runGuarded(ctx context.Context, loop func(context.Context)) {
	defer coremon.Recover()
	loop(ctx)
}
