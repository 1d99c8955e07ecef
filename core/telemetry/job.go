package telemetry

import (
	"encoding/json"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/kilianp07/rainbarrel/core/events"
	"github.com/kilianp07/rainbarrel/core/logger"
	"github.com/kilianp07/rainbarrel/core/monitoring"
	"github.com/kilianp07/rainbarrel/internal/eventbus"
)

// Publisher sends telemetry payloads.
type Publisher interface {
	Publish(topic string, payload []byte) error
}

// Agent names used in events and monitor tags.
const (
	AgentBarrel = "barrel"
	AgentPlant  = "plant"
)

// reading is the wire format of the barrel telemetry.
type reading struct {
	Water float64 `json:"water"`
}

func encodeReading(pct float64) ([]byte, error) {
	return json.Marshal(reading{Water: pct})
}

// base holds collaborators shared by every job.
type base struct {
	agent string
	log   logger.Logger
	bus   eventbus.Publisher[events.Event]
	mon   monitoring.Monitor
	clk   clock.Clock
}

func newBase(agent string) base {
	return base{agent: agent, log: logger.NopLogger{}, clk: clock.New()}
}

func (b *base) now() time.Time { return b.clk.Now() }

// Option configures a sampling job.
type Option func(*base)

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option { return func(b *base) { b.log = l } }

// WithBus publishes one SampleEvent per tick on the bus.
func WithBus(p eventbus.Publisher[events.Event]) Option { return func(b *base) { b.bus = p } }

// WithMonitor captures publish and probe failures. The global monitor is
// used when unset.
func WithMonitor(m monitoring.Monitor) Option { return func(b *base) { b.mon = m } }

// WithClock replaces the clock used for timestamps, cooldowns and the gap
// between burst readings.
func WithClock(c clock.Clock) Option { return func(b *base) { b.clk = c } }

func (b *base) report(outcome events.SampleOutcome, value float64, err error, start time.Time) {
	now := b.now()
	if b.bus != nil {
		b.bus.Publish(events.SampleEvent{
			Agent:   b.agent,
			Outcome: outcome,
			Value:   value,
			Err:     err,
			Latency: now.Sub(start),
			Time:    now,
		})
	}
}

func (b *base) capture(err error, module string) {
	tags := map[string]string{"agent": b.agent, "module": module}
	if b.mon != nil {
		b.mon.CaptureException(err, tags)
		return
	}
	monitoring.CaptureException(err, tags)
}
