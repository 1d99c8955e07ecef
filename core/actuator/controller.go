package actuator

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/kilianp07/rainbarrel/core/events"
	"github.com/kilianp07/rainbarrel/core/hardware"
	"github.com/kilianp07/rainbarrel/core/logger"
	"github.com/kilianp07/rainbarrel/internal/eventbus"
)

var (
	// ErrInvalidDuration is returned for non-positive, NaN or infinite durations.
	ErrInvalidDuration = errors.New("activation duration must be a positive finite number of seconds")
	// ErrDurationTooLong is returned when the duration exceeds the configured maximum.
	ErrDurationTooLong = errors.New("activation duration exceeds maximum")
)

// State is the valve state.
type State int

const (
	Idle State = iota
	Active
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Active:
		return "active"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Deactivation reasons.
const (
	ReasonDeadline = "deadline"
	ReasonStop     = "stop"
	ReasonShutdown = "shutdown"
)

// maxSeconds is the largest duration time.Duration can hold.
var maxSeconds = time.Duration(math.MaxInt64).Seconds()

// Controller owns the valve output and its deadline timer.
type Controller struct {
	out   hardware.Output
	clock clock.Clock
	log   logger.Logger
	bus   eventbus.Publisher[events.Event]
	max   time.Duration

	mu       sync.Mutex
	state    State
	timer    *clock.Timer
	gen      uint64
	deadline time.Time
}

// Option configures a Controller.
type Option func(*Controller)

// WithClock replaces the wall clock, typically with clock.NewMock in tests.
func WithClock(c clock.Clock) Option { return func(ctl *Controller) { ctl.clock = c } }

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option { return func(ctl *Controller) { ctl.log = l } }

// WithBus publishes actuator events on the bus.
func WithBus(b eventbus.Publisher[events.Event]) Option {
	return func(ctl *Controller) { ctl.bus = b }
}

// WithMaxDuration rejects activations longer than d. Zero disables the cap.
func WithMaxDuration(d time.Duration) Option { return func(ctl *Controller) { ctl.max = d } }

// New returns an Idle controller driving out. Drivers are expected to start
// with the output de-energized.
func New(out hardware.Output, opts ...Option) *Controller {
	c := &Controller{out: out, clock: clock.New(), log: logger.NopLogger{}}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Activate opens the valve for the given number of seconds. An invalid
// duration is rejected without touching the valve.
func (c *Controller) Activate(seconds float64) error {
	d, err := c.validate(seconds)
	if err != nil {
		c.log.Warnw("activation rejected", map[string]any{"seconds": fmt.Sprint(seconds), "error": err.Error()})
		c.emit(events.ActuatorEvent{Action: events.ActuatorRejected, Err: err, Time: c.clock.Now()})
		return err
	}

	c.mu.Lock()
	action := events.ActuatorActivated
	if c.state == Active {
		action = events.ActuatorRetriggered
		if c.timer != nil {
			c.timer.Stop()
		}
	} else {
		c.out.SetEnergized(true)
		c.state = Active
	}
	c.gen++
	gen := c.gen
	now := c.clock.Now()
	c.deadline = now.Add(d)
	c.timer = c.clock.AfterFunc(d, func() { c.expire(gen) })
	c.mu.Unlock()

	c.log.Infof("valve %s for %s", action, d)
	c.emit(events.ActuatorEvent{Action: action, Duration: d, Time: now})
	return nil
}

// Deactivate closes the valve. Calling it while Idle is a no-op.
func (c *Controller) Deactivate() {
	c.deactivate(ReasonStop)
}

// Shutdown closes the valve before the process exits.
func (c *Controller) Shutdown() {
	c.deactivate(ReasonShutdown)
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Deadline returns when the valve will close, or the zero time when Idle.
func (c *Controller) Deadline() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Active {
		return time.Time{}
	}
	return c.deadline
}

func (c *Controller) validate(seconds float64) (time.Duration, error) {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds <= 0 {
		return 0, fmt.Errorf("%w: %v", ErrInvalidDuration, seconds)
	}
	if seconds >= maxSeconds {
		return 0, fmt.Errorf("%w: %v", ErrDurationTooLong, seconds)
	}
	d := time.Duration(seconds * float64(time.Second))
	if d <= 0 {
		return 0, fmt.Errorf("%w: %v", ErrInvalidDuration, seconds)
	}
	if c.max > 0 && d > c.max {
		return 0, fmt.Errorf("%w: %s > %s", ErrDurationTooLong, d, c.max)
	}
	return d, nil
}

// expire runs on the timer goroutine. A timer superseded by a retrigger or
// a stop may still fire if it lost the race for the mutex; the generation
// check turns it into a no-op.
func (c *Controller) expire(gen uint64) {
	c.mu.Lock()
	if gen != c.gen || c.state != Active {
		c.mu.Unlock()
		return
	}
	c.closeLocked()
	c.mu.Unlock()
	c.reportClosed(ReasonDeadline)
}

func (c *Controller) deactivate(reason string) {
	c.mu.Lock()
	if c.state == Idle {
		c.mu.Unlock()
		return
	}
	if c.timer != nil {
		c.timer.Stop()
	}
	c.gen++
	c.closeLocked()
	c.mu.Unlock()
	c.reportClosed(reason)
}

func (c *Controller) closeLocked() {
	c.out.SetEnergized(false)
	c.state = Idle
	c.timer = nil
	c.deadline = time.Time{}
}

func (c *Controller) reportClosed(reason string) {
	c.log.Infof("valve closed (%s)", reason)
	c.emit(events.ActuatorEvent{Action: events.ActuatorDeactivated, Reason: reason, Time: c.clock.Now()})
}

func (c *Controller) emit(ev events.ActuatorEvent) {
	if c.bus != nil {
		c.bus.Publish(ev)
	}
}
