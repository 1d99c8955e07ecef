package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/rainbarrel/core/command/journal"
	"github.com/kilianp07/rainbarrel/core/events"
	"github.com/kilianp07/rainbarrel/core/logger"
	"github.com/kilianp07/rainbarrel/internal/eventbus"
)

// Actuator is the part of the actuation controller the dispatcher drives.
type Actuator interface {
	Activate(seconds float64) error
	Deactivate()
}

// Dispatcher routes decoded batch entries to their handlers.
type Dispatcher struct {
	act     Actuator
	log     logger.Logger
	bus     eventbus.Publisher[events.Event]
	journal journal.Store
	now     func() time.Time
	timeout time.Duration
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option { return func(d *Dispatcher) { d.log = l } }

// WithBus publishes one CommandEvent per entry on the bus.
func WithBus(b eventbus.Publisher[events.Event]) Option {
	return func(d *Dispatcher) { d.bus = b }
}

// WithJournal records every batch in s.
func WithJournal(s journal.Store) Option { return func(d *Dispatcher) { d.journal = s } }

// WithNow replaces the time source used for event and journal timestamps.
func WithNow(now func() time.Time) Option { return func(d *Dispatcher) { d.now = now } }

// NewDispatcher creates a dispatcher driving act.
func NewDispatcher(act Actuator, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		act:     act,
		log:     logger.NopLogger{},
		journal: journal.NopStore{},
		now:     time.Now,
		timeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch invokes one handler per recognized entry and reports every
// unrecognized one. Handler failures are reported, never returned, and do
// not stop the remaining entries.
func (d *Dispatcher) Dispatch(ctx context.Context, topic string, batch Batch) {
	rec := journal.Record{
		ID:        uuid.NewString(),
		Timestamp: d.now(),
		Topic:     topic,
		Entries:   make([]journal.Entry, 0, len(batch)),
	}
	for _, e := range batch {
		outcome, err := d.apply(e)
		ev := events.CommandEvent{Name: e.Name, Topic: topic, Outcome: outcome, Err: err, Time: d.now()}
		d.emit(ev)
		je := journal.Entry{Name: e.Name, Arg: string(e.Raw), Outcome: string(outcome)}
		if err != nil {
			je.Error = err.Error()
		}
		rec.Entries = append(rec.Entries, je)
	}
	d.record(ctx, rec)
}

func (d *Dispatcher) apply(e Entry) (events.CommandOutcome, error) {
	switch c := e.Command.(type) {
	case Water:
		if err := d.act.Activate(c.Seconds); err != nil {
			return events.CommandRejected, err
		}
		return events.CommandApplied, nil
	case Stop:
		d.act.Deactivate()
		return events.CommandApplied, nil
	case Unknown:
		d.log.Warnw("unknown command", map[string]any{"command": c.Name, "arg": string(e.Raw)})
		return events.CommandUnknown, nil
	default:
		err := fmt.Errorf("unhandled command type %T", c)
		d.log.Errorf("%v", err)
		return events.CommandUnknown, err
	}
}

// HandleMessage decodes and dispatches an inbound payload. It has the
// signature of a session message handler.
func (d *Dispatcher) HandleMessage(topic string, payload []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	batch, err := Decode(payload)
	if err != nil {
		d.log.Errorf("drop message on %s: %v", topic, err)
		d.emit(events.CommandEvent{Topic: topic, Outcome: events.CommandMalformed, Err: err, Time: d.now()})
		d.record(ctx, journal.Record{
			ID:        uuid.NewString(),
			Timestamp: d.now(),
			Topic:     topic,
			Error:     err.Error(),
		})
		return
	}
	d.log.Debugw("command batch", map[string]any{"topic": topic, "entries": len(batch)})
	d.Dispatch(ctx, topic, batch)
}

func (d *Dispatcher) record(ctx context.Context, rec journal.Record) {
	if err := d.journal.Append(ctx, rec); err != nil && !errors.Is(err, context.Canceled) {
		d.log.Warnf("journal append: %v", err)
	}
}

func (d *Dispatcher) emit(ev events.CommandEvent) {
	if d.bus != nil {
		d.bus.Publish(ev)
	}
}
