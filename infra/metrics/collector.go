package metrics

import (
	"context"

	"github.com/kilianp07/rainbarrel/core/events"
	"github.com/kilianp07/rainbarrel/core/logger"
	coremetrics "github.com/kilianp07/rainbarrel/core/metrics"
	"github.com/kilianp07/rainbarrel/internal/eventbus"
)

// StartEventCollector subscribes to the event bus and records metrics for
// events. It stops when the context is canceled or the bus is closed. The
// returned channel is closed once the collector has exited.
func StartEventCollector(ctx context.Context, bus *eventbus.TypedBus[events.Event], sink coremetrics.MetricsSink, log logger.Logger) <-chan struct{} {
	done := make(chan struct{})
	if bus == nil || sink == nil {
		close(done)
		return done
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	sub := bus.Subscribe()
	go func() {
		defer close(done)
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				if err := record(sink, ev); err != nil {
					log.Warnf("record %T: %v", ev, err)
				}
			}
		}
	}()
	return done
}

func record(sink coremetrics.MetricsSink, ev events.Event) error {
	switch e := ev.(type) {
	case events.CommandEvent:
		if r, ok := sink.(coremetrics.CommandRecorder); ok {
			name := e.Name
			if name == "" {
				name = "-"
			}
			return r.RecordCommand(coremetrics.CommandRecord{
				Command: name,
				Outcome: string(e.Outcome),
				Topic:   e.Topic,
				Time:    e.Time,
			})
		}
	case events.ActuatorEvent:
		if r, ok := sink.(coremetrics.ActuationRecorder); ok {
			open := e.Action == events.ActuatorActivated || e.Action == events.ActuatorRetriggered
			return r.RecordActuation(coremetrics.ActuationRecord{
				Action:   string(e.Action),
				Duration: e.Duration,
				Reason:   e.Reason,
				Open:     open,
				Time:     e.Time,
			})
		}
	case events.SampleEvent:
		return sink.RecordSample(coremetrics.SampleRecord{
			Agent:   e.Agent,
			Outcome: string(e.Outcome),
			Value:   e.Value,
			Latency: e.Latency,
			Time:    e.Time,
		})
	}
	return nil
}
