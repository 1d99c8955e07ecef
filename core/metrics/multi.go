package metrics

import "errors"

// MultiSink fans records out to multiple sinks.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordSample forwards the record to all sinks and joins their errors.
func (m *MultiSink) RecordSample(rec SampleRecord) error {
	var errs []error
	for _, s := range m.Sinks {
		errs = append(errs, s.RecordSample(rec))
	}
	return errors.Join(errs...)
}

// RecordCommand forwards to sinks implementing CommandRecorder.
func (m *MultiSink) RecordCommand(rec CommandRecord) error {
	var errs []error
	for _, s := range m.Sinks {
		if r, ok := s.(CommandRecorder); ok {
			errs = append(errs, r.RecordCommand(rec))
		}
	}
	return errors.Join(errs...)
}

// RecordActuation forwards to sinks implementing ActuationRecorder.
func (m *MultiSink) RecordActuation(rec ActuationRecord) error {
	var errs []error
	for _, s := range m.Sinks {
		if r, ok := s.(ActuationRecorder); ok {
			errs = append(errs, r.RecordActuation(rec))
		}
	}
	return errors.Join(errs...)
}

// Closer is implemented by sinks holding connections.
type Closer interface {
	Close()
}

// Close closes every sink implementing Closer.
func (m *MultiSink) Close() {
	for _, s := range m.Sinks {
		if c, ok := s.(Closer); ok {
			c.Close()
		}
	}
}
