package metrics

import "time"

// SampleRecord is the result of one sampling tick.
type SampleRecord struct {
	Agent   string
	Outcome string
	// Value is the published reading when numeric.
	Value   float64
	Latency time.Duration
	Time    time.Time
}

// MetricsSink records sampling ticks. Sinks may implement the optional
// recorders below for the other activities.
type MetricsSink interface {
	RecordSample(rec SampleRecord) error
}

// CommandRecord is one dispatched command entry.
type CommandRecord struct {
	Command string
	Outcome string
	Topic   string
	Time    time.Time
}

// CommandRecorder records dispatched commands.
type CommandRecorder interface {
	RecordCommand(rec CommandRecord) error
}

// ActuationRecord is a valve transition.
type ActuationRecord struct {
	Action   string
	Duration time.Duration
	Reason   string
	// Open reports the valve state after the transition.
	Open bool
	Time time.Time
}

// ActuationRecorder records valve transitions.
type ActuationRecorder interface {
	RecordActuation(rec ActuationRecord) error
}

// NopSink implements every recorder with no-op methods.
type NopSink struct{}

func (NopSink) RecordSample(SampleRecord) error       { return nil }
func (NopSink) RecordCommand(CommandRecord) error     { return nil }
func (NopSink) RecordActuation(ActuationRecord) error { return nil }
