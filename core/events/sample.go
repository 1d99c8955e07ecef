package events

import "time"

// SampleOutcome is the result of one sampling tick.
type SampleOutcome string

const (
	SamplePublished SampleOutcome = "published"
	SampleSkipped   SampleOutcome = "skipped"
	SampleFailed    SampleOutcome = "failed"
)

// SampleEvent is emitted once per tick by a sampling job. Value holds the
// published fill percentage for the barrel agent.
type SampleEvent struct {
	Agent   string
	Outcome SampleOutcome
	Value   float64
	Err     error
	Latency time.Duration
	Time    time.Time
}

func (e SampleEvent) At() time.Time { return e.Time }
