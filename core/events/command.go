package events

import "time"

// CommandOutcome classifies what happened to one inbound command entry.
type CommandOutcome string

const (
	CommandApplied   CommandOutcome = "applied"
	CommandRejected  CommandOutcome = "rejected"
	CommandUnknown   CommandOutcome = "unknown"
	CommandMalformed CommandOutcome = "malformed"
)

// CommandEvent is published for each dispatched entry. Malformed payloads
// produce a single event with an empty Name.
type CommandEvent struct {
	Name    string
	Topic   string
	Outcome CommandOutcome
	Err     error
	Time    time.Time
}

func (e CommandEvent) At() time.Time { return e.Time }
