package events

import "time"

// Event is implemented by every event published on the bus.
type Event interface {
	// At returns the time the event occurred.
	At() time.Time
}
