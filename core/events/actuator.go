package events

import "time"

// ActuatorAction is the transition reported by the actuation controller.
type ActuatorAction string

const (
	ActuatorActivated   ActuatorAction = "activated"
	ActuatorRetriggered ActuatorAction = "retriggered"
	ActuatorDeactivated ActuatorAction = "deactivated"
	ActuatorRejected    ActuatorAction = "rejected"
)

// ActuatorEvent describes a valve transition. Reason is set on
// deactivation ("deadline", "stop", "shutdown").
type ActuatorEvent struct {
	Action   ActuatorAction
	Duration time.Duration
	Reason   string
	Err      error
	Time     time.Time
}

func (e ActuatorEvent) At() time.Time { return e.Time }
