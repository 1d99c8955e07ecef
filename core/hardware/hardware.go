// Package hardware declares the narrow interfaces the controller uses to
// reach physical devices. Drivers live in infra/hardware.
package hardware

import (
	"context"
	"math"
)

// Unavailable is the distance reported when the ranging sensor could not
// take a measurement.
const Unavailable = -1.0

// IsUnavailable reports whether d is the sentinel or any other value that
// cannot be a physical distance.
func IsUnavailable(d float64) bool {
	return d < 0 || math.IsNaN(d)
}

// Output drives an actuator line. Calls are synchronous and do not report
// driver faults.
type Output interface {
	SetEnergized(on bool)
}

// Ranger measures the distance from the sensor to the water surface, in
// centimetres, or returns Unavailable.
type Ranger interface {
	Distance() float64
}

// Board groups the devices attached to the barrel controller.
type Board interface {
	Valve() Output
	Ranger() Ranger
	Close() error
}

// Probe runs an external measurement and returns its raw text output.
type Probe interface {
	Measure(ctx context.Context) (string, error)
}
