// Package telemetry turns raw sensor readings into published telemetry.
package telemetry

import (
	"errors"
	"math"
)

// Default calibration of the barrel ranging sensor, in centimetres.
const (
	DefaultOffset = 5.0
	DefaultSpan   = 67.0
)

// Calibration maps a sensor distance onto a fill percentage. Offset is the
// distance reading of a full barrel and Span the distance between full and
// empty.
type Calibration struct {
	Offset float64 `json:"offset"`
	Span   float64 `json:"span"`
	// Clamp limits the result to [0,100].
	Clamp bool `json:"clamp"`
}

// DefaultCalibration returns the calibration of the stock barrel.
func DefaultCalibration() Calibration {
	return Calibration{Offset: DefaultOffset, Span: DefaultSpan}
}

// Validate rejects calibrations that cannot be normalized against.
func (c Calibration) Validate() error {
	if math.IsNaN(c.Span) || math.IsInf(c.Span, 0) || c.Span <= 0 {
		return errors.New("calibration span must be positive")
	}
	if math.IsNaN(c.Offset) || math.IsInf(c.Offset, 0) {
		return errors.New("calibration offset must be finite")
	}
	return nil
}

// Normalize converts a distance in centimetres into a fill percentage:
// Offset maps to 100 and Offset+Span to 0. Values outside that band are
// extrapolated unless Clamp is set.
func Normalize(distance float64, cal Calibration) float64 {
	pct := (1 - (distance-cal.Offset)/cal.Span) * 100
	if cal.Clamp {
		pct = math.Max(0, math.Min(100, pct))
	}
	return pct
}
