package telemetry

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	cal := DefaultCalibration()
	cases := []struct {
		name     string
		distance float64
		want     float64
	}{
		{"full", 5, 100},
		{"empty", 72, 0},
		{"half", 38.5, 50},
		{"overfull extrapolates", 0, 100 + 5.0/67*100},
		{"below empty extrapolates", 139, -100},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.want, Normalize(tc.distance, cal), 1e-9)
		})
	}
}

func TestNormalize_Clamp(t *testing.T) {
	cal := DefaultCalibration()
	cal.Clamp = true
	assert.Equal(t, 100.0, Normalize(0, cal))
	assert.Equal(t, 0.0, Normalize(200, cal))
	assert.InDelta(t, 50, Normalize(38.5, cal), 1e-9)
}

func TestNormalize_Deterministic(t *testing.T) {
	cal := DefaultCalibration()
	for _, d := range []float64{5, 17.3, 71.9, 1000} {
		assert.Equal(t, Normalize(d, cal), Normalize(d, cal))
	}
}

func TestCalibration_Validate(t *testing.T) {
	assert.NoError(t, DefaultCalibration().Validate())
	assert.Error(t, Calibration{Offset: 5, Span: 0}.Validate())
	assert.Error(t, Calibration{Offset: 5, Span: -3}.Validate())
	assert.Error(t, Calibration{Offset: 5, Span: math.NaN()}.Validate())
	assert.Error(t, Calibration{Offset: math.Inf(1), Span: 67}.Validate())
}
