package hardware

import (
	"errors"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"

	"github.com/kilianp07/rainbarrel/core/factory"
	corehw "github.com/kilianp07/rainbarrel/core/hardware"
)

func fakePins(t *testing.T) map[string]*gpiotest.Pin {
	t.Helper()
	pins := map[string]*gpiotest.Pin{
		"GPIO2":  {N: "GPIO2", Num: 2},
		"GPIO3":  {N: "GPIO3", Num: 3},
		"GPIO17": {N: "GPIO17", Num: 17},
		"GPIO18": {N: "GPIO18", Num: 18, EdgesChan: make(chan gpio.Level, 4)},
	}
	prevInit, prevLookup := hostInit, lookupPin
	hostInit = func() error { return nil }
	lookupPin = func(name string) gpio.PinIO {
		if p, ok := pins[name]; ok {
			return p
		}
		return nil
	}
	t.Cleanup(func() { hostInit, lookupPin = prevInit, prevLookup })
	return pins
}

func level(p *gpiotest.Pin) gpio.Level {
	p.Lock()
	defer p.Unlock()
	return p.L
}

func TestGPIOBoard_ValveAndPower(t *testing.T) {
	pins := fakePins(t)
	b, err := NewGPIOBoard(GPIOConfig{}, nil)
	require.NoError(t, err)

	assert.Equal(t, gpio.Low, level(pins["GPIO2"]))
	assert.Equal(t, gpio.High, level(pins["GPIO3"]))

	b.Valve().SetEnergized(true)
	assert.Equal(t, gpio.High, level(pins["GPIO2"]))
	b.Valve().SetEnergized(false)
	assert.Equal(t, gpio.Low, level(pins["GPIO2"]))

	b.Valve().SetEnergized(true)
	require.NoError(t, b.Close())
	assert.Equal(t, gpio.Low, level(pins["GPIO2"]))
	assert.Equal(t, gpio.Low, level(pins["GPIO3"]))
}

func TestGPIOBoard_ActiveLowWithoutPower(t *testing.T) {
	pins := fakePins(t)
	b, err := NewGPIOBoard(GPIOConfig{PowerPin: "none", ValveActiveLow: true}, nil)
	require.NoError(t, err)
	assert.Equal(t, gpio.High, level(pins["GPIO2"]))
	b.Valve().SetEnergized(true)
	assert.Equal(t, gpio.Low, level(pins["GPIO2"]))
	assert.Equal(t, gpio.Low, level(pins["GPIO3"]), "power pin untouched")
}

func TestGPIOBoard_MissingPin(t *testing.T) {
	fakePins(t)
	_, err := NewGPIOBoard(GPIOConfig{ValvePin: "GPIO99"}, nil)
	assert.ErrorContains(t, err, "GPIO99")
}

func TestGPIOBoard_HostInitFailure(t *testing.T) {
	fakePins(t)
	hostInit = func() error { return errors.New("no /dev/gpiomem") }
	_, err := NewGPIOBoard(GPIOConfig{}, nil)
	assert.ErrorContains(t, err, "periph host init")
}

func TestSonarRanger_Distance(t *testing.T) {
	trig := &gpiotest.Pin{N: "trig"}
	echo := &gpiotest.Pin{N: "echo", EdgesChan: make(chan gpio.Level, 2)}
	r, err := NewSonarRanger(trig, echo, 50*time.Millisecond)
	require.NoError(t, err)

	base := time.Now()
	ticks := []time.Time{base, base.Add(2 * time.Millisecond)}
	r.now = func() time.Time {
		t0 := ticks[0]
		ticks = ticks[1:]
		return t0
	}
	echo.EdgesChan <- gpio.High
	echo.EdgesChan <- gpio.Low

	assert.InDelta(t, 34.3, r.Distance(), 1e-9)
	assert.Equal(t, gpio.Low, level(trig))
}

func TestSonarRanger_Timeout(t *testing.T) {
	echo := &gpiotest.Pin{N: "echo", EdgesChan: make(chan gpio.Level, 1)}
	r, err := NewSonarRanger(&gpiotest.Pin{N: "trig"}, echo, 5*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, corehw.Unavailable, r.Distance())

	// rising edge but no falling edge
	echo.EdgesChan <- gpio.High
	assert.Equal(t, corehw.Unavailable, r.Distance())
}

func TestSimBoard_DrainsWhileOpen(t *testing.T) {
	mock := clock.NewMock()
	b := NewSimBoard(SimConfig{StartCM: 10, DrainCMPerSecond: 1, EmptyCM: 20}, mock, nil)

	assert.Equal(t, 10.0, b.Ranger().Distance())
	mock.Add(5 * time.Second)
	assert.Equal(t, 10.0, b.Ranger().Distance(), "closed valve does not drain")

	b.Valve().SetEnergized(true)
	mock.Add(3 * time.Second)
	assert.Equal(t, 13.0, b.Ranger().Distance())

	mock.Add(30 * time.Second)
	assert.Equal(t, 20.0, b.Ranger().Distance(), "capped at empty")

	require.NoError(t, b.Close())
	assert.False(t, b.Open())
	assert.Equal(t, 2, b.Switches())
}

func TestSimBoard_Offline(t *testing.T) {
	b := NewSimBoard(SimConfig{Offline: true}, clock.NewMock(), nil)
	assert.True(t, corehw.IsUnavailable(b.Ranger().Distance()))
}

func TestNewBoard(t *testing.T) {
	b, err := NewBoard(factory.ModuleConfig{Type: TypeSim, Conf: map[string]any{"start_cm": "5"}})
	require.NoError(t, err)
	assert.Equal(t, 5.0, b.Ranger().Distance())

	_, err = NewBoard(factory.ModuleConfig{Type: "arduino"})
	assert.Error(t, err)
	assert.Contains(t, Types(), TypeGPIO)
}
