package hardware

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"

	corehw "github.com/kilianp07/rainbarrel/core/hardware"
	"github.com/kilianp07/rainbarrel/core/logger"
)

// Speed of sound in cm/s at 20°C.
const speedOfSoundCMPerS = 34300.0

// GPIOConfig names the pins of the barrel board.
type GPIOConfig struct {
	ValvePin string `json:"valve_pin"`
	// PowerPin feeds the solenoid driver. "none" disables it.
	PowerPin       string `json:"power_pin"`
	TriggerPin     string `json:"trigger_pin"`
	EchoPin        string `json:"echo_pin"`
	ValveActiveLow bool   `json:"valve_active_low"`
	EchoTimeoutMS  int    `json:"echo_timeout_ms"`
}

// SetDefaults applies the pinout of the stock barrel.
func (c *GPIOConfig) SetDefaults() {
	if c.ValvePin == "" {
		c.ValvePin = "GPIO2"
	}
	if c.PowerPin == "" {
		c.PowerPin = "GPIO3"
	}
	if c.TriggerPin == "" {
		c.TriggerPin = "GPIO17"
	}
	if c.EchoPin == "" {
		c.EchoPin = "GPIO18"
	}
	if c.EchoTimeoutMS == 0 {
		c.EchoTimeoutMS = 60
	}
}

func (c GPIOConfig) hasPower() bool {
	return c.PowerPin != "" && !strings.EqualFold(c.PowerPin, "none")
}

// GPIOBoard drives the valve and the ranging sensor through GPIO lines.
type GPIOBoard struct {
	valve *gpioOutput
	power gpio.PinOut
	rng   *SonarRanger
	log   logger.Logger
}

var hostInit = func() error {
	_, err := host.Init()
	return err
}

var lookupPin = func(name string) gpio.PinIO {
	return gpioreg.ByName(name)
}

// NewGPIOBoard initializes the host drivers and claims the configured pins.
// The valve starts de-energized and the power line, if any, is raised.
func NewGPIOBoard(cfg GPIOConfig, log logger.Logger) (*GPIOBoard, error) {
	cfg.SetDefaults()
	if log == nil {
		log = logger.NopLogger{}
	}
	if err := hostInit(); err != nil {
		return nil, fmt.Errorf("periph host init: %w", err)
	}
	pin := func(name string) (gpio.PinIO, error) {
		p := lookupPin(name)
		if p == nil {
			return nil, fmt.Errorf("gpio pin %q not found", name)
		}
		return p, nil
	}
	valvePin, err := pin(cfg.ValvePin)
	if err != nil {
		return nil, err
	}
	trig, err := pin(cfg.TriggerPin)
	if err != nil {
		return nil, err
	}
	echo, err := pin(cfg.EchoPin)
	if err != nil {
		return nil, err
	}

	b := &GPIOBoard{log: log}
	b.valve = &gpioOutput{pin: valvePin, activeLow: cfg.ValveActiveLow, log: log}
	if err := b.valve.set(false); err != nil {
		return nil, fmt.Errorf("valve pin: %w", err)
	}
	if cfg.hasPower() {
		power, err := pin(cfg.PowerPin)
		if err != nil {
			return nil, err
		}
		if err := power.Out(gpio.High); err != nil {
			return nil, fmt.Errorf("power pin: %w", err)
		}
		b.power = power
	}
	b.rng, err = NewSonarRanger(trig, echo, time.Duration(cfg.EchoTimeoutMS)*time.Millisecond)
	if err != nil {
		return nil, err
	}
	log.Infof("gpio board ready: valve=%s trigger=%s echo=%s power=%s", cfg.ValvePin, cfg.TriggerPin, cfg.EchoPin, cfg.PowerPin)
	return b, nil
}

func (b *GPIOBoard) Valve() corehw.Output { return b.valve }
func (b *GPIOBoard) Ranger() corehw.Ranger { return b.rng }

// Close de-energizes the valve and drops the power line.
func (b *GPIOBoard) Close() error {
	var errs []error
	errs = append(errs, b.valve.set(false))
	if b.power != nil {
		errs = append(errs, b.power.Out(gpio.Low))
	}
	return errors.Join(errs...)
}

// gpioOutput implements hardware.Output on one GPIO line.
type gpioOutput struct {
	mu        sync.Mutex
	pin       gpio.PinOut
	activeLow bool
	log       logger.Logger
}

func (o *gpioOutput) SetEnergized(on bool) {
	if err := o.set(on); err != nil {
		o.log.Errorf("set valve %v: %v", on, err)
	}
}

func (o *gpioOutput) set(on bool) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	level := gpio.Level(on != o.activeLow)
	return o.pin.Out(level)
}

// echoPin is the input side of the ranging sensor.
type echoPin interface {
	In(pull gpio.Pull, edge gpio.Edge) error
	WaitForEdge(timeout time.Duration) bool
	Read() gpio.Level
}

// SonarRanger measures distance with an HC-SR04 style sensor: a 10µs pulse
// on trigger, then the echo line stays high for the round-trip time.
type SonarRanger struct {
	mu      sync.Mutex
	trig    gpio.PinOut
	echo    echoPin
	timeout time.Duration
	now     func() time.Time
}

// NewSonarRanger configures trigger low and echo for edge detection.
func NewSonarRanger(trig gpio.PinOut, echo echoPin, timeout time.Duration) (*SonarRanger, error) {
	if err := trig.Out(gpio.Low); err != nil {
		return nil, fmt.Errorf("trigger pin: %w", err)
	}
	if err := echo.In(gpio.PullDown, gpio.BothEdges); err != nil {
		return nil, fmt.Errorf("echo pin: %w", err)
	}
	return &SonarRanger{trig: trig, echo: echo, timeout: timeout, now: time.Now}, nil
}

// Distance returns the distance in centimetres, or Unavailable when the
// echo does not arrive in time.
func (r *SonarRanger) Distance() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.trig.Out(gpio.High); err != nil {
		return corehw.Unavailable
	}
	time.Sleep(10 * time.Microsecond)
	if err := r.trig.Out(gpio.Low); err != nil {
		return corehw.Unavailable
	}

	if !r.waitLevel(gpio.High) {
		return corehw.Unavailable
	}
	start := r.now()
	if !r.waitLevel(gpio.Low) {
		return corehw.Unavailable
	}
	return r.now().Sub(start).Seconds() * speedOfSoundCMPerS / 2
}

func (r *SonarRanger) waitLevel(want gpio.Level) bool {
	deadline := time.Now().Add(r.timeout)
	for {
		left := time.Until(deadline)
		if left <= 0 || !r.echo.WaitForEdge(left) {
			return false
		}
		if r.echo.Read() == want {
			return true
		}
	}
}
