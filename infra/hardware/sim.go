package hardware

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	corehw "github.com/kilianp07/rainbarrel/core/hardware"
	"github.com/kilianp07/rainbarrel/core/logger"
)

// SimConfig shapes the simulated barrel.
type SimConfig struct {
	// StartCM is the initial sensor distance.
	StartCM float64 `json:"start_cm"`
	// DrainCMPerSecond is how fast the surface drops while the valve is open.
	DrainCMPerSecond float64 `json:"drain_cm_per_second"`
	// EmptyCM is the distance at which the barrel is empty.
	EmptyCM float64 `json:"empty_cm"`
	// Offline makes every reading unavailable.
	Offline bool `json:"offline"`
}

// SetDefaults applies a half-full stock barrel.
func (c *SimConfig) SetDefaults() {
	if c.StartCM == 0 {
		c.StartCM = 38.5
	}
	if c.DrainCMPerSecond == 0 {
		c.DrainCMPerSecond = 0.05
	}
	if c.EmptyCM == 0 {
		c.EmptyCM = 72
	}
}

// SimBoard is an in-memory barrel. The distance grows while the valve is
// energized, up to EmptyCM.
type SimBoard struct {
	cfg   SimConfig
	clock clock.Clock
	log   logger.Logger

	mu       sync.Mutex
	distance float64
	open     bool
	since    time.Time
	switches int
}

// NewSimBoard creates a simulated board using clk for drain timing.
func NewSimBoard(cfg SimConfig, clk clock.Clock, log logger.Logger) *SimBoard {
	cfg.SetDefaults()
	if clk == nil {
		clk = clock.New()
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	return &SimBoard{cfg: cfg, clock: clk, log: log, distance: cfg.StartCM}
}

func (b *SimBoard) Valve() corehw.Output  { return simValve{b} }
func (b *SimBoard) Ranger() corehw.Ranger { return simRanger{b} }

// Close closes the valve.
func (b *SimBoard) Close() error {
	b.setOpen(false)
	return nil
}

// Open reports whether the simulated valve is energized.
func (b *SimBoard) Open() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.open
}

// Switches counts valve transitions.
func (b *SimBoard) Switches() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.switches
}

func (b *SimBoard) setOpen(on bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if on == b.open {
		return
	}
	b.advanceLocked()
	b.open = on
	b.since = b.clock.Now()
	b.switches++
	b.log.Debugf("sim valve open=%v distance=%.1fcm", on, b.distance)
}

func (b *SimBoard) advanceLocked() {
	if !b.open {
		return
	}
	now := b.clock.Now()
	b.distance += now.Sub(b.since).Seconds() * b.cfg.DrainCMPerSecond
	if b.distance > b.cfg.EmptyCM {
		b.distance = b.cfg.EmptyCM
	}
	b.since = now
}

func (b *SimBoard) read() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.cfg.Offline {
		return corehw.Unavailable
	}
	b.advanceLocked()
	return b.distance
}

type simValve struct{ b *SimBoard }

func (v simValve) SetEnergized(on bool) { v.b.setOpen(on) }

type simRanger struct{ b *SimBoard }

func (r simRanger) Distance() float64 { return r.b.read() }
