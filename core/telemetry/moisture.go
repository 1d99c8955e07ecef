package telemetry

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/kilianp07/rainbarrel/core/events"
	"github.com/kilianp07/rainbarrel/core/hardware"
)

// WaterRequest makes the plant agent ask the barrel for water when the
// moisture reading crosses Threshold.
type WaterRequest struct {
	Enabled   bool    `json:"enabled"`
	Topic     string  `json:"topic"`
	Threshold float64 `json:"threshold"`
	// DryAbove is set for probes whose reading rises as the soil dries.
	DryAbove        bool    `json:"dry_above"`
	Seconds         float64 `json:"seconds"`
	CooldownSeconds float64 `json:"cooldown_seconds"`
}

// SetDefaults fills unset fields.
func (w *WaterRequest) SetDefaults() {
	if w.Topic == "" {
		w.Topic = "Den/Barrel/cmd"
	}
	if w.Seconds == 0 {
		w.Seconds = 5
	}
	if w.CooldownSeconds == 0 {
		w.CooldownSeconds = 3600
	}
}

// Validate checks an enabled request.
func (w WaterRequest) Validate() error {
	if !w.Enabled {
		return nil
	}
	if w.Topic == "" {
		return errors.New("water request topic is required")
	}
	if w.Seconds <= 0 {
		return errors.New("water request seconds must be positive")
	}
	if w.CooldownSeconds < 0 {
		return errors.New("water request cooldown must not be negative")
	}
	return nil
}

func (w WaterRequest) dry(v float64) bool {
	if w.DryAbove {
		return v > w.Threshold
	}
	return v < w.Threshold
}

// EncodeFunc builds the watering request payload for a duration.
type EncodeFunc func(seconds float64) ([]byte, error)

// MoistureJob runs the moisture probe and publishes its output verbatim.
type MoistureJob struct {
	base
	probe hardware.Probe
	pub   Publisher
	topic string

	req    WaterRequest
	encode EncodeFunc
	mu     sync.Mutex
	last   time.Time
}

// NewMoistureJob creates a job publishing probe output to topic.
func NewMoistureJob(p hardware.Probe, pub Publisher, topic string, opts ...Option) *MoistureJob {
	j := &MoistureJob{base: newBase(AgentPlant), probe: p, pub: pub, topic: topic}
	for _, opt := range opts {
		opt(&j.base)
	}
	return j
}

// EnableWaterRequest turns on watering requests, encoded with enc.
func (j *MoistureJob) EnableWaterRequest(req WaterRequest, enc EncodeFunc) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.req = req
	j.encode = enc
}

// Sample runs the probe once. A probe failure is reported and nothing is
// published.
func (j *MoistureJob) Sample(ctx context.Context) {
	start := j.now()
	out, err := j.probe.Measure(ctx)
	if err != nil {
		err = fmt.Errorf("moisture probe: %w", err)
		j.log.Errorf("%v", err)
		j.report(events.SampleFailed, 0, err, start)
		j.capture(err, "probe")
		return
	}
	if err := j.pub.Publish(j.topic, []byte(out)); err != nil {
		err = fmt.Errorf("publish moisture: %w", err)
		j.log.Errorf("%v", err)
		j.report(events.SampleFailed, 0, err, start)
		j.capture(err, "moisture")
		return
	}

	value, numeric := parseReading(out)
	j.log.Debugw("moisture published", map[string]any{"output": strings.TrimSpace(out)})
	j.report(events.SamplePublished, value, nil, start)
	if numeric {
		j.maybeRequestWater(value)
	}
}

func (j *MoistureJob) maybeRequestWater(v float64) {
	j.mu.Lock()
	req := j.req
	if !req.Enabled || j.encode == nil || !req.dry(v) {
		j.mu.Unlock()
		return
	}
	now := j.now()
	cooldown := time.Duration(req.CooldownSeconds * float64(time.Second))
	if !j.last.IsZero() && now.Sub(j.last) < cooldown {
		j.mu.Unlock()
		j.log.Debugw("water request suppressed by cooldown", map[string]any{"reading": v})
		return
	}
	j.last = now
	j.mu.Unlock()

	payload, err := j.encode(req.Seconds)
	if err == nil {
		err = j.pub.Publish(req.Topic, payload)
	}
	if err != nil {
		err = fmt.Errorf("request water: %w", err)
		j.log.Errorf("%v", err)
		j.capture(err, "water_request")
		return
	}
	j.log.Infof("requested %gs of water (reading %g)", req.Seconds, v)
}

// parseReading extracts a number from the probe output, which may carry a
// trailing newline.
func parseReading(out string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(out), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
