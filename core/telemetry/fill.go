package telemetry

import (
	"context"
	"fmt"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/kilianp07/rainbarrel/core/events"
	"github.com/kilianp07/rainbarrel/core/hardware"
)

// FillLevelJob measures the barrel and publishes its fill percentage.
type FillLevelJob struct {
	base
	ranger  hardware.Ranger
	pub     Publisher
	topic   string
	cal     Calibration
	samples int
	gap     time.Duration
}

// NewFillLevelJob creates a job publishing to topic.
func NewFillLevelJob(r hardware.Ranger, pub Publisher, topic string, cal Calibration, opts ...Option) *FillLevelJob {
	j := &FillLevelJob{base: newBase(AgentBarrel), ranger: r, pub: pub, topic: topic, cal: cal, samples: 1}
	for _, opt := range opts {
		opt(&j.base)
	}
	return j
}

// SetBurst takes n readings per tick, gap apart, and publishes their median.
func (j *FillLevelJob) SetBurst(n int, gap time.Duration) {
	if n < 1 {
		n = 1
	}
	j.samples = n
	j.gap = gap
}

// Sample runs one measurement cycle. An unavailable reading is reported and
// nothing is published.
func (j *FillLevelJob) Sample(ctx context.Context) {
	start := j.now()
	distance, ok := j.measure(ctx)
	if !ok {
		j.log.Warnw("sample skipped: ranging sensor unavailable", map[string]any{"readings": j.samples})
		j.report(events.SampleSkipped, 0, nil, start)
		return
	}

	pct := Normalize(distance, j.cal)
	payload, err := encodeReading(pct)
	if err == nil {
		err = j.pub.Publish(j.topic, payload)
	}
	if err != nil {
		err = fmt.Errorf("publish fill level: %w", err)
		j.log.Errorf("%v", err)
		j.report(events.SampleFailed, pct, err, start)
		j.capture(err, "fill_level")
		return
	}
	j.log.Debugw("fill level published", map[string]any{"distance_cm": distance, "percent": pct})
	j.report(events.SamplePublished, pct, nil, start)
}

// measure returns the median of the available readings.
func (j *FillLevelJob) measure(ctx context.Context) (float64, bool) {
	vals := make([]float64, 0, j.samples)
	for i := 0; i < j.samples; i++ {
		if i > 0 && !j.sleep(ctx, j.gap) {
			break
		}
		if d := j.ranger.Distance(); !hardware.IsUnavailable(d) {
			vals = append(vals, d)
		}
	}
	if len(vals) == 0 {
		return 0, false
	}
	sort.Float64s(vals)
	return stat.Quantile(0.5, stat.Empirical, vals, nil), true
}

func (b *base) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := b.clk.Timer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
