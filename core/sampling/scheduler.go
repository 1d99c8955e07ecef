// Package sampling runs a sampling job immediately and then periodically.
package sampling

import (
	"context"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/kilianp07/rainbarrel/core/logger"
	"github.com/kilianp07/rainbarrel/core/monitoring"
)

// DefaultPeriod is the sampling period of both agents.
const DefaultPeriod = 10 * time.Minute

// Job is one sampling action.
type Job interface {
	Sample(ctx context.Context)
}

// JobFunc adapts a function to Job.
type JobFunc func(ctx context.Context)

func (f JobFunc) Sample(ctx context.Context) { f(ctx) }

// Scheduler runs a Job on a fixed period. Executions never overlap.
type Scheduler struct {
	job    Job
	period time.Duration
	clock  clock.Clock
	log    logger.Logger
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock replaces the wall clock.
func WithClock(c clock.Clock) Option { return func(s *Scheduler) { s.clock = c } }

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option { return func(s *Scheduler) { s.log = l } }

// New creates a scheduler. A non-positive period selects DefaultPeriod.
func New(job Job, period time.Duration, opts ...Option) *Scheduler {
	if period <= 0 {
		period = DefaultPeriod
	}
	s := &Scheduler{job: job, period: period, clock: clock.New(), log: logger.NopLogger{}}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Period returns the sampling period.
func (s *Scheduler) Period() time.Duration { return s.period }

// Run executes the job now and then on every tick until ctx is done. Ticks
// that fire while the job is running are dropped.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := s.clock.Ticker(s.period)
	defer ticker.Stop()

	s.log.Infof("sampling every %s", s.period)
	s.runOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx)
			drain(ticker.C)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("sampling job panic: %v", r)
			s.log.Errorf("%v", err)
			monitoring.CaptureException(err, map[string]string{"module": "sampling"})
		}
	}()
	s.job.Sample(ctx)
}

func drain(c <-chan time.Time) {
	for {
		select {
		case <-c:
		default:
			return
		}
	}
}
