package app

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	coremon "github.com/kilianp07/rainbarrel/core/monitoring"
)

type panicRecorder struct {
	coremon.NopMonitor
	mu      sync.Mutex
	panics  []any
	flushed int
}

func (r *panicRecorder) CapturePanic(v any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.panics = append(r.panics, v)
}

func (r *panicRecorder) Flush(time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.flushed++
}

func TestRunGuardedReportsLoopPanic(t *testing.T) {
	rec := &panicRecorder{}
	coremon.Init(rec)
	t.Cleanup(func() { coremon.Init(coremon.NopMonitor{}) })

	assert.PanicsWithValue(t, "sampler crashed", func() {
		runGuarded(context.Background(), func(context.Context) { panic("sampler crashed") })
	})
	assert.Equal(t, []any{"sampler crashed"}, rec.panics)
	assert.Equal(t, 1, rec.flushed)
}

func TestRunGuardedPassesContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var got error
	runGuarded(ctx, func(ctx context.Context) { got = ctx.Err() })
	assert.ErrorIs(t, got, context.Canceled)
}
