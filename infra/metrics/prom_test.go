package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coremetrics "github.com/kilianp07/rainbarrel/core/metrics"
)

func TestPromSink_RecordCommand(t *testing.T) {
	sink, err := NewPromSinkWithRegistry(prometheus.NewRegistry())
	require.NoError(t, err)

	require.NoError(t, sink.RecordCommand(coremetrics.CommandRecord{Command: "water", Outcome: "applied"}))
	require.NoError(t, sink.RecordCommand(coremetrics.CommandRecord{Command: "water", Outcome: "applied"}))
	require.NoError(t, sink.RecordCommand(coremetrics.CommandRecord{Command: "mist", Outcome: "unknown"}))

	expected := `
# HELP rainbarrel_commands_total Inbound command entries by outcome
# TYPE rainbarrel_commands_total counter
rainbarrel_commands_total{command="mist",outcome="unknown"} 1
rainbarrel_commands_total{command="water",outcome="applied"} 2
`
	assert.NoError(t, testutil.CollectAndCompare(sink.commands, strings.NewReader(expected)))
}

func TestPromSink_RecordActuation(t *testing.T) {
	sink, err := NewPromSinkWithRegistry(prometheus.NewRegistry())
	require.NoError(t, err)

	require.NoError(t, sink.RecordActuation(coremetrics.ActuationRecord{Action: "activated", Open: true}))
	assert.Equal(t, 1.0, testutil.ToFloat64(sink.valveOpen))

	require.NoError(t, sink.RecordActuation(coremetrics.ActuationRecord{Action: "rejected"}))
	assert.Equal(t, 1.0, testutil.ToFloat64(sink.valveOpen))

	require.NoError(t, sink.RecordActuation(coremetrics.ActuationRecord{Action: "deactivated", Reason: "deadline"}))
	assert.Equal(t, 0.0, testutil.ToFloat64(sink.valveOpen))
	assert.Equal(t, 1.0, testutil.ToFloat64(sink.actuations.WithLabelValues("rejected")))
}

func TestPromSink_RecordSample(t *testing.T) {
	sink, err := NewPromSinkWithRegistry(prometheus.NewRegistry())
	require.NoError(t, err)

	require.NoError(t, sink.RecordSample(coremetrics.SampleRecord{Agent: "barrel", Outcome: "published", Value: 62.5, Latency: 30 * time.Millisecond}))
	require.NoError(t, sink.RecordSample(coremetrics.SampleRecord{Agent: "barrel", Outcome: "skipped", Value: 0}))

	assert.Equal(t, 62.5, testutil.ToFloat64(sink.fillLevel))
	assert.Equal(t, 1.0, testutil.ToFloat64(sink.samples.WithLabelValues("barrel", "skipped")))
	assert.Equal(t, 1, testutil.CollectAndCount(sink.duration))
}

func TestPromSink_ReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	s1, err := NewPromSinkWithRegistry(reg)
	require.NoError(t, err)
	s2, err := NewPromSinkWithRegistry(reg)
	require.NoError(t, err)

	require.NoError(t, s1.RecordCommand(coremetrics.CommandRecord{Command: "stop", Outcome: "applied"}))
	require.NoError(t, s2.RecordCommand(coremetrics.CommandRecord{Command: "stop", Outcome: "applied"}))
	assert.Equal(t, 2.0, testutil.ToFloat64(s1.commands.WithLabelValues("stop", "applied")))
}
