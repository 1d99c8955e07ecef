package metrics

import (
	"context"
	"math"
	"net/http"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/rainbarrel/core/metrics"
	"github.com/kilianp07/rainbarrel/infra/logger"
)

// InfluxConfig locates the InfluxDB bucket.
type InfluxConfig struct {
	URL    string `json:"url"`
	Token  string `json:"token"`
	Org    string `json:"org"`
	Bucket string `json:"bucket"`
}

// InfluxSink writes agent activity to an InfluxDB instance using the
// official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(cfg InfluxConfig) *InfluxSink {
	base := strings.TrimSuffix(cfg.URL, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, cfg.Token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback pings the InfluxDB instance and returns a
// NopSink if the health check fails.
func NewInfluxSinkWithFallback(cfg InfluxConfig) coremetrics.MetricsSink {
	sink := NewInfluxSink(cfg)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// RecordSample writes one sampling tick.
func (s *InfluxSink) RecordSample(rec coremetrics.SampleRecord) error {
	p := write.NewPointWithMeasurement("sample").
		AddTag("agent", rec.Agent).
		AddTag("outcome", rec.Outcome).
		AddField("value", round3(rec.Value)).
		AddField("latency_ms", round3(rec.Latency.Seconds()*1000)).
		SetTime(rec.Time)
	return s.write(p)
}

// RecordCommand writes one dispatched command entry.
func (s *InfluxSink) RecordCommand(rec coremetrics.CommandRecord) error {
	p := write.NewPointWithMeasurement("command").
		AddTag("command", rec.Command).
		AddTag("outcome", rec.Outcome).
		AddTag("topic", rec.Topic).
		AddField("count", 1).
		SetTime(rec.Time)
	return s.write(p)
}

// RecordActuation writes one valve transition.
func (s *InfluxSink) RecordActuation(rec coremetrics.ActuationRecord) error {
	p := write.NewPointWithMeasurement("valve").
		AddTag("action", rec.Action)
	if rec.Reason != "" {
		p = p.AddTag("reason", rec.Reason)
	}
	p = p.AddField("open", rec.Open).
		AddField("duration_s", round3(rec.Duration.Seconds())).
		SetTime(rec.Time)
	return s.write(p)
}

func (s *InfluxSink) write(p *write.Point) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.writeAPI.WritePoint(ctx, p)
}

// Close releases the client.
func (s *InfluxSink) Close() { s.client.Close() }

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
