// Package util provides helpers shared by container-backed tests: a
// disposable Mosquitto broker with an optional mutual TLS listener, the
// certificates it trusts, and a reader for the agents' Prometheus endpoint.
package util

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
)

const (
	MosquittoReadyTimeout = 10 * time.Second

	pollInterval = 50 * time.Millisecond
)

// DockerAvailable reports whether container-backed tests may run. It is
// controlled by the DOCKER_AVAILABLE environment variable.
func DockerAvailable() bool {
	v := os.Getenv("DOCKER_AVAILABLE")
	return v == "true" || v == "1"
}

// MetricValue scrapes metricsURL and returns the value of the first series
// of family name carrying all of labels. ok is false when no series matches.
func MetricValue(ctx context.Context, metricsURL, name string, labels map[string]string) (value float64, ok bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, metricsURL, nil)
	if err != nil {
		return 0, false, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return 0, false, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return 0, false, fmt.Errorf("scrape %s: %s", metricsURL, resp.Status)
	}
	var parser expfmt.TextParser
	families, err := parser.TextToMetricFamilies(resp.Body)
	if err != nil {
		return 0, false, fmt.Errorf("parse metrics: %w", err)
	}
	mf, found := families[name]
	if !found {
		return 0, false, nil
	}
	for _, m := range mf.GetMetric() {
		if hasLabels(m, labels) {
			return seriesValue(m), true, nil
		}
	}
	return 0, false, nil
}

// WaitForMetric polls metricsURL until the series of name with labels
// reports want, or ctx is done.
func WaitForMetric(ctx context.Context, metricsURL, name string, labels map[string]string, want float64) error {
	last := "absent"
	for {
		v, ok, err := MetricValue(ctx, metricsURL, name, labels)
		switch {
		case err != nil:
			if ctx.Err() == nil {
				last = err.Error()
			}
		case ok && v == want:
			return nil
		case ok:
			last = fmt.Sprintf("%g", v)
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("metric %s%v = %g not reached (last: %s): %w", name, labels, want, last, ctx.Err())
		case <-time.After(pollInterval):
		}
	}
}

func hasLabels(m *dto.Metric, want map[string]string) bool {
	got := make(map[string]string, len(m.GetLabel()))
	for _, lp := range m.GetLabel() {
		got[lp.GetName()] = lp.GetValue()
	}
	for k, v := range want {
		if got[k] != v {
			return false
		}
	}
	return true
}

func seriesValue(m *dto.Metric) float64 {
	switch {
	case m.Counter != nil:
		return m.GetCounter().GetValue()
	case m.Gauge != nil:
		return m.GetGauge().GetValue()
	case m.Histogram != nil:
		return float64(m.GetHistogram().GetSampleCount())
	case m.Summary != nil:
		return float64(m.GetSummary().GetSampleCount())
	default:
		return m.GetUntyped().GetValue()
	}
}
