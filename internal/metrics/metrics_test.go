package metrics_test

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"photobooth-kiosk/internal/metrics"
)

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *metrics.Metrics

	assert.NotPanics(t, func() {
		m.Capture("ok")
		m.Reset("manual")
		m.Step("idle", "payment")
		m.AssetJob("video", "success", time.Now())
	})
}

func TestMetrics_Records(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics("photobooth", reg)

	m.Capture("ok")
	m.Capture("ok")
	m.Reset("session_timeout")
	m.Step("idle", "payment")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.CapturesTotal.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ResetsTotal.WithLabelValues("session_timeout")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.CurrentStep.WithLabelValues("idle")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CurrentStep.WithLabelValues("payment")))
}
