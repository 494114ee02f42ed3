package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the kiosk collectors. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	CapturesTotal      *prometheus.CounterVec
	CountdownsCanceled prometheus.Counter
	CompositeDuration  prometheus.Histogram
	AssetJobsTotal     *prometheus.CounterVec
	AssetJobDuration   *prometheus.HistogramVec
	UploadRetries      *prometheus.CounterVec
	ResetsTotal        *prometheus.CounterVec
	CurrentStep        *prometheus.GaugeVec
	CameraOpen         prometheus.Gauge
	PrintJobsTotal     *prometheus.CounterVec
	EmailsTotal        *prometheus.CounterVec
	HTTPRequests       *prometheus.CounterVec
	HTTPDuration       *prometheus.HistogramVec
}

// NewMetrics creates and registers all metrics against the given registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		CapturesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "captures_total",
				Help:      "Stills captured by outcome",
			},
			[]string{"outcome"},
		),
		CountdownsCanceled: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "countdowns_canceled_total",
				Help:      "Countdowns interrupted before reaching zero",
			},
		),
		CompositeDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "composite_duration_seconds",
				Help:      "Time spent rendering the final composite",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
		),
		AssetJobsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "asset_jobs_total",
				Help:      "Asset pipeline jobs by asset and final status",
			},
			[]string{"asset", "status"},
		),
		AssetJobDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "asset_job_duration_seconds",
				Help:      "Encode plus upload time per asset",
				Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"asset"},
		),
		UploadRetries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "upload_retries_total",
				Help:      "Object storage upload retries",
			},
			[]string{"asset"},
		),
		ResetsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "resets_total",
				Help:      "Kiosk resets by reason",
			},
			[]string{"reason"},
		),
		CurrentStep: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "current_step",
				Help:      "1 for the step the kiosk is on, 0 otherwise",
			},
			[]string{"step"},
		),
		CameraOpen: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "camera_open",
				Help:      "1 while the camera stream is held",
			},
		),
		PrintJobsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "print_jobs_total",
				Help:      "Print submissions by outcome",
			},
			[]string{"outcome"},
		),
		EmailsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "emails_total",
				Help:      "Email dispatches by outcome",
			},
			[]string{"outcome"},
		),
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "HTTP requests by route and status code",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency by route",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"route"},
		),
	}

	reg.MustRegister(
		m.CapturesTotal,
		m.CountdownsCanceled,
		m.CompositeDuration,
		m.AssetJobsTotal,
		m.AssetJobDuration,
		m.UploadRetries,
		m.ResetsTotal,
		m.CurrentStep,
		m.CameraOpen,
		m.PrintJobsTotal,
		m.EmailsTotal,
		m.HTTPRequests,
		m.HTTPDuration,
	)

	return m
}

func (m *Metrics) Capture(outcome string) {
	if m == nil {
		return
	}
	m.CapturesTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) CountdownCanceled() {
	if m == nil {
		return
	}
	m.CountdownsCanceled.Inc()
}

func (m *Metrics) ObserveComposite(start time.Time) {
	if m == nil {
		return
	}
	m.CompositeDuration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) AssetJob(asset, status string, start time.Time) {
	if m == nil {
		return
	}
	m.AssetJobsTotal.WithLabelValues(asset, status).Inc()
	m.AssetJobDuration.WithLabelValues(asset).Observe(time.Since(start).Seconds())
}

func (m *Metrics) UploadRetry(asset string) {
	if m == nil {
		return
	}
	m.UploadRetries.WithLabelValues(asset).Inc()
}

func (m *Metrics) Reset(reason string) {
	if m == nil {
		return
	}
	m.ResetsTotal.WithLabelValues(reason).Inc()
}

// Step marks step as current and clears the previous one.
func (m *Metrics) Step(previous, current string) {
	if m == nil {
		return
	}
	if previous != "" {
		m.CurrentStep.WithLabelValues(previous).Set(0)
	}
	m.CurrentStep.WithLabelValues(current).Set(1)
}

func (m *Metrics) Camera(open bool) {
	if m == nil {
		return
	}
	if open {
		m.CameraOpen.Set(1)
		return
	}
	m.CameraOpen.Set(0)
}

func (m *Metrics) PrintJob(outcome string) {
	if m == nil {
		return
	}
	m.PrintJobsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Email(outcome string) {
	if m == nil {
		return
	}
	m.EmailsTotal.WithLabelValues(outcome).Inc()
}

// HTTPRequest records one served request. route is the registered pattern,
// not the raw path.
func (m *Metrics) HTTPRequest(method, route string, status int, start time.Time) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
}
