package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Request metrics
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "foundry_requests_total",
			Help: "Total number of invocation requests by outcome",
		},
		[]string{"outcome"},
	)

	RequestDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "foundry_request_duration_seconds",
			Help:    "End-to-end invocation request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Action metrics
	ActionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "foundry_actions_total",
			Help: "Total number of executed actions by kind",
		},
		[]string{"kind"},
	)

	CommandsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "foundry_commands_total",
			Help: "Total number of executed commands by outcome",
		},
		[]string{"outcome"},
	)

	CommandDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "foundry_command_duration_seconds",
			Help:    "Wall-clock duration of command execution in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Sandbox metrics
	SandboxesActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "foundry_sandboxes_active",
			Help: "Number of currently live sandboxes",
		},
	)

	SandboxCreateDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "foundry_sandbox_create_duration_seconds",
			Help:    "Time taken to create a sandbox in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Shim metrics
	ShimRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "foundry_shim_requests_total",
			Help: "Total number of shim preprocess calls by result",
		},
		[]string{"result"},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(RequestsTotal)
	prometheus.MustRegister(RequestDuration)
	prometheus.MustRegister(ActionsTotal)
	prometheus.MustRegister(CommandsTotal)
	prometheus.MustRegister(CommandDuration)
	prometheus.MustRegister(SandboxesActive)
	prometheus.MustRegister(SandboxCreateDuration)
	prometheus.MustRegister(ShimRequestsTotal)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// Duration returns the elapsed time since timer started
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
