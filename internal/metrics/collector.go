package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Stage label values for pipeline metrics.
const (
	StageDispatch = "dispatch"
	StageTransfer = "transfer"
	StageMetadata = "metadata"
	StageVerify   = "verify"
)

// Collector collects and exposes pipeline metrics
type Collector struct {
	registry      *prometheus.Registry
	tasksTotal    *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
	queueDepth    *prometheus.GaugeVec
}

// New creates a new metrics collector. Metrics are registered on a private
// registry so multiple collectors can coexist in one process.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		tasksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "filerelay_tasks_total",
				Help: "Total number of tasks handled per stage",
			},
			[]string{"stage", "status"},
		),
		stageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "filerelay_stage_duration_seconds",
				Help:    "Time spent processing one task in a stage",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"stage"},
		),
		queueDepth: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "filerelay_queue_depth",
				Help: "Number of tasks currently buffered in a stage queue",
			},
			[]string{"queue"},
		),
	}

	c.registry.MustRegister(c.tasksTotal)
	c.registry.MustRegister(c.stageDuration)
	c.registry.MustRegister(c.queueDepth)

	return c
}

// IncSuccess increments the success counter for a stage
func (c *Collector) IncSuccess(stage string) {
	c.tasksTotal.WithLabelValues(stage, "success").Inc()
}

// IncFailed increments the failure counter for a stage
func (c *Collector) IncFailed(stage string) {
	c.tasksTotal.WithLabelValues(stage, "failed").Inc()
}

// ObserveStageDuration observes per-task processing time in a stage
func (c *Collector) ObserveStageDuration(stage string, duration time.Duration) {
	c.stageDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

// SetQueueDepth sets the buffered task count of a stage queue
func (c *Collector) SetQueueDepth(queue string, depth int) {
	c.queueDepth.WithLabelValues(queue).Set(float64(depth))
}

// Handler returns the /metrics HTTP handler for this collector
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// StartServer starts the metrics HTTP server
func (c *Collector) StartServer(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	return http.ListenAndServe(addr, mux)
}
