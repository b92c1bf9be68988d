package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns a private registry so several apps can coexist in one process.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	webhookEvents       *prometheus.CounterVec
	versionsSaved       *prometheus.CounterVec
	trialSweeps         *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests received.",
			},
			[]string{"method", "path", "code"},
		),
		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "code"},
		),
		webhookEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "billing_webhook_events_total",
				Help: "Stripe webhook events by type and outcome.",
			},
			[]string{"type", "outcome"},
		),
		versionsSaved: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "project_versions_saved_total",
				Help: "Project save attempts by outcome.",
			},
			[]string{"outcome"},
		),
		trialSweeps: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trial_sweep_users_total",
				Help: "Users touched by the trial sweeps.",
			},
			[]string{"kind"},
		),
	}
}

// Middleware records request count and latency per route pattern.
func (m *Metrics) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}
		// Route pattern keeps ids out of the label set.
		path := c.Route().Path
		code := strconv.Itoa(status)

		m.httpRequestsTotal.WithLabelValues(c.Method(), path, code).Inc()
		m.httpRequestDuration.WithLabelValues(c.Method(), path, code).Observe(time.Since(start).Seconds())
		return err
	}
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
}

func (m *Metrics) WebhookProcessed(eventType, outcome string) {
	m.webhookEvents.WithLabelValues(eventType, outcome).Inc()
}

func (m *Metrics) VersionSaved(outcome string) {
	m.versionsSaved.WithLabelValues(outcome).Inc()
}

func (m *Metrics) TrialSweep(kind string, count int) {
	m.trialSweeps.WithLabelValues(kind).Add(float64(count))
}
