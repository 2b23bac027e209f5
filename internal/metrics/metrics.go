package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hamed0406/netmanager/internal/domain"
)

const namespace = "netmanager"

// Collector owns a private registry so tests and multiple servers don't
// collide on the global one.
type Collector struct {
	reg *prometheus.Registry

	assessments        *prometheus.CounterVec
	assessmentDuration *prometheus.HistogramVec
	tiers              *prometheus.CounterVec
	httpRequests       *prometheus.CounterVec
	httpDuration       *prometheus.HistogramVec
}

func New() *Collector {
	c := &Collector{
		reg: prometheus.NewRegistry(),
		assessments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "assessment",
			Name:      "total",
			Help:      "Network assessments by outcome.",
		}, []string{"outcome"}),
		assessmentDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "assessment",
			Name:      "duration_seconds",
			Help:      "Duration of network assessments.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		}, []string{"outcome"}),
		tiers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "assessment",
			Name:      "tier_total",
			Help:      "Successful assessments by quality tier.",
		}, []string{"tier"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
	c.reg.MustRegister(
		c.assessments, c.assessmentDuration, c.tiers,
		c.httpRequests, c.httpDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// ObserveAssessment implements netquality.Recorder.
func (c *Collector) ObserveAssessment(outcome string, tier domain.Tier, d time.Duration) {
	c.assessments.WithLabelValues(outcome).Inc()
	c.assessmentDuration.WithLabelValues(outcome).Observe(d.Seconds())
	if tier != "" {
		c.tiers.WithLabelValues(string(tier)).Inc()
	}
}

func (c *Collector) ObserveHTTP(method, route string, status int, d time.Duration) {
	c.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{Registry: c.reg})
}

func (c *Collector) Registry() *prometheus.Registry { return c.reg }
