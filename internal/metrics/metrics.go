package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the portal's Prometheus collectors.
type Metrics struct {
	Requests       *prometheus.CounterVec
	Latency        *prometheus.HistogramVec
	Actions        *prometheus.CounterVec
	RosterRows     *prometheus.CounterVec
	ProofsUploaded prometheus.Counter
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "portal",
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status.",
		}, []string{"route", "method", "status"}),
		Latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "portal",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		Actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "portal",
			Name:      "actions_total",
			Help:      "API actions by name and outcome (ok, failed).",
		}, []string{"action", "outcome"}),
		RosterRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "portal",
			Name:      "roster_rows_total",
			Help:      "Roster import rows by role and outcome.",
		}, []string{"role", "outcome"}),
		ProofsUploaded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "portal",
			Name:      "proofs_uploaded_total",
			Help:      "Permission proofs moved to external storage.",
		}),
	}
	reg.MustRegister(m.Requests, m.Latency, m.Actions, m.RosterRows, m.ProofsUploaded)
	return m
}

// Middleware records request counts and latency keyed by the matched route.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.Requests.WithLabelValues(route, c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
		m.Latency.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

// Action counts one API action outcome.
func (m *Metrics) Action(name string, ok bool) {
	if m == nil {
		return
	}
	outcome := "ok"
	if !ok {
		outcome = "failed"
	}
	m.Actions.WithLabelValues(name, outcome).Inc()
}

// Roster counts imported and rejected rows.
func (m *Metrics) Roster(role string, added, failed int) {
	if m == nil {
		return
	}
	m.RosterRows.WithLabelValues(role, "added").Add(float64(added))
	m.RosterRows.WithLabelValues(role, "failed").Add(float64(failed))
}
