// Package metrics holds the prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campaign_api_http_requests_total",
			Help: "Total number of HTTP requests by route and status",
		},
		[]string{"method", "route", "status"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "campaign_api_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"method", "route"},
	)
	BudgetRejections = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "campaign_api_budget_rejections_total",
			Help: "Campaign writes rejected for exceeding the monthly budget",
		},
	)
	RateLimited = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "campaign_api_rate_limited_total",
			Help: "Agent requests rejected by the rate limiter",
		},
	)
	AuthFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campaign_api_auth_failures_total",
			Help: "Agent authentication and authorization failures by reason",
		},
		[]string{"reason"},
	)
	AuditEntries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campaign_api_audit_entries_total",
			Help: "Audit log entries by outcome",
		},
		[]string{"outcome"},
	)
	AuditQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "campaign_api_audit_queue_depth",
			Help: "Audit records waiting to be persisted",
		},
	)
)

func init() {
	prometheus.MustRegister(HTTPRequestsTotal)
	prometheus.MustRegister(HTTPRequestDuration)
	prometheus.MustRegister(BudgetRejections)
	prometheus.MustRegister(RateLimited)
	prometheus.MustRegister(AuthFailures)
	prometheus.MustRegister(AuditEntries)
	prometheus.MustRegister(AuditQueueDepth)
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
