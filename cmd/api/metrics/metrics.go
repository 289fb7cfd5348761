// Package metrics holds the API's Prometheus collectors.
package metrics

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	CalculationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sla_calculations_total",
			Help: "SLA calculations served, by endpoint and outcome.",
		},
		[]string{"endpoint", "outcome"},
	)
	CalculationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sla_calculation_duration_seconds",
			Help:    "Time spent computing SLA results, including configuration load.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
		},
		[]string{"endpoint"},
	)
	ConfigChangesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sla_config_changes_total",
			Help: "Holiday and policy changes made through the API.",
		},
		[]string{"kind"},
	)
	RateLimitRejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limit_rejections_total",
			Help: "Number of requests rejected by rate limiting.",
		},
		[]string{"route"},
	)
)

// Register adds every collector to reg.
func Register(reg prometheus.Registerer) {
	reg.MustRegister(CalculationsTotal, CalculationDuration, ConfigChangesTotal, RateLimitRejectionsTotal)
}

// Observe records one calculation that started at start.
func Observe(endpoint string, start time.Time, outcome string) {
	CalculationsTotal.WithLabelValues(endpoint, outcome).Inc()
	CalculationDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
}

// Handler exposes the default registry.
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
