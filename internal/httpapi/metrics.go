package httpapi

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clashprofile_http_requests_total",
		Help: "HTTP requests by ServeMux pattern and status.",
	}, []string{"pattern", "status"})
	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "clashprofile_http_request_duration_seconds",
		Help:    "HTTP request latency by ServeMux pattern.",
		Buckets: prometheus.DefBuckets,
	}, []string{"pattern"})
	appErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clashprofile_app_errors_total",
		Help: "Application errors returned to clients.",
	}, []string{"stage", "code"})
)

func metricsIncAppError(stage, code string) {
	stage = strings.TrimSpace(stage)
	code = strings.TrimSpace(code)
	if stage == "" {
		stage = "(unknown)"
	}
	if code == "" {
		code = "(unknown)"
	}
	appErrors.WithLabelValues(stage, code).Inc()
}
