package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "endpoint", "status"})

	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "endpoint"})

	AnomaliesDetected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "anomalies_detected_total",
		Help: "Total number of anomalies detected",
	})

	ReportsBuilt = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reports_built_total",
		Help: "Total number of analytics reports built",
	}, []string{"metric"})

	ReportFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "report_failures_total",
		Help: "Total number of failed report builds by error kind",
	}, []string{"kind"})

	FetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "report_fetch_duration_seconds",
		Help:    "Duration of the record fetch for one report",
		Buckets: prometheus.DefBuckets,
	})
)
