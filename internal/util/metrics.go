package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CyclesRunTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "monitoring_cycles_total",
		Help: "Total number of monitoring cycles run",
	})

	CyclesSkippedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "monitoring_cycles_skipped_total",
		Help: "Total number of scheduled cycles skipped because the previous one was still running",
	})

	CycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "monitoring_cycle_duration_seconds",
		Help:    "Duration of monitoring cycles",
		Buckets: prometheus.DefBuckets,
	})

	MonitorsCheckedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "monitors_checked_total",
		Help: "Total number of monitor checks attempted",
	})

	RecordsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stock_records_created_total",
		Help: "Total number of stock records persisted",
	})

	MonitorErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "monitor_errors_total",
		Help: "Total number of failed monitor checks",
	}, []string{"kind"})

	EventsEmittedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stock_events_emitted_total",
		Help: "Total number of stock events emitted on the bus",
	}, []string{"type"})

	UpstreamRequestLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "whmcs_request_duration_seconds",
		Help:    "Latency of WHMCS API requests",
		Buckets: prometheus.DefBuckets,
	})

	UpstreamRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "whmcs_request_retries_total",
		Help: "Total number of retried WHMCS API requests",
	})

	UpstreamCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "whmcs_cache_hits_total",
		Help: "Total number of WHMCS response cache hits",
	})

	UpstreamCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "whmcs_cache_misses_total",
		Help: "Total number of WHMCS response cache misses",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
