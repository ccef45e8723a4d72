package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	UploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "photo",
		Name:      "uploads_total",
		Help:      "Total number of photo uploads by analyzer engine and outcome",
	}, []string{"engine", "outcome"})

	AnalysisFallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "photo",
		Name:      "analysis_fallbacks_total",
		Help:      "Number of times the mock analyzer substituted for a failed engine",
	}, []string{"engine"})

	NormalizationFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "photo",
		Name:      "normalization_fallbacks_total",
		Help:      "Number of uploads stored with original bytes because normalization failed",
	})

	InferenceDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "photo",
		Name:      "inference_duration_seconds",
		Help:      "Duration of analysis stages",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
	}, []string{"stage"})

	StorageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "photo",
		Name:      "storage_duration_seconds",
		Help:      "Duration of media backend saves",
		Buckets:   prometheus.DefBuckets,
	}, []string{"backend"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "photo",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "photo",
		Name:      "ws_connections",
		Help:      "Number of active WebSocket connections",
	})
)
