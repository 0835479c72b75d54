package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lakegate_requests_total",
		Help: "Requests by operation and outcome.",
	}, []string{"operation", "outcome"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "lakegate_request_duration_seconds",
		Help:    "End-to-end request latency.",
		Buckets: prometheus.ExponentialBuckets(0.005, 2, 14),
	}, []string{"operation"})

	phaseDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "lakegate_phase_duration_seconds",
		Help:    "Latency of individual lifecycle phases.",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
	}, []string{"phase"})

	rejectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lakegate_rejections_total",
		Help: "Requests rejected before execution, by reason.",
	}, []string{"reason"})

	rowsReturned = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "lakegate_rows_returned",
		Help:    "Result row counts of successful reads.",
		Buckets: prometheus.ExponentialBuckets(1, 4, 10),
	})
)
