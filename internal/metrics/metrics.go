package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequests counts handled requests by method, route and status
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "parkpal_http_requests_total",
		Help: "HTTP requests handled",
	}, []string{"method", "route", "status"})

	// HTTPDuration observes request latency by route
	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "parkpal_http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	ReservationsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "parkpal_reservations_created_total",
		Help: "Reservations created",
	})

	ReservationsReleased = promauto.NewCounter(prometheus.CounterOpts{
		Name: "parkpal_reservations_released_total",
		Help: "Reservations released",
	})

	// BilledAmount sums total_cost of released reservations
	BilledAmount = promauto.NewCounter(prometheus.CounterOpts{
		Name: "parkpal_billed_amount_total",
		Help: "Sum of billed reservation costs",
	})

	// Jobs counts processed notification jobs by name and outcome
	Jobs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "parkpal_jobs_total",
		Help: "Notification jobs processed",
	}, []string{"job", "status"})

	// EnqueueFailures counts jobs that could not be queued after a commit
	EnqueueFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "parkpal_job_enqueue_failures_total",
		Help: "Jobs that failed to enqueue",
	}, []string{"job"})
)
