package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bookdelivery_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "bookdelivery_http_request_duration_seconds",
		Help:    "Duration of HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	orderPlacementDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "bookdelivery_order_placement_duration_seconds",
		Help:    "Duration of order placement including lock waits and retries",
		Buckets: prometheus.DefBuckets,
	}, []string{"result"})

	booksSold = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bookdelivery_books_sold_total",
		Help: "Copies removed from stock by committed orders",
	})

	eventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bookdelivery_order_events_total",
		Help: "Order events published to the broker by result",
	}, []string{"result"})
)

// ObserveHTTPRequest records an HTTP request metric
func ObserveHTTPRequest(method, path, status string, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	httpRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// ObserveOrderPlacement records one placement attempt with its outcome.
func ObserveOrderPlacement(result string, duration time.Duration) {
	orderPlacementDuration.WithLabelValues(result).Observe(duration.Seconds())
}

// AddBooksSold adds n copies to the sold counter.
func AddBooksSold(n int) {
	if n > 0 {
		booksSold.Add(float64(n))
	}
}

// ObserveEventPublish counts a publish attempt.
func ObserveEventPublish(result string) {
	eventsPublished.WithLabelValues(result).Inc()
}
