package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	requestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.3, 1, 3},
		},
		[]string{"method", "route"},
	)

	inFlightRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_in_flight_requests",
			Help: "Current number of in-flight HTTP requests",
		},
	)
)

// TaskStats is sampled on every /metrics scrape.
type TaskStats struct {
	Total     int
	Completed int
	Pending   int
}

// RegisterTaskGauges exposes the task store's population as gauges. The stats
// function must be safe to call from the prometheus scrape goroutine.
func RegisterTaskGauges(stats func() TaskStats) {
	promauto.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "tasks_total",
		Help: "Total number of tasks in the store",
	}, func() float64 { return float64(stats().Total) })

	promauto.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "tasks_completed",
		Help: "Number of completed tasks",
	}, func() float64 { return float64(stats().Completed) })

	promauto.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "tasks_pending",
		Help: "Number of pending tasks",
	}, func() float64 { return float64(stats().Pending) })
}

// MetricsMiddleware records count, duration and in-flight gauges per request.
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		inFlightRequests.Inc()
		defer inFlightRequests.Dec()

		route := normalizeRoute(r.URL.Path)
		method := r.Method

		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start).Seconds()

		status := strconv.Itoa(wrapped.statusCode)
		requestsTotal.WithLabelValues(method, route, status).Inc()
		requestDuration.WithLabelValues(method, route).Observe(duration)
	})
}

// normalizeRoute collapses task ids into a {id} placeholder so the route
// label stays low-cardinality.
func normalizeRoute(path string) string {
	parts := strings.Split(path, "/")
	for i, part := range parts {
		if strings.HasPrefix(part, "t_") {
			parts[i] = "{id}"
		}
	}
	return strings.Join(parts, "/")
}

// MetricsHandler serves /metrics.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
