package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fitness",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fitness",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "path", "status"},
	)

	progressCompletions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fitness",
			Name:      "progress_completions_total",
			Help:      "Workout completion attempts by result",
		},
		[]string{"result"},
	)

	paymentCallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fitness",
			Name:      "payment_callbacks_total",
			Help:      "Payment gateway callbacks by outcome",
		},
		[]string{"outcome"},
	)

	premiumDowngrades = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fitness",
			Name:      "premium_downgrades_total",
			Help:      "Premium accounts reverted to free",
		},
		[]string{"trigger"},
	)

	bookings = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fitness",
			Name:      "bookings_total",
			Help:      "Booking attempts by result",
		},
		[]string{"result"},
	)
)

// Middleware records request count and latency per route template.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unknown"
		}
		status := strconv.Itoa(c.Writer.Status())
		httpRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		httpRequestDuration.WithLabelValues(c.Request.Method, path, status).Observe(time.Since(start).Seconds())
	}
}

// Handler serves the Prometheus scrape endpoint.
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}

func RecordCompletion(result string) {
	progressCompletions.WithLabelValues(result).Inc()
}

func RecordPaymentCallback(outcome string) {
	paymentCallbacks.WithLabelValues(outcome).Inc()
}

// RecordDowngrade counts downgrades; trigger is "lazy" or "sweep".
func RecordDowngrade(trigger string, n int) {
	premiumDowngrades.WithLabelValues(trigger).Add(float64(n))
}

func RecordBooking(result string) {
	bookings.WithLabelValues(result).Inc()
}
