package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// MetricsNamespace prefixes every metric the service exports.
const MetricsNamespace = "mentor_match"

// Route labels come from c.FullPath, so ids in the URL never become label
// values.
var (
	requestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by method, route and status.",
	}, []string{"method", "route", "status"})

	requestSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: MetricsNamespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency by method and route.",
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
	}, []string{"method", "route"})

	requestsInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Subsystem: "http",
		Name:      "requests_in_flight",
		Help:      "Requests currently being served.",
	})

	responseBytes = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: MetricsNamespace,
		Subsystem: "http",
		Name:      "response_size_bytes",
		Help:      "Response body size by route.",
		Buckets:   prometheus.ExponentialBuckets(128, 4, 7),
	}, []string{"route"})

	streamsOpen = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Subsystem: "realtime",
		Name:      "streams_open",
		Help:      "Websocket streams currently connected, by kind.",
	}, []string{"kind"})
)

func init() {
	prometheus.MustRegister(requestsTotal, requestSeconds, requestsInFlight, responseBytes, streamsOpen)
}

// Metrics records request count, latency and response size. A websocket
// stream is observed once, when it closes.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestsInFlight.Inc()
		start := time.Now()
		defer requestsInFlight.Dec()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		requestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		requestSeconds.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
		// -1 when nothing was written or the connection was hijacked
		if n := c.Writer.Size(); n >= 0 {
			responseBytes.WithLabelValues(route).Observe(float64(n))
		}
	}
}

// StreamOpened marks a websocket stream of kind as connected and returns the
// func that marks it closed.
func StreamOpened(kind string) (closed func()) {
	g := streamsOpen.WithLabelValues(kind)
	g.Inc()
	return g.Dec
}
