package httpserver

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "The total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status", "source"},
	)

	requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "http_request_duration_seconds",
			Help: "The HTTP request latencies in seconds",
		},
		[]string{"method", "endpoint"},
	)

	proxyResponses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "asset_proxy_responses_total",
			Help: "Intercepted requests answered, by response source",
		},
		[]string{"source"},
	)

	proxyUnavailable = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "asset_proxy_unavailable_total",
			Help: "Intercepted requests with neither a network nor a cached response",
		},
	)
)

func init() {
	prometheus.MustRegister(requestsTotal)
	prometheus.MustRegister(requestDuration)
	prometheus.MustRegister(proxyResponses)
	prometheus.MustRegister(proxyUnavailable)
}

// GetRequestsTotal returns the requests total metric for middleware use
func GetRequestsTotal() *prometheus.CounterVec {
	return requestsTotal
}

// GetRequestDuration returns the request duration metric for middleware use
func GetRequestDuration() *prometheus.HistogramVec {
	return requestDuration
}

// LogMetricsInitialization logs that metrics have been initialized
func (s *Server) LogMetricsInitialization() {
	if s.logger != nil {
		s.logger.Info("Prometheus metrics initialized and registered")
		s.logger.WithFields(map[string]interface{}{
			"http_requests_total":           "Counter for HTTP requests by method, endpoint, status, source",
			"http_request_duration":         "Histogram for HTTP request duration by method, endpoint",
			"asset_proxy_responses_total":   "Counter for proxied responses by source",
			"asset_proxy_unavailable_total": "Counter for requests with no response",
			"metrics_endpoint":              "/_proxy/metrics",
		}).Debug("Available Prometheus metrics")
	}
}

// metricsEndpoint wraps the metrics handler with logging
func (s *Server) metricsEndpoint(c echo.Context) error {
	if s.logger != nil {
		s.logger.Debug("Serving Prometheus metrics")
	}
	promhttp.Handler().ServeHTTP(c.Response(), c.Request())
	return nil
}
