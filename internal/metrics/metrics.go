// Package metrics provides Prometheus instrumentation for the fund engine.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// DepositsTotal counts completed deposits.
	DepositsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fund_deposits_total",
		Help: "Total number of completed deposits",
	})

	// WithdrawalsTotal counts completed withdrawal requests (burns).
	WithdrawalsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fund_withdrawals_total",
		Help: "Total number of withdrawal obligations emitted",
	})

	// ReentrancyRejections counts guarded calls rejected mid-flight.
	ReentrancyRejections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fund_reentrancy_rejections_total",
		Help: "Guarded operations rejected by the reentrancy guard",
	})

	// ShareSupply tracks the outstanding claim-token supply.
	ShareSupply = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fund_share_supply",
		Help: "Outstanding claim-token share supply",
	})

	// PoolValuation tracks the current total backing valuation.
	PoolValuation = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fund_pool_valuation",
		Help: "Current total backing value of the pool",
	})

	// WebSocketClients tracks connected event-stream clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fund_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fund_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fund_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		// Use the route pattern for path label to avoid high cardinality.
		path := r.URL.Path
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
