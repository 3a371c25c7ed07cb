// internal/app/system/metrics/metrics.go

// Package metrics registers the Prometheus collectors for the HTTP API and
// the chat subsystem and exposes the /metrics handler.
package metrics

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "clubhub_http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clubhub_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "clubhub_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	chatConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "clubhub_chat_connections",
		Help: "Currently open chat websocket connections.",
	})

	chatMessagesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "clubhub_chat_messages_total",
		Help: "Chat messages accepted and broadcast.",
	})

	chatDroppedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "clubhub_chat_dropped_events_total",
		Help: "Chat events dropped because a client send buffer was full.",
	})

	joinRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clubhub_join_requests_total",
			Help: "Join request state transitions.",
		},
		[]string{"outcome"},
	)
)

// Init registers all collectors in the default registry. Call once at
// startup before the handler is built.
func Init() {
	prometheus.MustRegister(
		httpInFlight,
		httpRequestsTotal,
		httpRequestDuration,
		chatConnections,
		chatMessagesTotal,
		chatDroppedTotal,
		joinRequestsTotal,
	)
}

// Handler returns the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ChatConnOpened and ChatConnClosed track the websocket connection gauge.
func ChatConnOpened() { chatConnections.Inc() }
func ChatConnClosed() { chatConnections.Dec() }

// ChatMessageSent counts an accepted chat message.
func ChatMessageSent() { chatMessagesTotal.Inc() }

// ChatEventDropped counts an event discarded due to a slow client.
func ChatEventDropped() { chatDroppedTotal.Inc() }

// JoinRequest records a join request transition: "requested", "approved",
// "denied".
func JoinRequest(outcome string) { joinRequestsTotal.WithLabelValues(outcome).Inc() }

// Instrument wraps an http.Handler with request counting and latency
// observation.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httpInFlight.Inc()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)

		status := strconv.Itoa(sw.code)
		httpRequestDuration.WithLabelValues(r.Method, r.URL.Path, status).Observe(time.Since(start).Seconds())
		httpRequestsTotal.WithLabelValues(r.Method, r.URL.Path, status).Inc()
		httpInFlight.Dec()
	})
}

// statusWriter captures the response code for labeling. It must keep
// the underlying writer's Hijacker and Flusher reachable or websocket
// upgrades and streamed responses break behind Instrument.
type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("metrics: underlying ResponseWriter does not support hijacking")
	}
	conn, rw, err := hj.Hijack()
	if err == nil {
		w.code = http.StatusSwitchingProtocols
	}
	return conn, rw, err
}

func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
