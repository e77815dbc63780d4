package handlers

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"time"

	prometheus "github.com/prometheus/client_golang/prometheus"
	promhttp "github.com/prometheus/client_golang/prometheus/promhttp"

	logger "github.com/inference-gateway/desktop-agent/internal/logger"
)

// NewRouter registers every route of the HTTP API. A nil gatherer disables
// the metrics endpoint.
func NewRouter(api *APIHandler, ws *WebSocketHandler, gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", api.HandleIndex)
	mux.HandleFunc("/health", api.HandleHealth)
	mux.HandleFunc("/screenshot", api.HandleScreenshot)
	mux.HandleFunc("/action", api.HandleAction)
	mux.HandleFunc("/task", api.HandleTask)
	mux.HandleFunc("/sessions", api.HandleSessions)
	mux.HandleFunc("/logs/summary", api.HandleLogSummary)
	mux.HandleFunc("/screenshots", api.HandleRecentScreenshots)
	mux.HandleFunc("/screenshots/latest", api.HandleLatestScreenshot)
	mux.HandleFunc("/ws", ws.HandleWebSocket)

	if gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	return logRequests(mux)
}

// statusRecorder captures the response status for request logging
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// Hijack lets the WebSocket upgrader take over the connection
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return hijacker.Hijack()
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		logger.Debug("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start).String())
	})
}
