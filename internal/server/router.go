package server

import (
	"encoding/json"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/BaSui01/companion/internal/metrics"
)

// Routes are the handlers mounted by NewRouter.
type Routes struct {
	// Bridge serves WebSocket clients at /ws.
	Bridge http.Handler

	// Gatherer backs the metrics endpoint. Nil disables it.
	Gatherer    prometheus.Gatherer
	MetricsPath string

	// SessionStatus reports the orchestrator status for the health
	// endpoints. "ready" makes /readyz succeed.
	SessionStatus func() string
}

type healthResponse struct {
	Status  string `json:"status"`
	Session string `json:"session,omitempty"`
}

// NewRouter mounts routes behind the standard middleware chain.
func NewRouter(routes Routes, collector *metrics.Collector, logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("component", "router"))

	mux := http.NewServeMux()
	if routes.Bridge != nil {
		mux.Handle("GET /ws", routes.Bridge)
	}
	if routes.Gatherer != nil {
		path := routes.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		mux.Handle("GET "+path, promhttp.HandlerFor(routes.Gatherer, promhttp.HandlerOpts{}))
	}
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeHealth(w, http.StatusOK, healthResponse{Status: "ok", Session: sessionStatus(routes)})
	})
	mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		s := sessionStatus(routes)
		if routes.SessionStatus != nil && s != "ready" {
			writeHealth(w, http.StatusServiceUnavailable, healthResponse{Status: "not_ready", Session: s})
			return
		}
		writeHealth(w, http.StatusOK, healthResponse{Status: "ready", Session: s})
	})

	return Chain(mux,
		Recovery(logger),
		RequestID(),
		OTelTracing(),
		MetricsMiddleware(collector),
		RequestLogger(logger),
		SecurityHeaders(),
	)
}

func sessionStatus(routes Routes) string {
	if routes.SessionStatus == nil {
		return ""
	}
	return routes.SessionStatus()
}

func writeHealth(w http.ResponseWriter, status int, body healthResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
