package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/BaSui01/companion/types"
)

// =============================================================================
// Collector
// =============================================================================

// Collector records orchestrator, collaborator and infrastructure metrics.
// A nil *Collector is valid and records nothing.
type Collector struct {
	// Turns
	turnsTotal   *prometheus.CounterVec
	turnDuration *prometheus.HistogramVec

	// Collaborators
	callsTotal    *prometheus.CounterVec
	callDuration  *prometheus.HistogramVec
	profileRegens *prometheus.CounterVec

	// Catalogs
	degradedButtons prometheus.Gauge
	cacheHits       *prometheus.CounterVec
	cacheMisses     *prometheus.CounterVec

	// Bridge HTTP
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	bridgeConnections   prometheus.Gauge

	// Local store
	dbQueryDuration *prometheus.HistogramVec

	logger *zap.Logger
}

// NewCollector registers every metric under namespace on reg. A nil reg
// means the default registerer.
func NewCollector(namespace string, reg prometheus.Registerer, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	c := &Collector{logger: logger.With(zap.String("component", "metrics"))}

	c.turnsTotal = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "turns_total",
		Help:      "Handled turns by kind and outcome",
	}, []string{"kind", "status"})

	c.turnDuration = f.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "turn_duration_seconds",
		Help:      "Turn duration in seconds",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	}, []string{"kind"})

	c.callsTotal = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "collaborator_calls_total",
		Help:      "Collaborator calls by operation and outcome",
	}, []string{"operation", "status"})

	c.callDuration = f.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "collaborator_call_duration_seconds",
		Help:      "Collaborator call duration in seconds",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"operation"})

	c.profileRegens = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "profile_regenerations_total",
		Help:      "Profile regenerations by outcome",
	}, []string{"status"})

	c.degradedButtons = f.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "catalog_degraded_buttons",
		Help:      "Buttons whose target entry is missing from the predefined catalog",
	})

	c.cacheHits = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cache_hits_total",
		Help:      "Catalog cache hits",
	}, []string{"catalog"})

	c.cacheMisses = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cache_misses_total",
		Help:      "Catalog cache misses",
	}, []string{"catalog"})

	c.httpRequestsTotal = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests served",
	}, []string{"method", "path", "status"})

	c.httpRequestDuration = f.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration in seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path"})

	c.bridgeConnections = f.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "bridge_connections",
		Help:      "Open websocket bridge connections",
	})

	c.dbQueryDuration = f.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "db_query_duration_seconds",
		Help:      "Local store query duration in seconds",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
	}, []string{"operation"})

	return c
}

// RecordTurn records a finished turn.
func (c *Collector) RecordTurn(kind string, err error, duration time.Duration) {
	if c == nil {
		return
	}
	c.turnsTotal.WithLabelValues(kind, outcome(err)).Inc()
	c.turnDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// RecordCall records a collaborator call.
func (c *Collector) RecordCall(operation string, err error, duration time.Duration) {
	if c == nil {
		return
	}
	c.callsTotal.WithLabelValues(operation, outcome(err)).Inc()
	c.callDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordProfileRegeneration records a profile regeneration attempt.
func (c *Collector) RecordProfileRegeneration(err error) {
	if c == nil {
		return
	}
	c.profileRegens.WithLabelValues(outcome(err)).Inc()
}

// SetDegradedButtons reports the number of degraded catalog buttons.
func (c *Collector) SetDegradedButtons(n int) {
	if c == nil {
		return
	}
	c.degradedButtons.Set(float64(n))
}

// RecordCacheLookup records a catalog cache lookup.
func (c *Collector) RecordCacheLookup(catalog string, hit bool) {
	if c == nil {
		return
	}
	if hit {
		c.cacheHits.WithLabelValues(catalog).Inc()
		return
	}
	c.cacheMisses.WithLabelValues(catalog).Inc()
}

// RecordHTTPRequest records a served HTTP request.
func (c *Collector) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	if c == nil {
		return
	}
	c.httpRequestsTotal.WithLabelValues(method, path, statusClass(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// BridgeConnected adjusts the open bridge connection gauge by delta.
func (c *Collector) BridgeConnected(delta int) {
	if c == nil {
		return
	}
	c.bridgeConnections.Add(float64(delta))
}

// RecordDBQuery records a local store query.
func (c *Collector) RecordDBQuery(operation string, duration time.Duration) {
	if c == nil {
		return
	}
	c.dbQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// outcome labels an error: "ok", or the lowercased error code, or "error".
func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	switch types.GetErrorCode(err) {
	case types.ErrConnection:
		return "connection_error"
	case types.ErrProtocol:
		return "protocol_error"
	case types.ErrProcessing:
		return "processing_error"
	case types.ErrNotFound:
		return "not_found"
	case types.ErrTurnInProgress:
		return "busy"
	case types.ErrNotReady:
		return "not_ready"
	default:
		return "error"
	}
}

func statusClass(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	case code >= 200:
		return "2xx"
	default:
		return strconv.Itoa(code)
	}
}
