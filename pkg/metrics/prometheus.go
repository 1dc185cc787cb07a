package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the video service.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP Request Metrics
	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsInFlight prometheus.Gauge

	// Call Metrics
	callsStartedTotal *prometheus.CounterVec
	callsStoppedTotal *prometheus.CounterVec
	callsFailedTotal  *prometheus.CounterVec

	// Identifier Metrics
	callIDCollisionsTotal prometheus.Counter

	// Best-effort delivery Metrics
	notificationsFailedTotal *prometheus.CounterVec
	statisticsDroppedTotal   *prometheus.CounterVec

	// WebSocket Metrics
	websocketConnections prometheus.Gauge

	// Redis Metrics
	redisDegraded     prometheus.Gauge
	redisHealthChecks prometheus.Counter
}

// NewMetrics creates all metrics on a dedicated registry
func NewMetrics(serviceName string) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)
	labels := prometheus.Labels{"service": serviceName}

	return &Metrics{
		registry: reg,

		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "http_requests_total",
				Help:        "Total number of HTTP requests",
				ConstLabels: labels,
			},
			[]string{"method", "endpoint", "status"},
		),
		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:        "http_request_duration_seconds",
				Help:        "HTTP request latency in seconds",
				ConstLabels: labels,
				Buckets:     prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),
		httpRequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Name:        "http_requests_in_flight",
				Help:        "Number of HTTP requests currently being processed",
				ConstLabels: labels,
			},
		),

		callsStartedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "video_calls_started_total",
				Help:        "Total number of started video calls",
				ConstLabels: labels,
			},
			[]string{"kind"},
		),
		callsStoppedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "video_calls_stopped_total",
				Help:        "Total number of stopped video calls",
				ConstLabels: labels,
			},
			[]string{"kind"},
		),
		callsFailedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "video_call_failures_total",
				Help:        "Total number of rejected or failed call operations",
				ConstLabels: labels,
			},
			[]string{"kind", "reason"},
		),

		callIDCollisionsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name:        "video_call_id_collisions_total",
				Help:        "Generated call identifiers that were already taken",
				ConstLabels: labels,
			},
		),

		notificationsFailedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "video_call_notifications_failed_total",
				Help:        "Live event deliveries that failed for a recipient",
				ConstLabels: labels,
			},
			[]string{"channel"},
		),
		statisticsDroppedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "video_call_statistics_dropped_total",
				Help:        "Statistics events that were not written",
				ConstLabels: labels,
			},
			[]string{"reason"},
		),

		websocketConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Name:        "websocket_connections",
				Help:        "Number of active live event WebSocket connections",
				ConstLabels: labels,
			},
		),

		redisDegraded: factory.NewGauge(
			prometheus.GaugeOpts{
				Name:        "redis_degraded_mode",
				Help:        "Indicates if Redis is in degraded mode (1 = degraded, 0 = healthy)",
				ConstLabels: labels,
			},
		),
		redisHealthChecks: factory.NewCounter(
			prometheus.CounterOpts{
				Name:        "redis_health_check_total",
				Help:        "Total number of successful Redis health checks",
				ConstLabels: labels,
			},
		),
	}
}

// Registry exposes the registry backing these metrics
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// HTTP Metrics

func (m *Metrics) RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration) {
	if m == nil {
		return
	}
	m.httpRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	m.httpRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

func (m *Metrics) IncrementHTTPRequestsInFlight() {
	if m == nil {
		return
	}
	m.httpRequestsInFlight.Inc()
}

func (m *Metrics) DecrementHTTPRequestsInFlight() {
	if m == nil {
		return
	}
	m.httpRequestsInFlight.Dec()
}

// Call Metrics

func (m *Metrics) RecordCallStarted(kind string) {
	if m == nil {
		return
	}
	m.callsStartedTotal.WithLabelValues(kind).Inc()
}

func (m *Metrics) RecordCallStopped(kind string) {
	if m == nil {
		return
	}
	m.callsStoppedTotal.WithLabelValues(kind).Inc()
}

func (m *Metrics) RecordCallFailure(kind, reason string) {
	if m == nil {
		return
	}
	m.callsFailedTotal.WithLabelValues(kind, reason).Inc()
}

func (m *Metrics) RecordCallIDCollision() {
	if m == nil {
		return
	}
	m.callIDCollisionsTotal.Inc()
}

// Delivery Metrics

func (m *Metrics) RecordNotificationFailure(channel string) {
	if m == nil {
		return
	}
	m.notificationsFailedTotal.WithLabelValues(channel).Inc()
}

func (m *Metrics) RecordStatisticsDropped(reason string) {
	if m == nil {
		return
	}
	m.statisticsDroppedTotal.WithLabelValues(reason).Inc()
}

// WebSocket Metrics

func (m *Metrics) IncWebSocketConnections() {
	if m == nil {
		return
	}
	m.websocketConnections.Inc()
}

func (m *Metrics) DecWebSocketConnections() {
	if m == nil {
		return
	}
	m.websocketConnections.Dec()
}

// Redis Metrics

func (m *Metrics) SetRedisDegraded(degraded bool) {
	if m == nil {
		return
	}
	if degraded {
		m.redisDegraded.Set(1)
		return
	}
	m.redisDegraded.Set(0)
}

func (m *Metrics) RecordRedisHealthCheck() {
	if m == nil {
		return
	}
	m.redisHealthChecks.Inc()
}
