// Package metrics holds the Prometheus instruments shared by the engine,
// the render bridge and the debug API.
//
// Labels are bounded: collider kinds, hook names and route patterns only,
// never entity IDs.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Core thread
	tickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "restep_tick_duration_seconds",
		Help:    "Time spent in one simulation tick",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05},
	})

	ticksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "restep_ticks_total",
		Help: "Simulation ticks completed",
	})

	liveEntities = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "restep_live_entities",
		Help: "Entities in the live list",
	})

	entitiesSpawned = promauto.NewCounter(prometheus.CounterOpts{
		Name: "restep_entities_spawned_total",
		Help: "Entities admitted into the live list",
	})

	entitiesDestroyed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "restep_entities_destroyed_total",
		Help: "Entities removed from the live list",
	}, []string{"reason"}) // Bounded: "expired", "destroyed", "removed"

	admissionsRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "restep_admissions_rejected_total",
		Help: "Entities rejected by the entity cap",
	})

	// Collision pipeline
	candidatePairs = promauto.NewCounter(prometheus.CounterOpts{
		Name: "restep_broadphase_candidates_total",
		Help: "Candidate pairs produced by the broadphase",
	})

	confirmedOverlaps = promauto.NewCounter(prometheus.CounterOpts{
		Name: "restep_overlaps_total",
		Help: "Candidate pairs confirmed by the narrow phase",
	})

	unhandledPairs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "restep_collision_unhandled_total",
		Help: "Narrow-phase tests that hit an unhandled collider pair",
	}, []string{"pair"})

	hookPanics = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "restep_hook_panics_total",
		Help: "Recovered panics in user hooks",
	}, []string{"hook"}) // Bounded: "tick", "overlap", "dispose", "subscriber", "input"

	// Render bridge
	publishDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "restep_publish_duration_seconds",
		Help:    "Time spent in PublishLatest",
		Buckets: []float64{0.00001, 0.0001, 0.0005, 0.001, 0.005, 0.01},
	})

	proxiesUpdated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "restep_proxies_updated_total",
		Help: "Proxy transforms written by PublishLatest",
	})

	frameRender = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "restep_frame_render_duration_seconds",
		Help:    "Time spent rasterizing a preview frame",
		Buckets: []float64{0.001, 0.005, 0.01, 0.02, 0.033, 0.05, 0.1},
	})

	// Event log
	eventLogDropped = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "restep_event_log_dropped",
		Help: "Events dropped by rate limiting or a full buffer",
	})

	// Debug API
	connectionRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "restep_connection_rejected_total",
		Help: "Connections rejected by rate limiter or origin check",
	}, []string{"reason"}) // Bounded: "rate_limit", "origin", "ws_limit"

	requestLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "restep_http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "endpoint"})

	requestTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "restep_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "endpoint", "status"})

	wsConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "restep_websocket_connections_active",
		Help: "Currently active WebSocket connections",
	})

	wsMessagesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "restep_websocket_messages_total",
		Help: "Total WebSocket messages sent",
	})
)

// RecordTick records one completed tick.
func RecordTick(duration time.Duration, live int) {
	tickDuration.Observe(duration.Seconds())
	ticksTotal.Inc()
	liveEntities.Set(float64(live))
}

// RecordPairs records one broadphase pass.
func RecordPairs(candidates, confirmed int) {
	candidatePairs.Add(float64(candidates))
	confirmedOverlaps.Add(float64(confirmed))
}

// RecordUnhandledPair counts a narrow-phase invariant violation.
// pair is "kindA/kindB".
func RecordUnhandledPair(pair string) {
	unhandledPairs.WithLabelValues(pair).Inc()
}

// RecordHookPanic counts a recovered panic in a user hook.
func RecordHookPanic(hook string) {
	hookPanics.WithLabelValues(hook).Inc()
}

// RecordSpawn counts an admitted entity.
func RecordSpawn() {
	entitiesSpawned.Inc()
}

// RecordDestroy counts a removed entity.
func RecordDestroy(reason string) {
	entitiesDestroyed.WithLabelValues(reason).Inc()
}

// RecordAdmissionRejected counts an entity refused by the cap.
func RecordAdmissionRejected() {
	admissionsRejected.Inc()
}

// RecordPublish records one PublishLatest call.
func RecordPublish(duration time.Duration, updated int) {
	publishDuration.Observe(duration.Seconds())
	proxiesUpdated.Add(float64(updated))
}

// RecordFrameRender records preview rasterization time.
func RecordFrameRender(duration time.Duration) {
	frameRender.Observe(duration.Seconds())
}

// UpdateEventLogDropped mirrors the event log's drop counter.
func UpdateEventLogDropped(dropped uint64) {
	eventLogDropped.Set(float64(dropped))
}

// RecordConnectionRejected increments the rejection counter.
// reason must be one of: "rate_limit", "origin", "ws_limit"
func RecordConnectionRejected(reason string) {
	connectionRejected.WithLabelValues(reason).Inc()
}

// RecordRequest records HTTP request metrics.
func RecordRequest(method, endpoint string, status int, duration time.Duration) {
	requestLatency.WithLabelValues(method, endpoint).Observe(duration.Seconds())
	requestTotal.WithLabelValues(method, endpoint, http.StatusText(status)).Inc()
}

// UpdateWSConnections updates the WebSocket connection gauge.
func UpdateWSConnections(count int) {
	wsConnectionsActive.Set(float64(count))
}

// IncrementWSMessages increments the WebSocket message counter.
func IncrementWSMessages() {
	wsMessagesTotal.Inc()
}
