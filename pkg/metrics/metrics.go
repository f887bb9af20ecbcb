// Package metrics provides Prometheus metrics for the progression service.
// All recording methods are safe to call on a nil *Manager.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Manager owns every collector and the registry they are registered on.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         *prometheus.Registry

	sessionsSubmitted *prometheus.CounterVec
	sessionLatency    prometheus.Histogram
	criticalFailures  *prometheus.CounterVec
	stepFailures      *prometheus.CounterVec
	coinsGranted      *prometheus.CounterVec
	checkins          *prometheus.CounterVec
	badgesUnlocked    *prometheus.CounterVec
	missionsCompleted prometheus.Counter
	cacheLookups      *prometheus.CounterVec

	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// Option applies a configuration option to the Manager.
type Option func(*Manager)

// WithNamespace sets the namespace for all metrics.
func WithNamespace(namespace string) Option {
	return func(m *Manager) {
		if namespace != "" {
			m.namespace = namespace
		}
	}
}

// WithSubsystem sets the subsystem for all metrics.
func WithSubsystem(subsystem string) Option {
	return func(m *Manager) {
		if subsystem != "" {
			m.subsystem = subsystem
		}
	}
}

// WithHistogramBuckets sets custom histogram buckets for latency metrics.
func WithHistogramBuckets(buckets []float64) Option {
	return func(m *Manager) {
		if len(buckets) > 0 {
			m.histogramBuckets = buckets
		}
	}
}

// WithRegistry registers collectors on the given registry.
func WithRegistry(registry *prometheus.Registry) Option {
	return func(m *Manager) {
		if registry != nil {
			m.registry = registry
		}
	}
}

// NewManager creates a metrics manager on its own registry unless one is given.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "braintrain",
		subsystem:        "progression",
		histogramBuckets: prometheus.DefBuckets,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.registry == nil {
		m.registry = prometheus.NewRegistry()
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.sessionsSubmitted = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "sessions_submitted_total",
		Help:      "Game sessions accepted by the submission pipeline",
	}, []string{"game_id", "replay"})

	m.sessionLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "session_submission_seconds",
		Help:      "End-to-end latency of a session submission",
		Buckets:   m.histogramBuckets,
	})

	m.criticalFailures = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "critical_failures_total",
		Help:      "Submissions aborted by a critical step failure",
	}, []string{"step"})

	m.stepFailures = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "best_effort_failures_total",
		Help:      "Best-effort step failures that were logged and swallowed",
	}, []string{"step"})

	m.coinsGranted = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "coins_granted_total",
		Help:      "Coins credited through the ledger",
	}, []string{"action"})

	m.checkins = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "checkins_total",
		Help:      "Daily checkins, split by first-of-day or repeat",
	}, []string{"first"})

	m.badgesUnlocked = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "badges_unlocked_total",
		Help:      "Badges unlocked",
	}, []string{"badge_id"})

	m.missionsCompleted = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "missions_completed_total",
		Help:      "Daily mission slots completed",
	})

	m.cacheLookups = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "cache_lookups_total",
		Help:      "Read-model cache lookups by result",
	}, []string{"cache", "result"})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by route, method and status",
	}, []string{"route", "method", "status"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency",
		Buckets:   m.histogramBuckets,
	}, []string{"route", "method"})
}

// Registry returns the registry collectors are registered on.
func (m *Manager) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Manager) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordSession records an accepted submission and its latency.
func (m *Manager) RecordSession(gameID string, replay bool, latency time.Duration) {
	if m == nil {
		return
	}
	m.sessionsSubmitted.WithLabelValues(gameID, strconv.FormatBool(replay)).Inc()
	m.sessionLatency.Observe(latency.Seconds())
}

// RecordCriticalFailure records an aborted submission.
func (m *Manager) RecordCriticalFailure(step string) {
	if m == nil {
		return
	}
	m.criticalFailures.WithLabelValues(step).Inc()
}

// RecordStepFailure records a swallowed best-effort failure.
func (m *Manager) RecordStepFailure(step string) {
	if m == nil {
		return
	}
	m.stepFailures.WithLabelValues(step).Inc()
}

// RecordCoins records coins credited for an action.
func (m *Manager) RecordCoins(action string, amount int64) {
	if m == nil || amount <= 0 {
		return
	}
	m.coinsGranted.WithLabelValues(action).Add(float64(amount))
}

// RecordCheckin records a checkin call.
func (m *Manager) RecordCheckin(first bool) {
	if m == nil {
		return
	}
	m.checkins.WithLabelValues(strconv.FormatBool(first)).Inc()
}

// RecordBadge records a badge unlock.
func (m *Manager) RecordBadge(badgeID string) {
	if m == nil {
		return
	}
	m.badgesUnlocked.WithLabelValues(badgeID).Inc()
}

// RecordMissionCompleted records a completed mission slot.
func (m *Manager) RecordMissionCompleted() {
	if m == nil {
		return
	}
	m.missionsCompleted.Inc()
}

// RecordCacheLookup records a cache hit or miss.
func (m *Manager) RecordCacheLookup(cache string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(cache, result).Inc()
}

// RecordHTTPRequest records one served HTTP request.
func (m *Manager) RecordHTTPRequest(route, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(route, method).Observe(duration.Seconds())
}
