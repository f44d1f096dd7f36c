// Package metrics exposes Prometheus metrics for the enforcement engine.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "presentd"

// Metrics holds all engine metrics. Each instance owns its registry so
// several engines (tests) can coexist in one process.
type Metrics struct {
	registry *prometheus.Registry

	// Session metrics
	Transitions *prometheus.CounterVec
	Rewards     prometheus.Counter

	// Monitor metrics
	MonitorRunning   prometheus.Gauge
	Polls            prometheus.Counter
	PollErrors       prometheus.Counter
	ShieldsShown     *prometheus.CounterVec
	ShieldsDebounced prometheus.Counter

	// Intention metrics
	Opens    prometheus.Counter
	Reblocks prometheus.Counter

	// Sync metrics
	SyncEnqueued  *prometheus.CounterVec
	SyncDelivered *prometheus.CounterVec
	SyncFailed    *prometheus.CounterVec
	SyncEvicted   prometheus.Counter
	SyncPending   prometheus.Gauge

	// Reset metrics
	DailyResets     prometheus.Counter
	StreaksBroken   prometheus.Counter
	FreezesConsumed prometheus.Counter
}

// New creates a metrics collector backed by a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,

		Transitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_transitions_total",
			Help:      "Session intents by action and outcome",
		}, []string{"action", "result"}),
		Rewards: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reward_xp_total",
			Help:      "XP granted for completed sessions",
		}),

		MonitorRunning: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "monitor_running",
			Help:      "1 while the foreground monitor is polling",
		}),
		Polls: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "monitor_polls_total",
			Help:      "Foreground samples taken",
		}),
		PollErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "monitor_poll_errors_total",
			Help:      "Foreground samples that failed",
		}),
		ShieldsShown: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "shields_shown_total",
			Help:      "Shields requested by type",
		}, []string{"type"}),
		ShieldsDebounced: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "shields_debounced_total",
			Help:      "Shield requests suppressed by the debounce window",
		}),

		Opens: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "intention_opens_total",
			Help:      "Intention apps opened",
		}),
		Reblocks: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "intention_reblocks_total",
			Help:      "Intention apps reblocked after their window",
		}),

		SyncEnqueued: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_enqueued_total",
			Help:      "Items written to the sync queue",
		}, []string{"type"}),
		SyncDelivered: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_delivered_total",
			Help:      "Items delivered to the remote store",
		}, []string{"type"}),
		SyncFailed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_failed_total",
			Help:      "Delivery attempts that failed",
		}, []string{"type"}),
		SyncEvicted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_evicted_total",
			Help:      "Items dropped after exceeding the retry ceiling",
		}),
		SyncPending: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sync_pending",
			Help:      "Items left in the queue after the last drain",
		}),

		DailyResets: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "daily_resets_total",
			Help:      "Daily reset runs",
		}),
		StreaksBroken: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "streaks_broken_total",
			Help:      "Intention streaks reset to zero",
		}),
		FreezesConsumed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "streak_freezes_consumed_total",
			Help:      "Streak freeze tokens spent",
		}),
	}
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
