// Package metrics wraps the Prometheus collectors exported by the filer
// daemon. A nil *Metrics is valid and records nothing, so components can be
// constructed without instrumentation in tests and one-shot CLI commands.
package metrics

import (
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "filer"

// Metrics encapsulates Prometheus instrumentation.
type Metrics struct {
	registry       *prometheus.Registry
	handler        http.Handler
	matches        *prometheus.CounterVec
	matchDuration  prometheus.Histogram
	moves          *prometheus.CounterVec
	rollbacks      *prometheus.CounterVec
	pipeline       *prometheus.CounterVec
	activeWatchers prometheus.Gauge
	watcherRestart prometheus.Counter
	notifications  *prometheus.CounterVec
}

// New registers the filer collectors on a private registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	matches := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "matches_total",
		Help:      "Match evaluations by the source of the best suggestion",
	}, []string{"source"})

	matchDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "match_duration_seconds",
		Help:      "Time spent evaluating rules and heuristics for one file",
		Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
	})

	moves := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "moves_total",
		Help:      "File moves by result",
	}, []string{"result"})

	rollbacks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rollbacks_total",
		Help:      "Rollbacks by result",
	}, []string{"result"})

	pipeline := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "watch_pipeline_outcomes_total",
		Help:      "Watch pipeline decisions by action",
	}, []string{"action"})

	activeWatchers := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "active_watchers",
		Help:      "Number of live folder watchers",
	})

	watcherRestart := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "watcher_restarts_total",
		Help:      "Watcher restarts scheduled after notification errors",
	})

	notifications := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notifications_total",
		Help:      "Push notifications by result",
	}, []string{"result"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "goroutines",
		Help:      "Number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(matches, matchDuration, moves, rollbacks, pipeline, activeWatchers, watcherRestart, notifications, goroutines)

	return &Metrics{
		registry:       registry,
		handler:        promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		matches:        matches,
		matchDuration:  matchDuration,
		moves:          moves,
		rollbacks:      rollbacks,
		pipeline:       pipeline,
		activeWatchers: activeWatchers,
		watcherRestart: watcherRestart,
		notifications:  notifications,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveMatch records one match evaluation. source is "rule", "heuristic", or "none".
func (m *Metrics) ObserveMatch(source string, duration time.Duration) {
	if m == nil {
		return
	}
	m.matches.WithLabelValues(source).Inc()
	m.matchDuration.Observe(duration.Seconds())
}

// RecordMove counts a move outcome ("moved", "skipped", "failed").
func (m *Metrics) RecordMove(result string) {
	if m == nil {
		return
	}
	m.moves.WithLabelValues(result).Inc()
}

// RecordRollback counts a rollback outcome ("undone", "failed").
func (m *Metrics) RecordRollback(result string) {
	if m == nil {
		return
	}
	m.rollbacks.WithLabelValues(result).Inc()
}

// RecordPipeline counts a watch pipeline decision.
func (m *Metrics) RecordPipeline(action string) {
	if m == nil {
		return
	}
	m.pipeline.WithLabelValues(action).Inc()
}

// SetActiveWatchers publishes the live watcher count.
func (m *Metrics) SetActiveWatchers(n int) {
	if m == nil {
		return
	}
	m.activeWatchers.Set(float64(n))
}

// RecordWatcherRestart counts a scheduled watcher restart.
func (m *Metrics) RecordWatcherRestart() {
	if m == nil {
		return
	}
	m.watcherRestart.Inc()
}

// RecordNotification counts a notification delivery result ("sent", "failed", "throttled", "dropped").
func (m *Metrics) RecordNotification(result string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(result).Inc()
}
