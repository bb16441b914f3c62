// Package metrics exposes Prometheus collectors for the player.
//
// Collectors are registered on the default registry at init; the daemon
// serves them with promhttp when a metrics address is configured.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Selection
	Selections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "markov_selections_total",
			Help: "Total number of next-song selections",
		},
		[]string{"strategy", "outcome"}, // outcome: "chain", "fallback", "error"
	)

	Advances = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "markov_advances_total",
			Help: "Total number of songs started, by reason",
		},
		[]string{"reason"},
	)

	PlayErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "markov_play_errors_total",
			Help: "Total number of songs the player failed to start",
		},
	)

	// Learning
	Feedback = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "markov_feedback_total",
			Help: "Total number of feedback events",
		},
		[]string{"kind"},
	)

	Reinforcements = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "markov_reinforcements_total",
			Help: "Total number of sequencing reinforcements applied",
		},
	)

	TiredSongs = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "markov_tired_songs",
			Help: "Songs currently under a tired cooldown",
		},
	)

	// Store
	StoreEdges = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "markov_store_edges",
			Help: "Number of edges in the transition store",
		},
	)

	FlushDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "markov_store_flush_duration_seconds",
			Help:    "Duration of transition store saves",
			Buckets: prometheus.DefBuckets,
		},
	)

	FlushErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "markov_store_flush_errors_total",
			Help: "Total number of failed transition store saves",
		},
	)

	// Control plane
	ControlRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "markov_control_requests_total",
			Help: "Total number of control socket requests",
		},
		[]string{"op", "status"}, // status: "ok", "error"
	)

	ControlConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "markov_control_connections",
			Help: "Open control socket connections",
		},
	)
)

// RecordSelection counts one selection attempt.
func RecordSelection(strategy string, fallback bool, err error) {
	outcome := "chain"
	switch {
	case err != nil:
		outcome = "error"
	case fallback:
		outcome = "fallback"
	}
	Selections.WithLabelValues(strategy, outcome).Inc()
}

// RecordFlush records a store save.
func RecordFlush(duration time.Duration, edges int, err error) {
	FlushDuration.Observe(duration.Seconds())
	if err != nil {
		FlushErrors.Inc()
		return
	}
	StoreEdges.Set(float64(edges))
}

// RecordControlRequest counts one control request.
func RecordControlRequest(op string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	ControlRequests.WithLabelValues(op, status).Inc()
}

// TrackControlConnection adjusts the open connection gauge.
func TrackControlConnection(open bool) {
	if open {
		ControlConnections.Inc()
	} else {
		ControlConnections.Dec()
	}
}
