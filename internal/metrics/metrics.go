// Package metrics exposes Prometheus collectors for the harvester.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Item outcomes recorded by ObserveItem.
const (
	OutcomeSucceeded = "succeeded"
	OutcomeFailed    = "failed"
	OutcomeSkipped   = "skipped"
)

var (
	itemsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvester_items_total",
			Help: "Total number of work items handled, labeled by outcome.",
		},
		[]string{"outcome"},
	)

	lookupFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvester_lookup_failures_total",
			Help: "Total number of failed lookups, labeled by failure kind.",
		},
		[]string{"kind"},
	)

	lookupRetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "harvester_lookup_retries_total",
			Help: "Total number of lookup attempts that were retried after a transport failure.",
		},
	)

	lookupDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "harvester_lookup_duration_seconds",
			Help:    "Histogram of lookup latencies including retries.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
	)

	sinkWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvester_sink_writes_total",
			Help: "Total number of sink appends, labeled by destination and status.",
		},
		[]string{"destination", "status"},
	)

	activeWorkers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "harvester_active_workers",
			Help: "Number of workers currently processing an item.",
		},
	)
)

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveItem increments the item counter for the given outcome.
func ObserveItem(outcome string) {
	itemsTotal.WithLabelValues(outcome).Inc()
}

// ObserveLookupFailure increments the failure counter for kind.
func ObserveLookupFailure(kind string) {
	lookupFailuresTotal.WithLabelValues(kind).Inc()
}

// ObserveRetry counts one retried lookup attempt.
func ObserveRetry() {
	lookupRetriesTotal.Inc()
}

// ObserveLookupDuration records the wall time of one lookup.
func ObserveLookupDuration(d time.Duration) {
	lookupDurationSeconds.Observe(d.Seconds())
}

// ObserveSinkWrite records one append to destination.
func ObserveSinkWrite(destination string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	sinkWritesTotal.WithLabelValues(destination, status).Inc()
}

// IncActiveWorkers increments the active workers gauge.
func IncActiveWorkers() {
	activeWorkers.Inc()
}

// DecActiveWorkers decrements the active workers gauge.
func DecActiveWorkers() {
	activeWorkers.Dec()
}
