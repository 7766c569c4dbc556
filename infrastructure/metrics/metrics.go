// Package metrics provides Prometheus metrics for stream-cutter.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Cut metrics
	cutsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streamcutter_cuts_total",
			Help: "Total number of cut requests by result",
		},
		[]string{"result"},
	)

	cutDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "streamcutter_cut_duration_seconds",
			Help:    "Cut request duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"result"},
	)

	cutsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "streamcutter_cuts_in_flight",
			Help: "Number of cuts currently being processed",
		},
	)

	uploadBytes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "streamcutter_upload_bytes_total",
			Help: "Total bytes of uploads persisted to the temp directory",
		},
	)

	// External process metrics
	processRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streamcutter_process_runs_total",
			Help: "Total external process invocations by outcome",
		},
		[]string{"outcome"},
	)

	// Janitor metrics
	janitorSweepsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streamcutter_janitor_sweeps_total",
			Help: "Total janitor sweeps by status",
		},
		[]string{"status"},
	)

	janitorFilesDeleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "streamcutter_janitor_files_deleted_total",
			Help: "Total temp files reclaimed by the janitor",
		},
	)

	janitorBytesFreed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "streamcutter_janitor_bytes_freed_total",
			Help: "Total bytes reclaimed by the janitor",
		},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// CutStarted increments the in-flight gauge; call the returned func when the cut ends.
func CutStarted() func() {
	cutsInFlight.Inc()
	return cutsInFlight.Dec
}

// RecordCut records the result of a cut ("success" or a failure kind).
func RecordCut(result string, duration time.Duration) {
	cutsTotal.WithLabelValues(result).Inc()
	cutDuration.WithLabelValues(result).Observe(duration.Seconds())
}

// RecordUpload records bytes persisted from an upload.
func RecordUpload(bytes int64) {
	uploadBytes.Add(float64(bytes))
}

// RecordProcessRun records an external process outcome ("exited", "timed_out", "spawn_failed").
func RecordProcessRun(outcome string) {
	processRunsTotal.WithLabelValues(outcome).Inc()
}

// RecordSweep records a janitor sweep.
func RecordSweep(success bool, deleted int, freedBytes int64) {
	status := "success"
	if !success {
		status = "error"
	}
	janitorSweepsTotal.WithLabelValues(status).Inc()
	janitorFilesDeleted.Add(float64(deleted))
	janitorBytesFreed.Add(float64(freedBytes))
}
