// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Feed metrics
	EventsMerged     prometheus.Counter
	FillersDiscarded prometheus.Counter
	RecordsMerged    prometheus.Counter

	// Simulation metrics
	TransactionsSimulated prometheus.Counter
	OrdersPlaced          prometheus.Counter
	OpenInterest          prometheus.Gauge

	// Client metrics
	FramesDelivered prometheus.Counter
	FrameLatency    prometheus.Histogram

	// Controller metrics
	HeartbeatMisses   *prometheus.CounterVec
	ComponentFailures *prometheus.CounterVec

	// Run metrics
	RunsTotal          *prometheus.CounterVec
	RunDuration        prometheus.Histogram
	SnapshotsPersisted prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "backtest_lab"
	}

	return &Metrics{
		EventsMerged: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "events_merged_total",
			Help:      "Total number of events emitted by the chronological merge",
		}),
		FillersDiscarded: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "fillers_discarded_total",
			Help:      "Total number of filler events discarded by the feed",
		}),
		RecordsMerged: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "records_merged_total",
			Help:      "Total number of records emitted by the pairing merge",
		}),

		TransactionsSimulated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "transactions_total",
			Help:      "Total number of simulated fills",
		}),
		OrdersPlaced: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "orders_placed_total",
			Help:      "Total number of orders placed by algorithms",
		}),
		OpenInterest: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "open_interest",
			Help:      "Unfilled order quantity at last observation",
		}),

		FramesDelivered: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "client",
			Name:      "frames_delivered_total",
			Help:      "Total number of frames delivered to algorithms",
		}),
		FrameLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "client",
			Name:      "frame_latency_seconds",
			Help:      "Algorithm frame callback wall time in seconds",
			Buckets:   prometheus.DefBuckets,
		}),

		HeartbeatMisses: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "controller",
			Name:      "heartbeat_misses_total",
			Help:      "Total number of missed heartbeats by component",
		}, []string{"component"}),
		ComponentFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "controller",
			Name:      "component_failures_total",
			Help:      "Total number of components declared failed",
		}, []string{"component"}),

		RunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "run",
			Name:      "total",
			Help:      "Total number of simulation runs by status",
		}, []string{"status"}),
		RunDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "run",
			Name:      "duration_seconds",
			Help:      "Simulation run duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}),
		SnapshotsPersisted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "run",
			Name:      "snapshots_persisted_total",
			Help:      "Total number of daily snapshots written to storage",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordHeartbeatMiss increments the missed-heartbeat counter for a component.
func RecordHeartbeatMiss(componentID string) {
	DefaultMetrics.HeartbeatMisses.WithLabelValues(componentID).Inc()
}

// RecordComponentFailure increments the failure counter for a component.
func RecordComponentFailure(componentID string) {
	DefaultMetrics.ComponentFailures.WithLabelValues(componentID).Inc()
}

// RecordRun records a completed run with its duration and status.
func RecordRun(status string, duration time.Duration) {
	DefaultMetrics.RunsTotal.WithLabelValues(status).Inc()
	DefaultMetrics.RunDuration.Observe(duration.Seconds())
}

// RecordMergeTotals adds the end-of-run feed and merge counters.
func RecordMergeTotals(eventsMerged, fillersDiscarded, recordsMerged int64) {
	DefaultMetrics.EventsMerged.Add(float64(eventsMerged))
	DefaultMetrics.FillersDiscarded.Add(float64(fillersDiscarded))
	DefaultMetrics.RecordsMerged.Add(float64(recordsMerged))
}

// RecordSimulationTotals adds the end-of-run simulator and client counters.
func RecordSimulationTotals(transactions, orders, frames, openInterest int64) {
	DefaultMetrics.TransactionsSimulated.Add(float64(transactions))
	DefaultMetrics.OrdersPlaced.Add(float64(orders))
	DefaultMetrics.FramesDelivered.Add(float64(frames))
	DefaultMetrics.OpenInterest.Set(float64(openInterest))
}

// RecordFrameLatency observes one algorithm frame callback's wall time.
func RecordFrameLatency(d time.Duration) {
	DefaultMetrics.FrameLatency.Observe(d.Seconds())
}

// RecordSnapshotPersisted increments the persisted-snapshot counter.
func RecordSnapshotPersisted() {
	DefaultMetrics.SnapshotsPersisted.Inc()
}
