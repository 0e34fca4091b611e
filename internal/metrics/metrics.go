// Package metrics instruments the runtime with Prometheus gauges, counters
// and histograms, following the promauto registration style of the
// teacher's internal/driver/jpeg package. The runtime core never imports
// this package directly: internal/pool and internal/component accept
// plain onChange/onFatal callbacks (see pool.New's onChange parameter) so
// they stay instrumentation-agnostic; a graph wires this package's
// functions in as those callbacks where it wants visibility.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	poolIdle = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pyctools_pool_idle_frames",
			Help: "Idle (checked-in) frames in an output pool",
		},
		[]string{"component", "output"},
	)

	poolOutstanding = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pyctools_pool_outstanding_frames",
			Help: "Checked-out frames in an output pool",
		},
		[]string{"component", "output"},
	)

	eventQueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pyctools_event_queue_depth",
			Help: "Pending events on a component's event loop",
		},
		[]string{"component"},
	)

	processFrameLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "pyctools_process_frame_latency_seconds",
			Help: "ProcessFrame call latency",
			Buckets: []float64{
				0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1,
			},
		},
		[]string{"component"},
	)

	framesProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pyctools_frames_processed_total",
			Help: "ProcessFrame invocations that completed without error",
		},
		[]string{"component"},
	)

	streamEnds = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pyctools_stream_end_total",
			Help: "StreamEnd events emitted by a component",
		},
		[]string{"component"},
	)

	fatalErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pyctools_fatal_errors_total",
			Help: "Fatal errors reported by a component",
		},
		[]string{"component"},
	)
)

// PoolObserver returns an onChange callback (the shape internal/pool.New
// expects) that keeps the idle/outstanding gauges for componentName/
// outputName in sync with a pool's state.
func PoolObserver(componentName, outputName string) func(idle, outstanding int) {
	idleGauge := poolIdle.WithLabelValues(componentName, outputName)
	outGauge := poolOutstanding.WithLabelValues(componentName, outputName)
	return func(idle, outstanding int) {
		idleGauge.Set(float64(idle))
		outGauge.Set(float64(outstanding))
	}
}

// SetEventQueueDepth records the current pending-event count for a
// component's event loop.
func SetEventQueueDepth(componentName string, depth int) {
	eventQueueDepth.WithLabelValues(componentName).Set(float64(depth))
}

// ObserveProcessFrame records one ProcessFrame call's wall-clock duration
// and, on success, increments the frames-processed counter.
func ObserveProcessFrame(componentName string, d time.Duration, err error) {
	processFrameLatency.WithLabelValues(componentName).Observe(d.Seconds())
	if err == nil {
		framesProcessed.WithLabelValues(componentName).Inc()
	}
}

// IncStreamEnd counts a StreamEnd emitted by componentName.
func IncStreamEnd(componentName string) {
	streamEnds.WithLabelValues(componentName).Inc()
}

// IncFatal counts a Fatal error reported by componentName.
func IncFatal(componentName string) {
	fatalErrors.WithLabelValues(componentName).Inc()
}
