package metrics

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Batch processing Prometheus metrics.
var (
	BatchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "objsearch",
			Name:      "batches_total",
			Help:      "Total number of batch processing runs",
		},
		[]string{"status"}, // ok, source_not_found, detection_failed, malformed_output, store_error
	)

	ImagesProcessedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "objsearch",
			Name:      "images_processed_total",
			Help:      "Total number of images written to metadata documents",
		},
	)

	DetectorDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "objsearch",
			Name:      "detector_duration_seconds",
			Help:      "Detector invocation duration in seconds",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"status"},
	)
)

// Query and render metrics.
var (
	SearchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "objsearch",
			Name:      "searches_total",
			Help:      "Total number of class searches",
		},
		[]string{"mode"},
	)

	SearchMatches = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "objsearch",
			Name:      "search_matches",
			Help:      "Number of entries matched per search",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		},
	)

	SkippedEntriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "objsearch",
			Name:      "skipped_entries_total",
			Help:      "Malformed entries skipped by query operations",
		},
		[]string{"operation"},
	)

	RendersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "objsearch",
			Name:      "renders_total",
			Help:      "Total number of overlay renders",
		},
		[]string{"result"}, // "ok" / "error"
	)
)

func collectors() []prometheus.Collector {
	return []prometheus.Collector{
		BatchesTotal,
		ImagesProcessedTotal,
		DetectorDuration,
		SearchesTotal,
		SearchMatches,
		SkippedEntriesTotal,
		RendersTotal,
	}
}

// Register registers all collectors with reg. Collectors already registered are accepted.
func Register(reg prometheus.Registerer) error {
	for _, c := range collectors() {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return fmt.Errorf("register metrics: %w", err)
		}
	}
	return nil
}

// WriteTextfile writes every metric gathered by g to path in the text exposition format,
// suitable for the node exporter textfile collector.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	if err := prometheus.WriteToTextfile(path, g); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
