package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kirillkom/ingest-buddy/internal/core/domain"
)

// IngestMetrics collects per-run counters. The process is short-lived, so
// the registry is exported as a node_exporter textfile instead of served.
type IngestMetrics struct {
	registry *prometheus.Registry
	service  string

	filesTotal    *prometheus.CounterVec
	fileDuration  *prometheus.HistogramVec
	fuzzySuspects prometheus.Counter
	lastRunTime   prometheus.Gauge
}

func NewIngestMetrics(service string) *IngestMetrics {
	registry := prometheus.NewRegistry()

	filesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ingest_buddy",
			Subsystem: "run",
			Name:      "files_total",
			Help:      "Candidate files by outcome.",
		},
		[]string{"service", "outcome"},
	)
	fileDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ingest_buddy",
			Subsystem: "run",
			Name:      "file_duration_seconds",
			Help:      "Per-file processing duration in seconds by outcome.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
		[]string{"service", "outcome"},
	)
	fuzzySuspects := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "ingest_buddy",
			Subsystem: "run",
			Name:      "fuzzy_suspects_total",
			Help:      "Advisory fuzzy duplicate matches written to the journal.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	lastRunTime := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "ingest_buddy",
			Subsystem: "run",
			Name:      "last_completed_timestamp_seconds",
			Help:      "Unix time the last run finished.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)

	registry.MustRegister(filesTotal, fileDuration, fuzzySuspects, lastRunTime)

	return &IngestMetrics{
		registry:      registry,
		service:       service,
		filesTotal:    filesTotal,
		fileDuration:  fileDuration,
		fuzzySuspects: fuzzySuspects,
		lastRunTime:   lastRunTime,
	}
}

func (m *IngestMetrics) ObserveFile(outcome domain.Outcome, duration time.Duration) {
	m.filesTotal.WithLabelValues(m.service, string(outcome)).Inc()
	m.fileDuration.WithLabelValues(m.service, string(outcome)).Observe(duration.Seconds())
}

func (m *IngestMetrics) AddFuzzySuspects(n int) {
	if n <= 0 {
		return
	}
	m.fuzzySuspects.Add(float64(n))
}

func (m *IngestMetrics) MarkRunCompleted(at time.Time) {
	m.lastRunTime.Set(float64(at.Unix()))
}

// WriteTextfile atomically writes the registry in text exposition format.
func (m *IngestMetrics) WriteTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create metrics dir: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
