package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds every pdfnotes collector; WriteTextfile exports it.
var Registry = prometheus.NewRegistry()

var (
	operations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pdfnotes",
			Name:      "operations_total",
			Help:      "Compose operations by mode and result",
		},
		[]string{"mode", "result"},
	)

	operationLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "pdfnotes",
			Name:      "operation_duration_seconds",
			Help:      "Duration of compose operations by mode",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"mode"},
	)

	pagesWritten = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pdfnotes",
			Name:      "pages_written_total",
			Help:      "Pages written to output documents by mode",
		},
		[]string{"mode"},
	)

	sheetsComposed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "pdfnotes",
			Name:      "sheets_composed_total",
			Help:      "Two-up sheets composed",
		},
	)

	batchJobs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pdfnotes",
			Name:      "batch_jobs_total",
			Help:      "Batch jobs by result (done, failed)",
		},
		[]string{"result"},
	)

	initOnce sync.Once
)

// Init registers collectors. Safe to call more than once.
func Init() {
	initOnce.Do(func() {
		Registry.MustRegister(operations, operationLatency, pagesWritten, sheetsComposed, batchJobs)
	})
}

// ObserveOperation records one compose operation outcome.
func ObserveOperation(mode, result string, dur time.Duration) {
	operations.WithLabelValues(mode, result).Inc()
	operationLatency.WithLabelValues(mode).Observe(dur.Seconds())
}

func AddPages(mode string, n int) { pagesWritten.WithLabelValues(mode).Add(float64(n)) }
func AddSheets(n int)             { sheetsComposed.Add(float64(n)) }
func IncBatchJob(result string)   { batchJobs.WithLabelValues(result).Inc() }

// WriteTextfile exports the registry in the node-exporter textfile format.
// An empty path is a no-op.
func WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	Init()
	return prometheus.WriteToTextfile(path, Registry)
}
