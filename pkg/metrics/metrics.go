package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Scan and enqueue metrics
	FilesScanned = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "mailvec_files_scanned_total",
			Help: "Total number of pending files seen by wait/ scans",
		},
	)

	FilesRecovered = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "mailvec_files_recovered_total",
			Help: "Total number of run/ files returned to wait/ at startup",
		},
	)

	BatchesEnqueued = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "mailvec_batches_enqueued_total",
			Help: "Total number of batches admitted to the work queue",
		},
	)

	QueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "mailvec_queue_depth",
			Help: "Number of batches currently waiting in the work queue",
		},
	)

	// Import metrics
	ImportsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mailvec_imports_total",
			Help: "Total number of bulk import calls by outcome",
		},
		[]string{"outcome"},
	)

	ImportDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mailvec_import_duration_seconds",
			Help:    "Bulk import call duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Terminal file transitions
	FilesTerminal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mailvec_files_terminal_total",
			Help: "Total number of files reaching a terminal state",
		},
		[]string{"state"},
	)
)

// Terminal state label values
const (
	StateSuccess       = "success"
	StateParseFailure  = "parse_failure"
	StateImportFailure = "import_failure"
	StateUnroutable    = "unroutable"
)

// Import outcome label values
const (
	OutcomeOK        = "ok"
	OutcomePartial   = "partial"
	OutcomeTransport = "transport_error"
)

func init() {
	// Register all metrics
	prometheus.MustRegister(FilesScanned)
	prometheus.MustRegister(FilesRecovered)
	prometheus.MustRegister(BatchesEnqueued)
	prometheus.MustRegister(QueueDepth)
	prometheus.MustRegister(ImportsTotal)
	prometheus.MustRegister(ImportDuration)
	prometheus.MustRegister(FilesTerminal)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
