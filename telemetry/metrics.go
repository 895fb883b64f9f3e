// Package telemetry provides Prometheus metrics, correlation-id aware logging
// helpers, and OpenTelemetry tracing setup.
package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	// Counters
	PagesFetched     prometheus.Counter
	CommentsArchived prometheus.Counter
	FetchErrors      prometheus.Counter
	RendersSucceeded prometheus.Counter
	TranscriptLines  prometheus.Counter
	RecordsImported  prometheus.Counter
	MessagesRecorded prometheus.Counter

	// Histograms (seconds)
	FetchDuration  prometheus.Observer
	ImportDuration prometheus.Observer

	// Gauges
	SSEActive prometheus.Gauge

	// HTTP server metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		PagesFetched = promauto.NewCounter(prometheus.CounterOpts{Name: "rechat_pages_fetched_total", Help: "Number of comment pages fetched from the replay API"})
		CommentsArchived = promauto.NewCounter(prometheus.CounterOpts{Name: "rechat_comments_archived_total", Help: "Number of comment records written to archive files"})
		FetchErrors = promauto.NewCounter(prometheus.CounterOpts{Name: "rechat_fetch_errors_total", Help: "Number of archive fetches that failed"})
		RendersSucceeded = promauto.NewCounter(prometheus.CounterOpts{Name: "rechat_renders_succeeded_total", Help: "Number of transcript renders completed"})
		TranscriptLines = promauto.NewCounter(prometheus.CounterOpts{Name: "rechat_transcript_lines_total", Help: "Number of transcript lines written"})
		RecordsImported = promauto.NewCounter(prometheus.CounterOpts{Name: "rechat_records_imported_total", Help: "Number of comment records imported into the database"})
		MessagesRecorded = promauto.NewCounter(prometheus.CounterOpts{Name: "rechat_messages_recorded_total", Help: "Number of live chat messages recorded"})
		FetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "rechat_fetch_duration_seconds", Help: "Archive fetch duration seconds", Buckets: []float64{1, 5, 15, 60, 300, 900, 3600}})
		ImportDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "rechat_import_duration_seconds", Help: "Archive import duration seconds", Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300}})
		SSEActive = promauto.NewGauge(prometheus.GaugeOpts{Name: "rechat_sse_active", Help: "Currently open replay streams"})
		HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{Name: "rechat_http_requests_total", Help: "HTTP requests by method, path, and status"}, []string{"method", "path", "status"})
		HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{Name: "rechat_http_request_duration_seconds", Help: "HTTP request duration seconds", Buckets: prometheus.DefBuckets}, []string{"method", "path"})
	})
}

// TimeFunc measures the duration of fn and records it in obs if non-nil.
func TimeFunc(obs prometheus.Observer, fn func()) time.Duration {
	start := time.Now()
	fn()
	d := time.Since(start)
	if obs != nil {
		obs.Observe(d.Seconds())
	}
	return d
}

// Correlation ID helpers ----------------------------------------------------

type corrKeyType struct{}

var corrKey corrKeyType

// WithCorrelation returns a context carrying the correlation id.
func WithCorrelation(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, corrKey, id)
}

// GetCorrelation returns the correlation id or empty string.
func GetCorrelation(ctx context.Context) string {
	if s, ok := ctx.Value(corrKey).(string); ok {
		return s
	}
	return ""
}

// LoggerWithCorr returns a logger carrying the corr attribute when present.
func LoggerWithCorr(ctx context.Context) *slog.Logger {
	if id := GetCorrelation(ctx); id != "" {
		return slog.Default().With(slog.String("corr", id))
	}
	return slog.Default()
}
