package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the bibliographic sync service.
// Metrics are organized by subsystem: sync runs, papers, citation graph cache,
// remote sources, and metadata inference. All counters and histograms are
// registered via promauto for automatic registration with the default
// Prometheus registry.
type Metrics struct {
	// SyncRunsStarted counts the total number of sync runs initiated.
	SyncRunsStarted prometheus.Counter

	// SyncRunsCompleted counts the total number of sync runs that finished.
	SyncRunsCompleted prometheus.Counter

	// SyncRunsCancelled counts the total number of sync runs cancelled by the user.
	SyncRunsCancelled prometheus.Counter

	// SyncRunsRejected counts sync requests rejected because a run was already active.
	SyncRunsRejected prometheus.Counter

	// SyncDuration observes the end-to-end duration of sync runs in seconds.
	SyncDuration prometheus.Histogram

	// PapersPerRun observes the distribution of paper counts per sync run.
	PapersPerRun prometheus.Histogram

	// PapersUpdated counts papers whose metadata was refreshed, labeled by source.
	PapersUpdated *prometheus.CounterVec

	// PapersFailed counts papers that could not be matched or fetched, labeled by reason.
	PapersFailed *prometheus.CounterVec

	// PapersSkipped counts papers skipped because they carry no usable identifier.
	PapersSkipped prometheus.Counter

	// PapersDuplicate counts papers skipped because another paper owns their bibcode.
	PapersDuplicate prometheus.Counter

	// EdgesCached counts citation graph edges written to the cache, labeled by direction.
	EdgesCached *prometheus.CounterVec

	// CacheRefreshes counts citation graph cache refreshes, labeled by direction.
	CacheRefreshes *prometheus.CounterVec

	// CacheHits counts citation graph reads served from a fresh cache, labeled by direction.
	CacheHits *prometheus.CounterVec

	// CacheStale counts citation graph reads that found a stale or absent cache, labeled by direction.
	CacheStale *prometheus.CounterVec

	// SourceRequestsTotal counts HTTP requests to remote source APIs, labeled by source and endpoint.
	SourceRequestsTotal *prometheus.CounterVec

	// SourceRequestsFailed counts failed HTTP requests to remote source APIs, labeled by source, endpoint, and error type.
	SourceRequestsFailed *prometheus.CounterVec

	// SourceRequestDuration observes HTTP request duration to remote source APIs in seconds.
	SourceRequestDuration *prometheus.HistogramVec

	// SourceRateLimited counts rate-limited responses from remote source APIs, labeled by source.
	SourceRateLimited *prometheus.CounterVec

	// InferenceRequestsTotal counts metadata inference requests, labeled by model.
	InferenceRequestsTotal *prometheus.CounterVec

	// InferenceRequestsFailed counts failed metadata inference requests, labeled by model and error type.
	InferenceRequestsFailed *prometheus.CounterVec

	// InferenceRequestDuration observes metadata inference request duration in seconds, labeled by model.
	InferenceRequestDuration *prometheus.HistogramVec
}

// NewMetrics creates a new Metrics instance with all metrics initialized.
// The namespace is used as a prefix for all metric names.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		// Sync runs
		SyncRunsStarted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_runs_started_total",
			Help:      "Total number of sync runs started",
		}),
		SyncRunsCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_runs_completed_total",
			Help:      "Total number of sync runs completed",
		}),
		SyncRunsCancelled: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_runs_cancelled_total",
			Help:      "Total number of sync runs cancelled",
		}),
		SyncRunsRejected: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_runs_rejected_total",
			Help:      "Total number of sync requests rejected because a run was active",
		}),
		SyncDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sync_duration_seconds",
			Help:      "Duration of sync runs in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600, 1200, 1800, 3600},
		}),
		PapersPerRun: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "papers_per_run",
			Help:      "Number of papers reconciled per sync run",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		}),

		// Papers
		PapersUpdated: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "papers_updated_total",
			Help:      "Total number of papers updated by source",
		}, []string{"source"}),
		PapersFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "papers_failed_total",
			Help:      "Total number of papers that failed to reconcile by reason",
		}, []string{"reason"}),
		PapersSkipped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "papers_skipped_total",
			Help:      "Total number of papers skipped for lack of identifiers",
		}),
		PapersDuplicate: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "papers_duplicate_total",
			Help:      "Total number of papers skipped as bibcode duplicates",
		}),

		// Citation graph cache
		EdgesCached: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "edges_cached_total",
			Help:      "Total number of citation graph edges cached by direction",
		}, []string{"direction"}),
		CacheRefreshes: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_refreshes_total",
			Help:      "Total number of citation graph cache refreshes by direction",
		}, []string{"direction"}),
		CacheHits: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Total number of citation graph reads served from fresh cache",
		}, []string{"direction"}),
		CacheStale: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_stale_total",
			Help:      "Total number of citation graph reads that found a stale cache",
		}, []string{"direction"}),

		// Sources
		SourceRequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_requests_total",
			Help:      "Total number of requests to remote sources",
		}, []string{"source", "endpoint"}),
		SourceRequestsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_requests_failed_total",
			Help:      "Total number of failed requests to remote sources",
		}, []string{"source", "endpoint", "error_type"}),
		SourceRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "source_request_duration_seconds",
			Help:      "Duration of requests to remote sources in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"source", "endpoint"}),
		SourceRateLimited: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_rate_limited_total",
			Help:      "Total number of rate limit responses from remote sources",
		}, []string{"source"}),

		// Inference
		InferenceRequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inference_requests_total",
			Help:      "Total number of metadata inference requests by model",
		}, []string{"model"}),
		InferenceRequestsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inference_requests_failed_total",
			Help:      "Total number of failed metadata inference requests",
		}, []string{"model", "error_type"}),
		InferenceRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "inference_request_duration_seconds",
			Help:      "Duration of metadata inference requests in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"model"}),
	}
}

// RecordSyncStarted records that a sync run has started.
func (m *Metrics) RecordSyncStarted(paperCount int) {
	m.SyncRunsStarted.Inc()
	m.PapersPerRun.Observe(float64(paperCount))
}

// RecordSyncCompleted records that a sync run has completed.
func (m *Metrics) RecordSyncCompleted(durationSeconds float64) {
	m.SyncRunsCompleted.Inc()
	m.SyncDuration.Observe(durationSeconds)
}

// RecordSyncCancelled records that a sync run was cancelled.
func (m *Metrics) RecordSyncCancelled(durationSeconds float64) {
	m.SyncRunsCancelled.Inc()
	m.SyncDuration.Observe(durationSeconds)
}

// RecordSyncRejected records a sync request rejected while a run was active.
func (m *Metrics) RecordSyncRejected() {
	m.SyncRunsRejected.Inc()
}

// RecordPaperUpdated records a paper refreshed from a source.
func (m *Metrics) RecordPaperUpdated(source string) {
	m.PapersUpdated.WithLabelValues(source).Inc()
}

// RecordPaperFailed records a paper that could not be reconciled.
func (m *Metrics) RecordPaperFailed(reason string) {
	m.PapersFailed.WithLabelValues(reason).Inc()
}

// RecordPaperSkipped records a paper skipped for lack of identifiers.
func (m *Metrics) RecordPaperSkipped() {
	m.PapersSkipped.Inc()
}

// RecordPaperDuplicate records a paper skipped as a bibcode duplicate.
func (m *Metrics) RecordPaperDuplicate() {
	m.PapersDuplicate.Inc()
}

// RecordEdgesCached records citation graph edges written to the cache.
func (m *Metrics) RecordEdgesCached(direction string, count int) {
	m.EdgesCached.WithLabelValues(direction).Add(float64(count))
	m.CacheRefreshes.WithLabelValues(direction).Inc()
}

// RecordCacheHit records a citation graph read served from fresh cache.
func (m *Metrics) RecordCacheHit(direction string) {
	m.CacheHits.WithLabelValues(direction).Inc()
}

// RecordCacheStale records a citation graph read that found a stale cache.
func (m *Metrics) RecordCacheStale(direction string) {
	m.CacheStale.WithLabelValues(direction).Inc()
}

// RecordSourceRequest records a request to a remote source.
func (m *Metrics) RecordSourceRequest(source, endpoint string, durationSeconds float64) {
	m.SourceRequestsTotal.WithLabelValues(source, endpoint).Inc()
	m.SourceRequestDuration.WithLabelValues(source, endpoint).Observe(durationSeconds)
}

// RecordSourceRequestFailed records a failed request to a remote source.
func (m *Metrics) RecordSourceRequestFailed(source, endpoint, errorType string) {
	m.SourceRequestsFailed.WithLabelValues(source, endpoint, errorType).Inc()
}

// RecordSourceRateLimited records a rate limit response from a source.
func (m *Metrics) RecordSourceRateLimited(source string) {
	m.SourceRateLimited.WithLabelValues(source).Inc()
}

// RecordInferenceRequest records a metadata inference request.
func (m *Metrics) RecordInferenceRequest(model string, durationSeconds float64) {
	m.InferenceRequestsTotal.WithLabelValues(model).Inc()
	m.InferenceRequestDuration.WithLabelValues(model).Observe(durationSeconds)
}

// RecordInferenceRequestFailed records a failed metadata inference request.
func (m *Metrics) RecordInferenceRequestFailed(model, errorType string) {
	m.InferenceRequestsFailed.WithLabelValues(model, errorType).Inc()
}
