// Package observability provides logging and metrics support for the
// bibliographic sync service.
//
// # Overview
//
// The observability package provides:
//
//   - Structured logging with zerolog
//   - Prometheus metrics for sync runs, papers, and remote sources
//   - Context helpers for propagating observability data
//
// # Logging
//
// Create a logger from configuration:
//
//	cfg := observability.LoggingConfig{
//	    Level:     "info",
//	    Format:    "json",
//	    Output:    "stdout",
//	    AddSource: true,
//	}
//
//	logger := observability.NewLogger(cfg)
//	logger.Info().Str("sync_run_id", runID).Msg("sync started")
//
// Add sync context to a logger:
//
//	logger = observability.WithSyncContext(logger, runID, total)
//
// # Metrics
//
// Initialize metrics:
//
//	metrics := observability.NewMetrics("bibsync")
//
// Record metrics:
//
//	metrics.RecordSyncStarted()
//	metrics.RecordPaperUpdated("ads")
//	metrics.RecordSourceRequest("ads", "bigquery", 0.42)
//
// # Context Helpers
//
// Store and retrieve request context:
//
//	ctx = observability.WithRequestID(ctx, requestID)
//	reqID := observability.RequestIDFromContext(ctx)
//
// # Standard Fields
//
// Common fields used across the service:
//
//   - request_id: HTTP request identifier
//   - sync_run_id: Sync run identifier
//   - paper_id: Paper identifier
//   - bibcode: Bibliographic identifier
//   - source: Remote source name (ads, etc.)
//   - endpoint: Remote source endpoint
//
// # Thread Safety
//
// All components are safe for concurrent use from multiple goroutines.
package observability
