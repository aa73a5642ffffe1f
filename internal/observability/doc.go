// Package observability provides logging and metrics support for the
// topic analysis service.
//
// # Overview
//
// The observability package provides:
//
//   - Structured logging with zerolog
//   - Prometheus metrics for analysis runs, pages, topics, and classifier calls
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
//	logger.Info().Str("request_id", reqID).Msg("analysis started")
//
// Add analysis context to logger:
//
//	logger = observability.WithAnalysisContext(logger, requestID, stage)
//
// # Metrics
//
// Initialize metrics:
//
//	metrics := observability.NewMetrics("topic_analysis")
//
// Record metrics:
//
//	metrics.AnalysesStarted.Inc()
//	metrics.ClassifierRequests.WithLabelValues("send_page").Inc()
//	metrics.TopicsCreated.Add(12)
//
// # Context Helpers
//
// Store and retrieve request context:
//
//	ctx = observability.WithRequestID(ctx, requestID)
//	ctx = observability.WithStage(ctx, stage)
//
//	reqID := observability.RequestIDFromContext(ctx)
//	stage := observability.StageFromContext(ctx)
//
// # Standard Fields
//
// Common fields used across the service:
//
//   - request_id: Analysis request identifier
//   - stage: Pipeline stage (sending, analyzing, applying, complete)
//   - page: Page number inside the current stage
//   - content_id: Content item identifier
//   - topic_id: Topic identifier
//   - external_id: Classifier-assigned subject identifier
//   - endpoint: Classification service endpoint
//
// # Thread Safety
//
// All components are safe for concurrent use from multiple goroutines.
package observability
