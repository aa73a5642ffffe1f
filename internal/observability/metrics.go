package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the topic analysis service.
// Metrics are organized by subsystem: analysis runs, submission, polling,
// result application, topics, and classifier calls. All counters and
// histograms are registered via promauto for automatic registration with
// the default Prometheus registry.
type Metrics struct {
	// AnalysesStarted counts the total number of analysis runs initiated.
	AnalysesStarted prometheus.Counter

	// AnalysesCompleted counts the total number of runs that finished successfully.
	AnalysesCompleted prometheus.Counter

	// AnalysesFailed counts the total number of runs that ended in failure.
	AnalysesFailed prometheus.Counter

	// AnalysesReset counts the total number of runs discarded by a reset.
	AnalysesReset prometheus.Counter

	// AnalysisDuration observes the end-to-end duration of runs in seconds.
	AnalysisDuration prometheus.Histogram

	// PagesSubmitted counts submission pages sent to the classifier.
	PagesSubmitted prometheus.Counter

	// ItemsSubmitted counts content items sent for classification.
	ItemsSubmitted prometheus.Counter

	// PollsTotal counts status polls against the classifier.
	PollsTotal prometheus.Counter

	// PollsStale counts polls abandoned because the tracked request changed.
	PollsStale prometheus.Counter

	// ResultPagesApplied counts result pages applied back to the catalog.
	ResultPagesApplied prometheus.Counter

	// ResultPageDuration observes the time spent applying a result page in seconds.
	ResultPageDuration prometheus.Histogram

	// TopicsCreated counts topics created during reconciliation.
	TopicsCreated prometheus.Counter

	// TopicsMatched counts subjects resolved to an existing topic.
	TopicsMatched prometheus.Counter

	// TopicsRepaired counts name-matched topics backfilled with an external ID.
	TopicsRepaired prometheus.Counter

	// AssociationsCreated counts content-to-topic links written.
	AssociationsCreated prometheus.Counter

	// AssociationsSkipped counts duplicate links skipped during application.
	AssociationsSkipped prometheus.Counter

	// ItemsFailed counts content items that could not be applied, by reason.
	ItemsFailed *prometheus.CounterVec

	// ClassifierRequests counts HTTP requests to the classification service, labeled by endpoint.
	ClassifierRequests *prometheus.CounterVec

	// ClassifierRequestsFailed counts failed classifier requests, labeled by endpoint and error type.
	ClassifierRequestsFailed *prometheus.CounterVec

	// ClassifierRequestDuration observes classifier request duration in seconds, labeled by endpoint.
	ClassifierRequestDuration *prometheus.HistogramVec

	// ClassifierRateLimited counts rate-limited responses from the classifier.
	ClassifierRateLimited prometheus.Counter

	// EventsPublished counts lifecycle events published to Kafka, labeled by event type.
	EventsPublished *prometheus.CounterVec

	// EventsFailed counts lifecycle events that failed to publish, labeled by event type.
	EventsFailed *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics initialized.
// The namespace is used as a prefix for all metric names.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		// Analysis runs
		AnalysesStarted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analyses_started_total",
			Help:      "Total number of analysis runs started",
		}),
		AnalysesCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analyses_completed_total",
			Help:      "Total number of analysis runs completed successfully",
		}),
		AnalysesFailed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analyses_failed_total",
			Help:      "Total number of analysis runs that failed",
		}),
		AnalysesReset: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analyses_reset_total",
			Help:      "Total number of analysis runs discarded by reset",
		}),
		AnalysisDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "analysis_duration_seconds",
			Help:      "Duration of analysis runs in seconds",
			Buckets:   []float64{10, 30, 60, 300, 600, 1800, 3600, 7200, 14400, 43200, 86400},
		}),

		// Submission
		PagesSubmitted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pages_submitted_total",
			Help:      "Total number of submission pages sent to the classifier",
		}),
		ItemsSubmitted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_submitted_total",
			Help:      "Total number of content items sent for classification",
		}),

		// Polling
		PollsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "polls_total",
			Help:      "Total number of classifier status polls",
		}),
		PollsStale: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "polls_stale_total",
			Help:      "Total number of polls abandoned because the tracked request changed",
		}),

		// Result application
		ResultPagesApplied: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "result_pages_applied_total",
			Help:      "Total number of result pages applied to the catalog",
		}),
		ResultPageDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "result_page_duration_seconds",
			Help:      "Time spent applying a result page in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}),

		// Topics
		TopicsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "topics_created_total",
			Help:      "Total number of topics created during reconciliation",
		}),
		TopicsMatched: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "topics_matched_total",
			Help:      "Total number of subjects resolved to an existing topic",
		}),
		TopicsRepaired: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "topics_repaired_total",
			Help:      "Total number of name-matched topics backfilled with an external ID",
		}),
		AssociationsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "associations_created_total",
			Help:      "Total number of content-to-topic links written",
		}),
		AssociationsSkipped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "associations_skipped_total",
			Help:      "Total number of duplicate content-to-topic links skipped",
		}),
		ItemsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_failed_total",
			Help:      "Total number of content items that could not be applied by reason",
		}, []string{"reason"}),

		// Classifier
		ClassifierRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "classifier_requests_total",
			Help:      "Total number of requests to the classification service",
		}, []string{"endpoint"}),
		ClassifierRequestsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "classifier_requests_failed_total",
			Help:      "Total number of failed requests to the classification service",
		}, []string{"endpoint", "error_type"}),
		ClassifierRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "classifier_request_duration_seconds",
			Help:      "Duration of requests to the classification service in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"endpoint"}),
		ClassifierRateLimited: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "classifier_rate_limited_total",
			Help:      "Total number of rate limit responses from the classification service",
		}),

		// Events
		EventsPublished: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Total number of lifecycle events published",
		}, []string{"event_type"}),
		EventsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_failed_total",
			Help:      "Total number of lifecycle events that failed to publish",
		}, []string{"event_type"}),
	}
}

// RecordAnalysisStarted records that an analysis run has started.
func (m *Metrics) RecordAnalysisStarted() {
	m.AnalysesStarted.Inc()
}

// RecordAnalysisCompleted records that an analysis run has completed.
func (m *Metrics) RecordAnalysisCompleted(durationSeconds float64) {
	m.AnalysesCompleted.Inc()
	m.AnalysisDuration.Observe(durationSeconds)
}

// RecordAnalysisFailed records that an analysis run has failed.
func (m *Metrics) RecordAnalysisFailed(durationSeconds float64) {
	m.AnalysesFailed.Inc()
	m.AnalysisDuration.Observe(durationSeconds)
}

// RecordAnalysisReset records that an analysis run was discarded by reset.
func (m *Metrics) RecordAnalysisReset() {
	m.AnalysesReset.Inc()
}

// RecordPageSubmitted records a submission page sent to the classifier.
func (m *Metrics) RecordPageSubmitted(itemCount int) {
	m.PagesSubmitted.Inc()
	m.ItemsSubmitted.Add(float64(itemCount))
}

// RecordPoll records a classifier status poll.
func (m *Metrics) RecordPoll() {
	m.PollsTotal.Inc()
}

// RecordPollStale records a poll abandoned because the tracked request changed.
func (m *Metrics) RecordPollStale() {
	m.PollsStale.Inc()
}

// RecordResultPageApplied records a result page applied to the catalog.
func (m *Metrics) RecordResultPageApplied(durationSeconds float64) {
	m.ResultPagesApplied.Inc()
	m.ResultPageDuration.Observe(durationSeconds)
}

// RecordTopicCreated records a topic created during reconciliation.
func (m *Metrics) RecordTopicCreated() {
	m.TopicsCreated.Inc()
}

// RecordTopicMatched records a subject resolved to an existing topic.
func (m *Metrics) RecordTopicMatched() {
	m.TopicsMatched.Inc()
}

// RecordTopicRepaired records a name-matched topic backfilled with an external ID.
func (m *Metrics) RecordTopicRepaired() {
	m.TopicsRepaired.Inc()
}

// RecordAssociationCreated records a content-to-topic link written.
func (m *Metrics) RecordAssociationCreated() {
	m.AssociationsCreated.Inc()
}

// RecordAssociationSkipped records a duplicate link skipped.
func (m *Metrics) RecordAssociationSkipped() {
	m.AssociationsSkipped.Inc()
}

// RecordItemFailed records a content item that could not be applied.
func (m *Metrics) RecordItemFailed(reason string) {
	m.ItemsFailed.WithLabelValues(reason).Inc()
}

// RecordClassifierRequest records a request to the classification service.
func (m *Metrics) RecordClassifierRequest(endpoint string, durationSeconds float64) {
	m.ClassifierRequests.WithLabelValues(endpoint).Inc()
	m.ClassifierRequestDuration.WithLabelValues(endpoint).Observe(durationSeconds)
}

// RecordClassifierRequestFailed records a failed classifier request.
func (m *Metrics) RecordClassifierRequestFailed(endpoint, errorType string) {
	m.ClassifierRequestsFailed.WithLabelValues(endpoint, errorType).Inc()
}

// RecordClassifierRateLimited records a rate limit response from the classifier.
func (m *Metrics) RecordClassifierRateLimited() {
	m.ClassifierRateLimited.Inc()
}

// RecordEventPublished records a lifecycle event published to the broker.
func (m *Metrics) RecordEventPublished(eventType string) {
	m.EventsPublished.WithLabelValues(eventType).Inc()
}

// RecordEventFailed records a lifecycle event that failed to publish.
func (m *Metrics) RecordEventFailed(eventType string) {
	m.EventsFailed.WithLabelValues(eventType).Inc()
}
