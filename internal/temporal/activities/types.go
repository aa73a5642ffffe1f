// Package activities implements the Temporal activities of the bulk analysis
// pipeline. Activities hold the repository and classifier dependencies;
// workflows stay deterministic and only pass the input structs defined here.
package activities

import (
	"context"

	"github.com/contentive/topic-analysis-service/internal/classifier"
	"github.com/contentive/topic-analysis-service/internal/domain"
)

// Classifier is the subset of the classification service client the
// activities use. Narrowed to an interface so tests can substitute a mock.
type Classifier interface {
	InitiateBulk(ctx context.Context, contentCount int) (string, error)
	SendPage(ctx context.Context, requestID string, page, pageCount int, contents []classifier.ContentPayload) error
	PollAnalysis(ctx context.Context, requestID string) (*classifier.PollStatus, error)
	FetchResultPage(ctx context.Context, requestID string, page int) (*classifier.ResultPage, error)
	FetchContentIDsPage(ctx context.Context, requestID string, page int) (*classifier.ContentIDsPage, error)
	FetchSubjectsPage(ctx context.Context, requestID string, page int) (*classifier.SubjectsPage, error)
}

// EventPublisher is the subset of the Kafka publisher the activities use.
type EventPublisher interface {
	PublishStarted(ctx context.Context, requestID string, contentCount, pageCount int)
	PublishStageChanged(ctx context.Context, requestID, stage string)
	PublishCompleted(ctx context.Context, requestID string, appliedItems, failedItems int)
	PublishReset(ctx context.Context, requestID string, clearedJobs int)
}

// SubmitPageInput is the input to SubmitPage.
type SubmitPageInput struct {
	// RequestID identifies the analysis request being submitted.
	RequestID string `json:"request_id"`

	// Filter is the content selection recorded at initiation. Pages are
	// always queried against this filter, never a fresh one.
	Filter domain.ContentFilter `json:"filter"`

	// Page is the 1-based page number to submit.
	Page int `json:"page"`

	// PageCount is the total number of submission pages.
	PageCount int `json:"page_count"`

	// PageSize is the number of items per submission page.
	PageSize int `json:"page_size"`

	// ExtraBodyFields lists additional content columns appended to the
	// analyzed text.
	ExtraBodyFields []string `json:"extra_body_fields,omitempty"`
}

// SubmitPageOutput is the output of SubmitPage.
type SubmitPageOutput struct {
	// ItemsSent is the number of content items in the submitted page.
	ItemsSent int `json:"items_sent"`

	// Stale reports that the tracked request changed under this workflow.
	// The workflow exits quietly instead of failing.
	Stale bool `json:"stale"`
}

// PollAnalysisInput is the input to PollAnalysis.
type PollAnalysisInput struct {
	// RequestID identifies the analysis request being polled.
	RequestID string `json:"request_id"`
}

// PollAnalysisOutput is the output of PollAnalysis.
type PollAnalysisOutput struct {
	// Ready reports that the classifier finished analyzing and results can
	// be fetched.
	Ready bool `json:"ready"`

	// Stale reports that the tracked request changed under this workflow.
	Stale bool `json:"stale"`

	// Progress is the classifier-reported completion percentage (0-100).
	Progress float64 `json:"progress"`

	// Analyzed is the number of items the classifier has processed so far.
	Analyzed int `json:"analyzed"`
}

// TransitionStageInput is the input to TransitionStage.
type TransitionStageInput struct {
	// RequestID identifies the analysis request.
	RequestID string `json:"request_id"`

	// From is the stage the caller expects the record to be in.
	From domain.Stage `json:"from"`

	// To is the stage to advance to.
	To domain.Stage `json:"to"`
}

// TransitionStageOutput is the output of TransitionStage.
type TransitionStageOutput struct {
	// Stale reports that the tracked request changed under this workflow.
	Stale bool `json:"stale"`
}

// ApplyResultPageInput is the input to ApplyResultPage.
type ApplyResultPageInput struct {
	// RequestID identifies the analysis request.
	RequestID string `json:"request_id"`

	// Page is the 1-based result page to fetch and apply.
	Page int `json:"page"`

	// Legacy selects the two-endpoint result retrieval path where content
	// IDs and subject metadata are fetched separately and joined here.
	Legacy bool `json:"legacy"`

	// AppliedSoFar is the cumulative number of items applied on earlier
	// pages, carried so persisted progress counters stay cumulative.
	AppliedSoFar int `json:"applied_so_far"`
}

// ApplyResultPageOutput is the output of ApplyResultPage.
type ApplyResultPageOutput struct {
	// HasNextPage reports whether another result page follows.
	HasNextPage bool `json:"has_next_page"`

	// Applied is the number of content items whose assignments were written.
	Applied int `json:"applied"`

	// FailedContentIDs lists items whose application failed. Failures are
	// collected per item, never aborting the page.
	FailedContentIDs []int64 `json:"failed_content_ids,omitempty"`

	// TopicsCreated counts catalog topics created from this page.
	TopicsCreated int `json:"topics_created"`

	// TopicsMatched counts subjects resolved to existing topics.
	TopicsMatched int `json:"topics_matched"`

	// TopicsRepaired counts name matches that backfilled a missing
	// external ID.
	TopicsRepaired int `json:"topics_repaired"`

	// Stale reports that the tracked request changed under this workflow.
	Stale bool `json:"stale"`
}

// MarkCompleteInput is the input to MarkComplete.
type MarkCompleteInput struct {
	// RequestID identifies the analysis request.
	RequestID string `json:"request_id"`
}

// MarkCompleteOutput is the output of MarkComplete.
type MarkCompleteOutput struct {
	// Stale reports that the tracked request changed under this workflow.
	Stale bool `json:"stale"`
}

// GetResumePageInput is the input to GetResumePage.
type GetResumePageInput struct {
	// RequestID identifies the analysis request.
	RequestID string `json:"request_id"`
}

// GetResumePageOutput is the output of GetResumePage.
type GetResumePageOutput struct {
	// NextPage is the first result page not yet applied. Derived from the
	// persisted applying progress so a restarted workflow resumes instead
	// of reapplying from page one.
	NextPage int `json:"next_page"`

	// Applied is the number of items already applied before the resume.
	Applied int `json:"applied"`

	// Stale reports that the tracked request changed under this workflow.
	Stale bool `json:"stale"`
}

// PublishEventInput is the input to PublishLifecycleEvent.
type PublishEventInput struct {
	// EventType is one of the events package event type constants.
	EventType string `json:"event_type"`

	// RequestID identifies the analysis request.
	RequestID string `json:"request_id"`

	// ContentCount is carried on started events.
	ContentCount int `json:"content_count,omitempty"`

	// PageCount is carried on started events.
	PageCount int `json:"page_count,omitempty"`

	// Stage is carried on stage change events.
	Stage string `json:"stage,omitempty"`

	// AppliedItems is carried on completed events.
	AppliedItems int `json:"applied_items,omitempty"`

	// FailedItems is carried on completed events.
	FailedItems int `json:"failed_items,omitempty"`

	// ClearedJobs is carried on reset events.
	ClearedJobs int `json:"cleared_jobs,omitempty"`
}
