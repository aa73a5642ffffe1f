package workflows

import (
	"fmt"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/contentive/topic-analysis-service/internal/domain"
	"github.com/contentive/topic-analysis-service/internal/events"
	orchestration "github.com/contentive/topic-analysis-service/internal/temporal"
	"github.com/contentive/topic-analysis-service/internal/temporal/activities"
)

// ApplyWorkflowInput carries the result application parameters.
type ApplyWorkflowInput struct {
	// RequestID is the classifier-assigned request identifier.
	RequestID string `json:"request_id"`

	// Legacy selects the split result retrieval endpoints.
	Legacy bool `json:"legacy"`
}

// ApplyWorkflowResult summarizes one application run.
type ApplyWorkflowResult struct {
	// Applied is the number of content items whose assignments were written.
	Applied int `json:"applied"`

	// Failed is the number of items that could not be applied.
	Failed int `json:"failed"`

	// TopicsCreated counts catalog topics created during the run.
	TopicsCreated int `json:"topics_created"`

	// Stale reports that the run stood down because the request changed.
	Stale bool `json:"stale"`
}

// ApplyResultsWorkflow fetches and applies classification result pages until
// the classifier reports no more. It resumes from the persisted applying
// progress, so a worker restart or a rerun after a crash picks up at the
// first unapplied page instead of replaying page one.
func ApplyResultsWorkflow(ctx workflow.Context, input ApplyWorkflowInput) (*ApplyWorkflowResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting result application workflow", "requestID", input.RequestID)

	progress := AnalysisProgress{Stage: domain.StageApplying}
	if err := workflow.SetQueryHandler(ctx, orchestration.QueryProgress, func() (AnalysisProgress, error) {
		return progress, nil
	}); err != nil {
		return nil, fmt.Errorf("register progress query: %w", err)
	}

	var stateActs *activities.StateActivities
	stateCtx := workflow.WithActivityOptions(ctx, stateActivityOptions())

	var resume activities.GetResumePageOutput
	if err := workflow.ExecuteActivity(stateCtx, stateActs.GetResumePage, activities.GetResumePageInput{
		RequestID: input.RequestID,
	}).Get(ctx, &resume); err != nil {
		return nil, fmt.Errorf("determine resume page: %w", err)
	}
	if resume.Stale {
		logger.Warn("Request superseded before application", "requestID", input.RequestID)
		return &ApplyWorkflowResult{Stale: true}, nil
	}

	result := &ApplyWorkflowResult{Applied: resume.Applied}
	failed := 0

	var applyActs *activities.ApplyActivities
	applyCtx := workflow.WithActivityOptions(ctx, applyActivityOptions())

	for page := resume.NextPage; ; page++ {
		var out activities.ApplyResultPageOutput
		err := workflow.ExecuteActivity(applyCtx, applyActs.ApplyResultPage, activities.ApplyResultPageInput{
			RequestID:    input.RequestID,
			Page:         page,
			Legacy:       input.Legacy,
			AppliedSoFar: result.Applied,
		}).Get(ctx, &out)
		if err != nil {
			return nil, fmt.Errorf("apply result page %d: %w", page, err)
		}
		if out.Stale {
			logger.Warn("Request superseded during application", "requestID", input.RequestID)
			result.Stale = true
			return result, nil
		}

		result.Applied += out.Applied
		result.TopicsCreated += out.TopicsCreated
		failed += len(out.FailedContentIDs)
		progress.Page = page

		if !out.HasNextPage {
			break
		}
	}
	result.Failed = failed

	var markOut activities.MarkCompleteOutput
	if err := workflow.ExecuteActivity(stateCtx, stateActs.MarkComplete, activities.MarkCompleteInput{
		RequestID: input.RequestID,
	}).Get(ctx, &markOut); err != nil {
		return nil, fmt.Errorf("mark complete: %w", err)
	}
	if markOut.Stale {
		result.Stale = true
		return result, nil
	}
	progress.Stage = domain.StageComplete

	var eventActs *activities.EventActivities
	eventCtx := workflow.WithActivityOptions(ctx, eventActivityOptions())
	_ = workflow.ExecuteActivity(eventCtx, eventActs.PublishLifecycleEvent, activities.PublishEventInput{
		EventType:    events.EventAnalysisCompleted,
		RequestID:    input.RequestID,
		AppliedItems: result.Applied,
		FailedItems:  result.Failed,
	}).Get(ctx, nil)

	logger.Info("Result application workflow finished",
		"requestID", input.RequestID,
		"applied", result.Applied,
		"failed", result.Failed)
	return result, nil
}

func applyActivityOptions() workflow.ActivityOptions {
	return workflow.ActivityOptions{
		StartToCloseTimeout: 15 * time.Minute,
		HeartbeatTimeout:    2 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    2 * time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    time.Minute,
			MaximumAttempts:    5,
		},
	}
}
