// Package workflows implements the deterministic orchestration of bulk
// content analysis: paginated submission, the analyzing poll loop, and the
// result application child workflow.
package workflows

import (
	"errors"
	"fmt"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/contentive/topic-analysis-service/internal/domain"
	"github.com/contentive/topic-analysis-service/internal/events"
	orchestration "github.com/contentive/topic-analysis-service/internal/temporal"
	"github.com/contentive/topic-analysis-service/internal/temporal/activities"
)

// CancelSignalName is the signal that requests cooperative cancellation of a
// running analysis workflow.
const CancelSignalName = "cancel-analysis"

// AnalysisWorkflowInput carries everything the workflow needs. Tuning values
// travel in the input rather than being read from config inside the workflow,
// keeping replays deterministic across config changes.
type AnalysisWorkflowInput struct {
	// RequestID is the classifier-assigned request identifier.
	RequestID string `json:"request_id"`

	// Filter is the content selection recorded at initiation.
	Filter domain.ContentFilter `json:"filter"`

	// ContentCount is the number of items matched at initiation.
	ContentCount int `json:"content_count"`

	// PageCount is the number of submission pages.
	PageCount int `json:"page_count"`

	// PageSize is the number of items per submission page.
	PageSize int `json:"page_size"`

	// ExtraBodyFields lists additional content columns appended to the
	// analyzed text.
	ExtraBodyFields []string `json:"extra_body_fields,omitempty"`

	// PollInterval is the sleep between status polls.
	PollInterval time.Duration `json:"poll_interval"`

	// MaxPollTime bounds the analyzing wait before the run is failed.
	MaxPollTime time.Duration `json:"max_poll_time"`

	// Legacy selects the split result retrieval endpoints.
	Legacy bool `json:"legacy"`
}

// AnalysisProgress is the query result exposed by both workflows.
type AnalysisProgress struct {
	// Stage is the current pipeline stage.
	Stage domain.Stage `json:"stage"`

	// Page is the page most recently processed in the current stage.
	Page int `json:"page"`

	// PageCount is the total pages of the current stage, when known.
	PageCount int `json:"page_count"`

	// Percent is the classifier-reported analyzing completion (0-100).
	Percent float64 `json:"percent"`

	// Analyzed is the number of items the classifier has processed.
	Analyzed int `json:"analyzed"`
}

// BulkAnalysisWorkflow drives one analysis request end to end: it submits
// every content page, waits for the classifier to finish, and hands off to
// the result application child workflow. A stale signal from any activity
// means the request was reset or superseded; the workflow then exits
// quietly, leaving the successor alone.
func BulkAnalysisWorkflow(ctx workflow.Context, input AnalysisWorkflowInput) error {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting bulk analysis workflow",
		"requestID", input.RequestID,
		"contentCount", input.ContentCount,
		"pageCount", input.PageCount)

	progress := AnalysisProgress{
		Stage:     domain.StageSending,
		PageCount: input.PageCount,
	}
	if err := workflow.SetQueryHandler(ctx, orchestration.QueryProgress, func() (AnalysisProgress, error) {
		return progress, nil
	}); err != nil {
		return fmt.Errorf("register progress query: %w", err)
	}

	ctx, cancelWorkflow := workflow.WithCancel(ctx)
	workflow.Go(ctx, func(gCtx workflow.Context) {
		ch := workflow.GetSignalChannel(gCtx, CancelSignalName)
		var reason string
		ch.Receive(gCtx, &reason)
		logger.Info("Cancellation signal received", "requestID", input.RequestID, "reason", reason)
		cancelWorkflow()
	})

	var eventActs *activities.EventActivities
	eventCtx := workflow.WithActivityOptions(ctx, eventActivityOptions())
	_ = workflow.ExecuteActivity(eventCtx, eventActs.PublishLifecycleEvent, activities.PublishEventInput{
		EventType:    events.EventAnalysisStarted,
		RequestID:    input.RequestID,
		ContentCount: input.ContentCount,
		PageCount:    input.PageCount,
	}).Get(ctx, nil)

	// Submission: pages go out sequentially so the classifier sees them in
	// order and a crash resumes from deterministic replay.
	var submitActs *activities.SubmissionActivities
	submitCtx := workflow.WithActivityOptions(ctx, submitActivityOptions())
	for page := 1; page <= input.PageCount; page++ {
		var out activities.SubmitPageOutput
		err := workflow.ExecuteActivity(submitCtx, submitActs.SubmitPage, activities.SubmitPageInput{
			RequestID:       input.RequestID,
			Filter:          input.Filter,
			Page:            page,
			PageCount:       input.PageCount,
			PageSize:        input.PageSize,
			ExtraBodyFields: input.ExtraBodyFields,
		}).Get(ctx, &out)
		if err != nil {
			return fmt.Errorf("submit page %d: %w", page, err)
		}
		if out.Stale {
			logger.Warn("Request superseded during submission", "requestID", input.RequestID)
			return nil
		}
		progress.Page = page
	}

	var stateActs *activities.StateActivities
	stateCtx := workflow.WithActivityOptions(ctx, stateActivityOptions())

	stale, err := transition(stateCtx, stateActs, input.RequestID, domain.StageSending, domain.StageAnalyzing)
	if err != nil {
		return err
	}
	if stale {
		return nil
	}
	progress.Stage = domain.StageAnalyzing
	progress.Page = 0
	progress.PageCount = 0
	publishStageChanged(eventCtx, eventActs, input.RequestID, domain.StageAnalyzing)

	// Analyzing: poll until the classifier reports ready or the wait budget
	// runs out. The deadline uses workflow time so replays agree on it.
	var pollActs *activities.PollActivities
	pollCtx := workflow.WithActivityOptions(ctx, pollActivityOptions())
	deadline := workflow.Now(ctx).Add(input.MaxPollTime)
	for {
		var out activities.PollAnalysisOutput
		if err := workflow.ExecuteActivity(pollCtx, pollActs.PollAnalysis, activities.PollAnalysisInput{
			RequestID: input.RequestID,
		}).Get(ctx, &out); err != nil {
			return fmt.Errorf("poll analysis: %w", err)
		}
		if out.Stale {
			logger.Warn("Request superseded during analysis", "requestID", input.RequestID)
			return nil
		}
		progress.Percent = out.Progress
		progress.Analyzed = out.Analyzed
		if out.Ready {
			break
		}
		if workflow.Now(ctx).After(deadline) {
			return temporal.NewApplicationError(
				fmt.Sprintf("classifier did not finish within %s", input.MaxPollTime),
				"AnalysisTimedOut")
		}
		if err := workflow.Sleep(ctx, input.PollInterval); err != nil {
			return err
		}
	}

	stale, err = transition(stateCtx, stateActs, input.RequestID, domain.StageAnalyzing, domain.StageApplying)
	if err != nil {
		return err
	}
	if stale {
		return nil
	}
	progress.Stage = domain.StageApplying
	publishStageChanged(eventCtx, eventActs, input.RequestID, domain.StageApplying)

	// Application runs as a child workflow under its own deterministic ID so
	// the manual apply-results trigger and this handoff deduplicate against
	// each other.
	childOpts := workflow.ChildWorkflowOptions{
		WorkflowID: orchestration.ApplyWorkflowID(input.RequestID),
		TaskQueue:  workflow.GetInfo(ctx).TaskQueueName,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    time.Minute,
			MaximumAttempts:    3,
		},
	}
	childCtx := workflow.WithChildOptions(ctx, childOpts)
	err = workflow.ExecuteChildWorkflow(childCtx, ApplyResultsWorkflow, ApplyWorkflowInput{
		RequestID: input.RequestID,
		Legacy:    input.Legacy,
	}).Get(ctx, nil)
	if err != nil {
		var alreadyStarted *temporal.ChildWorkflowExecutionAlreadyStartedError
		if errors.As(err, &alreadyStarted) {
			// Another trigger beat us to it; that run owns application now.
			logger.Info("Result application already running", "requestID", input.RequestID)
			return nil
		}
		return fmt.Errorf("apply results: %w", err)
	}

	progress.Stage = domain.StageComplete
	logger.Info("Bulk analysis workflow finished", "requestID", input.RequestID)
	return nil
}

func transition(ctx workflow.Context, acts *activities.StateActivities, requestID string, from, to domain.Stage) (stale bool, err error) {
	var out activities.TransitionStageOutput
	if err := workflow.ExecuteActivity(ctx, acts.TransitionStage, activities.TransitionStageInput{
		RequestID: requestID,
		From:      from,
		To:        to,
	}).Get(ctx, &out); err != nil {
		return false, fmt.Errorf("transition to %s: %w", to, err)
	}
	return out.Stale, nil
}

func publishStageChanged(ctx workflow.Context, acts *activities.EventActivities, requestID string, stage domain.Stage) {
	_ = workflow.ExecuteActivity(ctx, acts.PublishLifecycleEvent, activities.PublishEventInput{
		EventType: events.EventStageChanged,
		RequestID: requestID,
		Stage:     string(stage),
	}).Get(ctx, nil)
}

func submitActivityOptions() workflow.ActivityOptions {
	return workflow.ActivityOptions{
		StartToCloseTimeout: 5 * time.Minute,
		HeartbeatTimeout:    time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    2 * time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    time.Minute,
			MaximumAttempts:    5,
			NonRetryableErrorTypes: []string{
				"InvalidInput",
			},
		},
	}
}

func pollActivityOptions() workflow.ActivityOptions {
	return workflow.ActivityOptions{
		StartToCloseTimeout: time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    2 * time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    30 * time.Second,
			MaximumAttempts:    3,
		},
	}
}

func stateActivityOptions() workflow.ActivityOptions {
	return workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    15 * time.Second,
			MaximumAttempts:    5,
		},
	}
}

func eventActivityOptions() workflow.ActivityOptions {
	return workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    10 * time.Second,
			MaximumAttempts:    2,
		},
	}
}
