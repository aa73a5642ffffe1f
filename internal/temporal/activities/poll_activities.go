package activities

import (
	"context"
	"errors"
	"fmt"

	"go.temporal.io/sdk/activity"

	"github.com/contentive/topic-analysis-service/internal/domain"
	"github.com/contentive/topic-analysis-service/internal/observability"
	"github.com/contentive/topic-analysis-service/internal/repository"
)

// PollActivities checks classification progress on the remote service.
type PollActivities struct {
	stateRepo  repository.StateRepository
	classifier Classifier
	metrics    *observability.Metrics
}

// NewPollActivities creates poll activities with the given dependencies.
func NewPollActivities(
	stateRepo repository.StateRepository,
	classifierClient Classifier,
	metrics *observability.Metrics,
) *PollActivities {
	return &PollActivities{
		stateRepo:  stateRepo,
		classifier: classifierClient,
		metrics:    metrics,
	}
}

// PollAnalysis asks the classifier for the request's progress. The stale
// check runs before the remote call so a superseded workflow never polls on
// behalf of a request the system abandoned.
func (a *PollActivities) PollAnalysis(ctx context.Context, input PollAnalysisInput) (*PollAnalysisOutput, error) {
	logger := activity.GetLogger(ctx)

	stale, err := requestSuperseded(ctx, a.stateRepo, input.RequestID)
	if err != nil {
		return nil, fmt.Errorf("check tracked request: %w", err)
	}
	if stale {
		if a.metrics != nil {
			a.metrics.RecordPollStale()
		}
		logger.Warn("Tracked request changed, poller standing down", "requestID", input.RequestID)
		return &PollAnalysisOutput{Stale: true}, nil
	}

	status, err := a.classifier.PollAnalysis(ctx, input.RequestID)
	if err != nil {
		return nil, fmt.Errorf("poll analysis status: %w", err)
	}

	if a.metrics != nil {
		a.metrics.RecordPoll()
	}

	if status.CustomerIDPageCount != nil || status.EntityPageCount != nil {
		if err := a.stateRepo.SetPageCounts(ctx, input.RequestID, status.CustomerIDPageCount, status.EntityPageCount); err != nil {
			if errors.Is(err, domain.ErrStaleRequest) {
				return &PollAnalysisOutput{Stale: true}, nil
			}
			return nil, fmt.Errorf("cache result page counts: %w", err)
		}
	}

	progress := domain.StageProgress{
		Completed: status.Analyzed,
		Total:     status.ContentCount,
	}
	if err := a.stateRepo.SetStageProgress(ctx, input.RequestID, domain.StageAnalyzing, progress); err != nil {
		if errors.Is(err, domain.ErrStaleRequest) {
			return &PollAnalysisOutput{Stale: true}, nil
		}
		return nil, fmt.Errorf("record analyzing progress: %w", err)
	}

	logger.Info("Polled analysis status",
		"requestID", input.RequestID,
		"ready", status.Ready,
		"progress", status.Progress(),
		"analyzed", status.Analyzed)

	return &PollAnalysisOutput{
		Ready:    status.Ready,
		Progress: status.Progress(),
		Analyzed: status.Analyzed,
	}, nil
}
