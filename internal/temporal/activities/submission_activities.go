package activities

import (
	"context"
	"errors"
	"fmt"

	"go.temporal.io/sdk/activity"

	"github.com/contentive/topic-analysis-service/internal/classifier"
	"github.com/contentive/topic-analysis-service/internal/domain"
	"github.com/contentive/topic-analysis-service/internal/observability"
	"github.com/contentive/topic-analysis-service/internal/repository"
)

// SubmissionActivities sends content pages to the classification service.
type SubmissionActivities struct {
	contentRepo repository.ContentRepository
	stateRepo   repository.StateRepository
	classifier  Classifier
	metrics     *observability.Metrics
}

// NewSubmissionActivities creates submission activities with the given dependencies.
func NewSubmissionActivities(
	contentRepo repository.ContentRepository,
	stateRepo repository.StateRepository,
	classifierClient Classifier,
	metrics *observability.Metrics,
) *SubmissionActivities {
	return &SubmissionActivities{
		contentRepo: contentRepo,
		stateRepo:   stateRepo,
		classifier:  classifierClient,
		metrics:     metrics,
	}
}

// SubmitPage queries one page of content under the request's filter and sends
// it to the classifier. When the tracked request no longer matches, the page
// is skipped and Stale is reported so the workflow can exit without error.
func (a *SubmissionActivities) SubmitPage(ctx context.Context, input SubmitPageInput) (*SubmitPageOutput, error) {
	logger := activity.GetLogger(ctx)
	logger.Info("Submitting content page",
		"requestID", input.RequestID,
		"page", input.Page,
		"pageCount", input.PageCount)

	stale, err := requestSuperseded(ctx, a.stateRepo, input.RequestID)
	if err != nil {
		return nil, fmt.Errorf("check tracked request: %w", err)
	}
	if stale {
		logger.Warn("Tracked request changed, skipping page submission",
			"requestID", input.RequestID,
			"page", input.Page)
		return &SubmitPageOutput{Stale: true}, nil
	}

	items, err := a.contentRepo.PageByFilter(ctx, input.Filter, input.Page, input.PageSize)
	if err != nil {
		return nil, fmt.Errorf("query content page %d: %w", input.Page, err)
	}

	payloads := make([]classifier.ContentPayload, 0, len(items))
	for _, item := range items {
		activity.RecordHeartbeat(ctx, item.ID)
		payloads = append(payloads, classifier.ContentPayload{
			URL:   item.URL,
			Title: item.Title,
			Text:  item.RenderedText(input.ExtraBodyFields),
		})
	}

	if err := a.classifier.SendPage(ctx, input.RequestID, input.Page, input.PageCount, payloads); err != nil {
		return nil, fmt.Errorf("send page %d of %d: %w", input.Page, input.PageCount, err)
	}

	progress := domain.StageProgress{
		Completed:   input.Page,
		Total:       input.PageCount,
		CurrentPage: input.Page,
	}
	if err := a.stateRepo.SetStageProgress(ctx, input.RequestID, domain.StageSending, progress); err != nil {
		if errors.Is(err, domain.ErrStaleRequest) {
			return &SubmitPageOutput{ItemsSent: len(payloads), Stale: true}, nil
		}
		return nil, fmt.Errorf("record submission progress: %w", err)
	}

	if a.metrics != nil {
		a.metrics.RecordPageSubmitted(len(payloads))
	}

	logger.Info("Content page submitted",
		"requestID", input.RequestID,
		"page", input.Page,
		"items", len(payloads))

	return &SubmitPageOutput{ItemsSent: len(payloads)}, nil
}
