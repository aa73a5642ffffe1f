package activities

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.temporal.io/sdk/activity"

	"github.com/contentive/topic-analysis-service/internal/domain"
	"github.com/contentive/topic-analysis-service/internal/observability"
	"github.com/contentive/topic-analysis-service/internal/repository"
)

// requestSuperseded reports whether the singleton state row no longer tracks
// requestID. A missing row counts as superseded: a reset deleted it and the
// calling workflow should stand down.
func requestSuperseded(ctx context.Context, stateRepo repository.StateRepository, requestID string) (bool, error) {
	current, err := stateRepo.CurrentRequestID(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return true, nil
		}
		return false, err
	}
	return current != requestID, nil
}

// StateActivities mutates the persisted analysis progress record.
type StateActivities struct {
	stateRepo repository.StateRepository
	metrics   *observability.Metrics
}

// NewStateActivities creates state activities with the given dependencies.
func NewStateActivities(stateRepo repository.StateRepository, metrics *observability.Metrics) *StateActivities {
	return &StateActivities{
		stateRepo: stateRepo,
		metrics:   metrics,
	}
}

// TransitionStage advances the persisted stage. A record already at or past
// the target stage is treated as success so a retried activity or a duplicate
// trigger does not fail the workflow.
func (a *StateActivities) TransitionStage(ctx context.Context, input TransitionStageInput) (*TransitionStageOutput, error) {
	logger := activity.GetLogger(ctx)
	logger.Info("Transitioning analysis stage",
		"requestID", input.RequestID,
		"from", input.From,
		"to", input.To)

	err := a.stateRepo.TransitionStage(ctx, input.RequestID, input.From, input.To)
	if err == nil {
		return &TransitionStageOutput{}, nil
	}

	if errors.Is(err, domain.ErrStaleRequest) {
		logger.Warn("Tracked request changed, skipping stage transition",
			"requestID", input.RequestID,
			"to", input.To)
		return &TransitionStageOutput{Stale: true}, nil
	}

	var conflict *domain.StateConflictError
	if errors.As(err, &conflict) {
		record, getErr := a.stateRepo.Get(ctx)
		if getErr == nil && record.Request.RequestID == input.RequestID &&
			domain.IsValidStageTransition(input.To, record.Stage) {
			// A previous attempt of this transition already landed.
			logger.Info("Stage already at or past target",
				"requestID", input.RequestID,
				"stage", record.Stage)
			return &TransitionStageOutput{}, nil
		}
		return nil, fmt.Errorf("transition %s to %s: %w", input.From, input.To, err)
	}

	return nil, fmt.Errorf("transition %s to %s: %w", input.From, input.To, err)
}

// MarkComplete stamps the completion time that starts the grace windows.
func (a *StateActivities) MarkComplete(ctx context.Context, input MarkCompleteInput) (*MarkCompleteOutput, error) {
	logger := activity.GetLogger(ctx)
	logger.Info("Marking analysis complete", "requestID", input.RequestID)

	if err := a.stateRepo.MarkComplete(ctx, input.RequestID, time.Now().UTC()); err != nil {
		if errors.Is(err, domain.ErrStaleRequest) {
			logger.Warn("Tracked request changed, skipping completion", "requestID", input.RequestID)
			return &MarkCompleteOutput{Stale: true}, nil
		}
		return nil, fmt.Errorf("mark request complete: %w", err)
	}
	return &MarkCompleteOutput{}, nil
}

// GetResumePage reads the persisted applying progress and returns the first
// page a restarted application workflow should process.
func (a *StateActivities) GetResumePage(ctx context.Context, input GetResumePageInput) (*GetResumePageOutput, error) {
	logger := activity.GetLogger(ctx)

	record, err := a.stateRepo.Get(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return &GetResumePageOutput{Stale: true}, nil
		}
		return nil, fmt.Errorf("load progress record: %w", err)
	}
	if record.Request.RequestID != input.RequestID {
		return &GetResumePageOutput{Stale: true}, nil
	}

	next := record.Applying.CurrentPage + 1
	if next < 1 {
		next = 1
	}

	logger.Info("Resuming result application",
		"requestID", input.RequestID,
		"nextPage", next,
		"applied", record.Applying.Completed)

	return &GetResumePageOutput{
		NextPage: next,
		Applied:  record.Applying.Completed,
	}, nil
}
