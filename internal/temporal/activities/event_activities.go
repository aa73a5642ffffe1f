package activities

import (
	"context"
	"fmt"

	"go.temporal.io/sdk/activity"

	"github.com/contentive/topic-analysis-service/internal/events"
)

// EventActivities publishes analysis lifecycle events to Kafka.
type EventActivities struct {
	publisher EventPublisher
}

// NewEventActivities creates event activities with the given publisher.
func NewEventActivities(publisher EventPublisher) *EventActivities {
	return &EventActivities{publisher: publisher}
}

// PublishLifecycleEvent emits one lifecycle event. Publishing is best effort
// inside the publisher; this activity only fails on an unknown event type.
func (a *EventActivities) PublishLifecycleEvent(ctx context.Context, input PublishEventInput) error {
	logger := activity.GetLogger(ctx)

	switch input.EventType {
	case events.EventAnalysisStarted:
		a.publisher.PublishStarted(ctx, input.RequestID, input.ContentCount, input.PageCount)
	case events.EventStageChanged:
		a.publisher.PublishStageChanged(ctx, input.RequestID, input.Stage)
	case events.EventAnalysisCompleted:
		a.publisher.PublishCompleted(ctx, input.RequestID, input.AppliedItems, input.FailedItems)
	case events.EventAnalysisReset:
		a.publisher.PublishReset(ctx, input.RequestID, input.ClearedJobs)
	default:
		return fmt.Errorf("unknown lifecycle event type %q", input.EventType)
	}

	logger.Debug("Published lifecycle event",
		"eventType", input.EventType,
		"requestID", input.RequestID)
	return nil
}
