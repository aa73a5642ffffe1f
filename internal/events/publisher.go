// Package events publishes analysis lifecycle events to Kafka so downstream
// consumers (search indexers, cache invalidation) learn when topic
// assignments change in bulk.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/contentive/topic-analysis-service/internal/config"
	"github.com/contentive/topic-analysis-service/internal/observability"
)

// Event types published on the lifecycle topic.
const (
	EventAnalysisStarted   = "analysis.started"
	EventAnalysisCompleted = "analysis.completed"
	EventAnalysisReset     = "analysis.reset"
	EventStageChanged      = "analysis.stage_changed"
)

// AnalysisEvent is the wire shape of a lifecycle event. The request ID keys
// the Kafka message so all events of one run land on the same partition.
type AnalysisEvent struct {
	Type      string    `json:"type"`
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`

	// ContentCount and PageCount are set on started events.
	ContentCount int `json:"content_count,omitempty"`
	PageCount    int `json:"page_count,omitempty"`

	// Stage is set on stage_changed events.
	Stage string `json:"stage,omitempty"`

	// AppliedItems and FailedItems are set on completed events.
	AppliedItems int `json:"applied_items,omitempty"`
	FailedItems  int `json:"failed_items,omitempty"`

	// ClearedJobs is set on reset events.
	ClearedJobs int `json:"cleared_jobs,omitempty"`
}

// messageWriter is the subset of kafka.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher writes lifecycle events to Kafka. Publishing is best-effort:
// failures are logged and counted but never fail the calling operation.
// A disabled publisher drops events silently.
type Publisher struct {
	writer  messageWriter
	logger  zerolog.Logger
	metrics *observability.Metrics
	enabled bool
}

// NewPublisher creates a lifecycle event publisher. When cfg.Enabled is
// false, the publisher is a no-op and opens no connections.
func NewPublisher(cfg config.KafkaConfig, logger zerolog.Logger, metrics *observability.Metrics) *Publisher {
	p := &Publisher{
		logger:  logger.With().Str("component", "events").Logger(),
		metrics: metrics,
		enabled: cfg.Enabled,
	}
	if !cfg.Enabled {
		return p
	}

	p.writer = &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchSize:    cfg.BatchSize,
		BatchTimeout: cfg.BatchTimeout,
		RequiredAcks: kafka.RequireOne,
	}
	return p
}

// PublishStarted announces a newly initiated analysis run.
func (p *Publisher) PublishStarted(ctx context.Context, requestID string, contentCount, pageCount int) {
	p.publish(ctx, AnalysisEvent{
		Type:         EventAnalysisStarted,
		RequestID:    requestID,
		ContentCount: contentCount,
		PageCount:    pageCount,
	})
}

// PublishStageChanged announces a stage transition.
func (p *Publisher) PublishStageChanged(ctx context.Context, requestID, stage string) {
	p.publish(ctx, AnalysisEvent{
		Type:      EventStageChanged,
		RequestID: requestID,
		Stage:     stage,
	})
}

// PublishCompleted announces that result application finished.
func (p *Publisher) PublishCompleted(ctx context.Context, requestID string, appliedItems, failedItems int) {
	p.publish(ctx, AnalysisEvent{
		Type:         EventAnalysisCompleted,
		RequestID:    requestID,
		AppliedItems: appliedItems,
		FailedItems:  failedItems,
	})
}

// PublishReset announces that an operator cleared the run.
func (p *Publisher) PublishReset(ctx context.Context, requestID string, clearedJobs int) {
	p.publish(ctx, AnalysisEvent{
		Type:        EventAnalysisReset,
		RequestID:   requestID,
		ClearedJobs: clearedJobs,
	})
}

func (p *Publisher) publish(ctx context.Context, event AnalysisEvent) {
	if !p.enabled || p.writer == nil {
		return
	}
	event.Timestamp = time.Now().UTC()

	value, err := json.Marshal(event)
	if err != nil {
		p.recordFailure(event.Type, err)
		return
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.RequestID),
		Value: value,
	})
	if err != nil {
		p.recordFailure(event.Type, err)
		return
	}

	if p.metrics != nil {
		p.metrics.RecordEventPublished(event.Type)
	}
	p.logger.Debug().
		Str("event_type", event.Type).
		Str("request_id", event.RequestID).
		Msg("lifecycle event published")
}

func (p *Publisher) recordFailure(eventType string, err error) {
	if p.metrics != nil {
		p.metrics.RecordEventFailed(eventType)
	}
	p.logger.Error().Err(err).
		Str("event_type", eventType).
		Msg("failed to publish lifecycle event")
}

// Close flushes and closes the underlying writer.
func (p *Publisher) Close() error {
	if p.writer == nil {
		return nil
	}
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("closing kafka writer: %w", err)
	}
	return nil
}
