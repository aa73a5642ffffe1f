package activities

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/contentive/topic-analysis-service/internal/classifier"
	"github.com/contentive/topic-analysis-service/internal/domain"
)

type mockStateRepository struct {
	mock.Mock
}

func (m *mockStateRepository) Get(ctx context.Context) (*domain.ProgressRecord, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ProgressRecord), args.Error(1)
}

func (m *mockStateRepository) CurrentRequestID(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *mockStateRepository) Create(ctx context.Context, record *domain.ProgressRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *mockStateRepository) TransitionStage(ctx context.Context, requestID string, from, to domain.Stage) error {
	args := m.Called(ctx, requestID, from, to)
	return args.Error(0)
}

func (m *mockStateRepository) SetStageProgress(ctx context.Context, requestID string, stage domain.Stage, progress domain.StageProgress) error {
	args := m.Called(ctx, requestID, stage, progress)
	return args.Error(0)
}

func (m *mockStateRepository) SetPageCounts(ctx context.Context, requestID string, customerIDPages, entityPages *int) error {
	args := m.Called(ctx, requestID, customerIDPages, entityPages)
	return args.Error(0)
}

func (m *mockStateRepository) MarkComplete(ctx context.Context, requestID string, completedAt time.Time) error {
	args := m.Called(ctx, requestID, completedAt)
	return args.Error(0)
}

func (m *mockStateRepository) Delete(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

type mockContentRepository struct {
	mock.Mock
}

func (m *mockContentRepository) CountByFilter(ctx context.Context, filter domain.ContentFilter) (int, error) {
	args := m.Called(ctx, filter)
	return args.Int(0), args.Error(1)
}

func (m *mockContentRepository) PageByFilter(ctx context.Context, filter domain.ContentFilter, page, pageSize int) ([]*domain.ContentItem, error) {
	args := m.Called(ctx, filter, page, pageSize)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.ContentItem), args.Error(1)
}

func (m *mockContentRepository) GetByID(ctx context.Context, id int64) (*domain.ContentItem, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ContentItem), args.Error(1)
}

func (m *mockContentRepository) GetTopicIDs(ctx context.Context, contentID int64) ([]uuid.UUID, error) {
	args := m.Called(ctx, contentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]uuid.UUID), args.Error(1)
}

func (m *mockContentRepository) AssignTopic(ctx context.Context, contentID int64, topicID uuid.UUID, assignment domain.TopicAssignment) (bool, error) {
	args := m.Called(ctx, contentID, topicID, assignment)
	return args.Bool(0), args.Error(1)
}

func (m *mockContentRepository) MarkAnalyzed(ctx context.Context, contentIDs []int64, analyzedAt time.Time) error {
	args := m.Called(ctx, contentIDs, analyzedAt)
	return args.Error(0)
}

type mockTopicRepository struct {
	mock.Mock
}

func (m *mockTopicRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Topic, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Topic), args.Error(1)
}

func (m *mockTopicRepository) GetByExternalID(ctx context.Context, externalID string) (*domain.Topic, error) {
	args := m.Called(ctx, externalID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Topic), args.Error(1)
}

func (m *mockTopicRepository) GetByName(ctx context.Context, name string) (*domain.Topic, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Topic), args.Error(1)
}

func (m *mockTopicRepository) AttachExternalID(ctx context.Context, id uuid.UUID, externalID string) error {
	args := m.Called(ctx, id, externalID)
	return args.Error(0)
}

func (m *mockTopicRepository) Create(ctx context.Context, topic *domain.Topic) error {
	args := m.Called(ctx, topic)
	return args.Error(0)
}

func (m *mockTopicRepository) UpdateMetadata(ctx context.Context, topic *domain.Topic) error {
	args := m.Called(ctx, topic)
	return args.Error(0)
}

func (m *mockTopicRepository) List(ctx context.Context, limit, offset int) ([]*domain.Topic, int64, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]*domain.Topic), args.Get(1).(int64), args.Error(2)
}

func (m *mockTopicRepository) CountForContent(ctx context.Context, contentID int64) (int, error) {
	args := m.Called(ctx, contentID)
	return args.Int(0), args.Error(1)
}

type mockClassifier struct {
	mock.Mock
}

func (m *mockClassifier) InitiateBulk(ctx context.Context, contentCount int) (string, error) {
	args := m.Called(ctx, contentCount)
	return args.String(0), args.Error(1)
}

func (m *mockClassifier) SendPage(ctx context.Context, requestID string, page, pageCount int, contents []classifier.ContentPayload) error {
	args := m.Called(ctx, requestID, page, pageCount, contents)
	return args.Error(0)
}

func (m *mockClassifier) PollAnalysis(ctx context.Context, requestID string) (*classifier.PollStatus, error) {
	args := m.Called(ctx, requestID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*classifier.PollStatus), args.Error(1)
}

func (m *mockClassifier) FetchResultPage(ctx context.Context, requestID string, page int) (*classifier.ResultPage, error) {
	args := m.Called(ctx, requestID, page)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*classifier.ResultPage), args.Error(1)
}

func (m *mockClassifier) FetchContentIDsPage(ctx context.Context, requestID string, page int) (*classifier.ContentIDsPage, error) {
	args := m.Called(ctx, requestID, page)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*classifier.ContentIDsPage), args.Error(1)
}

func (m *mockClassifier) FetchSubjectsPage(ctx context.Context, requestID string, page int) (*classifier.SubjectsPage, error) {
	args := m.Called(ctx, requestID, page)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*classifier.SubjectsPage), args.Error(1)
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) PublishStarted(ctx context.Context, requestID string, contentCount, pageCount int) {
	m.Called(ctx, requestID, contentCount, pageCount)
}

func (m *mockPublisher) PublishStageChanged(ctx context.Context, requestID, stage string) {
	m.Called(ctx, requestID, stage)
}

func (m *mockPublisher) PublishCompleted(ctx context.Context, requestID string, appliedItems, failedItems int) {
	m.Called(ctx, requestID, appliedItems, failedItems)
}

func (m *mockPublisher) PublishReset(ctx context.Context, requestID string, clearedJobs int) {
	m.Called(ctx, requestID, clearedJobs)
}
