//go:build integration

package integration

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contentive/topic-analysis-service/internal/domain"
	"github.com/contentive/topic-analysis-service/internal/repository"
)

func seedContentItem(t *testing.T, id int64, contentType, status string, publishedAt time.Time) {
	t.Helper()
	_, err := testPool.Exec(context.Background(), `
		INSERT INTO content_items (id, content_type, title, body, url, status, published_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		id, contentType, "Item "+contentType, "body text", "https://example.com/items", status, publishedAt)
	require.NoError(t, err)
}

func newStateRecord(requestID string) *domain.ProgressRecord {
	return &domain.ProgressRecord{
		Request: domain.AnalysisRequest{
			RequestID:    requestID,
			Filter:       domain.ContentFilter{ContentTypes: []string{"article"}},
			ContentCount: 120,
			CreatedAt:    time.Now().UTC().Truncate(time.Microsecond),
		},
		Stage:   domain.StageSending,
		Sending: domain.StageProgress{Total: 3},
	}
}

func TestPgStateRepository_Integration(t *testing.T) {
	cleanTable(t, "analysis_state")
	repo := repository.NewPgStateRepository(testPool)
	ctx := context.Background()

	t.Run("Create and Get roundtrip", func(t *testing.T) {
		cleanTable(t, "analysis_state")
		require.NoError(t, repo.Create(ctx, newStateRecord("req-int-1")))

		got, err := repo.Get(ctx)
		require.NoError(t, err)
		assert.Equal(t, "req-int-1", got.Request.RequestID)
		assert.Equal(t, 120, got.Request.ContentCount)
		assert.Equal(t, domain.StageSending, got.Stage)
		assert.Equal(t, 3, got.Sending.Total)
		assert.Equal(t, []string{"article"}, got.Request.Filter.ContentTypes)
	})

	t.Run("Create while a request is tracked fails", func(t *testing.T) {
		cleanTable(t, "analysis_state")
		require.NoError(t, repo.Create(ctx, newStateRecord("req-int-1")))

		err := repo.Create(ctx, newStateRecord("req-int-2"))
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrRequestActive)

		// The tracked request is untouched.
		id, err := repo.CurrentRequestID(ctx)
		require.NoError(t, err)
		assert.Equal(t, "req-int-1", id)
	})

	t.Run("TransitionStage advances with a matching expectation", func(t *testing.T) {
		cleanTable(t, "analysis_state")
		require.NoError(t, repo.Create(ctx, newStateRecord("req-int-1")))

		err := repo.TransitionStage(ctx, "req-int-1", domain.StageSending, domain.StageAnalyzing)
		require.NoError(t, err)

		got, err := repo.Get(ctx)
		require.NoError(t, err)
		assert.Equal(t, domain.StageAnalyzing, got.Stage)
	})

	t.Run("TransitionStage rejects a stale expectation", func(t *testing.T) {
		cleanTable(t, "analysis_state")
		require.NoError(t, repo.Create(ctx, newStateRecord("req-int-1")))

		// Stored stage is sending, expectation says analyzing.
		err := repo.TransitionStage(ctx, "req-int-1", domain.StageAnalyzing, domain.StageApplying)
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrRequestActive)
	})

	t.Run("TransitionStage rejects another request's ID", func(t *testing.T) {
		cleanTable(t, "analysis_state")
		require.NoError(t, repo.Create(ctx, newStateRecord("req-int-1")))

		err := repo.TransitionStage(ctx, "req-other", domain.StageSending, domain.StageAnalyzing)
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrStaleRequest)
	})

	t.Run("SetStageProgress and SetPageCounts persist", func(t *testing.T) {
		cleanTable(t, "analysis_state")
		require.NoError(t, repo.Create(ctx, newStateRecord("req-int-1")))

		err := repo.SetStageProgress(ctx, "req-int-1", domain.StageSending,
			domain.StageProgress{Completed: 2, Total: 3, CurrentPage: 2})
		require.NoError(t, err)

		pages := 4
		entities := 2
		require.NoError(t, repo.SetPageCounts(ctx, "req-int-1", &pages, &entities))

		got, err := repo.Get(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, got.Sending.Completed)
		assert.Equal(t, 2, got.Sending.CurrentPage)
		require.NotNil(t, got.CustomerIDPageCount)
		assert.Equal(t, 4, *got.CustomerIDPageCount)
		require.NotNil(t, got.EntityPageCount)
		assert.Equal(t, 2, *got.EntityPageCount)
	})

	t.Run("MarkComplete stamps the completion time", func(t *testing.T) {
		cleanTable(t, "analysis_state")
		require.NoError(t, repo.Create(ctx, newStateRecord("req-int-1")))

		completedAt := time.Now().UTC().Truncate(time.Microsecond)
		require.NoError(t, repo.MarkComplete(ctx, "req-int-1", completedAt))

		got, err := repo.Get(ctx)
		require.NoError(t, err)
		assert.Equal(t, domain.StageComplete, got.Stage)
		require.NotNil(t, got.CompletedAt)
		assert.True(t, got.CompletedAt.Equal(completedAt))
	})

	t.Run("Delete makes Get return not found", func(t *testing.T) {
		cleanTable(t, "analysis_state")
		require.NoError(t, repo.Create(ctx, newStateRecord("req-int-1")))
		require.NoError(t, repo.Delete(ctx))

		_, err := repo.Get(ctx)
		assert.ErrorIs(t, err, domain.ErrNotFound)

		// Deleting again is a no-op.
		require.NoError(t, repo.Delete(ctx))
	})
}

func TestPgTopicRepository_Integration(t *testing.T) {
	repo := repository.NewPgTopicRepository(testPool)
	ctx := context.Background()

	externalID := "ext-integration-1"
	newTopic := func(name string) *domain.Topic {
		now := time.Now().UTC().Truncate(time.Microsecond)
		id := externalID
		return &domain.Topic{
			ID:          uuid.New(),
			ExternalID:  &id,
			Name:        name,
			Description: "integration topic",
			FirstSeenAt: now,
			UpdatedAt:   now,
		}
	}

	t.Run("Create and lookups", func(t *testing.T) {
		cleanTable(t, "topics")
		topic := newTopic("Machine Learning")
		require.NoError(t, repo.Create(ctx, topic))

		byExternal, err := repo.GetByExternalID(ctx, externalID)
		require.NoError(t, err)
		assert.Equal(t, topic.ID, byExternal.ID)
		assert.Equal(t, "Machine Learning", byExternal.Name)

		// Name lookup only considers topics with no external ID bound.
		_, err = repo.GetByName(ctx, "Machine Learning")
		assert.ErrorIs(t, err, domain.ErrNotFound)

		now := time.Now().UTC().Truncate(time.Microsecond)
		orphan := &domain.Topic{ID: uuid.New(), Name: "Machine Learning", FirstSeenAt: now, UpdatedAt: now}
		require.NoError(t, repo.Create(ctx, orphan))

		byName, err := repo.GetByName(ctx, "Machine Learning")
		require.NoError(t, err)
		assert.Equal(t, orphan.ID, byName.ID)

		byID, err := repo.GetByID(ctx, topic.ID)
		require.NoError(t, err)
		assert.Equal(t, "integration topic", byID.Description)
	})

	t.Run("duplicate external ID loses the race", func(t *testing.T) {
		cleanTable(t, "topics")
		require.NoError(t, repo.Create(ctx, newTopic("Winner")))

		err := repo.Create(ctx, newTopic("Loser"))
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrAlreadyExists)

		// The winner's row is what external-ID lookups return.
		got, err := repo.GetByExternalID(ctx, externalID)
		require.NoError(t, err)
		assert.Equal(t, "Winner", got.Name)
	})

	t.Run("AttachExternalID repairs a name-only topic", func(t *testing.T) {
		cleanTable(t, "topics")
		now := time.Now().UTC().Truncate(time.Microsecond)
		orphan := &domain.Topic{
			ID:          uuid.New(),
			Name:        "Orphan Topic",
			FirstSeenAt: now,
			UpdatedAt:   now,
		}
		require.NoError(t, repo.Create(ctx, orphan))

		require.NoError(t, repo.AttachExternalID(ctx, orphan.ID, "ext-repaired"))

		got, err := repo.GetByExternalID(ctx, "ext-repaired")
		require.NoError(t, err)
		assert.Equal(t, orphan.ID, got.ID)
	})

	t.Run("AttachExternalID refuses a taken external ID", func(t *testing.T) {
		cleanTable(t, "topics")
		require.NoError(t, repo.Create(ctx, newTopic("Holder")))

		now := time.Now().UTC().Truncate(time.Microsecond)
		orphan := &domain.Topic{ID: uuid.New(), Name: "Claimant", FirstSeenAt: now, UpdatedAt: now}
		require.NoError(t, repo.Create(ctx, orphan))

		err := repo.AttachExternalID(ctx, orphan.ID, externalID)
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrAlreadyExists)
	})

	t.Run("UpdateMetadata persists merged fields", func(t *testing.T) {
		cleanTable(t, "topics")
		topic := newTopic("Metadata Topic")
		require.NoError(t, repo.Create(ctx, topic))

		topic.Description = "updated description"
		topic.ImageURL = "https://example.com/image.png"
		topic.SchemaTypes = []string{"Thing"}
		require.NoError(t, repo.UpdateMetadata(ctx, topic))

		got, err := repo.GetByID(ctx, topic.ID)
		require.NoError(t, err)
		assert.Equal(t, "updated description", got.Description)
		assert.Equal(t, "https://example.com/image.png", got.ImageURL)
		assert.Equal(t, []string{"Thing"}, got.SchemaTypes)
	})

	t.Run("List pages through the catalog", func(t *testing.T) {
		cleanTable(t, "topics")
		now := time.Now().UTC().Truncate(time.Microsecond)
		for _, name := range []string{"Alpha", "Beta", "Gamma"} {
			topic := &domain.Topic{ID: uuid.New(), Name: name, FirstSeenAt: now, UpdatedAt: now}
			require.NoError(t, repo.Create(ctx, topic))
		}

		page, total, err := repo.List(ctx, 2, 0)
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)
		assert.Len(t, page, 2)
	})
}

func TestPgContentRepository_Integration(t *testing.T) {
	repo := repository.NewPgContentRepository(testPool)
	topicRepo := repository.NewPgTopicRepository(testPool)
	ctx := context.Background()

	published := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	seedAll := func(t *testing.T) {
		cleanTable(t, "content_items", "topics", "content_item_topics")
		seedContentItem(t, 1, "article", "published", published)
		seedContentItem(t, 2, "article", "published", published.Add(24*time.Hour))
		seedContentItem(t, 3, "podcast", "published", published)
		seedContentItem(t, 4, "article", "draft", published)
	}

	t.Run("CountByFilter honors type, status and date bounds", func(t *testing.T) {
		seedAll(t)

		count, err := repo.CountByFilter(ctx, domain.ContentFilter{ContentTypes: []string{"article"}})
		require.NoError(t, err)
		assert.Equal(t, 2, count, "drafts are excluded by default")

		count, err = repo.CountByFilter(ctx, domain.ContentFilter{
			ContentTypes:  []string{"article"},
			IncludeDrafts: true,
		})
		require.NoError(t, err)
		assert.Equal(t, 3, count)

		start := published.Add(time.Hour)
		count, err = repo.CountByFilter(ctx, domain.ContentFilter{StartDate: &start})
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})

	t.Run("PageByFilter orders by ID and pages deterministically", func(t *testing.T) {
		seedAll(t)

		page, err := repo.PageByFilter(ctx, domain.ContentFilter{}, 1, 2)
		require.NoError(t, err)
		require.Len(t, page, 2)
		assert.Equal(t, int64(1), page[0].ID)
		assert.Equal(t, int64(2), page[1].ID)

		page, err = repo.PageByFilter(ctx, domain.ContentFilter{}, 2, 2)
		require.NoError(t, err)
		require.Len(t, page, 1)
		assert.Equal(t, int64(3), page[0].ID)

		page, err = repo.PageByFilter(ctx, domain.ContentFilter{}, 3, 2)
		require.NoError(t, err)
		assert.Empty(t, page)
	})

	t.Run("AssignTopic is idempotent per pair", func(t *testing.T) {
		seedAll(t)
		now := time.Now().UTC().Truncate(time.Microsecond)
		topic := &domain.Topic{ID: uuid.New(), Name: "Assigned", FirstSeenAt: now, UpdatedAt: now}
		require.NoError(t, topicRepo.Create(ctx, topic))

		salience := 0.83
		created, err := repo.AssignTopic(ctx, 1, topic.ID, domain.TopicAssignment{
			ContentID: 1,
			Salience:  &salience,
			Category:  "technology",
		})
		require.NoError(t, err)
		assert.True(t, created)

		created, err = repo.AssignTopic(ctx, 1, topic.ID, domain.TopicAssignment{ContentID: 1})
		require.NoError(t, err)
		assert.False(t, created, "second assignment of the same pair is a no-op")

		ids, err := repo.GetTopicIDs(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, []uuid.UUID{topic.ID}, ids)

		n, err := topicRepo.CountForContent(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})

	t.Run("MarkAnalyzed feeds the reanalyze filter", func(t *testing.T) {
		seedAll(t)

		analyzedAt := time.Now().UTC().Truncate(time.Microsecond)
		require.NoError(t, repo.MarkAnalyzed(ctx, []int64{1, 2}, analyzedAt))

		count, err := repo.CountByFilter(ctx, domain.ContentFilter{
			ContentTypes: []string{"article"},
		})
		require.NoError(t, err)
		assert.Equal(t, 0, count, "analyzed items drop out without reanalyze")

		count, err = repo.CountByFilter(ctx, domain.ContentFilter{
			ContentTypes: []string{"article"},
			Reanalyze:    true,
		})
		require.NoError(t, err)
		assert.Equal(t, 2, count)

		got, err := repo.GetByID(ctx, 1)
		require.NoError(t, err)
		require.NotNil(t, got.LastAnalyzedAt)
		assert.True(t, got.LastAnalyzedAt.Equal(analyzedAt))
	})
}
