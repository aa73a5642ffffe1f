package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contentive/topic-analysis-service/internal/domain"
)

func topicRow(id uuid.UUID, externalID *string, name string) *pgxmock.Rows {
	now := time.Now().UTC()
	return pgxmock.NewRows([]string{
		"id", "external_id", "name", "description", "image_url", "thumbnail_url",
		"schema_types", "cross_refs", "first_seen_at", "updated_at",
	}).AddRow(
		id, externalID, name, "A description", "", "",
		[]string{"Thing"}, map[string]string{}, now, now,
	)
}

func TestPgTopicRepository_GetByExternalID(t *testing.T) {
	t.Run("returns topic when found", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgTopicRepository(mock)

		id := uuid.New()
		externalID := "kg:/m/02mjmr"
		mock.ExpectQuery(`SELECT id, external_id, name, description, image_url, thumbnail_url, schema_types, cross_refs, first_seen_at, updated_at FROM topics WHERE external_id = \$1`).
			WithArgs(externalID).
			WillReturnRows(topicRow(id, &externalID, "Quantum Computing"))

		topic, err := repo.GetByExternalID(context.Background(), externalID)
		require.NoError(t, err)
		assert.Equal(t, id, topic.ID)
		require.NotNil(t, topic.ExternalID)
		assert.Equal(t, externalID, *topic.ExternalID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns not found error", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgTopicRepository(mock)

		mock.ExpectQuery(`FROM topics WHERE external_id = \$1`).
			WithArgs("kg:/m/missing").
			WillReturnError(pgx.ErrNoRows)

		_, err = repo.GetByExternalID(context.Background(), "kg:/m/missing")
		assert.True(t, errors.Is(err, domain.ErrNotFound))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rejects empty external ID without querying", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgTopicRepository(mock)

		_, err = repo.GetByExternalID(context.Background(), "")
		assert.True(t, errors.Is(err, domain.ErrInvalidInput))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPgTopicRepository_GetByName(t *testing.T) {
	t.Run("returns oldest id-less topic with the name", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgTopicRepository(mock)

		id := uuid.New()
		mock.ExpectQuery(`FROM topics WHERE name = \$1 AND external_id IS NULL ORDER BY first_seen_at LIMIT 1`).
			WithArgs("Machine Learning").
			WillReturnRows(topicRow(id, nil, "Machine Learning"))

		topic, err := repo.GetByName(context.Background(), "Machine Learning")
		require.NoError(t, err)
		assert.Equal(t, id, topic.ID)
		assert.Nil(t, topic.ExternalID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns not found error", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgTopicRepository(mock)

		mock.ExpectQuery(`FROM topics WHERE name = \$1`).
			WithArgs("Unknown").
			WillReturnError(pgx.ErrNoRows)

		_, err = repo.GetByName(context.Background(), "Unknown")
		assert.True(t, errors.Is(err, domain.ErrNotFound))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPgTopicRepository_AttachExternalID(t *testing.T) {
	t.Run("backfills external ID", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgTopicRepository(mock)

		id := uuid.New()
		mock.ExpectExec(`UPDATE topics SET external_id = \$1, updated_at = \$2 WHERE id = \$3`).
			WithArgs("kg:/m/02mjmr", pgxmock.AnyArg(), id).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		err = repo.AttachExternalID(context.Background(), id, "kg:/m/02mjmr")
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns already exists when external ID is taken", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgTopicRepository(mock)

		id := uuid.New()
		mock.ExpectExec(`UPDATE topics SET external_id = \$1`).
			WithArgs("kg:/m/02mjmr", pgxmock.AnyArg(), id).
			WillReturnError(&pgconn.PgError{Code: pgUniqueViolation})

		err = repo.AttachExternalID(context.Background(), id, "kg:/m/02mjmr")
		assert.True(t, errors.Is(err, domain.ErrAlreadyExists))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns not found for missing topic", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgTopicRepository(mock)

		id := uuid.New()
		mock.ExpectExec(`UPDATE topics SET external_id = \$1`).
			WithArgs("kg:/m/02mjmr", pgxmock.AnyArg(), id).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		err = repo.AttachExternalID(context.Background(), id, "kg:/m/02mjmr")
		assert.True(t, errors.Is(err, domain.ErrNotFound))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPgTopicRepository_Create(t *testing.T) {
	t.Run("inserts topic and fills defaults", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgTopicRepository(mock)

		externalID := "kg:/m/02mjmr"
		topic := &domain.Topic{
			ExternalID:  &externalID,
			Name:        "Quantum Computing",
			SchemaTypes: []string{"Thing"},
			CrossRefs:   map[string]string{"wikidata": "Q12345"},
		}

		mock.ExpectExec(`INSERT INTO topics`).
			WithArgs(
				pgxmock.AnyArg(), &externalID, "Quantum Computing", "", "", "",
				[]string{"Thing"}, map[string]string{"wikidata": "Q12345"},
				pgxmock.AnyArg(), pgxmock.AnyArg(),
			).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		err = repo.Create(context.Background(), topic)
		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, topic.ID)
		assert.False(t, topic.FirstSeenAt.IsZero())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns already exists on concurrent create", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgTopicRepository(mock)

		externalID := "kg:/m/02mjmr"
		mock.ExpectExec(`INSERT INTO topics`).
			WithArgs(
				pgxmock.AnyArg(), &externalID, "Quantum Computing", "", "", "",
				[]string(nil), map[string]string(nil),
				pgxmock.AnyArg(), pgxmock.AnyArg(),
			).
			WillReturnError(&pgconn.PgError{Code: pgUniqueViolation})

		err = repo.Create(context.Background(), &domain.Topic{
			ExternalID: &externalID,
			Name:       "Quantum Computing",
		})
		assert.True(t, errors.Is(err, domain.ErrAlreadyExists))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rejects nil topic and empty name", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgTopicRepository(mock)

		assert.True(t, errors.Is(repo.Create(context.Background(), nil), domain.ErrInvalidInput))
		assert.True(t, errors.Is(repo.Create(context.Background(), &domain.Topic{}), domain.ErrInvalidInput))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPgTopicRepository_UpdateMetadata(t *testing.T) {
	t.Run("updates metadata fields", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgTopicRepository(mock)

		topic := &domain.Topic{
			ID:          uuid.New(),
			Name:        "Quantum Computing",
			Description: "Updated description",
			ImageURL:    "https://img.example.com/qc.png",
		}

		mock.ExpectExec(`UPDATE topics SET`).
			WithArgs(
				"Updated description", "https://img.example.com/qc.png", "",
				[]string(nil), map[string]string(nil), pgxmock.AnyArg(), topic.ID,
			).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		err = repo.UpdateMetadata(context.Background(), topic)
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns not found for missing topic", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgTopicRepository(mock)

		topic := &domain.Topic{ID: uuid.New()}
		mock.ExpectExec(`UPDATE topics SET`).
			WithArgs("", "", "", []string(nil), map[string]string(nil), pgxmock.AnyArg(), topic.ID).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		err = repo.UpdateMetadata(context.Background(), topic)
		assert.True(t, errors.Is(err, domain.ErrNotFound))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPgTopicRepository_List(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPgTopicRepository(mock)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM topics`).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(2)))
	mock.ExpectQuery(`FROM topics ORDER BY name, id LIMIT \$1 OFFSET \$2`).
		WithArgs(10, 0).
		WillReturnRows(topicRow(uuid.New(), nil, "Astronomy"))

	topics, total, err := repo.List(context.Background(), 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, topics, 1)
	assert.Equal(t, "Astronomy", topics[0].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgTopicRepository_CountForContent(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPgTopicRepository(mock)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM content_item_topics WHERE content_id = \$1`).
		WithArgs(int64(42)).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(4))

	count, err := repo.CountForContent(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, 4, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}
