package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/contentive/topic-analysis-service/internal/domain"
)

// Compile-time interface verification.
var _ TopicRepository = (*PgTopicRepository)(nil)

// PgTopicRepository is a PostgreSQL implementation of TopicRepository.
type PgTopicRepository struct {
	db DBTX
}

// NewPgTopicRepository creates a new PostgreSQL topic repository.
func NewPgTopicRepository(db DBTX) *PgTopicRepository {
	return &PgTopicRepository{db: db}
}

const topicColumns = `id, external_id, name, description, image_url, thumbnail_url, schema_types, cross_refs, first_seen_at, updated_at`

// GetByID retrieves a topic by its internal UUID.
func (r *PgTopicRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Topic, error) {
	query := fmt.Sprintf("SELECT %s FROM topics WHERE id = $1", topicColumns)

	topic, err := scanTopic(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("topic", id.String())
		}
		return nil, fmt.Errorf("failed to get topic by ID: %w", err)
	}
	return topic, nil
}

// GetByExternalID retrieves a topic by its classifier-assigned external ID.
func (r *PgTopicRepository) GetByExternalID(ctx context.Context, externalID string) (*domain.Topic, error) {
	if externalID == "" {
		return nil, domain.NewValidationError("external_id", "external ID is required")
	}

	query := fmt.Sprintf("SELECT %s FROM topics WHERE external_id = $1", topicColumns)

	topic, err := scanTopic(r.db.QueryRow(ctx, query, externalID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("topic", externalID)
		}
		return nil, fmt.Errorf("failed to get topic by external ID: %w", err)
	}
	return topic, nil
}

// GetByName retrieves the oldest topic with the exact display name that has
// no external ID bound yet. Topics already carrying an external ID are never
// returned: a name collision with a different ID is a distinct entity, not a
// repair candidate.
func (r *PgTopicRepository) GetByName(ctx context.Context, name string) (*domain.Topic, error) {
	if name == "" {
		return nil, domain.NewValidationError("name", "name is required")
	}

	query := fmt.Sprintf("SELECT %s FROM topics WHERE name = $1 AND external_id IS NULL ORDER BY first_seen_at LIMIT 1", topicColumns)

	topic, err := scanTopic(r.db.QueryRow(ctx, query, name))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("topic", name)
		}
		return nil, fmt.Errorf("failed to get topic by name: %w", err)
	}
	return topic, nil
}

// AttachExternalID backfills the external ID on a name-matched topic.
func (r *PgTopicRepository) AttachExternalID(ctx context.Context, id uuid.UUID, externalID string) error {
	if externalID == "" {
		return domain.NewValidationError("external_id", "external ID is required")
	}

	query := `UPDATE topics SET external_id = $1, updated_at = $2 WHERE id = $3`

	tag, err := r.db.Exec(ctx, query, externalID, time.Now().UTC(), id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return domain.NewAlreadyExistsError("topic", externalID)
		}
		return fmt.Errorf("failed to attach external ID: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NewNotFoundError("topic", id.String())
	}
	return nil
}

// Create inserts a new topic. The partial unique index on external_id makes
// concurrent creation of the same subject safe: the losing writer gets
// domain.ErrAlreadyExists and reloads the winner's row.
func (r *PgTopicRepository) Create(ctx context.Context, topic *domain.Topic) error {
	if topic == nil {
		return domain.NewValidationError("topic", "topic cannot be nil")
	}
	if topic.Name == "" {
		return domain.NewValidationError("name", "topic name is required")
	}
	if topic.ID == uuid.Nil {
		topic.ID = uuid.New()
	}
	now := time.Now().UTC()
	if topic.FirstSeenAt.IsZero() {
		topic.FirstSeenAt = now
	}
	if topic.UpdatedAt.IsZero() {
		topic.UpdatedAt = now
	}

	query := `
		INSERT INTO topics (id, external_id, name, description, image_url, thumbnail_url, schema_types, cross_refs, first_seen_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := r.db.Exec(ctx, query,
		topic.ID,
		topic.ExternalID,
		topic.Name,
		topic.Description,
		topic.ImageURL,
		topic.ThumbnailURL,
		topic.SchemaTypes,
		topic.CrossRefs,
		topic.FirstSeenAt,
		topic.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			externalID := ""
			if topic.ExternalID != nil {
				externalID = *topic.ExternalID
			}
			return domain.NewAlreadyExistsError("topic", externalID)
		}
		return fmt.Errorf("failed to create topic: %w", err)
	}

	return nil
}

// UpdateMetadata persists merged metadata fields on an existing topic.
func (r *PgTopicRepository) UpdateMetadata(ctx context.Context, topic *domain.Topic) error {
	if topic == nil {
		return domain.NewValidationError("topic", "topic cannot be nil")
	}

	query := `
		UPDATE topics SET
			description = $1,
			image_url = $2,
			thumbnail_url = $3,
			schema_types = $4,
			cross_refs = $5,
			updated_at = $6
		WHERE id = $7`

	tag, err := r.db.Exec(ctx, query,
		topic.Description,
		topic.ImageURL,
		topic.ThumbnailURL,
		topic.SchemaTypes,
		topic.CrossRefs,
		time.Now().UTC(),
		topic.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update topic metadata: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NewNotFoundError("topic", topic.ID.String())
	}
	return nil
}

// List retrieves a page of topics ordered by name.
func (r *PgTopicRepository) List(ctx context.Context, limit, offset int) ([]*domain.Topic, int64, error) {
	if limit <= 0 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	var total int64
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM topics").Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count topics: %w", err)
	}

	query := fmt.Sprintf("SELECT %s FROM topics ORDER BY name, id LIMIT $1 OFFSET $2", topicColumns)
	rows, err := r.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list topics: %w", err)
	}
	defer rows.Close()

	topics := make([]*domain.Topic, 0, limit)
	for rows.Next() {
		topic, err := scanTopic(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan topic: %w", err)
		}
		topics = append(topics, topic)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating topics: %w", err)
	}

	return topics, total, nil
}

// CountForContent returns how many topics are assigned to the item.
func (r *PgTopicRepository) CountForContent(ctx context.Context, contentID int64) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		"SELECT COUNT(*) FROM content_item_topics WHERE content_id = $1", contentID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count topics for content: %w", err)
	}
	return count, nil
}

func scanTopic(row rowScanner) (*domain.Topic, error) {
	var topic domain.Topic
	if err := row.Scan(
		&topic.ID,
		&topic.ExternalID,
		&topic.Name,
		&topic.Description,
		&topic.ImageURL,
		&topic.ThumbnailURL,
		&topic.SchemaTypes,
		&topic.CrossRefs,
		&topic.FirstSeenAt,
		&topic.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &topic, nil
}
