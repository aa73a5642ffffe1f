package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/contentive/topic-analysis-service/internal/domain"
)

// TopicRepository handles the deduplicated topic catalog.
//
// Reconciliation resolves a subject against the catalog in this order:
// external ID match, then name match (repairing the missing external ID),
// then creation. Create enforces external ID uniqueness at the database
// level so concurrent creators race safely; the loser reloads the winner's
// row via GetByExternalID.
type TopicRepository interface {
	// GetByID retrieves a topic by its internal UUID.
	// Returns domain.ErrNotFound if no matching topic exists.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Topic, error)

	// GetByExternalID retrieves a topic by its classifier-assigned external ID.
	// Returns domain.ErrNotFound if no matching topic exists.
	GetByExternalID(ctx context.Context, externalID string) (*domain.Topic, error)

	// GetByName retrieves a topic by exact display name, restricted to
	// topics with no external ID bound. When several id-less topics share
	// the name, the oldest is returned so repair is deterministic. A topic
	// that already carries an external ID is never a repair candidate and
	// is not returned. Returns domain.ErrNotFound if no matching topic
	// exists.
	GetByName(ctx context.Context, name string) (*domain.Topic, error)

	// AttachExternalID backfills the external ID on a topic that was matched
	// by name. Returns domain.ErrAlreadyExists when another topic already
	// carries the external ID.
	AttachExternalID(ctx context.Context, id uuid.UUID, externalID string) error

	// Create inserts a new topic. Returns domain.ErrAlreadyExists when a
	// topic with the same external ID already exists; callers then reload
	// via GetByExternalID.
	Create(ctx context.Context, topic *domain.Topic) error

	// UpdateMetadata persists merged metadata fields (description, images,
	// schema types, cross references) on an existing topic.
	UpdateMetadata(ctx context.Context, topic *domain.Topic) error

	// List retrieves a page of topics ordered by name, with the total count
	// for pagination.
	List(ctx context.Context, limit, offset int) ([]*domain.Topic, int64, error)

	// CountForContent returns how many topics are assigned to the item.
	CountForContent(ctx context.Context, contentID int64) (int, error)
}
