package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/contentive/topic-analysis-service/internal/domain"
)

// ContentRepository handles content item selection and topic assignment writes.
// Selections are always expressed as a domain.ContentFilter so that the count
// taken at initiation and the pages queried during submission see the same
// predicate.
type ContentRepository interface {
	// CountByFilter returns the number of content items matching the filter.
	CountByFilter(ctx context.Context, filter domain.ContentFilter) (int, error)

	// PageByFilter returns one page of matching content items, page being
	// 1-based and ordered by item ID so pagination is deterministic between
	// calls. Returns an empty slice past the last page.
	PageByFilter(ctx context.Context, filter domain.ContentFilter, page, pageSize int) ([]*domain.ContentItem, error)

	// GetByID retrieves a single content item.
	// Returns domain.ErrNotFound if no matching item exists.
	GetByID(ctx context.Context, id int64) (*domain.ContentItem, error)

	// GetTopicIDs returns the IDs of topics already assigned to the item.
	// Used to skip duplicate associations during result application.
	GetTopicIDs(ctx context.Context, contentID int64) ([]uuid.UUID, error)

	// AssignTopic links a content item to a topic, carrying the classifier's
	// salience and category when present. Existing links are left untouched;
	// the boolean reports whether a new link was written.
	AssignTopic(ctx context.Context, contentID int64, topicID uuid.UUID, assignment domain.TopicAssignment) (bool, error)

	// MarkAnalyzed stamps last_analyzed_at on the given items.
	MarkAnalyzed(ctx context.Context, contentIDs []int64, analyzedAt time.Time) error
}
