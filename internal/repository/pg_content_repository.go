package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/contentive/topic-analysis-service/internal/domain"
)

// Compile-time interface verification.
var _ ContentRepository = (*PgContentRepository)(nil)

// PgContentRepository is a PostgreSQL implementation of ContentRepository.
type PgContentRepository struct {
	db DBTX
}

// NewPgContentRepository creates a new PostgreSQL content repository.
func NewPgContentRepository(db DBTX) *PgContentRepository {
	return &PgContentRepository{db: db}
}

const contentColumns = `id, content_type, title, body, url, status, published_at, last_analyzed_at, extra`

// buildFilterClause translates a domain.ContentFilter into a WHERE clause.
// The same clause backs both CountByFilter and PageByFilter so the count
// taken at initiation matches the rows the submission pages see.
func buildFilterClause(filter domain.ContentFilter) (string, []interface{}) {
	var conditions []string
	var args []interface{}
	argPos := 1

	if len(filter.ContentTypes) > 0 {
		conditions = append(conditions, fmt.Sprintf("content_type = ANY($%d)", argPos))
		args = append(args, filter.ContentTypes)
		argPos++
	}
	if filter.StartDate != nil {
		conditions = append(conditions, fmt.Sprintf("published_at >= $%d", argPos))
		args = append(args, *filter.StartDate)
		argPos++
	}
	if filter.EndDate != nil {
		conditions = append(conditions, fmt.Sprintf("published_at <= $%d", argPos))
		args = append(args, *filter.EndDate)
		argPos++
	}
	if !filter.IncludeDrafts {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argPos))
		args = append(args, domain.ContentStatusPublished)
		argPos++
	}
	if !filter.Reanalyze {
		conditions = append(conditions, "last_analyzed_at IS NULL")
	}
	if filter.OnlyTopicless {
		conditions = append(conditions,
			"NOT EXISTS (SELECT 1 FROM content_item_topics cit WHERE cit.content_id = content_items.id)")
	}

	if len(conditions) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

// CountByFilter returns the number of content items matching the filter.
func (r *PgContentRepository) CountByFilter(ctx context.Context, filter domain.ContentFilter) (int, error) {
	where, args := buildFilterClause(filter)
	query := "SELECT COUNT(*) FROM content_items" + where

	var count int
	if err := r.db.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count content items: %w", err)
	}
	return count, nil
}

// PageByFilter returns one 1-based page of matching content items ordered by ID.
func (r *PgContentRepository) PageByFilter(ctx context.Context, filter domain.ContentFilter, page, pageSize int) ([]*domain.ContentItem, error) {
	if page < 1 {
		return nil, domain.NewValidationError("page", "page must be >= 1")
	}
	if pageSize < 1 {
		return nil, domain.NewValidationError("page_size", "page size must be >= 1")
	}

	where, args := buildFilterClause(filter)
	query := fmt.Sprintf(
		"SELECT %s FROM content_items%s ORDER BY id LIMIT $%d OFFSET $%d",
		contentColumns, where, len(args)+1, len(args)+2,
	)
	args = append(args, pageSize, domain.PageOffset(page, pageSize))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query content page: %w", err)
	}
	defer rows.Close()

	items := make([]*domain.ContentItem, 0, pageSize)
	for rows.Next() {
		item, err := scanContentItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan content item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating content items: %w", err)
	}

	return items, nil
}

// GetByID retrieves a single content item.
func (r *PgContentRepository) GetByID(ctx context.Context, id int64) (*domain.ContentItem, error) {
	query := fmt.Sprintf("SELECT %s FROM content_items WHERE id = $1", contentColumns)

	item, err := scanContentItem(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("content item", fmt.Sprintf("%d", id))
		}
		return nil, fmt.Errorf("failed to get content item: %w", err)
	}
	return item, nil
}

// GetTopicIDs returns the IDs of topics already assigned to the item.
func (r *PgContentRepository) GetTopicIDs(ctx context.Context, contentID int64) ([]uuid.UUID, error) {
	query := `SELECT topic_id FROM content_item_topics WHERE content_id = $1`

	rows, err := r.db.Query(ctx, query, contentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query assigned topics: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan topic id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating topic ids: %w", err)
	}

	return ids, nil
}

// AssignTopic links a content item to a topic. The association primary key
// absorbs duplicate writes; ON CONFLICT DO NOTHING keeps the first link's
// salience and category.
func (r *PgContentRepository) AssignTopic(ctx context.Context, contentID int64, topicID uuid.UUID, assignment domain.TopicAssignment) (bool, error) {
	query := `
		INSERT INTO content_item_topics (content_id, topic_id, salience, category, assigned_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (content_id, topic_id) DO NOTHING`

	var category *string
	if assignment.Category != "" {
		category = &assignment.Category
	}

	tag, err := r.db.Exec(ctx, query, contentID, topicID, assignment.Salience, category, time.Now().UTC())
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
			return false, domain.NewNotFoundError("content item", fmt.Sprintf("%d", contentID))
		}
		return false, fmt.Errorf("failed to assign topic: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

// MarkAnalyzed stamps last_analyzed_at on the given items.
func (r *PgContentRepository) MarkAnalyzed(ctx context.Context, contentIDs []int64, analyzedAt time.Time) error {
	if len(contentIDs) == 0 {
		return nil
	}

	query := `UPDATE content_items SET last_analyzed_at = $1, updated_at = $1 WHERE id = ANY($2)`
	if _, err := r.db.Exec(ctx, query, analyzedAt.UTC(), contentIDs); err != nil {
		return fmt.Errorf("failed to mark content analyzed: %w", err)
	}
	return nil
}

// rowScanner abstracts pgx.Row and pgx.Rows for shared scan helpers.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanContentItem(row rowScanner) (*domain.ContentItem, error) {
	var item domain.ContentItem
	if err := row.Scan(
		&item.ID,
		&item.ContentType,
		&item.Title,
		&item.Body,
		&item.URL,
		&item.Status,
		&item.PublishedAt,
		&item.LastAnalyzedAt,
		&item.Extra,
	); err != nil {
		return nil, err
	}
	return &item, nil
}
