// Package domain provides domain models and business logic for the Topic Analysis Service.
package domain

import (
	"math"
	"time"
)

// SubmissionPageSize is the number of content items sent to the classifier per page.
const SubmissionPageSize = 50

// ResultPageSize is the number of content items returned per optimized result page.
const ResultPageSize = 100

// ContentItem represents a unit of content eligible for analysis and topic assignment.
type ContentItem struct {
	ID int64 `json:"id"`

	// ContentType is the authoring type of the item (e.g. "article", "page").
	ContentType string `json:"content_type"`

	// Title is the display title of the item.
	Title string `json:"title"`

	// Body is the rendered text body submitted for analysis.
	Body string `json:"body"`

	// URL is the canonical public URL of the item.
	URL string `json:"url"`

	// Status is the publication status ("published" or "draft").
	Status string `json:"status"`

	// PublishedAt is when the item was published.
	PublishedAt *time.Time `json:"published_at,omitempty"`

	// LastAnalyzedAt is when the item last had analysis results applied.
	// Nil if the item has never been analyzed.
	LastAnalyzedAt *time.Time `json:"last_analyzed_at,omitempty"`

	// Extra holds configured additional text fields appended to the body
	// when the item is rendered for submission.
	Extra map[string]string `json:"extra,omitempty"`
}

// ContentStatus values for ContentItem.Status.
const (
	ContentStatusPublished = "published"
	ContentStatusDraft     = "draft"
)

// RenderedText returns the text submitted to the classifier: the body plus
// any configured extra fields, separated by blank lines.
func (c *ContentItem) RenderedText(extraFields []string) string {
	text := c.Body
	for _, field := range extraFields {
		if v, ok := c.Extra[field]; ok && v != "" {
			text += "\n\n" + v
		}
	}
	return text
}

// ContentFilter describes the selection of content items for one bulk analysis run.
// Stored as JSONB alongside the analysis request so submission pages can
// re-query the same selection.
type ContentFilter struct {
	// ContentTypes restricts the selection to the given authoring types.
	// Empty means all types.
	ContentTypes []string `json:"content_types,omitempty" validate:"max=32,dive,min=1"`

	// StartDate restricts the selection to items published at or after this time.
	StartDate *time.Time `json:"start_date,omitempty"`

	// EndDate restricts the selection to items published at or before this time.
	EndDate *time.Time `json:"end_date,omitempty"`

	// IncludeDrafts includes unpublished items in the selection.
	IncludeDrafts bool `json:"include_drafts"`

	// Reanalyze includes items that already have a last-analyzed timestamp.
	Reanalyze bool `json:"reanalyze"`

	// OnlyTopicless restricts the selection to items with no assigned topics.
	OnlyTopicless bool `json:"only_topicless"`
}

// PageCount returns the number of submission pages for the given item count.
func PageCount(total, pageSize int) int {
	if total <= 0 || pageSize <= 0 {
		return 0
	}
	return int(math.Ceil(float64(total) / float64(pageSize)))
}

// PageOffset returns the query offset for a 1-based page number.
func PageOffset(page, pageSize int) int {
	if page < 1 {
		return 0
	}
	return (page - 1) * pageSize
}

// TopicAssignment represents one content item / topic association as
// returned by the classifier.
type TopicAssignment struct {
	// ContentID is the content item the topic is assigned to.
	ContentID int64 `json:"content_id"`

	// Salience is the relevance score reported by the classifier, if any.
	Salience *float64 `json:"salience,omitempty"`

	// Category is the classifier's category label for the association, if any.
	Category string `json:"category,omitempty"`
}
