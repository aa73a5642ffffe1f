package repository

import (
	"context"
	"time"

	"github.com/contentive/topic-analysis-service/internal/domain"
)

// StateRepository manages the singleton analysis request state row.
//
// At most one analysis request exists system-wide; the table's boolean
// primary key enforces that. All mutating methods take the request ID the
// caller believes is current and fail with domain.ErrStaleRequest when the
// stored row tracks a different request, so pollers and workers that outlive
// a reset never touch the successor's state.
type StateRepository interface {
	// Get retrieves the current progress record.
	// Returns domain.ErrNotFound when no request is tracked.
	Get(ctx context.Context) (*domain.ProgressRecord, error)

	// CurrentRequestID returns the tracked request ID without decoding the
	// full record. Returns domain.ErrNotFound when no request is tracked.
	CurrentRequestID(ctx context.Context) (string, error)

	// Create persists a fresh record for a newly initiated request.
	// Returns domain.ErrRequestActive when a record already exists.
	Create(ctx context.Context, record *domain.ProgressRecord) error

	// TransitionStage advances the stage with a compare-and-set on both the
	// request ID and the expected current stage. Returns
	// domain.ErrStaleRequest on request mismatch and a state conflict error
	// when the stored stage is not the expected one.
	TransitionStage(ctx context.Context, requestID string, from, to domain.Stage) error

	// SetStageProgress overwrites the counters of one stage.
	// Counters are display-only; last writer wins.
	SetStageProgress(ctx context.Context, requestID string, stage domain.Stage, progress domain.StageProgress) error

	// SetPageCounts caches the classifier's page counts for the legacy
	// two-phase result retrieval path.
	SetPageCounts(ctx context.Context, requestID string, customerIDPages, entityPages *int) error

	// MarkComplete moves the record to the complete stage and stamps the
	// completion time that drives the grace windows.
	MarkComplete(ctx context.Context, requestID string, completedAt time.Time) error

	// Delete removes the record. Used by reset and by the post-completion
	// cleanup; deleting a missing record is a no-op.
	Delete(ctx context.Context) error
}
