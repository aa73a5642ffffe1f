package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/contentive/topic-analysis-service/internal/domain"
)

// Compile-time interface verification.
var _ StateRepository = (*PgStateRepository)(nil)

// PgStateRepository is a PostgreSQL implementation of StateRepository.
type PgStateRepository struct {
	db DBTX
}

// NewPgStateRepository creates a new PostgreSQL state repository.
func NewPgStateRepository(db DBTX) *PgStateRepository {
	return &PgStateRepository{db: db}
}

// Get retrieves the current progress record.
func (r *PgStateRepository) Get(ctx context.Context) (*domain.ProgressRecord, error) {
	query := `
		SELECT request_id, filter, content_count, stage, sending, analyzing, applying,
		       completed_at, customer_id_page_count, entity_page_count, created_at, updated_at
		FROM analysis_state
		WHERE singleton`

	var (
		record        domain.ProgressRecord
		filterJSON    []byte
		sendingJSON   []byte
		analyzingJSON []byte
		applyingJSON  []byte
	)
	err := r.db.QueryRow(ctx, query).Scan(
		&record.Request.RequestID,
		&filterJSON,
		&record.Request.ContentCount,
		&record.Stage,
		&sendingJSON,
		&analyzingJSON,
		&applyingJSON,
		&record.CompletedAt,
		&record.CustomerIDPageCount,
		&record.EntityPageCount,
		&record.Request.CreatedAt,
		&record.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("analysis state", "singleton")
		}
		return nil, fmt.Errorf("failed to get analysis state: %w", err)
	}

	if err := json.Unmarshal(filterJSON, &record.Request.Filter); err != nil {
		return nil, fmt.Errorf("failed to decode analysis filter: %w", err)
	}
	if err := json.Unmarshal(sendingJSON, &record.Sending); err != nil {
		return nil, fmt.Errorf("failed to decode sending progress: %w", err)
	}
	if err := json.Unmarshal(analyzingJSON, &record.Analyzing); err != nil {
		return nil, fmt.Errorf("failed to decode analyzing progress: %w", err)
	}
	if err := json.Unmarshal(applyingJSON, &record.Applying); err != nil {
		return nil, fmt.Errorf("failed to decode applying progress: %w", err)
	}

	return &record, nil
}

// CurrentRequestID returns the tracked request ID without decoding the full record.
func (r *PgStateRepository) CurrentRequestID(ctx context.Context) (string, error) {
	var requestID string
	err := r.db.QueryRow(ctx, "SELECT request_id FROM analysis_state WHERE singleton").Scan(&requestID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", domain.NewNotFoundError("analysis state", "singleton")
		}
		return "", fmt.Errorf("failed to get current request ID: %w", err)
	}
	return requestID, nil
}

// Create persists a fresh record for a newly initiated request.
func (r *PgStateRepository) Create(ctx context.Context, record *domain.ProgressRecord) error {
	if record == nil {
		return domain.NewValidationError("record", "record cannot be nil")
	}
	if record.Request.RequestID == "" {
		return domain.NewValidationError("request_id", "request ID is required")
	}
	if record.Stage == "" {
		record.Stage = domain.StageSending
	}
	now := time.Now().UTC()
	if record.Request.CreatedAt.IsZero() {
		record.Request.CreatedAt = now
	}
	record.UpdatedAt = now

	filterJSON, err := json.Marshal(record.Request.Filter)
	if err != nil {
		return fmt.Errorf("failed to encode analysis filter: %w", err)
	}
	sendingJSON, err := json.Marshal(record.Sending)
	if err != nil {
		return fmt.Errorf("failed to encode sending progress: %w", err)
	}
	analyzingJSON, err := json.Marshal(record.Analyzing)
	if err != nil {
		return fmt.Errorf("failed to encode analyzing progress: %w", err)
	}
	applyingJSON, err := json.Marshal(record.Applying)
	if err != nil {
		return fmt.Errorf("failed to encode applying progress: %w", err)
	}

	query := `
		INSERT INTO analysis_state (
			singleton, request_id, filter, content_count, stage,
			sending, analyzing, applying, created_at, updated_at
		) VALUES (TRUE, $1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err = r.db.Exec(ctx, query,
		record.Request.RequestID,
		filterJSON,
		record.Request.ContentCount,
		record.Stage,
		sendingJSON,
		analyzingJSON,
		applyingJSON,
		record.Request.CreatedAt,
		record.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return domain.NewStateConflictError("initiate", "an analysis request is already tracked")
		}
		return fmt.Errorf("failed to create analysis state: %w", err)
	}

	return nil
}

// TransitionStage advances the stage with a compare-and-set on request ID and
// current stage.
func (r *PgStateRepository) TransitionStage(ctx context.Context, requestID string, from, to domain.Stage) error {
	if !domain.IsValidStageTransition(from, to) {
		return domain.NewValidationError("stage", fmt.Sprintf("invalid transition %s -> %s", from, to))
	}

	query := `
		UPDATE analysis_state
		SET stage = $1, updated_at = $2
		WHERE singleton AND request_id = $3 AND stage = $4`

	tag, err := r.db.Exec(ctx, query, to, time.Now().UTC(), requestID, from)
	if err != nil {
		return fmt.Errorf("failed to transition stage: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return r.classifyMismatch(ctx, requestID, fmt.Sprintf("stage is not %s", from))
	}
	return nil
}

// SetStageProgress overwrites the counters of one stage.
func (r *PgStateRepository) SetStageProgress(ctx context.Context, requestID string, stage domain.Stage, progress domain.StageProgress) error {
	var column string
	switch stage {
	case domain.StageSending:
		column = "sending"
	case domain.StageAnalyzing:
		column = "analyzing"
	case domain.StageApplying:
		column = "applying"
	default:
		return domain.NewValidationError("stage", fmt.Sprintf("stage %s has no progress counters", stage))
	}

	progressJSON, err := json.Marshal(progress)
	if err != nil {
		return fmt.Errorf("failed to encode stage progress: %w", err)
	}

	// column comes from the switch above, never from input
	query := fmt.Sprintf(`
		UPDATE analysis_state
		SET %s = $1, updated_at = $2
		WHERE singleton AND request_id = $3`, column)

	tag, err := r.db.Exec(ctx, query, progressJSON, time.Now().UTC(), requestID)
	if err != nil {
		return fmt.Errorf("failed to set stage progress: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrStaleRequest
	}
	return nil
}

// SetPageCounts caches the classifier's page counts for the legacy result path.
func (r *PgStateRepository) SetPageCounts(ctx context.Context, requestID string, customerIDPages, entityPages *int) error {
	query := `
		UPDATE analysis_state
		SET customer_id_page_count = COALESCE($1, customer_id_page_count),
		    entity_page_count = COALESCE($2, entity_page_count),
		    updated_at = $3
		WHERE singleton AND request_id = $4`

	tag, err := r.db.Exec(ctx, query, customerIDPages, entityPages, time.Now().UTC(), requestID)
	if err != nil {
		return fmt.Errorf("failed to set page counts: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrStaleRequest
	}
	return nil
}

// MarkComplete moves the record to the complete stage and stamps completion.
func (r *PgStateRepository) MarkComplete(ctx context.Context, requestID string, completedAt time.Time) error {
	query := `
		UPDATE analysis_state
		SET stage = $1, completed_at = $2, updated_at = $3
		WHERE singleton AND request_id = $4 AND stage != $1`

	tag, err := r.db.Exec(ctx, query, domain.StageComplete, completedAt.UTC(), time.Now().UTC(), requestID)
	if err != nil {
		return fmt.Errorf("failed to mark analysis complete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Either a different request is tracked or completion already
		// happened; the latter is idempotent success.
		current, err := r.CurrentRequestID(ctx)
		if err != nil {
			return domain.ErrStaleRequest
		}
		if current != requestID {
			return domain.ErrStaleRequest
		}
		return nil
	}
	return nil
}

// Delete removes the record. Deleting a missing record is a no-op.
func (r *PgStateRepository) Delete(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, "DELETE FROM analysis_state WHERE singleton"); err != nil {
		return fmt.Errorf("failed to delete analysis state: %w", err)
	}
	return nil
}

// classifyMismatch distinguishes a stale request from a stage conflict after
// a zero-row compare-and-set.
func (r *PgStateRepository) classifyMismatch(ctx context.Context, requestID, conflictMsg string) error {
	current, err := r.CurrentRequestID(ctx)
	if err != nil {
		return domain.ErrStaleRequest
	}
	if current != requestID {
		return domain.ErrStaleRequest
	}
	return domain.NewStateConflictError("transition", conflictMsg)
}
