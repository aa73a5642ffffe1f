package domain

import "time"

// Stage represents the lifecycle states of a bulk analysis run.
// These values must match the database enum analysis_stage.
type Stage string

const (
	StageSending   Stage = "sending"
	StageAnalyzing Stage = "analyzing"
	StageApplying  Stage = "applying"
	StageComplete  Stage = "complete"
)

// IsTerminal returns true if the stage represents a final state.
func (s Stage) IsTerminal() bool {
	return s == StageComplete
}

// IsValidStageTransition reports whether moving from one stage to another
// is allowed. Stages only advance; a transition to the same stage is valid
// so that duplicate triggers remain idempotent.
func IsValidStageTransition(from, to Stage) bool {
	order := map[Stage]int{
		StageSending:   0,
		StageAnalyzing: 1,
		StageApplying:  2,
		StageComplete:  3,
	}
	fromIdx, okFrom := order[from]
	toIdx, okTo := order[to]
	if !okFrom || !okTo {
		return false
	}
	return toIdx >= fromIdx
}

// StageProgress holds the per-stage counters exposed to the polling client.
// Counters are display-only progress indicators: concurrent page completions
// may race on the write, and completion is driven by the classifier's
// has-more-pages signal, never by counter arithmetic.
type StageProgress struct {
	// Completed is the number of items (or pages, for the analyzing stage)
	// processed so far.
	Completed int `json:"completed"`

	// Total is the number of items the stage will process.
	Total int `json:"total"`

	// CurrentPage is the last page the stage finished, 1-based. Zero before
	// the first page completes. Resuming after a crash starts at
	// CurrentPage+1.
	CurrentPage int `json:"current_page"`
}

// AnalysisRequest identifies one bulk analysis run. Exactly one may be
// active system-wide at a time.
type AnalysisRequest struct {
	// RequestID is the opaque identifier issued by the classifier.
	RequestID string `json:"request_id"`

	// Filter is the content selection this run analyzes.
	Filter ContentFilter `json:"filter"`

	// ContentCount is the number of content items matched by the filter at
	// initiation time.
	ContentCount int `json:"content_count"`

	CreatedAt time.Time `json:"created_at"`
}

// ProgressRecord is the persisted state describing the current stage and
// per-stage counters for the active analysis request. It is the single
// source of truth the operator client polls.
type ProgressRecord struct {
	Request AnalysisRequest `json:"request"`

	Stage Stage `json:"stage"`

	Sending   StageProgress `json:"sending"`
	Analyzing StageProgress `json:"analyzing"`
	Applying  StageProgress `json:"applying"`

	// CompletedAt is set when the applying stage finishes. It drives the
	// post-completion grace windows on initiate and poll.
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// CustomerIDPageCount and EntityPageCount cache the classifier's page
	// counts for the legacy two-phase result retrieval path.
	CustomerIDPageCount *int `json:"customer_id_page_count,omitempty"`
	EntityPageCount     *int `json:"entity_page_count,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}

// Grace windows guarding state transitions around completion.
const (
	// InitiateGraceWindow is how long after completion a new initiate is
	// still rejected, so an in-flight client can finish reading the
	// completed state.
	InitiateGraceWindow = 60 * time.Second

	// CleanupGraceWindow is how long poll keeps returning the completed
	// record before the request state is deleted and poll turns idle.
	CleanupGraceWindow = 30 * time.Second
)

// BlocksInitiate reports whether this record must reject a new initiate
// at the given instant: any non-complete stage blocks, and a complete
// stage blocks until the initiate grace window has passed.
func (p *ProgressRecord) BlocksInitiate(now time.Time) bool {
	if p.Stage != StageComplete {
		return true
	}
	if p.CompletedAt == nil {
		return true
	}
	return now.Sub(*p.CompletedAt) < InitiateGraceWindow
}

// ReadyForCleanup reports whether the completed record has outlived the
// cleanup grace window and may be deleted by poll.
func (p *ProgressRecord) ReadyForCleanup(now time.Time) bool {
	if p.Stage != StageComplete || p.CompletedAt == nil {
		return false
	}
	return now.Sub(*p.CompletedAt) >= CleanupGraceWindow
}
