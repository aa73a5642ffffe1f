package observability

import (
	"context"
)

// Context keys for observability data.
type contextKey string

const (
	requestIDKey  contextKey = "request_id"
	stageKey      contextKey = "stage"
	workflowIDKey contextKey = "workflow_id"
	runIDKey      contextKey = "workflow_run_id"
)

// WithRequestID adds an analysis request ID to the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext retrieves the analysis request ID from context.
// Returns empty string if not present.
func RequestIDFromContext(ctx context.Context) string {
	if v := ctx.Value(requestIDKey); v != nil {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

// WithStage adds the pipeline stage to the context.
func WithStage(ctx context.Context, stage string) context.Context {
	return context.WithValue(ctx, stageKey, stage)
}

// StageFromContext retrieves the pipeline stage from context.
// Returns empty string if not present.
func StageFromContext(ctx context.Context) string {
	if v := ctx.Value(stageKey); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// WithWorkflow adds workflow ID and run ID to the context.
func WithWorkflow(ctx context.Context, workflowID, runID string) context.Context {
	ctx = context.WithValue(ctx, workflowIDKey, workflowID)
	ctx = context.WithValue(ctx, runIDKey, runID)
	return ctx
}

// WorkflowFromContext retrieves workflow ID and run ID from context.
// Returns empty strings if not present.
func WorkflowFromContext(ctx context.Context) (workflowID, runID string) {
	if v := ctx.Value(workflowIDKey); v != nil {
		if id, ok := v.(string); ok {
			workflowID = id
		}
	}
	if v := ctx.Value(runIDKey); v != nil {
		if id, ok := v.(string); ok {
			runID = id
		}
	}
	return workflowID, runID
}

// AnalysisContext contains all the context data for an analysis run.
type AnalysisContext struct {
	RequestID  string
	Stage      string
	WorkflowID string
	RunID      string
}

// WithAnalysisContextFull adds all analysis context to the context.
func WithAnalysisContextFull(ctx context.Context, ac AnalysisContext) context.Context {
	if ac.RequestID != "" {
		ctx = WithRequestID(ctx, ac.RequestID)
	}
	if ac.Stage != "" {
		ctx = WithStage(ctx, ac.Stage)
	}
	if ac.WorkflowID != "" || ac.RunID != "" {
		ctx = WithWorkflow(ctx, ac.WorkflowID, ac.RunID)
	}
	return ctx
}

// AnalysisContextFromContext extracts all analysis context from the context.
func AnalysisContextFromContext(ctx context.Context) AnalysisContext {
	workflowID, runID := WorkflowFromContext(ctx)

	return AnalysisContext{
		RequestID:  RequestIDFromContext(ctx),
		Stage:      StageFromContext(ctx),
		WorkflowID: workflowID,
		RunID:      runID,
	}
}
