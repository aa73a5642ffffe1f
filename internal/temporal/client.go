package temporal

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"
)

// Query names for external interaction with analysis workflows. Defined here
// (not in the workflows package) so the server layer can reference them
// without creating a dependency from server -> workflows.
const (
	// QueryProgress retrieves the in-flight progress of an analysis workflow.
	QueryProgress = "progress"
)

// Default timeout constants for workflow execution and health checks.
const (
	// DefaultWorkflowExecutionTimeout bounds one bulk analysis run end to end,
	// including the analyzing wait on the remote service.
	DefaultWorkflowExecutionTimeout = 48 * time.Hour

	// DefaultApplyExecutionTimeout bounds the result application phase alone.
	DefaultApplyExecutionTimeout = 12 * time.Hour

	// DefaultHealthCheckTimeout is the timeout for Temporal server health checks.
	DefaultHealthCheckTimeout = 5 * time.Second
)

// AnalysisWorkflowID returns the deterministic workflow ID for the bulk
// analysis run of a request. One ID per request ID makes a duplicate start
// collide with the running execution instead of spawning a second run.
func AnalysisWorkflowID(requestID string) string {
	return "analysis-" + requestID
}

// ApplyWorkflowID returns the deterministic workflow ID for the result
// application phase of a request. Both the poller and the manual
// apply-results trigger start this ID; whoever is second gets
// ErrWorkflowAlreadyStarted and treats it as success.
func ApplyWorkflowID(requestID string) string {
	return "apply-" + requestID
}

var (
	// ErrWorkflowNotFound indicates the workflow execution was not found.
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrWorkflowAlreadyStarted indicates a workflow with the same ID is already running.
	ErrWorkflowAlreadyStarted = errors.New("workflow already started")

	// ErrQueryFailed indicates the workflow query failed.
	ErrQueryFailed = errors.New("query failed")

	// ErrClientClosed indicates the client has been closed.
	ErrClientClosed = errors.New("client closed")

	// ErrConnectionFailed indicates a connection failure to the Temporal server.
	ErrConnectionFailed = errors.New("connection failed")

	// ErrNamespaceNotFound indicates the namespace does not exist.
	ErrNamespaceNotFound = errors.New("namespace not found")

	// ErrInvalidArgument indicates an invalid argument was provided.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrResourceExhausted indicates resource limits have been reached.
	ErrResourceExhausted = errors.New("resource exhausted")

	// ErrDeadlineExceeded indicates the operation deadline was exceeded.
	ErrDeadlineExceeded = errors.New("deadline exceeded")
)

// TemporalError wraps a Temporal error with additional context.
type TemporalError struct {
	Op         string // Operation that failed
	Kind       error  // Category of error (sentinel)
	WorkflowID string // Workflow ID (if applicable)
	RunID      string // Run ID (if applicable)
	Err        error  // Underlying error
}

// Error returns the error message.
func (e *TemporalError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Op, e.Kind)
	if e.WorkflowID != "" {
		msg += fmt.Sprintf(" [workflowID=%s", e.WorkflowID)
		if e.RunID != "" {
			msg += fmt.Sprintf(", runID=%s", e.RunID)
		}
		msg += "]"
	}
	if e.Err != nil {
		msg += fmt.Sprintf(": %v", e.Err)
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *TemporalError) Unwrap() error {
	return e.Err
}

// Is reports whether target matches this error's Kind.
func (e *TemporalError) Is(target error) bool {
	return errors.Is(e.Kind, target)
}

// wrapTemporalError converts a Temporal SDK error to a TemporalError.
func wrapTemporalError(op string, err error, workflowID, runID string) error {
	if err == nil {
		return nil
	}

	te := &TemporalError{
		Op:         op,
		WorkflowID: workflowID,
		RunID:      runID,
		Err:        err,
	}

	var notFoundErr *serviceerror.NotFound
	var alreadyStartedErr *serviceerror.WorkflowExecutionAlreadyStarted
	var namespaceNotFoundErr *serviceerror.NamespaceNotFound
	var invalidArgumentErr *serviceerror.InvalidArgument
	var resourceExhaustedErr *serviceerror.ResourceExhausted
	var deadlineExceededErr *serviceerror.DeadlineExceeded
	var queryFailedErr *serviceerror.QueryFailed
	var unavailableErr *serviceerror.Unavailable

	switch {
	case errors.As(err, &notFoundErr):
		te.Kind = ErrWorkflowNotFound
	case errors.As(err, &alreadyStartedErr):
		te.Kind = ErrWorkflowAlreadyStarted
	case errors.As(err, &namespaceNotFoundErr):
		te.Kind = ErrNamespaceNotFound
	case errors.As(err, &invalidArgumentErr):
		te.Kind = ErrInvalidArgument
	case errors.As(err, &resourceExhaustedErr):
		te.Kind = ErrResourceExhausted
	case errors.As(err, &deadlineExceededErr):
		te.Kind = ErrDeadlineExceeded
	case errors.As(err, &queryFailedErr):
		te.Kind = ErrQueryFailed
	case errors.As(err, &unavailableErr):
		te.Kind = ErrConnectionFailed
	default:
		if errors.Is(err, context.DeadlineExceeded) {
			te.Kind = ErrDeadlineExceeded
		} else if errors.Is(err, context.Canceled) {
			te.Kind = ErrClientClosed
		} else {
			te.Kind = ErrConnectionFailed
		}
	}

	return te
}

// IsWorkflowNotFound checks if the error indicates a workflow was not found.
func IsWorkflowNotFound(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound)
}

// IsWorkflowAlreadyStarted checks if the error indicates a workflow already started.
func IsWorkflowAlreadyStarted(err error) bool {
	return errors.Is(err, ErrWorkflowAlreadyStarted)
}

// ClientConfig contains configuration for the Temporal client.
type ClientConfig struct {
	// HostPort is the Temporal server address (e.g., "localhost:7233").
	HostPort string

	// Namespace is the Temporal namespace to use.
	Namespace string

	// TaskQueue is the default task queue for starting workflows.
	TaskQueue string

	// HealthCheckTimeout is the timeout for health check operations.
	// Defaults to 5 seconds if not set.
	HealthCheckTimeout time.Duration
}

// NewClient creates a new Temporal client with the given configuration.
func NewClient(cfg ClientConfig) (client.Client, error) {
	c, err := client.Dial(client.Options{
		HostPort:  cfg.HostPort,
		Namespace: cfg.Namespace,
	})
	if err != nil {
		return nil, fmt.Errorf("create Temporal client: %w", err)
	}
	return c, nil
}

// AnalysisWorkflowClient starts and manages bulk analysis workflows.
type AnalysisWorkflowClient struct {
	mu                 sync.RWMutex
	client             client.Client
	taskQueue          string
	healthCheckTimeout time.Duration
	closed             bool
}

// NewAnalysisWorkflowClient creates a new AnalysisWorkflowClient.
func NewAnalysisWorkflowClient(c client.Client, taskQueue string) *AnalysisWorkflowClient {
	return &AnalysisWorkflowClient{
		client:             c,
		taskQueue:          taskQueue,
		healthCheckTimeout: DefaultHealthCheckTimeout,
	}
}

// Close closes the underlying Temporal client connection.
func (c *AnalysisWorkflowClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client != nil && !c.closed {
		c.client.Close()
		c.closed = true
	}
}

func (c *AnalysisWorkflowClient) isClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

// Health checks the connection health to the Temporal server.
func (c *AnalysisWorkflowClient) Health(ctx context.Context) error {
	if c.isClosed() {
		return &TemporalError{Op: "Health", Kind: ErrClientClosed}
	}

	checkCtx, cancel := context.WithTimeout(ctx, c.healthCheckTimeout)
	defer cancel()

	if _, err := c.client.CheckHealth(checkCtx, &client.CheckHealthRequest{}); err != nil {
		return wrapTemporalError("Health", err, "", "")
	}
	return nil
}

// StartAnalysisWorkflow starts the bulk analysis workflow for a request.
// The workflow function must be registered with the worker separately.
func (c *AnalysisWorkflowClient) StartAnalysisWorkflow(ctx context.Context, requestID string, workflowFunc interface{}, input interface{}) (workflowID, runID string, err error) {
	if c.isClosed() {
		return "", "", &TemporalError{Op: "StartAnalysisWorkflow", Kind: ErrClientClosed}
	}

	workflowID = AnalysisWorkflowID(requestID)
	options := client.StartWorkflowOptions{
		ID:                       workflowID,
		TaskQueue:                c.taskQueue,
		WorkflowExecutionTimeout: DefaultWorkflowExecutionTimeout,
	}

	run, err := c.client.ExecuteWorkflow(ctx, options, workflowFunc, input)
	if err != nil {
		return "", "", wrapTemporalError("StartAnalysisWorkflow", err, workflowID, "")
	}
	return workflowID, run.GetRunID(), nil
}

// StartApplyWorkflow starts the result application workflow for a request.
// A second start of the same request ID fails with ErrWorkflowAlreadyStarted,
// which callers treat as a successful idempotent trigger.
func (c *AnalysisWorkflowClient) StartApplyWorkflow(ctx context.Context, requestID string, workflowFunc interface{}, input interface{}) (workflowID, runID string, err error) {
	if c.isClosed() {
		return "", "", &TemporalError{Op: "StartApplyWorkflow", Kind: ErrClientClosed}
	}

	workflowID = ApplyWorkflowID(requestID)
	options := client.StartWorkflowOptions{
		ID:                       workflowID,
		TaskQueue:                c.taskQueue,
		WorkflowExecutionTimeout: DefaultApplyExecutionTimeout,
		WorkflowExecutionErrorWhenAlreadyStarted: true,
	}

	run, err := c.client.ExecuteWorkflow(ctx, options, workflowFunc, input)
	if err != nil {
		return "", "", wrapTemporalError("StartApplyWorkflow", err, workflowID, "")
	}
	return workflowID, run.GetRunID(), nil
}

// CancelWorkflow requests cancellation of a running workflow. A missing
// execution is reported as ErrWorkflowNotFound.
func (c *AnalysisWorkflowClient) CancelWorkflow(ctx context.Context, workflowID string) error {
	if c.isClosed() {
		return &TemporalError{Op: "CancelWorkflow", Kind: ErrClientClosed, WorkflowID: workflowID}
	}

	if err := c.client.CancelWorkflow(ctx, workflowID, ""); err != nil {
		return wrapTemporalError("CancelWorkflow", err, workflowID, "")
	}
	return nil
}

// TerminateWorkflow forcibly stops a running workflow. Used by reset, where
// the operator explicitly abandons the run and cooperative cancellation is
// not worth waiting for.
func (c *AnalysisWorkflowClient) TerminateWorkflow(ctx context.Context, workflowID, reason string) error {
	if c.isClosed() {
		return &TemporalError{Op: "TerminateWorkflow", Kind: ErrClientClosed, WorkflowID: workflowID}
	}

	if err := c.client.TerminateWorkflow(ctx, workflowID, "", reason); err != nil {
		return wrapTemporalError("TerminateWorkflow", err, workflowID, "")
	}
	return nil
}

// QueryWorkflow queries a running workflow's state.
func (c *AnalysisWorkflowClient) QueryWorkflow(ctx context.Context, workflowID, queryType string, result interface{}) error {
	if c.isClosed() {
		return &TemporalError{Op: "QueryWorkflow", Kind: ErrClientClosed, WorkflowID: workflowID}
	}

	resp, err := c.client.QueryWorkflow(ctx, workflowID, "", queryType)
	if err != nil {
		return wrapTemporalError("QueryWorkflow", err, workflowID, "")
	}

	if result != nil {
		if err := resp.Get(result); err != nil {
			return &TemporalError{
				Op:         "QueryWorkflow",
				Kind:       ErrQueryFailed,
				WorkflowID: workflowID,
				Err:        fmt.Errorf("decode query result: %w", err),
			}
		}
	}
	return nil
}

// Client returns the underlying Temporal client for advanced operations.
func (c *AnalysisWorkflowClient) Client() client.Client {
	return c.client
}

// TaskQueue returns the configured task queue name.
func (c *AnalysisWorkflowClient) TaskQueue() string {
	return c.taskQueue
}
