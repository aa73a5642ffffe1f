package temporal

import (
	"context"
	"fmt"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
)

// WorkerConfig contains configuration for the Temporal worker.
type WorkerConfig struct {
	// TaskQueue is the task queue to poll for tasks.
	TaskQueue string

	// MaxConcurrentActivities limits concurrent activity executions.
	MaxConcurrentActivities int

	// MaxConcurrentWorkflows limits concurrent workflow task executions.
	MaxConcurrentWorkflows int

	// MaxConcurrentActivityPollers is the number of activity task pollers.
	MaxConcurrentActivityPollers int

	// MaxConcurrentWorkflowPollers is the number of workflow task pollers.
	MaxConcurrentWorkflowPollers int
}

// DefaultWorkerConfig returns a WorkerConfig with sensible defaults.
func DefaultWorkerConfig(taskQueue string) WorkerConfig {
	return WorkerConfig{
		TaskQueue:                    taskQueue,
		MaxConcurrentActivities:      100,
		MaxConcurrentWorkflows:       50,
		MaxConcurrentActivityPollers: 4,
		MaxConcurrentWorkflowPollers: 2,
	}
}

// WorkerManager manages the lifecycle of a Temporal worker.
type WorkerManager struct {
	worker worker.Worker
	config WorkerConfig
}

// NewWorkerManager creates a new worker for the given task queue.
func NewWorkerManager(c client.Client, cfg WorkerConfig) *WorkerManager {
	if cfg.MaxConcurrentActivities <= 0 {
		cfg.MaxConcurrentActivities = 100
	}
	if cfg.MaxConcurrentWorkflows <= 0 {
		cfg.MaxConcurrentWorkflows = 50
	}
	if cfg.MaxConcurrentActivityPollers <= 0 {
		cfg.MaxConcurrentActivityPollers = 4
	}
	if cfg.MaxConcurrentWorkflowPollers <= 0 {
		cfg.MaxConcurrentWorkflowPollers = 2
	}

	w := worker.New(c, cfg.TaskQueue, worker.Options{
		MaxConcurrentActivityExecutionSize:     cfg.MaxConcurrentActivities,
		MaxConcurrentWorkflowTaskExecutionSize: cfg.MaxConcurrentWorkflows,
		MaxConcurrentActivityTaskPollers:       cfg.MaxConcurrentActivityPollers,
		MaxConcurrentWorkflowTaskPollers:       cfg.MaxConcurrentWorkflowPollers,
	})

	return &WorkerManager{
		worker: w,
		config: cfg,
	}
}

// RegisterWorkflow registers a workflow function with the worker.
func (m *WorkerManager) RegisterWorkflow(workflowFunc interface{}) {
	m.worker.RegisterWorkflow(workflowFunc)
}

// RegisterActivity registers an activity struct or function with the worker.
func (m *WorkerManager) RegisterActivity(activity interface{}) {
	m.worker.RegisterActivity(activity)
}

// Start runs the worker until the context is cancelled or the worker fails.
// It blocks; run it in a goroutine if the caller needs to continue.
func (m *WorkerManager) Start(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		errCh <- m.worker.Run(worker.InterruptCh())
	}()

	select {
	case <-ctx.Done():
		m.worker.Stop()
		return ctx.Err()
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("worker run: %w", err)
		}
		return nil
	}
}

// Stop stops the worker.
func (m *WorkerManager) Stop() {
	m.worker.Stop()
}

// TaskQueue returns the task queue this worker polls.
func (m *WorkerManager) TaskQueue() string {
	return m.config.TaskQueue
}
