// Package main provides the entry point for the topic analysis Temporal worker.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.temporal.io/sdk/client"

	"github.com/contentive/topic-analysis-service/internal/classifier"
	"github.com/contentive/topic-analysis-service/internal/config"
	"github.com/contentive/topic-analysis-service/internal/database"
	"github.com/contentive/topic-analysis-service/internal/events"
	"github.com/contentive/topic-analysis-service/internal/observability"
	"github.com/contentive/topic-analysis-service/internal/repository"
	"github.com/contentive/topic-analysis-service/internal/temporal"
	"github.com/contentive/topic-analysis-service/internal/temporal/activities"
	"github.com/contentive/topic-analysis-service/internal/temporal/workflows"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Set up structured logging.
	logger := observability.NewLogger(observability.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		AddSource:  cfg.Logging.AddSource,
		TimeFormat: cfg.Logging.TimeFormat,
	})
	logger = logger.With().Str("component", "worker").Logger()
	logger.Info().Msg("topic-analysis-service worker starting")

	// Set up context with graceful shutdown via OS signals.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect to PostgreSQL.
	db, err := database.New(ctx, &cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()
	logger.Info().Msg("database connection established")

	// Create repositories.
	contentRepo := repository.NewPgContentRepository(db)
	stateRepo := repository.NewPgStateRepository(db)
	topicRepo := repository.NewPgTopicRepository(db)

	// Create metrics.
	metrics := observability.NewMetrics("topic_analysis")

	// Create the classification service client.
	classifierClient := classifier.NewClient(cfg.Classifier, logger, metrics)
	logger.Info().Str("base_url", cfg.Classifier.BaseURL).Msg("classifier client created")

	// Create the lifecycle event publisher.
	publisher := events.NewPublisher(cfg.Kafka, logger, metrics)
	defer func() {
		if err := publisher.Close(); err != nil {
			logger.Error().Err(err).Msg("failed to close event publisher")
		}
	}()

	// Create Temporal client.
	temporalClient, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
		Logger:    observability.NewTemporalLogger(logger),
	})
	if err != nil {
		return fmt.Errorf("connect to temporal: %w", err)
	}
	defer temporalClient.Close()
	logger.Info().
		Str("host_port", cfg.Temporal.HostPort).
		Str("namespace", cfg.Temporal.Namespace).
		Msg("temporal client connected")

	// Create WorkerManager.
	workerConfig := temporal.DefaultWorkerConfig(cfg.Temporal.TaskQueue)
	manager := temporal.NewWorkerManager(temporalClient, workerConfig)

	// Register workflows.
	manager.RegisterWorkflow(workflows.BulkAnalysisWorkflow)
	manager.RegisterWorkflow(workflows.ApplyResultsWorkflow)

	// Create and register all activity structs.
	submissionActivities := activities.NewSubmissionActivities(contentRepo, stateRepo, classifierClient, metrics)
	pollActivities := activities.NewPollActivities(stateRepo, classifierClient, metrics)
	stateActivities := activities.NewStateActivities(stateRepo, metrics)
	applyActivities := activities.NewApplyActivities(contentRepo, topicRepo, stateRepo, classifierClient, metrics)
	eventActivities := activities.NewEventActivities(publisher)

	manager.RegisterActivity(submissionActivities)
	manager.RegisterActivity(pollActivities)
	manager.RegisterActivity(stateActivities)
	manager.RegisterActivity(applyActivities)
	manager.RegisterActivity(eventActivities)

	logger.Info().
		Str("task_queue", cfg.Temporal.TaskQueue).
		Msg("starting temporal worker")

	// Start the worker and block until context is cancelled.
	if err := manager.Start(ctx); err != nil {
		if ctx.Err() != nil {
			logger.Info().Msg("worker stopped via signal")
			return nil
		}
		return fmt.Errorf("worker error: %w", err)
	}

	return nil
}
