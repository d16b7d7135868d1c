package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/atlasfit/automation/pkg/eventbus"
	"github.com/atlasfit/automation/pkg/events"
	"github.com/atlasfit/automation/pkg/models"
	"github.com/atlasfit/automation/pkg/persistence"
	"github.com/atlasfit/automation/pkg/registry"
	"github.com/atlasfit/automation/pkg/stats"
	"github.com/atlasfit/automation/pkg/workflow"
)

// Worker consumes workflow.triggered events, runs the graph and applies the
// single terminal execution update. Duplicate deliveries are absorbed by the
// running-status guard in CompleteExecution.
type Worker struct {
	id         string
	store      persistence.Persistence
	eventBus   eventbus.EventBus
	executor   *workflow.Executor
	bookkeeper *stats.Bookkeeper
	logger     *slog.Logger
}

func NewWorker(
	id string,
	store persistence.Persistence,
	eventBus eventbus.EventBus,
	reg *registry.Registry,
	logger *slog.Logger,
) *Worker {
	return &Worker{
		id:         id,
		store:      store,
		eventBus:   eventBus,
		executor:   workflow.NewExecutor(reg, logger),
		bookkeeper: stats.NewBookkeeper(store, store, logger),
		logger:     logger.With("module", "atlas-worker", "worker_id", id),
	}
}

func (w *Worker) Start(ctx context.Context) error {
	w.logger.InfoContext(ctx, "Starting worker")

	err := w.eventBus.Handle(events.WorkflowTriggeredEvent, w.handleWorkflowTriggered)
	if err != nil {
		return err
	}

	err = w.eventBus.Subscribe(ctx)
	if err != nil {
		w.logger.ErrorContext(ctx, "Failed to subscribe to event bus", "error", err)

		return err
	}

	w.logger.InfoContext(ctx, "Worker started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigChan:
		w.logger.InfoContext(ctx, "Shutting down worker...")
	case <-ctx.Done():
	}

	return nil
}

func (w *Worker) handleWorkflowTriggered(ctx context.Context, event any) error {
	triggeredEvent, ok := event.(*events.WorkflowTriggered)
	if !ok {
		w.logger.ErrorContext(ctx, "Invalid event type for WorkflowTriggered")

		return nil
	}

	logger := w.logger.With(
		"organization_id", triggeredEvent.OrganizationID,
		"workflow_id", triggeredEvent.WorkflowID,
		"execution_id", triggeredEvent.ExecutionID,
		"event_id", triggeredEvent.ID,
	)
	logger.InfoContext(ctx, "Processing workflow triggered event")

	execution, err := w.store.ExecutionByID(ctx, triggeredEvent.OrganizationID, triggeredEvent.ExecutionID)
	if err != nil {
		if persistence.IsExecutionNotFound(err) {
			logger.ErrorContext(ctx, "Execution record not found, dropping event")

			return nil
		}

		return err
	}

	if execution.Terminal() {
		logger.InfoContext(ctx, "Execution already terminal, skipping duplicate delivery")

		return nil
	}

	flow, err := w.store.WorkflowByID(ctx, execution.OrganizationID, execution.WorkflowID)
	if err != nil {
		if persistence.IsWorkflowNotFound(err) {
			return w.finish(ctx, logger, execution, &workflow.Result{
				Success: false,
				Error:   "workflow not found",
			})
		}

		return err
	}

	result, err := w.executor.Execute(ctx, flow, execution)
	if err != nil {
		result = &workflow.Result{Success: false, Error: err.Error()}
	}

	return w.finish(ctx, logger, execution, result)
}

// finish applies the terminal update, folds the outcome into the aggregate
// counters and publishes the outcome event. A lost race on the terminal
// update means another worker finished first; the event is dropped without
// double counting.
func (w *Worker) finish(ctx context.Context, logger *slog.Logger, execution *models.Execution, result *workflow.Result) error {
	terminal := *execution
	terminal.Output = result.Output
	terminal.Error = result.Error
	terminal.Steps = result.Steps
	terminal.ProcessingMs = result.ProcessingMs

	if result.Success {
		terminal.Status = models.ExecutionStatusCompleted
	} else {
		terminal.Status = models.ExecutionStatusFailed
	}

	if err := w.store.CompleteExecution(ctx, &terminal); err != nil {
		if persistence.IsExecutionAlreadyTerminal(err) {
			logger.InfoContext(ctx, "Execution completed by another worker, skipping")

			return nil
		}

		return err
	}

	w.bookkeeper.RecordExecution(ctx, &terminal)

	base := events.BaseEvent{
		ID:             w.eventBus.GenerateID(),
		Timestamp:      time.Now().UTC(),
		OrganizationID: terminal.OrganizationID,
		WorkflowID:     terminal.WorkflowID,
	}

	var outcome eventbus.Event

	if result.Success {
		base.Type = events.ExecutionCompletedEvent
		outcome = events.ExecutionCompleted{
			BaseEvent:   base,
			ExecutionID: terminal.ID,
			Output:      terminal.Output,
			DurationMs:  terminal.ProcessingMs,
		}
	} else {
		base.Type = events.ExecutionFailedEvent
		outcome = events.ExecutionFailed{
			BaseEvent:   base,
			ExecutionID: terminal.ID,
			Error:       terminal.Error,
			DurationMs:  terminal.ProcessingMs,
		}
	}

	if err := w.eventBus.Publish(ctx, terminal.WorkflowID, outcome); err != nil {
		logger.ErrorContext(ctx, "Failed to publish execution outcome event", "error", err)
	}

	logger.InfoContext(ctx, "Execution finished",
		"status", terminal.Status,
		"steps", len(terminal.Steps),
		"duration_ms", terminal.ProcessingMs,
	)

	return nil
}
