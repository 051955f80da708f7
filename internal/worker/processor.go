package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jobproc/jobproc/internal/engine"
	"github.com/jobproc/jobproc/internal/jobs"
)

// processWorkItem claims a work item, executes its kind handler, and
// drives the state transition: SUCCEEDED on success, SCHEDULED for a
// retry while the policy allows, FAILED once the budget is exhausted.
// A nil return means the delivery can be acked; retries never travel
// through transport redelivery.
func (w *Worker) processWorkItem(ctx context.Context, msg *jobMessage) error {
	item, err := w.storage.Claim(ctx, msg.WorkItemID, w.workerID)
	if err != nil {
		if errors.Is(err, engine.ErrAlreadyClaimed) {
			// Cancelled, terminal, or won by another worker: the message
			// is stale, drop it.
			w.logger.Warn("Work item not claimable, skipping",
				slog.String("work_item_id", msg.WorkItemID),
			)
			return nil
		}
		return &transientError{Err: fmt.Errorf("failed to claim work item: %w", err)}
	}

	handler, ok := w.handlers[item.Kind]
	if !ok {
		w.logger.Error("No handler registered for job kind",
			slog.String("work_item_id", item.ID),
			slog.String("kind", string(item.Kind)),
		)
		return w.fail(ctx, item, fmt.Errorf("no handler for kind %q", item.Kind))
	}

	jobCtx, cancel := context.WithTimeout(ctx, w.jobTimeout)
	defer cancel()

	execErr := handler(jobCtx, item)
	if execErr != nil {
		w.logger.Error("Work item execution failed",
			slog.String("work_item_id", item.ID),
			slog.String("kind", string(item.Kind)),
			slog.Int("retry_count", item.RetryCount),
			slog.String("error", execErr.Error()),
		)
		return w.retryOrFail(ctx, item, execErr)
	}

	if err := w.storage.MarkSucceeded(ctx, item.ID); err != nil {
		// The work is done; a failed bookkeeping write must not rerun it.
		w.logger.Error("Failed to mark work item succeeded",
			slog.String("work_item_id", item.ID),
			slog.String("error", err.Error()),
		)
		return nil
	}

	w.logger.Info("Work item completed",
		slog.String("work_item_id", item.ID),
		slog.String("kind", string(item.Kind)),
	)

	return nil
}

// retryOrFail applies the kind's retry policy to a failed execution.
func (w *Worker) retryOrFail(ctx context.Context, item *jobs.WorkItem, execErr error) error {
	policy := jobs.PolicyFor(item.Kind)

	delay, ok := policy.NextDelay(item.RetryCount)
	if !ok {
		w.logger.Warn("Work item exceeded retry budget",
			slog.String("work_item_id", item.ID),
			slog.Int("retry_count", item.RetryCount),
			slog.Int("max_attempts", policy.MaxAttempts),
		)
		return w.fail(ctx, item, execErr)
	}

	nextAttemptAt := time.Now().Add(delay)
	if err := w.storage.Reschedule(ctx, item.ID, nextAttemptAt, execErr.Error()); err != nil {
		return &transientError{Err: fmt.Errorf("failed to reschedule work item: %w", err)}
	}

	w.logger.Info("Work item will be retried",
		slog.String("work_item_id", item.ID),
		slog.Int("retry_count", item.RetryCount),
		slog.Duration("delay", delay),
		slog.Time("next_attempt_at", nextAttemptAt),
	)

	return nil
}

func (w *Worker) fail(ctx context.Context, item *jobs.WorkItem, execErr error) error {
	if err := w.storage.MarkFailed(ctx, item.ID, execErr.Error()); err != nil {
		return &transientError{Err: fmt.Errorf("failed to mark work item failed: %w", err)}
	}
	return nil
}
