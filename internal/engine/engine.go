package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/jobproc/jobproc/internal/jobs"
)

// Storage is the store surface the engine needs for submissions,
// lookups and cancellation. *Store satisfies it.
type Storage interface {
	Insert(ctx context.Context, item *jobs.WorkItem) error
	Get(ctx context.Context, id string) (*jobs.WorkItem, error)
	Cancel(ctx context.Context, id string) (bool, error)
	MarkFailed(ctx context.Context, id, errMsg string) error
	UpsertRecurring(ctx context.Context, def *jobs.RecurringJob) error
}

// Broker delivers work item messages to workers. *rabbitmq.Client
// satisfies it.
type Broker interface {
	PublishWithRetry(ctx context.Context, queue string, body []byte) error
}

// Engine is the submission/query/cancel surface the orchestrator talks
// to. Work items are durable in Postgres; enqueued ids travel to workers
// over RabbitMQ.
type Engine struct {
	store  Storage
	broker Broker
	logger *slog.Logger
}

// New creates an Engine over the given store and broker.
func New(store Storage, broker Broker, logger *slog.Logger) *Engine {
	return &Engine{
		store:  store,
		broker: broker,
		logger: logger,
	}
}

// Enqueue persists a work item in the ENQUEUED state and publishes its
// id for immediate pickup. Returns the engine-assigned id.
func (e *Engine) Enqueue(ctx context.Context, queue string, kind jobs.Kind, payload string) (string, error) {
	now := time.Now()
	item := &jobs.WorkItem{
		ID:        uuid.New().String(),
		Queue:     queue,
		Kind:      kind,
		Payload:   payload,
		State:     jobs.StateEnqueued,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := e.store.Insert(ctx, item); err != nil {
		return "", err
	}

	if err := e.publish(ctx, item.ID, queue); err != nil {
		// The scheduler cannot recover an ENQUEUED item that never hit
		// the broker, so fail the row and surface the submission failure
		// to the caller.
		if markErr := e.store.MarkFailed(ctx, item.ID, err.Error()); markErr != nil {
			e.logger.Error("Failed to mark unpublished work item as failed",
				slog.String("work_item_id", item.ID),
				slog.Any("error", markErr),
			)
		}
		return "", err
	}

	e.logger.Info("Work item enqueued",
		slog.String("work_item_id", item.ID),
		slog.String("queue", queue),
		slog.String("kind", string(kind)),
	)

	return item.ID, nil
}

// Schedule persists a work item in the SCHEDULED state for execution at
// the given instant. A past instant is picked up on the scheduler's next
// pass; it is not an error.
func (e *Engine) Schedule(ctx context.Context, queue string, kind jobs.Kind, payload string, when time.Time) (string, error) {
	now := time.Now()
	item := &jobs.WorkItem{
		ID:          uuid.New().String(),
		Queue:       queue,
		Kind:        kind,
		Payload:     payload,
		State:       jobs.StateScheduled,
		ScheduledAt: &when,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := e.store.Insert(ctx, item); err != nil {
		return "", err
	}

	e.logger.Info("Work item scheduled",
		slog.String("work_item_id", item.ID),
		slog.String("queue", queue),
		slog.String("kind", string(kind)),
		slog.Time("scheduled_at", when),
	)

	return item.ID, nil
}

// State returns the current state of a work item, or jobs.ErrNotFound
// for an unknown id.
func (e *Engine) State(ctx context.Context, id string) (string, error) {
	item, err := e.store.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return item.State, nil
}

// Delete cancels a work item best-effort. False means the id was unknown
// or the item was already processing/terminal; after a true result no
// further retries or scheduling occur.
func (e *Engine) Delete(ctx context.Context, id string) (bool, error) {
	return e.store.Cancel(ctx, id)
}

// UpsertRecurring registers or replaces a recurring definition by name,
// validating the cron expression and computing its first run.
func (e *Engine) UpsertRecurring(ctx context.Context, name, schedule string, kind jobs.Kind, queue string) error {
	next, err := NextRun(schedule, time.Now())
	if err != nil {
		return fmt.Errorf("invalid schedule %q for recurring job %q: %w", schedule, name, err)
	}

	def := &jobs.RecurringJob{
		Name:      name,
		Schedule:  schedule,
		Kind:      kind,
		Queue:     queue,
		NextRunAt: next,
	}

	if err := e.store.UpsertRecurring(ctx, def); err != nil {
		return err
	}

	e.logger.Info("Recurring job registered",
		slog.String("name", name),
		slog.String("schedule", schedule),
		slog.Time("next_run_at", next),
	)

	return nil
}

func (e *Engine) publish(ctx context.Context, id, queue string) error {
	body, err := json.Marshal(jobs.Message{WorkItemID: id, Queue: queue})
	if err != nil {
		return fmt.Errorf("failed to marshal work item message: %w", err)
	}

	if err := e.broker.PublishWithRetry(ctx, queue, body); err != nil {
		return fmt.Errorf("failed to publish work item %s: %w", id, err)
	}

	return nil
}
