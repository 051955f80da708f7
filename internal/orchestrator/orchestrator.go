// Package orchestrator translates job intents into durable work items
// against the execution engine and exposes query/cancel/recurring
// administration over them.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jobproc/jobproc/internal/jobs"
)

// Engine is the contract the orchestrator requires from the execution
// engine: durable submission, deferred scheduling, state queries,
// best-effort deletion, and recurring definition upserts.
type Engine interface {
	Enqueue(ctx context.Context, queue string, kind jobs.Kind, payload string) (string, error)
	Schedule(ctx context.Context, queue string, kind jobs.Kind, payload string, when time.Time) (string, error)
	State(ctx context.Context, id string) (string, error)
	Delete(ctx context.Context, id string) (bool, error)
	UpsertRecurring(ctx context.Context, name, schedule string, kind jobs.Kind, queue string) error
}

// The fixed recurring maintenance set. Registered by name with upsert
// semantics on every process start.
var recurringDefinitions = []struct {
	Name     string
	Schedule string
	Kind     jobs.Kind
}{
	{Name: "cleanup-logs", Schedule: "0 2 * * *", Kind: jobs.KindCleanupLogs},
	{Name: "health-check", Schedule: "* * * * *", Kind: jobs.KindHealthCheck},
}

// Orchestrator routes job intents through the kind dispatch table to
// the engine. Stateless; safe for concurrent use.
type Orchestrator struct {
	engine Engine
	logger *slog.Logger
}

// New creates an Orchestrator over the given engine.
func New(engine Engine, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		engine: engine,
		logger: logger,
	}
}

// SubmitNow enqueues a job for immediate execution on the queue bound
// to its kind. Returns the engine-assigned work item id.
func (o *Orchestrator) SubmitNow(ctx context.Context, kind jobs.Kind, payload any) (string, error) {
	def, body, err := o.prepare(kind, payload)
	if err != nil {
		return "", err
	}

	id, err := o.engine.Enqueue(ctx, def.Queue, kind, body)
	if err != nil {
		return "", fmt.Errorf("failed to enqueue %s job: %w", kind, err)
	}

	o.logger.Info("Job enqueued",
		slog.String("work_item_id", id),
		slog.String("kind", string(kind)),
		slog.String("queue", def.Queue),
	)

	return id, nil
}

// SubmitAt schedules a job for execution at the given instant. A past
// instant runs on the scheduler's next pass; it is not an error.
func (o *Orchestrator) SubmitAt(ctx context.Context, kind jobs.Kind, payload any, when time.Time) (string, error) {
	def, body, err := o.prepare(kind, payload)
	if err != nil {
		return "", err
	}

	id, err := o.engine.Schedule(ctx, def.Queue, kind, body, when)
	if err != nil {
		return "", fmt.Errorf("failed to schedule %s job: %w", kind, err)
	}

	o.logger.Info("Job scheduled",
		slog.String("work_item_id", id),
		slog.String("kind", string(kind)),
		slog.String("queue", def.Queue),
		slog.Time("scheduled_at", when),
	)

	return id, nil
}

// Status returns the engine's view of a work item's state. An unknown
// id yields jobs.ErrNotFound, a defined outcome rather than a fault.
func (o *Orchestrator) Status(ctx context.Context, id string) (string, error) {
	return o.engine.State(ctx, id)
}

// Cancel attempts best-effort deletion of a work item. False covers
// both an unknown id and an item already in a non-cancellable state;
// the error return is reserved for engine faults.
func (o *Orchestrator) Cancel(ctx context.Context, id string) (bool, error) {
	cancelled, err := o.engine.Delete(ctx, id)
	if err != nil {
		return false, fmt.Errorf("failed to cancel work item %s: %w", id, err)
	}

	if cancelled {
		o.logger.Info("Work item cancelled",
			slog.String("work_item_id", id),
		)
	} else {
		o.logger.Warn("Work item cancellation refused",
			slog.String("work_item_id", id),
		)
	}

	return cancelled, nil
}

// RegisterRecurring upserts the fixed recurring maintenance set by
// name. Idempotent; safe to call on every process start.
func (o *Orchestrator) RegisterRecurring(ctx context.Context) error {
	for _, def := range recurringDefinitions {
		kindDef, err := jobs.Lookup(def.Kind)
		if err != nil {
			return err
		}
		if err := o.engine.UpsertRecurring(ctx, def.Name, def.Schedule, def.Kind, kindDef.Queue); err != nil {
			return fmt.Errorf("failed to register recurring job %q: %w", def.Name, err)
		}
	}

	o.logger.Info("Recurring jobs registered",
		slog.Int("count", len(recurringDefinitions)),
	)

	return nil
}

func (o *Orchestrator) prepare(kind jobs.Kind, payload any) (jobs.Definition, string, error) {
	def, err := jobs.Lookup(kind)
	if err != nil {
		return jobs.Definition{}, "", err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return jobs.Definition{}, "", fmt.Errorf("failed to marshal %s payload: %w", kind, err)
	}

	return def, string(body), nil
}
