// Package engine implements the durable execution engine behind the job
// orchestrator: a Postgres-backed work item store, a RabbitMQ transport,
// and a scheduler loop for deferred and recurring work.
package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jobproc/jobproc/internal/jobs"
	"github.com/jobproc/jobproc/shared/postgresql"
)

// ErrAlreadyClaimed is returned when claiming a work item that is not in
// the ENQUEUED state (claimed by another worker, cancelled, or terminal).
var ErrAlreadyClaimed = errors.New("work item already claimed or not enqueued")

// Store handles all database operations for work items and recurring
// job definitions.
type Store struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStore creates a new Store instance
func NewStore(pg *postgresql.Client, logger *slog.Logger) *Store {
	return &Store{
		db:     pg.GetDB(),
		logger: logger,
	}
}

// Insert persists a new work item in its initial state.
func (s *Store) Insert(ctx context.Context, item *jobs.WorkItem) error {
	query := `
		INSERT INTO work_items (
			id, queue, kind, payload, state,
			retry_count, scheduled_at, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9
		)
	`

	_, err := s.db.ExecContext(
		ctx,
		query,
		item.ID,
		item.Queue,
		item.Kind,
		item.Payload,
		item.State,
		item.RetryCount,
		item.ScheduledAt,
		item.CreatedAt,
		item.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to insert work item: %w", err)
	}

	return nil
}

// Get retrieves a work item by id. Unknown ids yield jobs.ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (*jobs.WorkItem, error) {
	// The id column is a uuid; a malformed id can never match a row, and
	// passing it through would make Postgres raise a cast error instead.
	if _, err := uuid.Parse(id); err != nil {
		return nil, jobs.ErrNotFound
	}

	var item jobs.WorkItem
	var lastError, workerID sql.NullString

	query := `
		SELECT id, queue, kind, payload, state, retry_count,
		       last_error, worker_id, scheduled_at, created_at, updated_at
		FROM work_items
		WHERE id = $1
	`

	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&item.ID,
		&item.Queue,
		&item.Kind,
		&item.Payload,
		&item.State,
		&item.RetryCount,
		&lastError,
		&workerID,
		&item.ScheduledAt,
		&item.CreatedAt,
		&item.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, jobs.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get work item: %w", err)
	}

	item.LastError = lastError.String
	item.WorkerID = workerID.String

	return &item, nil
}

// Claim attempts to claim an enqueued work item for a worker using an
// optimistic state transition (ENQUEUED -> PROCESSING). At most one
// worker can win the claim.
func (s *Store) Claim(ctx context.Context, id, workerID string) (*jobs.WorkItem, error) {
	query := `
		UPDATE work_items
		SET state = $1,
		    worker_id = $2,
		    updated_at = NOW()
		WHERE id = $3
		  AND state = $4
		RETURNING id, queue, kind, payload, retry_count
	`

	var item jobs.WorkItem
	err := s.db.QueryRowContext(ctx, query, jobs.StateProcessing, workerID, id, jobs.StateEnqueued).Scan(
		&item.ID,
		&item.Queue,
		&item.Kind,
		&item.Payload,
		&item.RetryCount,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.logger.Warn("Failed to claim work item - already claimed or not enqueued",
				slog.String("work_item_id", id),
				slog.String("worker_id", workerID),
			)
			return nil, ErrAlreadyClaimed
		}
		return nil, fmt.Errorf("failed to claim work item: %w", err)
	}

	item.State = jobs.StateProcessing
	item.WorkerID = workerID

	s.logger.Info("Work item claimed",
		slog.String("work_item_id", id),
		slog.String("worker_id", workerID),
		slog.String("kind", string(item.Kind)),
	)

	return &item, nil
}

// MarkSucceeded moves a work item to its terminal SUCCEEDED state.
func (s *Store) MarkSucceeded(ctx context.Context, id string) error {
	return s.setTerminal(ctx, id, jobs.StateSucceeded, "")
}

// MarkFailed moves a work item to its terminal FAILED state after the
// retry budget is exhausted.
func (s *Store) MarkFailed(ctx context.Context, id, errMsg string) error {
	return s.setTerminal(ctx, id, jobs.StateFailed, errMsg)
}

func (s *Store) setTerminal(ctx context.Context, id, state, errMsg string) error {
	query := `
		UPDATE work_items
		SET state = $1,
		    last_error = NULLIF($2, ''),
		    updated_at = NOW()
		WHERE id = $3
	`

	_, err := s.db.ExecContext(ctx, query, state, errMsg, id)
	if err != nil {
		return fmt.Errorf("failed to update work item state: %w", err)
	}

	s.logger.Info("Work item state updated",
		slog.String("work_item_id", id),
		slog.String("state", state),
	)

	return nil
}

// Reschedule moves a failed work item back to SCHEDULED for a retry at
// the given instant, bumping its retry count.
func (s *Store) Reschedule(ctx context.Context, id string, at time.Time, errMsg string) error {
	query := `
		UPDATE work_items
		SET state = $1,
		    retry_count = retry_count + 1,
		    scheduled_at = $2,
		    last_error = NULLIF($3, ''),
		    worker_id = NULL,
		    updated_at = NOW()
		WHERE id = $4
	`

	_, err := s.db.ExecContext(ctx, query, jobs.StateScheduled, at, errMsg, id)
	if err != nil {
		return fmt.Errorf("failed to reschedule work item: %w", err)
	}

	s.logger.Info("Work item rescheduled for retry",
		slog.String("work_item_id", id),
		slog.Time("next_attempt_at", at),
	)

	return nil
}

// PromoteDue flips due SCHEDULED items to ENQUEUED and returns them so
// the caller can publish transport messages. SKIP LOCKED keeps
// concurrent scheduler passes from promoting the same rows twice.
func (s *Store) PromoteDue(ctx context.Context, now time.Time, limit int) ([]jobs.WorkItem, error) {
	query := `
		UPDATE work_items
		SET state = $1,
		    updated_at = NOW()
		WHERE id IN (
			SELECT id FROM work_items
			WHERE state = $2 AND scheduled_at <= $3
			ORDER BY scheduled_at
			LIMIT $4
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, queue
	`

	rows, err := s.db.QueryContext(ctx, query, jobs.StateEnqueued, jobs.StateScheduled, now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to promote scheduled work items: %w", err)
	}
	defer rows.Close()

	var items []jobs.WorkItem
	for rows.Next() {
		var item jobs.WorkItem
		if err := rows.Scan(&item.ID, &item.Queue); err != nil {
			return nil, fmt.Errorf("failed to scan promoted work item: %w", err)
		}
		items = append(items, item)
	}

	return items, rows.Err()
}

// Cancel flips an item to DELETED if it is still cancellable. Returns
// false when the id is unknown or the item is processing/terminal; the
// two cases are deliberately not distinguished.
func (s *Store) Cancel(ctx context.Context, id string) (bool, error) {
	if _, err := uuid.Parse(id); err != nil {
		return false, nil
	}

	query := `
		UPDATE work_items
		SET state = $1,
		    updated_at = NOW()
		WHERE id = $2
		  AND state IN ($3, $4)
	`

	result, err := s.db.ExecContext(ctx, query, jobs.StateDeleted, id, jobs.StateEnqueued, jobs.StateScheduled)
	if err != nil {
		return false, fmt.Errorf("failed to cancel work item: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return affected > 0, nil
}

// UpsertRecurring registers or replaces a recurring job definition by
// name. Names are the identity; re-registering replaces the schedule.
func (s *Store) UpsertRecurring(ctx context.Context, def *jobs.RecurringJob) error {
	query := `
		INSERT INTO recurring_jobs (name, schedule, kind, queue, next_run_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		ON CONFLICT (name) DO UPDATE
		SET schedule = EXCLUDED.schedule,
		    kind = EXCLUDED.kind,
		    queue = EXCLUDED.queue,
		    next_run_at = EXCLUDED.next_run_at,
		    updated_at = NOW()
	`

	_, err := s.db.ExecContext(ctx, query, def.Name, def.Schedule, def.Kind, def.Queue, def.NextRunAt)
	if err != nil {
		return fmt.Errorf("failed to upsert recurring job %q: %w", def.Name, err)
	}

	return nil
}

// DueRecurring returns recurring definitions whose next run is due.
func (s *Store) DueRecurring(ctx context.Context, now time.Time) ([]jobs.RecurringJob, error) {
	query := `
		SELECT name, schedule, kind, queue, next_run_at, created_at, updated_at
		FROM recurring_jobs
		WHERE next_run_at <= $1
	`

	var defs []jobs.RecurringJob
	if err := s.db.SelectContext(ctx, &defs, query, now); err != nil {
		return nil, fmt.Errorf("failed to list due recurring jobs: %w", err)
	}

	return defs, nil
}

// AdvanceRecurring moves a recurring definition's next run forward.
// Guarded on the previous instant so two scheduler passes cannot fire
// the same occurrence twice.
func (s *Store) AdvanceRecurring(ctx context.Context, name string, from, next time.Time) (bool, error) {
	query := `
		UPDATE recurring_jobs
		SET next_run_at = $1,
		    updated_at = NOW()
		WHERE name = $2 AND next_run_at = $3
	`

	result, err := s.db.ExecContext(ctx, query, next, name, from)
	if err != nil {
		return false, fmt.Errorf("failed to advance recurring job %q: %w", name, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return affected > 0, nil
}

// ListRecurring returns all recurring definitions ordered by name.
func (s *Store) ListRecurring(ctx context.Context) ([]jobs.RecurringJob, error) {
	query := `
		SELECT name, schedule, kind, queue, next_run_at, created_at, updated_at
		FROM recurring_jobs
		ORDER BY name
	`

	var defs []jobs.RecurringJob
	if err := s.db.SelectContext(ctx, &defs, query); err != nil {
		return nil, fmt.Errorf("failed to list recurring jobs: %w", err)
	}

	return defs, nil
}

// CountByState returns the number of work items per state.
func (s *Store) CountByState(ctx context.Context) (map[string]int, error) {
	query := `SELECT state, COUNT(*) AS count FROM work_items GROUP BY state`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to count work items: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var state string
		var count int
		if err := rows.Scan(&state, &count); err != nil {
			return nil, fmt.Errorf("failed to scan state count: %w", err)
		}
		counts[state] = count
	}

	return counts, rows.Err()
}

// ListRecent returns the most recently updated work items, optionally
// filtered by state.
func (s *Store) ListRecent(ctx context.Context, state string, limit int) ([]jobs.WorkItem, error) {
	query := `
		SELECT id, queue, kind, payload, state, retry_count,
		       COALESCE(last_error, '') AS last_error,
		       COALESCE(worker_id, '') AS worker_id,
		       scheduled_at, created_at, updated_at
		FROM work_items
	`
	args := []interface{}{}

	if state != "" {
		query += ` WHERE state = $1 ORDER BY updated_at DESC LIMIT $2`
		args = append(args, state, limit)
	} else {
		query += ` ORDER BY updated_at DESC LIMIT $1`
		args = append(args, limit)
	}

	var items []jobs.WorkItem
	if err := s.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list work items: %w", err)
	}

	return items, nil
}
