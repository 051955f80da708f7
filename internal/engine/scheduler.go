package engine

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	cronlib "github.com/robfig/cron/v3"

	"github.com/jobproc/jobproc/internal/jobs"
	"github.com/jobproc/jobproc/shared/rabbitmq"
)

// cronParser accepts standard 5-field cron expressions.
var cronParser = cronlib.NewParser(
	cronlib.Minute | cronlib.Hour | cronlib.Dom | cronlib.Month | cronlib.Dow,
)

// NextRun parses a cron expression and returns the first activation
// after the given instant.
func NextRun(schedule string, after time.Time) (time.Time, error) {
	sched, err := cronParser.Parse(schedule)
	if err != nil {
		return time.Time{}, err
	}
	return sched.Next(after), nil
}

// Scheduler drives deferred and recurring execution on a tick loop:
// due SCHEDULED work items are promoted and published, and due recurring
// definitions produce fresh work items.
type Scheduler struct {
	store        *Store
	broker       *rabbitmq.Client
	logger       *slog.Logger
	pollInterval time.Duration
	batchSize    int
}

// NewScheduler creates a Scheduler.
func NewScheduler(store *Store, broker *rabbitmq.Client, pollInterval time.Duration, batchSize int, logger *slog.Logger) *Scheduler {
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Scheduler{
		store:        store,
		broker:       broker,
		logger:       logger,
		pollInterval: pollInterval,
		batchSize:    batchSize,
	}
}

// Run ticks until the context is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("Scheduler started",
		slog.Duration("poll_interval", s.pollInterval),
		slog.Int("batch_size", s.batchSize),
	)

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Scheduler stopped - context canceled")
			return ctx.Err()
		case <-ticker.C:
			s.tick(ctx, time.Now())
		}
	}
}

func (s *Scheduler) tick(ctx context.Context, now time.Time) {
	s.promoteDue(ctx, now)
	s.fireRecurring(ctx, now)
}

// promoteDue moves due scheduled items to ENQUEUED and publishes them.
func (s *Scheduler) promoteDue(ctx context.Context, now time.Time) {
	items, err := s.store.PromoteDue(ctx, now, s.batchSize)
	if err != nil {
		s.logger.Error("Failed to promote scheduled work items",
			slog.Any("error", err),
		)
		return
	}

	for _, item := range items {
		if err := s.publish(ctx, item.ID, item.Queue); err != nil {
			// The item stays ENQUEUED; a worker will never see it until
			// the message lands, so log loudly and keep going.
			s.logger.Error("Failed to publish promoted work item",
				slog.String("work_item_id", item.ID),
				slog.Any("error", err),
			)
			continue
		}

		s.logger.Info("Scheduled work item promoted",
			slog.String("work_item_id", item.ID),
			slog.String("queue", item.Queue),
		)
	}
}

// fireRecurring enqueues a work item for each due recurring definition
// and advances its next run.
func (s *Scheduler) fireRecurring(ctx context.Context, now time.Time) {
	defs, err := s.store.DueRecurring(ctx, now)
	if err != nil {
		s.logger.Error("Failed to list due recurring jobs",
			slog.Any("error", err),
		)
		return
	}

	for _, def := range defs {
		next, err := NextRun(def.Schedule, now)
		if err != nil {
			s.logger.Error("Recurring job has invalid schedule",
				slog.String("name", def.Name),
				slog.String("schedule", def.Schedule),
				slog.Any("error", err),
			)
			continue
		}

		// Advance first. Losing the guarded update means another
		// scheduler pass already fired this occurrence.
		advanced, err := s.store.AdvanceRecurring(ctx, def.Name, def.NextRunAt, next)
		if err != nil {
			s.logger.Error("Failed to advance recurring job",
				slog.String("name", def.Name),
				slog.Any("error", err),
			)
			continue
		}
		if !advanced {
			continue
		}

		item := &jobs.WorkItem{
			ID:        uuid.New().String(),
			Queue:     def.Queue,
			Kind:      def.Kind,
			State:     jobs.StateEnqueued,
			CreatedAt: now,
			UpdatedAt: now,
		}

		if err := s.store.Insert(ctx, item); err != nil {
			s.logger.Error("Failed to insert recurring work item",
				slog.String("name", def.Name),
				slog.Any("error", err),
			)
			continue
		}

		if err := s.publish(ctx, item.ID, item.Queue); err != nil {
			s.logger.Error("Failed to publish recurring work item",
				slog.String("name", def.Name),
				slog.String("work_item_id", item.ID),
				slog.Any("error", err),
			)
			continue
		}

		s.logger.Info("Recurring job fired",
			slog.String("name", def.Name),
			slog.String("work_item_id", item.ID),
			slog.Time("next_run_at", next),
		)
	}
}

func (s *Scheduler) publish(ctx context.Context, id, queue string) error {
	body, err := json.Marshal(jobs.Message{WorkItemID: id, Queue: queue})
	if err != nil {
		return err
	}
	return s.broker.PublishWithRetry(ctx, queue, body)
}
