// Package worker consumes work item messages from RabbitMQ and executes
// them through per-kind handlers with the retry semantics of each kind's
// policy.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/jobproc/jobproc/internal/jobs"
	"github.com/jobproc/jobproc/shared/rabbitmq"
)

// Storage is the slice of the engine store the worker needs: claiming,
// terminal transitions, and retry rescheduling.
type Storage interface {
	Claim(ctx context.Context, id, workerID string) (*jobs.WorkItem, error)
	MarkSucceeded(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id, errMsg string) error
	Reschedule(ctx context.Context, id string, at time.Time, errMsg string) error
}

// Handler executes a claimed work item.
type Handler func(ctx context.Context, item *jobs.WorkItem) error

// Config holds worker configuration
type Config struct {
	Logger        *slog.Logger
	Storage       Storage
	RabbitClient  *rabbitmq.Client
	Queues        []string
	Concurrency   int
	JobTimeout    time.Duration
	PrefetchCount int
}

// jobMessage pairs a work item id with its transport delivery so the
// processing goroutine can ack or nack it.
type jobMessage struct {
	WorkItemID string
	Delivery   amqp.Delivery
}

// Worker represents the background job worker
type Worker struct {
	logger        *slog.Logger
	storage       Storage
	rabbitClient  *rabbitmq.Client
	queues        []string
	concurrency   int
	jobTimeout    time.Duration
	prefetchCount int
	workerID      string
	handlers      map[jobs.Kind]Handler
	jobsChan      chan *jobMessage
	wg            sync.WaitGroup
	stopChan      chan struct{}
}

// NewWorker creates a new worker instance
func NewWorker(cfg *Config) *Worker {
	return &Worker{
		logger:        cfg.Logger,
		storage:       cfg.Storage,
		rabbitClient:  cfg.RabbitClient,
		queues:        cfg.Queues,
		concurrency:   cfg.Concurrency,
		jobTimeout:    cfg.JobTimeout,
		prefetchCount: cfg.PrefetchCount,
		workerID:      fmt.Sprintf("worker-%s", uuid.New().String()[:8]),
		handlers:      make(map[jobs.Kind]Handler),
		jobsChan:      make(chan *jobMessage),
		stopChan:      make(chan struct{}),
	}
}

// RegisterHandler binds a handler to a job kind.
func (w *Worker) RegisterHandler(kind jobs.Kind, handler Handler) {
	if kind == "" || handler == nil {
		return
	}
	w.handlers[kind] = handler
}

// Start begins consuming and processing jobs until the context is
// cancelled.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("Starting worker",
		slog.String("worker_id", w.workerID),
		slog.Int("concurrency", w.concurrency),
		slog.Duration("job_timeout", w.jobTimeout),
		slog.Any("queues", w.queues),
	)

	if err := w.setupQoS(); err != nil {
		return err
	}

	for _, queue := range w.queues {
		deliveries, err := w.rabbitClient.Consume(queue, fmt.Sprintf("%s-%s", w.workerID, queue))
		if err != nil {
			return fmt.Errorf("failed to start consumer for queue %q: %w", queue, err)
		}
		go w.dispatch(ctx, queue, deliveries)
	}

	w.spawnPool(ctx)

	<-ctx.Done()
	w.logger.Info("Worker context canceled, stopping...")

	return nil
}

// Stop gracefully stops the worker
func (w *Worker) Stop() {
	w.logger.Info("Stopping worker...")
	close(w.stopChan)
	w.wg.Wait()
	w.logger.Info("Worker stopped")
}

// setupQoS bounds unacknowledged deliveries per consumer.
func (w *Worker) setupQoS() error {
	channel := w.rabbitClient.GetChannel()
	if channel == nil {
		return fmt.Errorf("rabbitmq channel is nil")
	}

	if err := channel.Qos(w.prefetchCount, 0, false); err != nil {
		return fmt.Errorf("failed to set QoS: %w", err)
	}

	w.logger.Info("RabbitMQ QoS configured",
		slog.Int("prefetch_count", w.prefetchCount),
	)

	return nil
}
