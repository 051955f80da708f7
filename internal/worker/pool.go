package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jobproc/jobproc/internal/engine"
)

// spawnPool spawns N worker goroutines based on concurrency configuration
func (w *Worker) spawnPool(ctx context.Context) {
	w.logger.Info("Spawning worker pool",
		slog.Int("concurrency", w.concurrency),
		slog.String("worker_id", w.workerID),
	)

	for i := 0; i < w.concurrency; i++ {
		w.wg.Add(1)
		go w.workerLoop(ctx, i)
	}
}

// workerLoop is the main processing loop for each worker goroutine
func (w *Worker) workerLoop(ctx context.Context, workerNum int) {
	defer w.wg.Done()

	workerName := fmt.Sprintf("%s-%d", w.workerID, workerNum)
	w.logger.Info("Worker goroutine started",
		slog.String("worker_name", workerName),
	)

	for {
		select {
		case <-w.stopChan:
			w.logger.Info("Worker goroutine stopping - stopChan closed",
				slog.String("worker_name", workerName),
			)
			return

		case <-ctx.Done():
			w.logger.Info("Worker goroutine stopping - context canceled",
				slog.String("worker_name", workerName),
			)
			return

		case msg, ok := <-w.jobsChan:
			if !ok {
				w.logger.Info("Worker goroutine stopping - jobsChan closed",
					slog.String("worker_name", workerName),
				)
				return
			}

			w.logger.Info("Worker received work item",
				slog.String("worker_name", workerName),
				slog.String("work_item_id", msg.WorkItemID),
				slog.Uint64("delivery_tag", msg.Delivery.DeliveryTag),
			)

			err := w.processWorkItem(ctx, msg)

			if err != nil {
				w.logger.Error("Work item processing failed",
					slog.String("worker_name", workerName),
					slog.String("work_item_id", msg.WorkItemID),
					slog.String("error", err.Error()),
				)

				requeue := w.shouldRequeue(err)
				if nackErr := msg.Delivery.Nack(false, requeue); nackErr != nil {
					w.logger.Error("Failed to NACK message",
						slog.String("work_item_id", msg.WorkItemID),
						slog.String("error", nackErr.Error()),
					)
				} else {
					w.logger.Info("Message NACKed",
						slog.String("work_item_id", msg.WorkItemID),
						slog.Bool("requeue", requeue),
					)
				}
				continue
			}

			if ackErr := msg.Delivery.Ack(false); ackErr != nil {
				w.logger.Error("Failed to ACK message",
					slog.String("work_item_id", msg.WorkItemID),
					slog.String("error", ackErr.Error()),
				)
			}
		}
	}
}

// shouldRequeue decides whether a failed delivery goes back to the
// transport. Retries of job failures are scheduled through the store,
// so only transient infrastructure errors are requeued.
func (w *Worker) shouldRequeue(err error) bool {
	// An item claimed by another worker must not circulate again.
	if errors.Is(err, engine.ErrAlreadyClaimed) {
		return false
	}

	var transientErr *transientError
	return errors.As(err, &transientErr)
}

// transientError wraps infrastructure failures (store unreachable)
// where redelivery is the right recovery.
type transientError struct {
	Err error
}

func (e *transientError) Error() string {
	return "transient error: " + e.Err.Error()
}

func (e *transientError) Unwrap() error {
	return e.Err
}
