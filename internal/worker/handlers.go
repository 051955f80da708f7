package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jobproc/jobproc/internal/jobs"
)

// EmailSender delivers notification emails.
type EmailSender interface {
	Send(ctx context.Context, msg jobs.EmailPayload) error
}

// ReportGenerator renders reports.
type ReportGenerator interface {
	Generate(ctx context.Context, reportType string, params map[string]string, format string) ([]byte, error)
}

// NewEmailHandler executes email work items.
func NewEmailHandler(sender EmailSender, logger *slog.Logger) Handler {
	return func(ctx context.Context, item *jobs.WorkItem) error {
		var payload jobs.EmailPayload
		if err := json.Unmarshal([]byte(item.Payload), &payload); err != nil {
			return fmt.Errorf("invalid email payload: %w", err)
		}

		logger.Info("Processing email job",
			slog.String("work_item_id", item.ID),
			slog.String("to", payload.To),
		)

		if err := sender.Send(ctx, payload); err != nil {
			return err
		}

		logger.Info("Email job completed",
			slog.String("work_item_id", item.ID),
			slog.String("to", payload.To),
		)

		return nil
	}
}

// NewReportHandler executes report work items. The notification email,
// when requested, is part of the same retryable unit as the report
// generation: a transient email failure retries the whole job and
// regenerates the report.
func NewReportHandler(reports ReportGenerator, sender EmailSender, logger *slog.Logger) Handler {
	return func(ctx context.Context, item *jobs.WorkItem) error {
		var payload jobs.ReportPayload
		if err := json.Unmarshal([]byte(item.Payload), &payload); err != nil {
			return fmt.Errorf("invalid report payload: %w", err)
		}

		logger.Info("Processing report job",
			slog.String("work_item_id", item.ID),
			slog.String("report_type", payload.ReportType),
		)

		if _, err := reports.Generate(ctx, payload.ReportType, payload.Parameters, payload.OutputFormat); err != nil {
			return err
		}

		if payload.EmailTo != "" {
			notification := jobs.EmailPayload{
				To:      payload.EmailTo,
				Subject: fmt.Sprintf("%s Report", payload.ReportType),
				Body: fmt.Sprintf("Please find attached the %s report generated on %s.",
					payload.ReportType, time.Now().UTC().Format(time.RFC3339)),
			}
			if err := sender.Send(ctx, notification); err != nil {
				return err
			}
		}

		logger.Info("Report job completed",
			slog.String("work_item_id", item.ID),
			slog.String("report_type", payload.ReportType),
		)

		return nil
	}
}

// NewCleanupLogsHandler executes the recurring log cleanup task.
func NewCleanupLogsHandler(logger *slog.Logger) Handler {
	return func(ctx context.Context, item *jobs.WorkItem) error {
		logger.Info("Starting log cleanup maintenance task",
			slog.String("work_item_id", item.ID),
		)

		select {
		case <-time.After(time.Second):
		case <-ctx.Done():
			return ctx.Err()
		}

		logger.Info("Log cleanup completed",
			slog.String("work_item_id", item.ID),
		)

		return nil
	}
}

// HealthChecker probes a backing dependency.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// NewHealthCheckHandler executes the recurring health probe.
func NewHealthCheckHandler(pinger HealthChecker, logger *slog.Logger) Handler {
	return func(ctx context.Context, item *jobs.WorkItem) error {
		logger.Info("Performing health check",
			slog.String("work_item_id", item.ID),
		)

		if err := pinger.HealthCheck(ctx); err != nil {
			logger.Warn("Health check failed",
				slog.String("work_item_id", item.ID),
				slog.String("error", err.Error()),
			)
			return err
		}

		logger.Info("Health check completed - system is healthy",
			slog.String("work_item_id", item.ID),
		)

		return nil
	}
}
