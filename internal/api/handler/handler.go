// Package handler implements the HTTP endpoints of the API service.
package handler

import (
	"context"
	"log/slog"
	"time"

	"github.com/jobproc/jobproc/internal/auth"
	"github.com/jobproc/jobproc/internal/jobs"
)

// JobService is the slice of the orchestrator the job endpoints need.
type JobService interface {
	SubmitNow(ctx context.Context, kind jobs.Kind, payload any) (string, error)
	SubmitAt(ctx context.Context, kind jobs.Kind, payload any, when time.Time) (string, error)
	Status(ctx context.Context, id string) (string, error)
	Cancel(ctx context.Context, id string) (bool, error)
}

// DashboardStore exposes the read-only queries backing the dashboard
// endpoints.
type DashboardStore interface {
	CountByState(ctx context.Context) (map[string]int, error)
	ListRecent(ctx context.Context, state string, limit int) ([]jobs.WorkItem, error)
	ListRecurring(ctx context.Context) ([]jobs.RecurringJob, error)
}

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger    *slog.Logger
	Directory auth.Directory
	Tokens    *auth.TokenService
	Jobs      JobService
	Dashboard DashboardStore
	CookieTTL time.Duration
}
