package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jobproc/jobproc/internal/api/dto"
	"github.com/jobproc/jobproc/internal/jobs"
)

type fakeDashboardStore struct {
	counts    map[string]int
	items     []jobs.WorkItem
	recurring []jobs.RecurringJob

	lastState string
	lastLimit int
}

func (f *fakeDashboardStore) CountByState(_ context.Context) (map[string]int, error) {
	return f.counts, nil
}

func (f *fakeDashboardStore) ListRecent(_ context.Context, state string, limit int) ([]jobs.WorkItem, error) {
	f.lastState = state
	f.lastLimit = limit
	return f.items, nil
}

func (f *fakeDashboardStore) ListRecurring(_ context.Context) ([]jobs.RecurringJob, error) {
	return f.recurring, nil
}

func dashboardRouter(store DashboardStore) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewDashboardHandler(&Dependencies{Logger: discardLogger(), Dashboard: store})
	r.GET("/dashboard/stats", h.Stats)
	r.GET("/dashboard/jobs", h.Jobs)
	r.GET("/dashboard/recurring", h.Recurring)
	return r
}

func TestDashboardStats(t *testing.T) {
	store := &fakeDashboardStore{
		counts: map[string]int{
			jobs.StateSucceeded:  10,
			jobs.StateFailed:     2,
			jobs.StateProcessing: 1,
		},
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/dashboard/stats", nil)
	dashboardRouter(store).ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp dto.StatsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 13, resp.Total)
	assert.Equal(t, 2, resp.Counts[jobs.StateFailed])
}

func TestDashboardJobs(t *testing.T) {
	now := time.Now().UTC()
	store := &fakeDashboardStore{
		items: []jobs.WorkItem{
			{
				ID:        "item-1",
				Queue:     jobs.QueueEmails,
				Kind:      jobs.KindEmail,
				State:     jobs.StateFailed,
				LastError: "smtp unavailable",
				CreatedAt: now,
				UpdatedAt: now,
			},
		},
	}

	t.Run("with state filter and limit", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/dashboard/jobs?state=FAILED&limit=10", nil)
		dashboardRouter(store).ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, jobs.StateFailed, store.lastState)
		assert.Equal(t, 10, store.lastLimit)
		assert.Contains(t, w.Body.String(), "smtp unavailable")
	})

	t.Run("limit is capped", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/dashboard/jobs?limit=5000", nil)
		dashboardRouter(store).ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, defaultDashboardPageSize, store.lastLimit)
	})

	t.Run("invalid limit", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/dashboard/jobs?limit=-1", nil)
		dashboardRouter(store).ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestDashboardRecurring(t *testing.T) {
	store := &fakeDashboardStore{
		recurring: []jobs.RecurringJob{
			{
				Name:      "cleanup-logs",
				Schedule:  "0 2 * * *",
				Kind:      jobs.KindCleanupLogs,
				Queue:     jobs.QueueDefault,
				NextRunAt: time.Date(2026, 1, 2, 2, 0, 0, 0, time.UTC),
			},
		},
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/dashboard/recurring", nil)
	dashboardRouter(store).ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "cleanup-logs")
	assert.Contains(t, w.Body.String(), "0 2 * * *")
}
