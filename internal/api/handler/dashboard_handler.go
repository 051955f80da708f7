package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jobproc/jobproc/internal/api/dto"
	"github.com/jobproc/jobproc/internal/jobs"
)

const defaultDashboardPageSize = 50

// DashboardHandler serves the operational visibility endpoints.
type DashboardHandler struct {
	logger *slog.Logger
	store  DashboardStore
}

// NewDashboardHandler creates a new DashboardHandler instance
func NewDashboardHandler(deps *Dependencies) *DashboardHandler {
	return &DashboardHandler{
		logger: deps.Logger,
		store:  deps.Dashboard,
	}
}

// Stats handles GET /dashboard/stats
func (h *DashboardHandler) Stats(c *gin.Context) {
	counts, err := h.store.CountByState(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to load dashboard stats", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load stats"})
		return
	}

	total := 0
	for _, n := range counts {
		total += n
	}

	c.JSON(http.StatusOK, dto.StatsResponse{Counts: counts, Total: total})
}

// Jobs handles GET /dashboard/jobs?state=FAILED&limit=20
func (h *DashboardHandler) Jobs(c *gin.Context) {
	limit := defaultDashboardPageSize
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		if parsed < limit {
			limit = parsed
		}
	}

	items, err := h.store.ListRecent(c.Request.Context(), c.Query("state"), limit)
	if err != nil {
		h.logger.Error("Failed to list work items", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list jobs"})
		return
	}

	resp := make([]dto.WorkItemDTO, len(items))
	for i, item := range items {
		resp[i] = workItemDTO(&item)
	}

	c.JSON(http.StatusOK, gin.H{"jobs": resp})
}

// Recurring handles GET /dashboard/recurring
func (h *DashboardHandler) Recurring(c *gin.Context) {
	defs, err := h.store.ListRecurring(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to list recurring jobs", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list recurring jobs"})
		return
	}

	resp := make([]dto.RecurringJobDTO, len(defs))
	for i, def := range defs {
		resp[i] = dto.RecurringJobDTO{
			Name:      def.Name,
			Schedule:  def.Schedule,
			Kind:      string(def.Kind),
			Queue:     def.Queue,
			NextRunAt: def.NextRunAt.UTC().Format(time.RFC3339),
		}
	}

	c.JSON(http.StatusOK, gin.H{"recurring": resp})
}

func workItemDTO(item *jobs.WorkItem) dto.WorkItemDTO {
	d := dto.WorkItemDTO{
		JobID:      item.ID,
		Queue:      item.Queue,
		Kind:       string(item.Kind),
		State:      item.State,
		RetryCount: item.RetryCount,
		LastError:  item.LastError,
		CreatedAt:  item.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:  item.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if item.ScheduledAt != nil {
		d.ScheduledAt = item.ScheduledAt.UTC().Format(time.RFC3339)
	}
	return d
}
