package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jobproc/jobproc/internal/api/dto"
	"github.com/jobproc/jobproc/internal/jobs"
)

// JobHandler handles job submission and lifecycle HTTP requests
type JobHandler struct {
	logger *slog.Logger
	jobs   JobService
}

// NewJobHandler creates a new JobHandler instance
func NewJobHandler(deps *Dependencies) *JobHandler {
	return &JobHandler{
		logger: deps.Logger,
		jobs:   deps.Jobs,
	}
}

// SubmitEmail handles POST /jobs/email
func (h *JobHandler) SubmitEmail(c *gin.Context) {
	var req dto.EmailJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid email job request", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid email job request"})
		return
	}

	id, err := h.jobs.SubmitNow(c.Request.Context(), jobs.KindEmail, emailPayload(&req))
	if err != nil {
		h.submissionFailed(c, jobs.KindEmail, err)
		return
	}

	c.JSON(http.StatusOK, dto.JobResponse{JobID: id, Status: "Enqueued"})
}

// ScheduleEmail handles POST /jobs/email/schedule?scheduledAt=RFC3339
func (h *JobHandler) ScheduleEmail(c *gin.Context) {
	when, ok := h.scheduledAt(c)
	if !ok {
		return
	}

	var req dto.EmailJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid email job request", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid email job request"})
		return
	}

	id, err := h.jobs.SubmitAt(c.Request.Context(), jobs.KindEmail, emailPayload(&req), when)
	if err != nil {
		h.submissionFailed(c, jobs.KindEmail, err)
		return
	}

	c.JSON(http.StatusOK, dto.JobResponse{JobID: id, Status: "Scheduled"})
}

// SubmitReport handles POST /jobs/report
func (h *JobHandler) SubmitReport(c *gin.Context) {
	var req dto.ReportJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid report job request", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid report job request"})
		return
	}

	id, err := h.jobs.SubmitNow(c.Request.Context(), jobs.KindReport, reportPayload(&req))
	if err != nil {
		h.submissionFailed(c, jobs.KindReport, err)
		return
	}

	c.JSON(http.StatusOK, dto.JobResponse{JobID: id, Status: "Enqueued"})
}

// ScheduleReport handles POST /jobs/report/schedule?scheduledAt=RFC3339
func (h *JobHandler) ScheduleReport(c *gin.Context) {
	when, ok := h.scheduledAt(c)
	if !ok {
		return
	}

	var req dto.ReportJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid report job request", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid report job request"})
		return
	}

	id, err := h.jobs.SubmitAt(c.Request.Context(), jobs.KindReport, reportPayload(&req), when)
	if err != nil {
		h.submissionFailed(c, jobs.KindReport, err)
		return
	}

	c.JSON(http.StatusOK, dto.JobResponse{JobID: id, Status: "Scheduled"})
}

// Status handles GET /jobs/status/:job_id
func (h *JobHandler) Status(c *gin.Context) {
	jobID := c.Param("job_id")

	state, err := h.jobs.Status(c.Request.Context(), jobID)
	if err != nil {
		if errors.Is(err, jobs.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
			return
		}
		h.logger.Error("Failed to query job status",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to query job status"})
		return
	}

	c.JSON(http.StatusOK, dto.JobResponse{JobID: jobID, Status: state})
}

// Cancel handles DELETE /jobs/:job_id
func (h *JobHandler) Cancel(c *gin.Context) {
	jobID := c.Param("job_id")

	cancelled, err := h.jobs.Cancel(c.Request.Context(), jobID)
	if err != nil {
		h.logger.Error("Failed to cancel job",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to cancel job"})
		return
	}

	if !cancelled {
		c.JSON(http.StatusBadRequest, dto.JobResponse{
			JobID:   jobID,
			Status:  "CancelFailed",
			Message: "job is unknown or no longer cancellable",
		})
		return
	}

	c.JSON(http.StatusOK, dto.JobResponse{JobID: jobID, Status: "Cancelled"})
}

// scheduledAt parses the scheduledAt query parameter. Past instants are
// accepted and run on the next scheduler pass.
func (h *JobHandler) scheduledAt(c *gin.Context) (time.Time, bool) {
	raw := c.Query("scheduledAt")
	if raw == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "scheduledAt query parameter is required"})
		return time.Time{}, false
	}

	when, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "scheduledAt must be an RFC3339 timestamp"})
		return time.Time{}, false
	}

	return when, true
}

func (h *JobHandler) submissionFailed(c *gin.Context, kind jobs.Kind, err error) {
	h.logger.Error("Job submission failed",
		slog.String("kind", string(kind)),
		slog.String("error", err.Error()),
	)
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

func emailPayload(req *dto.EmailJobRequest) jobs.EmailPayload {
	return jobs.EmailPayload{
		To:      req.To,
		Subject: req.Subject,
		Body:    req.Body,
		Cc:      req.Cc,
		Bcc:     req.Bcc,
		IsHTML:  req.IsHTML,
	}
}

func reportPayload(req *dto.ReportJobRequest) jobs.ReportPayload {
	return jobs.ReportPayload{
		ReportType:   req.ReportType,
		Parameters:   req.Parameters,
		OutputFormat: req.OutputFormat,
		EmailTo:      req.EmailTo,
	}
}
