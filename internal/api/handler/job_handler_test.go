package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jobproc/jobproc/internal/api/dto"
	"github.com/jobproc/jobproc/internal/jobs"
)

type fakeJobService struct {
	submitID  string
	submitErr error
	lastKind  jobs.Kind
	lastWhen  time.Time

	statusState string
	statusErr   error

	cancelOK  bool
	cancelErr error
	cancelled []string
}

func (f *fakeJobService) SubmitNow(_ context.Context, kind jobs.Kind, _ any) (string, error) {
	f.lastKind = kind
	return f.submitID, f.submitErr
}

func (f *fakeJobService) SubmitAt(_ context.Context, kind jobs.Kind, _ any, when time.Time) (string, error) {
	f.lastKind = kind
	f.lastWhen = when
	return f.submitID, f.submitErr
}

func (f *fakeJobService) Status(_ context.Context, _ string) (string, error) {
	return f.statusState, f.statusErr
}

func (f *fakeJobService) Cancel(_ context.Context, id string) (bool, error) {
	f.cancelled = append(f.cancelled, id)
	return f.cancelOK, f.cancelErr
}

func jobRouter(svc JobService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewJobHandler(&Dependencies{Logger: discardLogger(), Jobs: svc})
	r.POST("/jobs/email", h.SubmitEmail)
	r.POST("/jobs/email/schedule", h.ScheduleEmail)
	r.POST("/jobs/report", h.SubmitReport)
	r.POST("/jobs/report/schedule", h.ScheduleReport)
	r.GET("/jobs/status/:job_id", h.Status)
	r.DELETE("/jobs/:job_id", h.Cancel)
	return r
}

const emailBody = `{"to":"user@example.com","subject":"Welcome","body":"Hello"}`

func postJSON(r *gin.Engine, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func TestSubmitEmail(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		svc := &fakeJobService{submitID: "job-123"}
		w := postJSON(jobRouter(svc), "/jobs/email", emailBody)

		require.Equal(t, http.StatusOK, w.Code)

		var resp dto.JobResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "job-123", resp.JobID)
		assert.Equal(t, "Enqueued", resp.Status)
		assert.Equal(t, jobs.KindEmail, svc.lastKind)
	})

	t.Run("missing recipient", func(t *testing.T) {
		svc := &fakeJobService{submitID: "job-123"}
		w := postJSON(jobRouter(svc), "/jobs/email", `{"subject":"s","body":"b"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("invalid email address", func(t *testing.T) {
		svc := &fakeJobService{submitID: "job-123"}
		w := postJSON(jobRouter(svc), "/jobs/email", `{"to":"not-an-email","subject":"s","body":"b"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("submission failure surfaces message", func(t *testing.T) {
		svc := &fakeJobService{submitErr: errors.New("queue unavailable")}
		w := postJSON(jobRouter(svc), "/jobs/email", emailBody)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "queue unavailable")
	})
}

func TestScheduleEmail(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		svc := &fakeJobService{submitID: "job-456"}
		when := time.Now().Add(2 * time.Hour).UTC().Truncate(time.Second)
		path := "/jobs/email/schedule?scheduledAt=" + when.Format(time.RFC3339)

		w := postJSON(jobRouter(svc), path, emailBody)

		require.Equal(t, http.StatusOK, w.Code)

		var resp dto.JobResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "Scheduled", resp.Status)
		assert.True(t, svc.lastWhen.Equal(when))
	})

	t.Run("missing scheduledAt", func(t *testing.T) {
		svc := &fakeJobService{submitID: "job-456"}
		w := postJSON(jobRouter(svc), "/jobs/email/schedule", emailBody)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("malformed scheduledAt", func(t *testing.T) {
		svc := &fakeJobService{submitID: "job-456"}
		w := postJSON(jobRouter(svc), "/jobs/email/schedule?scheduledAt=tomorrow", emailBody)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestSubmitReport(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		svc := &fakeJobService{submitID: "job-789"}
		body := `{"reportType":"sales","parameters":{"region":"emea"},"outputFormat":"pdf","emailTo":"boss@example.com"}`
		w := postJSON(jobRouter(svc), "/jobs/report", body)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, jobs.KindReport, svc.lastKind)
	})

	t.Run("missing report type", func(t *testing.T) {
		svc := &fakeJobService{submitID: "job-789"}
		w := postJSON(jobRouter(svc), "/jobs/report", `{"outputFormat":"pdf"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestJobStatus(t *testing.T) {
	t.Run("known job", func(t *testing.T) {
		svc := &fakeJobService{statusState: jobs.StateProcessing}
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/jobs/status/job-123", nil)
		jobRouter(svc).ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)

		var resp dto.JobResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, jobs.StateProcessing, resp.Status)
	})

	t.Run("unknown job", func(t *testing.T) {
		svc := &fakeJobService{statusErr: jobs.ErrNotFound}
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/jobs/status/nope", nil)
		jobRouter(svc).ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("engine failure", func(t *testing.T) {
		svc := &fakeJobService{statusErr: errors.New("connection refused")}
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/jobs/status/job-123", nil)
		jobRouter(svc).ServeHTTP(w, req)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}

func TestCancelJob(t *testing.T) {
	t.Run("cancelled", func(t *testing.T) {
		svc := &fakeJobService{cancelOK: true}
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodDelete, "/jobs/job-123", nil)
		jobRouter(svc).ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)

		var resp dto.JobResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "Cancelled", resp.Status)
		assert.Equal(t, []string{"job-123"}, svc.cancelled)
	})

	t.Run("not cancellable", func(t *testing.T) {
		svc := &fakeJobService{cancelOK: false}
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodDelete, "/jobs/job-123", nil)
		jobRouter(svc).ServeHTTP(w, req)

		require.Equal(t, http.StatusBadRequest, w.Code)

		var resp dto.JobResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "CancelFailed", resp.Status)
	})
}
