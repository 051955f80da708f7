package dto

// EmailJobRequest is the body for email job submission endpoints.
type EmailJobRequest struct {
	To      string   `json:"to" binding:"required,email"`
	Subject string   `json:"subject" binding:"required"`
	Body    string   `json:"body" binding:"required"`
	Cc      []string `json:"cc"`
	Bcc     []string `json:"bcc"`
	IsHTML  bool     `json:"isHtml"`
}

// ReportJobRequest is the body for report job submission endpoints.
type ReportJobRequest struct {
	ReportType   string            `json:"reportType" binding:"required"`
	Parameters   map[string]string `json:"parameters"`
	OutputFormat string            `json:"outputFormat"`
	EmailTo      string            `json:"emailTo"`
}

// JobResponse is returned by every job submission, status, and cancel
// endpoint.
type JobResponse struct {
	JobID   string `json:"jobId"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// StatsResponse summarizes work item counts per state.
type StatsResponse struct {
	Counts map[string]int `json:"counts"`
	Total  int            `json:"total"`
}

// WorkItemDTO is the dashboard view of a work item.
type WorkItemDTO struct {
	JobID       string `json:"jobId"`
	Queue       string `json:"queue"`
	Kind        string `json:"kind"`
	State       string `json:"state"`
	RetryCount  int    `json:"retryCount"`
	LastError   string `json:"lastError,omitempty"`
	ScheduledAt string `json:"scheduledAt,omitempty"`
	CreatedAt   string `json:"createdAt"`
	UpdatedAt   string `json:"updatedAt"`
}

// RecurringJobDTO is the dashboard view of a recurring definition.
type RecurringJobDTO struct {
	Name      string `json:"name"`
	Schedule  string `json:"schedule"`
	Kind      string `json:"kind"`
	Queue     string `json:"queue"`
	NextRunAt string `json:"nextRunAt"`
}
