package jobs

import "time"

// EmailPayload is the unit-of-work payload for an email job.
type EmailPayload struct {
	To      string   `json:"to"`
	Subject string   `json:"subject"`
	Body    string   `json:"body"`
	Cc      []string `json:"cc,omitempty"`
	Bcc     []string `json:"bcc,omitempty"`
	IsHTML  bool     `json:"is_html"`
}

// ReportPayload is the unit-of-work payload for a report job. When
// EmailTo is set, the notification email is part of the same retryable
// unit as the report generation.
type ReportPayload struct {
	ReportType   string            `json:"report_type"`
	Parameters   map[string]string `json:"parameters,omitempty"`
	OutputFormat string            `json:"output_format"`
	EmailTo      string            `json:"email_to,omitempty"`
}

// WorkItem is the engine's view of a schedulable unit of work. The id is
// unique process-wide and stable for the item's lifetime.
type WorkItem struct {
	ID          string     `db:"id"`
	Queue       string     `db:"queue"`
	Kind        Kind       `db:"kind"`
	Payload     string     `db:"payload"`
	State       string     `db:"state"`
	RetryCount  int        `db:"retry_count"`
	LastError   string     `db:"last_error"`
	WorkerID    string     `db:"worker_id"`
	ScheduledAt *time.Time `db:"scheduled_at"`
	CreatedAt   time.Time  `db:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at"`
}

// RecurringJob is a named, upsertable schedule entry producing work
// items on a cron cadence. The name is the identity: re-registering the
// same name replaces the schedule.
type RecurringJob struct {
	Name      string    `db:"name"`
	Schedule  string    `db:"schedule"`
	Kind      Kind      `db:"kind"`
	Queue     string    `db:"queue"`
	NextRunAt time.Time `db:"next_run_at"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// Message is the transport envelope published to RabbitMQ for each
// enqueued work item. Workers load the full item from the store.
type Message struct {
	WorkItemID string `json:"work_item_id"`
	Queue      string `json:"queue"`
}
