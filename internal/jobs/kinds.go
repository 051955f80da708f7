// Package jobs holds the data contracts shared between the API service,
// the orchestrator, and the worker service: job kinds, their queue and
// retry bindings, payload shapes, and work item states.
package jobs

import (
	"errors"
	"time"
)

// Kind identifies the type of work a job performs.
type Kind string

const (
	KindEmail       Kind = "email"
	KindReport      Kind = "report"
	KindCleanupLogs Kind = "cleanup-logs"
	KindHealthCheck Kind = "health-check"
)

// Queue names. Each queue is a separate RabbitMQ queue bound to the
// shared direct exchange with its own routing key.
const (
	QueueDefault = "default"
	QueueEmails  = "emails"
	QueueReports = "reports"
)

// Work item states as stored by the execution engine.
const (
	StateEnqueued   = "ENQUEUED"
	StateScheduled  = "SCHEDULED"
	StateProcessing = "PROCESSING"
	StateSucceeded  = "SUCCEEDED"
	StateFailed     = "FAILED"
	StateDeleted    = "DELETED"
)

var (
	// ErrNotFound is returned when a work item id is unknown. Querying an
	// unknown id is a normal outcome, not a fault.
	ErrNotFound = errors.New("work item not found")

	// ErrUnknownKind is returned when a job kind has no registered definition.
	ErrUnknownKind = errors.New("unknown job kind")
)

// RetryPolicy is attached per job kind, not per request. Attempt n (n>=2)
// fires no earlier than now + Delays[n-2]; after MaxAttempts the item is
// marked FAILED permanently.
type RetryPolicy struct {
	MaxAttempts int
	Delays      []time.Duration
}

// NextDelay returns the backoff delay before the given retry (0-based
// retry count of the attempt that just failed) and whether another
// attempt is allowed at all.
func (p RetryPolicy) NextDelay(retryCount int) (time.Duration, bool) {
	if retryCount+1 >= p.MaxAttempts {
		return 0, false
	}
	if retryCount >= len(p.Delays) {
		// More attempts than configured delays: reuse the last delay.
		return p.Delays[len(p.Delays)-1], true
	}
	return p.Delays[retryCount], true
}

// Definition binds a job kind to its target queue and retry policy.
type Definition struct {
	Kind  Kind
	Queue string
	Retry RetryPolicy
}

// definitions is the kind dispatch table. Routing a job intent to the
// correct queue/retry policy/handler goes through this map rather than
// any type hierarchy.
var definitions = map[Kind]Definition{
	KindEmail: {
		Kind:  KindEmail,
		Queue: QueueEmails,
		Retry: RetryPolicy{MaxAttempts: 3, Delays: []time.Duration{30 * time.Second, 60 * time.Second, 120 * time.Second}},
	},
	KindReport: {
		Kind:  KindReport,
		Queue: QueueReports,
		Retry: RetryPolicy{MaxAttempts: 2, Delays: []time.Duration{60 * time.Second, 300 * time.Second}},
	},
	KindCleanupLogs: {
		Kind:  KindCleanupLogs,
		Queue: QueueDefault,
		Retry: RetryPolicy{MaxAttempts: 1},
	},
	KindHealthCheck: {
		Kind:  KindHealthCheck,
		Queue: QueueDefault,
		Retry: RetryPolicy{MaxAttempts: 1},
	},
}

// Lookup returns the definition for a kind.
func Lookup(kind Kind) (Definition, error) {
	def, ok := definitions[kind]
	if !ok {
		return Definition{}, ErrUnknownKind
	}
	return def, nil
}

// PolicyFor returns the retry policy for a kind. Unknown kinds get a
// single-attempt policy so a stray item cannot retry forever.
func PolicyFor(kind Kind) RetryPolicy {
	if def, ok := definitions[kind]; ok {
		return def.Retry
	}
	return RetryPolicy{MaxAttempts: 1}
}
