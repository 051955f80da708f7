package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jobproc/jobproc/internal/jobs"
)

// fakeEngine records submissions and recurring upserts.
type fakeEngine struct {
	enqueued   []fakeSubmission
	scheduled  []fakeSubmission
	states     map[string]string
	cancelable map[string]bool
	recurring  map[string]string // name -> schedule
	failWith   error
}

type fakeSubmission struct {
	queue   string
	kind    jobs.Kind
	payload string
	when    time.Time
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		states:     make(map[string]string),
		cancelable: make(map[string]bool),
		recurring:  make(map[string]string),
	}
}

func (f *fakeEngine) Enqueue(_ context.Context, queue string, kind jobs.Kind, payload string) (string, error) {
	if f.failWith != nil {
		return "", f.failWith
	}
	f.enqueued = append(f.enqueued, fakeSubmission{queue: queue, kind: kind, payload: payload})
	return "work-item-1", nil
}

func (f *fakeEngine) Schedule(_ context.Context, queue string, kind jobs.Kind, payload string, when time.Time) (string, error) {
	if f.failWith != nil {
		return "", f.failWith
	}
	f.scheduled = append(f.scheduled, fakeSubmission{queue: queue, kind: kind, payload: payload, when: when})
	return "work-item-2", nil
}

func (f *fakeEngine) State(_ context.Context, id string) (string, error) {
	state, ok := f.states[id]
	if !ok {
		return "", jobs.ErrNotFound
	}
	return state, nil
}

func (f *fakeEngine) Delete(_ context.Context, id string) (bool, error) {
	if f.failWith != nil {
		return false, f.failWith
	}
	return f.cancelable[id], nil
}

func (f *fakeEngine) UpsertRecurring(_ context.Context, name, schedule string, _ jobs.Kind, _ string) error {
	f.recurring[name] = schedule
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestOrchestrator_SubmitNow(t *testing.T) {
	eng := newFakeEngine()
	orch := New(eng, discardLogger())

	id, err := orch.SubmitNow(context.Background(), jobs.KindEmail, jobs.EmailPayload{
		To:      "a@b.com",
		Subject: "hello",
		Body:    "world",
		IsHTML:  true,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	require.Len(t, eng.enqueued, 1)
	assert.Equal(t, jobs.QueueEmails, eng.enqueued[0].queue)
	assert.Equal(t, jobs.KindEmail, eng.enqueued[0].kind)

	var payload jobs.EmailPayload
	require.NoError(t, json.Unmarshal([]byte(eng.enqueued[0].payload), &payload))
	assert.Equal(t, "a@b.com", payload.To)
}

func TestOrchestrator_SubmitNow_UnknownKind(t *testing.T) {
	orch := New(newFakeEngine(), discardLogger())

	_, err := orch.SubmitNow(context.Background(), jobs.Kind("mystery"), nil)
	require.ErrorIs(t, err, jobs.ErrUnknownKind)
}

func TestOrchestrator_SubmitNow_EngineFailure(t *testing.T) {
	eng := newFakeEngine()
	eng.failWith = errors.New("broker unreachable")
	orch := New(eng, discardLogger())

	_, err := orch.SubmitNow(context.Background(), jobs.KindEmail, jobs.EmailPayload{To: "a@b.com"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker unreachable")
}

func TestOrchestrator_SubmitAt(t *testing.T) {
	eng := newFakeEngine()
	orch := New(eng, discardLogger())

	tests := []struct {
		name string
		when time.Time
	}{
		{name: "future instant", when: time.Now().Add(time.Hour)},
		// A past instant is executed on the scheduler's next pass.
		{name: "past instant", when: time.Now().Add(-time.Hour)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := orch.SubmitAt(context.Background(), jobs.KindReport, jobs.ReportPayload{
				ReportType:   "sales",
				OutputFormat: "PDF",
			}, tt.when)
			require.NoError(t, err)
			assert.NotEmpty(t, id)
		})
	}

	require.Len(t, eng.scheduled, 2)
	assert.Equal(t, jobs.QueueReports, eng.scheduled[0].queue)
}

func TestOrchestrator_Status(t *testing.T) {
	eng := newFakeEngine()
	eng.states["known"] = jobs.StateProcessing
	orch := New(eng, discardLogger())

	state, err := orch.Status(context.Background(), "known")
	require.NoError(t, err)
	assert.Equal(t, jobs.StateProcessing, state)

	// NotFound is a defined outcome, not a fault.
	_, err = orch.Status(context.Background(), "fabricated-unused-id")
	require.ErrorIs(t, err, jobs.ErrNotFound)
}

func TestOrchestrator_Cancel(t *testing.T) {
	eng := newFakeEngine()
	eng.cancelable["pending"] = true
	orch := New(eng, discardLogger())

	cancelled, err := orch.Cancel(context.Background(), "pending")
	require.NoError(t, err)
	assert.True(t, cancelled)

	// Unknown id and terminal item both report a refused cancel.
	cancelled, err = orch.Cancel(context.Background(), "already-done")
	require.NoError(t, err)
	assert.False(t, cancelled)
}

func TestOrchestrator_RegisterRecurring_Idempotent(t *testing.T) {
	eng := newFakeEngine()
	orch := New(eng, discardLogger())

	require.NoError(t, orch.RegisterRecurring(context.Background()))
	require.NoError(t, orch.RegisterRecurring(context.Background()))

	// Upsert by name: two definitions, not four.
	require.Len(t, eng.recurring, 2)
	assert.Equal(t, "0 2 * * *", eng.recurring["cleanup-logs"])
	assert.Equal(t, "* * * * *", eng.recurring["health-check"])
}
