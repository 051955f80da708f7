package engine

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jobproc/jobproc/internal/jobs"
)

// A malformed id can never reference a row, so lookups and cancels must
// treat it like a miss rather than forwarding it to the database, where
// the uuid cast would blow up.

func TestGet_MalformedIDIsNotFound(t *testing.T) {
	store := &Store{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}

	item, err := store.Get(context.Background(), "nonexistent-id")

	require.ErrorIs(t, err, jobs.ErrNotFound)
	assert.Nil(t, item)
}

func TestCancel_MalformedIDIsNotCancellable(t *testing.T) {
	store := &Store{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}

	cancelled, err := store.Cancel(context.Background(), "nonexistent-id")

	require.NoError(t, err)
	assert.False(t, cancelled)
}
