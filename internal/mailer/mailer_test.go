package mailer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/smtp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jobproc/jobproc/internal/jobs"
)

func newTestMailer(send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error) *Mailer {
	m := New(&Config{
		Host: "smtp.example.com",
		Port: 587,
		From: "jobs@example.com",
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	m.send = send
	return m
}

func TestMailer_Send(t *testing.T) {
	var gotTo []string
	var gotMsg []byte

	m := newTestMailer(func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		assert.Equal(t, "smtp.example.com:587", addr)
		assert.Equal(t, "jobs@example.com", from)
		gotTo = to
		gotMsg = msg
		return nil
	})

	err := m.Send(context.Background(), jobs.EmailPayload{
		To:      "a@b.com",
		Cc:      []string{"c@b.com"},
		Bcc:     []string{"d@b.com"},
		Subject: "Monthly report",
		Body:    "<p>done</p>",
		IsHTML:  true,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"a@b.com", "c@b.com", "d@b.com"}, gotTo)
	assert.Contains(t, string(gotMsg), "Subject: Monthly report")
	assert.Contains(t, string(gotMsg), "Content-Type: text/html")
	assert.Contains(t, string(gotMsg), "Cc: c@b.com")
	// Bcc recipients must not leak into headers.
	assert.NotContains(t, string(gotMsg), "d@b.com\r\n")
}

func TestMailer_Send_MissingRecipient(t *testing.T) {
	m := newTestMailer(func(string, smtp.Auth, string, []string, []byte) error {
		t.Fatal("transport must not be called")
		return nil
	})

	err := m.Send(context.Background(), jobs.EmailPayload{Subject: "no recipient"})
	require.Error(t, err)
}

func TestMailer_Send_TransportFailure(t *testing.T) {
	m := newTestMailer(func(string, smtp.Auth, string, []string, []byte) error {
		return errors.New("connection refused")
	})

	err := m.Send(context.Background(), jobs.EmailPayload{To: "a@b.com"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestMailer_Send_CancelledContext(t *testing.T) {
	m := newTestMailer(func(string, smtp.Auth, string, []string, []byte) error {
		t.Fatal("transport must not be called")
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := m.Send(ctx, jobs.EmailPayload{To: "a@b.com"})
	require.ErrorIs(t, err, context.Canceled)
}
