package jobs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingMailer struct {
	to, subject, body string
	err               error
}

func (m *recordingMailer) Send(ctx context.Context, to, subject, body string) error {
	if m.err != nil {
		return m.err
	}
	m.to, m.subject, m.body = to, subject, body
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSendEmailHandler(t *testing.T) {
	task, err := NewSendEmailTask(SendEmailPayload{
		To:      "marie@example.com",
		Subject: "Votre devis DEV-20260115-0001",
		Body:    "Bonjour",
	})
	require.NoError(t, err)
	assert.Equal(t, TaskTypeSendEmail, task.Type())

	mailer := &recordingMailer{}
	handler := NewSendEmailHandler(mailer, discardLogger())
	require.NoError(t, handler(context.Background(), task))

	assert.Equal(t, "marie@example.com", mailer.to)
	assert.Equal(t, "Votre devis DEV-20260115-0001", mailer.subject)
}

func TestSendEmailHandlerMalformedPayload(t *testing.T) {
	mailer := &recordingMailer{}
	handler := NewSendEmailHandler(mailer, discardLogger())

	err := handler(context.Background(), asynq.NewTask(TaskTypeSendEmail, []byte("{broken")))
	assert.True(t, errors.Is(err, asynq.SkipRetry))
	assert.Empty(t, mailer.to)
}

func TestSendEmailHandlerDeliveryFailureRetries(t *testing.T) {
	task, err := NewSendEmailTask(SendEmailPayload{To: "marie@example.com"})
	require.NoError(t, err)

	sendErr := errors.New("smtp unreachable")
	handler := NewSendEmailHandler(&recordingMailer{err: sendErr}, discardLogger())

	err = handler(context.Background(), task)
	require.Error(t, err)
	assert.False(t, errors.Is(err, asynq.SkipRetry))
}
