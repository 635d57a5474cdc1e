package email

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"
)

type captureSender struct {
	messages []*gomail.Message
	err      error
}

func (c *captureSender) DialAndSend(m ...*gomail.Message) error {
	if c.err != nil {
		return c.err
	}
	c.messages = append(c.messages, m...)
	return nil
}

func TestSendPasswordReset(t *testing.T) {
	sender := &captureSender{}
	svc := newSMTPService(sender, "no-reply@example.com", "User Management")

	err := svc.SendPasswordReset(context.Background(), "jdoe@example.com", "jdoe",
		"http://localhost:3000/reset-password?token=abc123", 30*time.Minute)
	require.NoError(t, err)
	require.Len(t, sender.messages, 1)

	m := sender.messages[0]
	assert.Equal(t, []string{"jdoe@example.com"}, m.GetHeader("To"))
	assert.Equal(t, []string{"User Management - Password reset request"}, m.GetHeader("Subject"))
	assert.Equal(t, []string{"no-reply@example.com"}, m.GetHeader("From"))
}

func TestRenderTemplates(t *testing.T) {
	reset, err := render(resetTemplate, map[string]interface{}{
		"AppName":   "User Management",
		"Username":  "jdoe",
		"ResetURL":  "http://localhost:3000/reset-password?token=abc123",
		"ExpiresIn": 30,
	})
	require.NoError(t, err)
	assert.Contains(t, reset, `href="http://localhost:3000/reset-password?token=abc123"`)
	assert.Contains(t, reset, "30 minutes")

	changed, err := render(changedTemplate, map[string]interface{}{
		"AppName":   "User Management",
		"Username":  "<script>",
		"IPAddress": "192.0.2.1",
		"ChangedAt": "Fri, 01 Mar 2024 09:00:00 UTC",
	})
	require.NoError(t, err)
	assert.Contains(t, changed, "192.0.2.1")
	assert.NotContains(t, changed, "<script>")
}

func TestSendPasswordChanged(t *testing.T) {
	sender := &captureSender{}
	svc := newSMTPService(sender, "no-reply@example.com", "User Management")

	changedAt := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, svc.SendPasswordChanged(context.Background(), "jdoe@example.com", "jdoe", "", changedAt))
	require.Len(t, sender.messages, 1)
	assert.Equal(t, []string{"User Management - Your password was changed"}, sender.messages[0].GetHeader("Subject"))
}

func TestSendFailures(t *testing.T) {
	svc := newSMTPService(&captureSender{err: errors.New("connection refused")}, "from@example.com", "app")
	err := svc.SendPasswordChanged(context.Background(), "jdoe@example.com", "jdoe", "1.2.3.4", time.Now())
	assert.ErrorContains(t, err, "connection refused")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sender := &captureSender{}
	err = newSMTPService(sender, "from@example.com", "app").SendPasswordChanged(ctx, "jdoe@example.com", "jdoe", "", time.Now())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, sender.messages)
}
