package email

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"time"

	"github.com/rs/zerolog/log"
	"gopkg.in/gomail.v2"

	"github.com/yupeng0512/user-management/internal/config"
)

type Service interface {
	SendPasswordReset(ctx context.Context, to, username, resetURL string, expiresIn time.Duration) error
	SendPasswordChanged(ctx context.Context, to, username, ipAddress string, changedAt time.Time) error
}

// mailSender is satisfied by *gomail.Dialer
type mailSender interface {
	DialAndSend(m ...*gomail.Message) error
}

type smtpService struct {
	sender  mailSender
	from    string
	appName string
}

// NewSMTPService sends mail through the configured SMTP relay
func NewSMTPService(cfg config.SMTPConfig, appName string) Service {
	return newSMTPService(gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password), cfg.From, appName)
}

func newSMTPService(sender mailSender, from, appName string) *smtpService {
	return &smtpService{
		sender:  sender,
		from:    from,
		appName: appName,
	}
}

func (s *smtpService) SendPasswordReset(ctx context.Context, to, username, resetURL string, expiresIn time.Duration) error {
	body, err := render(resetTemplate, map[string]interface{}{
		"AppName":   s.appName,
		"Username":  username,
		"ResetURL":  resetURL,
		"ExpiresIn": int(expiresIn / time.Minute),
	})
	if err != nil {
		return err
	}
	return s.send(ctx, to, s.appName+" - Password reset request", body)
}

func (s *smtpService) SendPasswordChanged(ctx context.Context, to, username, ipAddress string, changedAt time.Time) error {
	if ipAddress == "" {
		ipAddress = "unknown"
	}
	body, err := render(changedTemplate, map[string]interface{}{
		"AppName":   s.appName,
		"Username":  username,
		"IPAddress": ipAddress,
		"ChangedAt": changedAt.UTC().Format(time.RFC1123),
	})
	if err != nil {
		return err
	}
	return s.send(ctx, to, s.appName+" - Your password was changed", body)
}

func (s *smtpService) send(ctx context.Context, to, subject, body string) error {
	// gomail has no context support; honour cancellation before dialing
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", body)

	if err := s.sender.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

func render(t *template.Template, data interface{}) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render %s: %w", t.Name(), err)
	}
	return buf.String(), nil
}

// logService stands in when SMTP is disabled. The reset link is logged so
// local setups can complete the flow.
type logService struct{}

func NewLogService() Service {
	return logService{}
}

func (logService) SendPasswordReset(ctx context.Context, to, username, resetURL string, expiresIn time.Duration) error {
	log.Info().
		Str("to", to).
		Str("reset_url", resetURL).
		Dur("expires_in", expiresIn).
		Msg("SMTP disabled, password reset email not sent")
	return nil
}

func (logService) SendPasswordChanged(ctx context.Context, to, username, ipAddress string, changedAt time.Time) error {
	log.Info().
		Str("to", to).
		Str("ip", ipAddress).
		Msg("SMTP disabled, password change notice not sent")
	return nil
}
