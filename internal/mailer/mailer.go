// Package mailer delivers the verification and password-reset messages
// over SMTP.  When no SMTP host is configured the constructor returns a
// log-only sender so local development works without a mail relay.
package mailer

import (
	"context"
	"fmt"
	"log"

	gomail "gopkg.in/gomail.v2"
)

// Config mirrors the SMTP section of the service configuration.
type Config struct {
	Host     string
	Port     int
	User     string
	Pass     string
	From     string
	BaseURL  string // public URL prefix for the links embedded in mail
}

// Sender is what the auth engine needs from a mailer.
type Sender interface {
	SendVerification(ctx context.Context, to, token string) error
	SendPasswordReset(ctx context.Context, to, token string) error
}

// SMTP sends templated messages through a mail relay.
type SMTP struct {
	dialer *gomail.Dialer
	cfg    Config
}

// New returns an SMTP mailer, or a log-only fallback when cfg.Host is
// empty.
func New(cfg Config) Sender {
	if cfg.Host == "" {
		log.Printf("mailer: no SMTP host configured, falling back to log-only delivery")
		return &LogOnly{BaseURL: cfg.BaseURL}
	}
	return &SMTP{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Pass),
		cfg:    cfg,
	}
}

func (m *SMTP) SendVerification(_ context.Context, to, token string) error {
	url := fmt.Sprintf("%s/auth/verify-email?token=%s", m.cfg.BaseURL, token)
	body := fmt.Sprintf(
		`<p>Welcome! Confirm your email address to activate your account.</p>
<p><a href=%q>Verify my email</a></p>
<p>The link expires shortly. If you did not register, ignore this message.</p>`, url)
	return m.send(to, "Verify Your Email", body)
}

func (m *SMTP) SendPasswordReset(_ context.Context, to, token string) error {
	url := fmt.Sprintf("%s/auth/reset-password?token=%s", m.cfg.BaseURL, token)
	body := fmt.Sprintf(
		`<p>A password reset was requested for your account.</p>
<p><a href=%q>Reset my password</a></p>
<p>The link expires shortly. If you did not request this, ignore this message.</p>`, url)
	return m.send(to, "Reset Your Password", body)
}

func (m *SMTP) send(to, subject, htmlBody string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.cfg.From)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", htmlBody)
	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("smtp send to %s: %w", to, err)
	}
	log.Printf("mailer: sent %q to %s", subject, to)
	return nil
}

// LogOnly writes the would-be mail to the log instead of sending it.
type LogOnly struct{ BaseURL string }

func (m *LogOnly) SendVerification(_ context.Context, to, token string) error {
	log.Printf("mailer: [dev] verification link for %s: %s/auth/verify-email?token=%s", to, m.BaseURL, token)
	return nil
}

func (m *LogOnly) SendPasswordReset(_ context.Context, to, token string) error {
	log.Printf("mailer: [dev] password reset link for %s: %s/auth/reset-password?token=%s", to, m.BaseURL, token)
	return nil
}
