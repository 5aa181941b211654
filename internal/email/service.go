package email

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"

	"github.com/jwalitptl/scheduler-api/internal/config"
	"github.com/jwalitptl/scheduler-api/pkg/logger"
)

type Service interface {
	SendWaitlistContact(ctx context.Context, to string, attempt, maxAttempts int) error
	SendWaitlistExpired(ctx context.Context, to string) error
	SendCustom(ctx context.Context, to string, subject string, content string) error
}

type smtpService struct {
	dialer *gomail.Dialer
	from   string
	logger *logger.Logger
}

func NewSMTPService(cfg config.SMTPConfig, logger *logger.Logger) Service {
	return &smtpService{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
		logger: logger,
	}
}

func (s *smtpService) SendWaitlistContact(ctx context.Context, to string, attempt, maxAttempts int) error {
	subject := "An appointment slot may be available"
	content := fmt.Sprintf(
		"A slot matching your request may open up soon. Please confirm you still need the appointment. This is contact %d of %d.",
		attempt, maxAttempts)
	return s.SendCustom(ctx, to, subject, content)
}

func (s *smtpService) SendWaitlistExpired(ctx context.Context, to string) error {
	subject := "Your waitlist request has expired"
	content := "We could not reach you after repeated attempts, so your waitlist request has been closed. Please submit a new request if you still need an appointment."
	return s.SendCustom(ctx, to, subject, content)
}

func (s *smtpService) SendCustom(ctx context.Context, to string, subject string, content string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", content)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email to %s: %w", to, err)
	}
	s.logger.Debug("email sent", "to", to, "subject", subject)
	return nil
}
