package notify

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"timelogger/pkg/logging"
	"timelogger/pkg/models"
)

// Mailer is the SMTP transport used by the email sender. The production
// implementation is pkg/email.Sender; tests inject fakes.
type Mailer interface {
	SendMail(to []string, subject, htmlBody string) error
}

// EmailSender delivers meeting notifications over SMTP.
type EmailSender struct {
	mailer       Mailer
	recipients   []string
	templateName string
	resolver     *Resolver
	logger       logging.Logger
}

// EmailSenderConfig configures an EmailSender. Mailer may be nil when the
// SMTP settings are incomplete; the sender then skips instead of failing.
type EmailSenderConfig struct {
	Mailer       Mailer
	Recipients   []string
	TemplateName string
	Resolver     *Resolver
	Logger       logging.Logger
}

func NewEmailSender(cfg EmailSenderConfig) *EmailSender {
	name := cfg.TemplateName
	if name == "" {
		name = TemplateMeetingNotification
	}
	return &EmailSender{
		mailer:       cfg.Mailer,
		recipients:   cfg.Recipients,
		templateName: name,
		resolver:     cfg.Resolver,
		logger:       cfg.Logger,
	}
}

func (s *EmailSender) Channel() Channel { return ChannelEmail }

// Send renders the meeting notification template and delivers it to the
// configured recipients. Missing configuration yields skipped, transport
// errors yield failed; no error ever propagates to the caller.
func (s *EmailSender) Send(ctx context.Context, rec models.MeetingRecord) ChannelResult {
	result := ChannelResult{
		Channel:   ChannelEmail,
		Status:    StatusSkipped,
		Details:   make(map[string]interface{}),
		Timestamp: time.Now().UTC(),
	}

	if len(s.recipients) == 0 {
		s.logger.Warn("No recipient emails configured, skipping notification")
		result.Details["message"] = "No recipient emails configured"
		return result
	}
	if s.mailer == nil {
		s.logger.Warn("Email configuration incomplete, skipping notification")
		result.Details["message"] = "Email configuration incomplete"
		return result
	}

	customer := rec.CustomerName
	if customer == "" {
		customer = "Unknown Client"
	}
	meetingDate := rec.MeetingDate
	if meetingDate == "" {
		meetingDate = "Unknown Date"
	}
	subject := fmt.Sprintf("New Meeting Log: %s on %s", customer, meetingDate)

	var body bytes.Buffer
	if err := s.resolver.Resolve(s.templateName).Execute(&body, rec); err != nil {
		s.logger.WithError(err).Error("Failed to render meeting notification template")
		result.Status = StatusFailed
		result.Details["error"] = fmt.Sprintf("render template: %v", err)
		return result
	}

	if err := s.mailer.SendMail(s.recipients, subject, body.String()); err != nil {
		s.logger.WithFields(logging.Fields{
			"error":      err.Error(),
			"recipients": len(s.recipients),
		}).Error("Failed to send meeting notification email")
		result.Status = StatusFailed
		result.Details["error"] = err.Error()
		return result
	}

	s.logger.WithFields(logging.Fields{
		"recipients": len(s.recipients),
		"customer":   customer,
	}).Info("Meeting notification email sent")

	result.Status = StatusSent
	result.Details["recipients"] = len(s.recipients)
	return result
}
