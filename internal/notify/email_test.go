package notify

import (
	"context"
	"errors"
	"strings"
	"testing"

	"timelogger/pkg/logging"
)

type fakeMailer struct {
	err        error
	calls      int
	gotTo      []string
	gotSubject string
	gotBody    string
}

func (m *fakeMailer) SendMail(to []string, subject, htmlBody string) error {
	m.calls++
	m.gotTo = to
	m.gotSubject = subject
	m.gotBody = htmlBody
	return m.err
}

func newTestEmailSender(mailer Mailer, recipients []string) *EmailSender {
	logger := logging.NewLoggerWithService("test")
	return NewEmailSender(EmailSenderConfig{
		Mailer:     mailer,
		Recipients: recipients,
		Resolver:   NewResolver(nil, logger),
		Logger:     logger,
	})
}

func TestEmailSendSuccess(t *testing.T) {
	mailer := &fakeMailer{}
	sender := newTestEmailSender(mailer, []string{"ops@example.com"})

	result := sender.Send(context.Background(), testRecord())

	if result.Status != StatusSent {
		t.Fatalf("expected sent, got %s", result.Status)
	}
	if got := result.Details["recipients"]; got != 1 {
		t.Fatalf("expected recipient count 1 in details, got %v", got)
	}
	if mailer.calls != 1 {
		t.Fatalf("expected one transport call, got %d", mailer.calls)
	}
	if !strings.Contains(mailer.gotSubject, "Acme Corp") || !strings.Contains(mailer.gotSubject, "2025-04-06") {
		t.Fatalf("unexpected subject %q", mailer.gotSubject)
	}
	if !strings.Contains(mailer.gotBody, "Acme Corp") {
		t.Fatal("expected rendered body to contain the customer name")
	}
}

func TestEmailSendNoRecipientsSkips(t *testing.T) {
	mailer := &fakeMailer{}
	sender := newTestEmailSender(mailer, nil)

	result := sender.Send(context.Background(), testRecord())

	if result.Status != StatusSkipped {
		t.Fatalf("expected skipped, got %s", result.Status)
	}
	if mailer.calls != 0 {
		t.Fatal("transport must not be called without recipients")
	}
}

func TestEmailSendIncompleteConfigSkips(t *testing.T) {
	sender := newTestEmailSender(nil, []string{"ops@example.com"})

	result := sender.Send(context.Background(), testRecord())

	if result.Status != StatusSkipped {
		t.Fatalf("expected skipped, got %s", result.Status)
	}
}

func TestEmailSendTransportFailure(t *testing.T) {
	mailer := &fakeMailer{err: errors.New("connection refused")}
	sender := newTestEmailSender(mailer, []string{"ops@example.com", "lead@example.com"})

	result := sender.Send(context.Background(), testRecord())

	if result.Status != StatusFailed {
		t.Fatalf("expected failed, got %s", result.Status)
	}
	errDetail, ok := result.Details["error"].(string)
	if !ok || !strings.Contains(errDetail, "connection refused") {
		t.Fatalf("expected error description in details, got %v", result.Details["error"])
	}
}

func TestEmailSendUnknownCustomerSubject(t *testing.T) {
	mailer := &fakeMailer{}
	sender := newTestEmailSender(mailer, []string{"ops@example.com"})

	rec := testRecord()
	rec.CustomerName = ""
	rec.MeetingDate = ""
	result := sender.Send(context.Background(), rec)

	if result.Status != StatusSent {
		t.Fatalf("expected sent, got %s", result.Status)
	}
	if !strings.Contains(mailer.gotSubject, "Unknown Client") || !strings.Contains(mailer.gotSubject, "Unknown Date") {
		t.Fatalf("unexpected subject %q", mailer.gotSubject)
	}
}
