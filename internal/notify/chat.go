package notify

import (
	"context"
	"time"

	"timelogger/pkg/logging"
	"timelogger/pkg/models"
)

// ChatSender is a placeholder for the chat-webhook channel. It exists so the
// manager's fan-out stays uniform, but it never performs network I/O: every
// send resolves to a failed result flagged not_implemented.
type ChatSender struct {
	webhookURL string
	logger     logging.Logger
}

func NewChatSender(webhookURL string, logger logging.Logger) *ChatSender {
	return &ChatSender{webhookURL: webhookURL, logger: logger}
}

func (s *ChatSender) Channel() Channel { return ChannelChat }

func (s *ChatSender) Send(ctx context.Context, rec models.MeetingRecord) ChannelResult {
	s.logger.WithField("webhook_configured", s.webhookURL != "").Warn("Chat notifications requested but not implemented")
	return ChannelResult{
		Channel: ChannelChat,
		Status:  StatusFailed,
		Details: map[string]interface{}{
			"not_implemented":    true,
			"webhook_configured": s.webhookURL != "",
			"message":            "Chat notifications not implemented yet",
		},
		Timestamp: time.Now().UTC(),
	}
}
