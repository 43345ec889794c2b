package outbox

import (
	"context"

	"go.uber.org/zap"
)

// Sender delivers one message type. Real providers (SMTP relay, SMS
// gateway) live outside this package; each registers itself under the
// message type it handles.
type Sender interface {
	Type() string
	Send(ctx context.Context, msg Message) error
}

// logSender writes the message to the log instead of delivering it. Used in
// local development where no provider credentials exist.
type logSender struct {
	messageType string
	log         *zap.Logger
}

func NewLogSender(messageType string, log *zap.Logger) Sender {
	return &logSender{messageType: messageType, log: log}
}

func (s *logSender) Type() string { return s.messageType }

func (s *logSender) Send(_ context.Context, msg Message) error {
	s.log.Info("delivering message",
		zap.String("id", msg.ID),
		zap.String("type", msg.Type),
		zap.String("recipient", msg.Recipient),
		zap.String("subject", msg.Subject))
	return nil
}
