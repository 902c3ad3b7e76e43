package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/boddenberg/grambank-ledger-go/internal/domain"
)

// LogNotifier writes notifications to the log instead of delivering them.
// OTP bodies are never logged.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (l *LogNotifier) Send(_ context.Context, n *domain.Notification) error {
	fields := []zap.Field{
		zap.String("notification_id", n.ID),
		zap.String("kind", string(n.Kind)),
		zap.String("account_id", n.AccountID),
		zap.String("to", n.To),
	}
	if n.Kind != domain.NotifyOTP {
		fields = append(fields, zap.String("body", n.Body))
	}
	l.logger.Info("notification", fields...)
	return nil
}
