package notifications

import (
	"context"

	"github.com/ridelinkhq/ridelink-backend/pkg/logger"
)

// Sender delivers a message to a phone number. Implementations wrap an SMS
// provider; the default just logs, which is enough for dev and tests.
type Sender interface {
	Send(ctx context.Context, phone, message string) error
}

// LogSender writes outbound messages to the structured log instead of a
// carrier. Used when no SMS provider is configured.
type LogSender struct {
	Logger *logger.Logger
}

func (s LogSender) Send(ctx context.Context, phone, message string) error {
	if s.Logger != nil {
		ctx = s.Logger.WithFields(ctx, map[string]any{
			"phone":   "[REDACTED]",
			"message": message,
		})
		s.Logger.Info(ctx, "notification dispatched")
	}
	return nil
}
