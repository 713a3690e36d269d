package alerts

import (
	"context"

	"github.com/401-Nick/lra-alerts/internal/logger"
)

// LogNotifier writes notifications to the structured log instead of a
// broker. It is the fallback when no AMQP URL is configured, which keeps
// local development runs observable without infrastructure.
type LogNotifier struct {
	log *logger.Logger
}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier(log *logger.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

// Notify logs the notification and always succeeds.
func (n *LogNotifier) Notify(_ context.Context, notification Notification) error {
	n.log.Info("Notification (log-only delivery)", map[string]interface{}{
		"user_id":    notification.UserID,
		"event":      string(notification.Event),
		"listing_id": notification.ListingID,
		"message":    notification.Message,
	})
	return nil
}
