package notifications

import (
	"context"
	"log/slog"
)

// LogNotifier is the local-dev stand-in for FCM. It logs what would
// have been sent and succeeds.
type LogNotifier struct{}

func (n *LogNotifier) SendPushNotification(ctx context.Context, patientID string, title, body string, tokens []string, data map[string]string) error {
	slog.Info("MOCK NOTIFICATION",
		"patient_id", patientID,
		"title", title,
		"body", body,
		"token_count", len(tokens),
	)
	return nil
}
