package message

import (
	"context"
	"log/slog"
)

// LogMessenger is the default messenger. It records outgoing messages in the
// log instead of delivering them, which is what development and test
// deployments want.
type LogMessenger struct {
	logger *slog.Logger
}

func NewLogMessenger(logger *slog.Logger) *LogMessenger {
	return &LogMessenger{logger: logger.With("module", "log_messenger")}
}

func (m *LogMessenger) SendEmail(ctx context.Context, organizationID, to, subject, body string) error {
	m.logger.InfoContext(ctx, "Email (not delivered)",
		"organization_id", organizationID,
		"to", to,
		"subject", subject,
		"body_length", len(body),
	)

	return nil
}

func (m *LogMessenger) SendSMS(ctx context.Context, organizationID, to, body string) error {
	m.logger.InfoContext(ctx, "SMS (not delivered)",
		"organization_id", organizationID,
		"to", to,
		"body_length", len(body),
	)

	return nil
}
