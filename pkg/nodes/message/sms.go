package message

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/atlasfit/automation/pkg/models"
	"github.com/atlasfit/automation/pkg/protocol"
	"github.com/atlasfit/automation/pkg/template"
)

// MaxSMSLength caps the rendered SMS body; longer messages are truncated
// rather than rejected.
const MaxSMSLength = 1600

// SMSNode sends a templated text message to a single recipient.
type SMSNode struct {
	To   string
	Body string

	messenger protocol.Messenger
}

// NewSMSNode creates an SMS node from configuration.
func NewSMSNode(config map[string]any, messenger protocol.Messenger) (*SMSNode, error) {
	to, ok := config["to"].(string)
	if !ok || to == "" {
		return nil, ErrRecipientRequired
	}

	body, ok := config["body"].(string)
	if !ok || body == "" {
		return nil, ErrBodyRequired
	}

	return &SMSNode{To: to, Body: body, messenger: messenger}, nil
}

// Execute renders the recipient and body templates and hands the message to
// the messenger.
func (n *SMSNode) Execute(ctx context.Context, executionCtx *models.ExecutionContext, logger *slog.Logger) (*protocol.NodeResult, error) {
	logger = logger.With("module", "sms_node")

	to, err := template.RenderString(n.To, executionCtx)
	if err != nil {
		return nil, fmt.Errorf("failed to render recipient template: %w", err)
	}

	body, err := template.RenderString(n.Body, executionCtx)
	if err != nil {
		return nil, fmt.Errorf("failed to render body template: %w", err)
	}

	truncated := false
	if len(body) > MaxSMSLength {
		body = body[:MaxSMSLength]
		truncated = true
	}

	err = n.messenger.SendSMS(ctx, executionCtx.OrganizationID, to, body)
	if err != nil {
		return nil, fmt.Errorf("sms delivery failed: %w", err)
	}

	logger.InfoContext(ctx, "SMS sent", "to", to, "truncated", truncated)

	return &protocol.NodeResult{
		Output: map[string]any{
			"channel":   "sms",
			"to":        to,
			"truncated": truncated,
		},
	}, nil
}
