// Package message provides the email and SMS notification nodes. Delivery
// goes through a protocol.Messenger so providers can be swapped per
// deployment; the default messenger only logs.
package message

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/atlasfit/automation/pkg/models"
	"github.com/atlasfit/automation/pkg/protocol"
	"github.com/atlasfit/automation/pkg/template"
)

var (
	// ErrRecipientRequired is returned when the node configuration has no recipient.
	ErrRecipientRequired = errors.New("missing required field 'to'")
	// ErrBodyRequired is returned when the node configuration has no body.
	ErrBodyRequired = errors.New("missing required field 'body'")
)

// EmailNode sends a templated email to a single recipient.
type EmailNode struct {
	To      string
	Subject string
	Body    string

	messenger protocol.Messenger
}

// NewEmailNode creates an email node from configuration.
func NewEmailNode(config map[string]any, messenger protocol.Messenger) (*EmailNode, error) {
	to, ok := config["to"].(string)
	if !ok || to == "" {
		return nil, ErrRecipientRequired
	}

	body, ok := config["body"].(string)
	if !ok || body == "" {
		return nil, ErrBodyRequired
	}

	subject, _ := config["subject"].(string)

	return &EmailNode{To: to, Subject: subject, Body: body, messenger: messenger}, nil
}

// Execute renders the recipient, subject and body templates and hands the
// message to the messenger.
func (n *EmailNode) Execute(ctx context.Context, executionCtx *models.ExecutionContext, logger *slog.Logger) (*protocol.NodeResult, error) {
	logger = logger.With("module", "email_node")

	to, err := template.RenderString(n.To, executionCtx)
	if err != nil {
		return nil, fmt.Errorf("failed to render recipient template: %w", err)
	}

	subject, err := template.RenderString(n.Subject, executionCtx)
	if err != nil {
		return nil, fmt.Errorf("failed to render subject template: %w", err)
	}

	body, err := template.RenderString(n.Body, executionCtx)
	if err != nil {
		return nil, fmt.Errorf("failed to render body template: %w", err)
	}

	err = n.messenger.SendEmail(ctx, executionCtx.OrganizationID, to, subject, body)
	if err != nil {
		return nil, fmt.Errorf("email delivery failed: %w", err)
	}

	logger.InfoContext(ctx, "Email sent", "to", to)

	return &protocol.NodeResult{
		Output: map[string]any{
			"channel": "email",
			"to":      to,
			"subject": subject,
		},
	}, nil
}
