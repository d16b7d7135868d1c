package file

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/atlasfit/automation/pkg/models"
	"github.com/atlasfit/automation/pkg/persistence"
)

// webhookDocument is the on-disk shape. The model hides the secret from JSON
// responses; the store still has to keep it.
type webhookDocument struct {
	*models.Webhook

	Secret string `json:"secret"`
}

// WebhookRepository stores webhooks as one JSON document per webhook.
type WebhookRepository struct {
	root string
	mu   sync.Mutex
}

func NewWebhookRepository(root string) *WebhookRepository {
	return &WebhookRepository{root: root}
}

func (r *WebhookRepository) path(organizationID, webhookID string) string {
	return filepath.Join(r.root, "organizations", organizationID, "webhooks", webhookID+".json")
}

func (r *WebhookRepository) WebhookByID(_ context.Context, organizationID, webhookID string) (*models.Webhook, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.load(organizationID, webhookID)
}

func (r *WebhookRepository) load(organizationID, webhookID string) (*models.Webhook, error) {
	doc := webhookDocument{Webhook: &models.Webhook{}}

	found, err := readDocument(r.path(organizationID, webhookID), &doc)
	if err != nil {
		return nil, persistence.NewStoreError("WebhookByID", webhookID, err)
	}

	if !found {
		return nil, persistence.NewStoreError("WebhookByID", webhookID, persistence.ErrWebhookNotFound)
	}

	doc.Webhook.Secret = doc.Secret

	return doc.Webhook, nil
}

func (r *WebhookRepository) SaveWebhook(_ context.Context, webhook *models.Webhook) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.save(webhook)
}

func (r *WebhookRepository) save(webhook *models.Webhook) error {
	now := time.Now().UTC()
	if webhook.CreatedAt.IsZero() {
		webhook.CreatedAt = now
	}

	webhook.UpdatedAt = now

	doc := webhookDocument{Webhook: webhook, Secret: webhook.Secret}

	err := writeDocument(r.path(webhook.OrganizationID, webhook.ID), &doc)
	if err != nil {
		return persistence.NewStoreError("SaveWebhook", webhook.ID, err)
	}

	return nil
}

// RecordWebhookRequest increments total_requests and stamps last_triggered_at.
// The read-modify-write runs under the repository mutex.
func (r *WebhookRepository) RecordWebhookRequest(_ context.Context, organizationID, webhookID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	webhook, err := r.load(organizationID, webhookID)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	webhook.TotalRequests++
	webhook.LastTriggeredAt = &now

	return r.save(webhook)
}

// RecordWebhookOutcome folds one finished execution into the webhook's
// counters. The running mean is weighted by completed-execution count:
// TotalRequests also counts requests that never produced an execution.
func (r *WebhookRepository) RecordWebhookOutcome(_ context.Context, organizationID, webhookID string, success bool, durationMs int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	webhook, err := r.load(organizationID, webhookID)
	if err != nil {
		return err
	}

	completed := webhook.SuccessfulExecutions + webhook.FailedExecutions
	webhook.AvgProcessingMs = runningMean(webhook.AvgProcessingMs, completed, durationMs)

	if success {
		webhook.SuccessfulExecutions++
	} else {
		webhook.FailedExecutions++
	}

	return r.save(webhook)
}

// runningMean folds one new sample into a weighted mean over count samples.
func runningMean(oldAvg float64, count, sample int64) float64 {
	return ((oldAvg * float64(count)) + float64(sample)) / float64(count+1)
}
