// Package notify delivers status-change notifications to external consumers.
package notify

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"apptrack_worker/core/domain"
	"apptrack_worker/core/port/out"
)

// =============================================================================
// Webhook Dispatcher
// =============================================================================

// WebhookDispatcher implements out.NotificationDispatcher by POSTing a JSON
// event to a configured endpoint. Delivery is best effort: the caller logs
// failures but never fails the analysis over them.
type WebhookDispatcher struct {
	url    string
	client *http.Client
	log    zerolog.Logger
}

// NewWebhookDispatcher creates a dispatcher for the given endpoint.
func NewWebhookDispatcher(url string, timeout time.Duration, log zerolog.Logger) *WebhookDispatcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookDispatcher{
		url:    url,
		client: &http.Client{Timeout: timeout},
		log:    log.With().Str("component", "webhook_dispatcher").Logger(),
	}
}

var _ out.NotificationDispatcher = (*WebhookDispatcher)(nil)

// statusChangeEvent is the webhook payload.
type statusChangeEvent struct {
	ApplicationID string    `json:"application_id"`
	OldStatus     string    `json:"old_status"`
	NewStatus     string    `json:"new_status"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// NotifyStatusChange posts one status-change event.
func (d *WebhookDispatcher) NotifyStatusChange(ctx context.Context, applicationID uuid.UUID, oldStatus, newStatus domain.ApplicationStatus) error {
	event := statusChangeEvent{
		ApplicationID: applicationID.String(),
		OldStatus:     string(oldStatus),
		NewStatus:     string(newStatus),
		OccurredAt:    time.Now().UTC(),
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal status change event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("deliver webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook endpoint returned %d", resp.StatusCode)
	}

	d.log.Debug().
		Str("application_id", event.ApplicationID).
		Str("new_status", event.NewStatus).
		Msg("status change delivered")

	return nil
}

// =============================================================================
// Nop Dispatcher
// =============================================================================

// NopDispatcher discards all notifications. Used when no webhook endpoint is
// configured.
type NopDispatcher struct{}

func NewNopDispatcher() *NopDispatcher { return &NopDispatcher{} }

var _ out.NotificationDispatcher = (*NopDispatcher)(nil)

func (*NopDispatcher) NotifyStatusChange(context.Context, uuid.UUID, domain.ApplicationStatus, domain.ApplicationStatus) error {
	return nil
}
