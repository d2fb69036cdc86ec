package out

import (
	"context"

	"github.com/google/uuid"

	"apptrack_worker/core/domain"
)

// NotificationDispatcher delivers status-change notifications.
// Dispatch is fire-and-forget from the updater's point of view: failures
// are logged and never propagated to the caller of apply.
type NotificationDispatcher interface {
	NotifyStatusChange(ctx context.Context, applicationID uuid.UUID, oldStatus, newStatus domain.ApplicationStatus) error
}
