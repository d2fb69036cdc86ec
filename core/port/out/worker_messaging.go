package out

import (
	"context"

	"apptrack_worker/core/domain"
)

// MessageProducer publishes inbound reply events for the batch worker.
type MessageProducer interface {
	PublishInbound(ctx context.Context, msg *domain.InboundMessage) (string, error)
}
