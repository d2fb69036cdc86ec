package out

import (
	"context"

	"apptrack_worker/core/domain"
)

// MessageArchive stores raw inbound messages for audit. Archiving is
// best-effort and idempotent by message ID; a failed archive never blocks
// analysis.
type MessageArchive interface {
	Archive(ctx context.Context, msg *domain.InboundMessage) error
}
