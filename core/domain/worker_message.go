package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"apptrack_worker/pkg/apperr"
)

// InboundMessage is an already-extracted reply email handed to the analyzer.
// Ingestion (IMAP polling, webhook push) happens upstream; by the time a
// message reaches this core it is plain text plus metadata.
type InboundMessage struct {
	// MessageID is the provider's unique message identifier. It is the
	// idempotence key: the same MessageID is never applied twice.
	MessageID     string     `json:"message_id"`
	Subject       string     `json:"subject"`
	Body          string     `json:"body"`
	SenderAddress string     `json:"sender_address"`
	ReceivedAt    time.Time  `json:"received_at"`
	ApplicationID *uuid.UUID `json:"application_id,omitempty"`
}

// Validate rejects malformed input at the boundary instead of letting
// half-empty messages propagate into the pipeline.
func (m *InboundMessage) Validate() error {
	if m == nil {
		return apperr.ValidationFailed("message is nil")
	}
	if strings.TrimSpace(m.MessageID) == "" {
		return apperr.MissingField("message_id")
	}
	if strings.TrimSpace(m.Subject) == "" && strings.TrimSpace(m.Body) == "" {
		return apperr.ValidationFailed("message has neither subject nor body")
	}
	if m.ReceivedAt.IsZero() {
		return apperr.MissingField("received_at")
	}
	return nil
}

// CombinedText returns subject and body joined for keyword matching.
func (m *InboundMessage) CombinedText() string {
	return m.Subject + "\n" + m.Body
}
