package worker

import (
	"time"

	"github.com/google/uuid"

	"apptrack_worker/core/domain"
)

// JobType represents the type of a job.
type JobType = string

// Job types
const (
	JobAnalyzeReply JobType = "reply.analyze"
)

type Message struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Payload   map[string]any `json:"payload"`
	CreatedAt time.Time      `json:"created_at"`
	Retries   int            `json:"retries"`
}

func NewMessage(jobType string, payload map[string]any) *Message {
	return &Message{
		ID:        uuid.New().String(),
		Type:      jobType,
		Payload:   payload,
		CreatedAt: time.Now(),
		Retries:   0,
	}
}

// AnalyzeReplyPayload carries one inbound reply and the application it
// belongs to.
type AnalyzeReplyPayload struct {
	ApplicationID string    `json:"application_id"`
	MessageID     string    `json:"message_id"`
	Subject       string    `json:"subject"`
	Body          string    `json:"body"`
	SenderAddress string    `json:"sender_address,omitempty"`
	ReceivedAt    time.Time `json:"received_at"`
}

// ToDomain converts the payload into the domain message.
func (p *AnalyzeReplyPayload) ToDomain() *domain.InboundMessage {
	return &domain.InboundMessage{
		MessageID:     p.MessageID,
		Subject:       p.Subject,
		Body:          p.Body,
		SenderAddress: p.SenderAddress,
		ReceivedAt:    p.ReceivedAt,
	}
}
