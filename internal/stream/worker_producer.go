package stream

import (
	"context"
	"time"

	"github.com/google/uuid"

	"apptrack_worker/core/domain"
	"apptrack_worker/core/port/out"
	"apptrack_worker/pkg/apperr"
)

// Producer publishes analyze-reply jobs onto the inbound stream.
type Producer struct {
	stream *RedisStream
}

func NewProducer(stream *RedisStream) *Producer {
	return &Producer{stream: stream}
}

var _ out.MessageProducer = (*Producer)(nil)

// Job is the stream envelope. The worker pool re-creates its message from
// this shape, so the field layout is shared wire format.
type Job struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Payload   map[string]any `json:"payload"`
	CreatedAt time.Time      `json:"created_at"`
}

// JobAnalyzeReply mirrors the worker pool's job type for reply analysis.
const JobAnalyzeReply = "reply.analyze"

// PublishInbound enqueues one reply for asynchronous analysis and returns
// the stream entry ID.
func (p *Producer) PublishInbound(ctx context.Context, msg *domain.InboundMessage) (string, error) {
	if err := msg.Validate(); err != nil {
		return "", err
	}
	if msg.ApplicationID == nil || *msg.ApplicationID == uuid.Nil {
		return "", apperr.MissingField("application_id")
	}

	job := &Job{
		ID:   uuid.New().String(),
		Type: JobAnalyzeReply,
		Payload: map[string]any{
			"application_id": msg.ApplicationID.String(),
			"message_id":     msg.MessageID,
			"subject":        msg.Subject,
			"body":           msg.Body,
			"sender_address": msg.SenderAddress,
			"received_at":    msg.ReceivedAt.Format(time.RFC3339Nano),
		},
		CreatedAt: time.Now().UTC(),
	}

	return p.stream.Publish(ctx, StreamInboundReplies, job)
}
