package worker

import (
	"context"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"apptrack_worker/core/service/analysis"
	"apptrack_worker/pkg/apperr"
)

type Handler struct {
	orchestrator *analysis.Orchestrator
	log          zerolog.Logger
}

func NewHandler(orchestrator *analysis.Orchestrator, log zerolog.Logger) *Handler {
	return &Handler{
		orchestrator: orchestrator,
		log:          log.With().Str("component", "worker_handler").Logger(),
	}
}

func (h *Handler) Process(ctx context.Context, msg *Message) error {
	h.log.Debug().Str("job_id", msg.ID).Str("job_type", msg.Type).Msg("processing message")

	switch msg.Type {
	case JobAnalyzeReply:
		return h.processAnalyzeReply(ctx, msg)

	default:
		h.log.Warn().Str("job_type", msg.Type).Msg("unknown job type")
		return nil
	}
}

func (h *Handler) processAnalyzeReply(ctx context.Context, msg *Message) error {
	payload, err := ParsePayload[AnalyzeReplyPayload](msg)
	if err != nil {
		return apperr.InvalidInput("payload", "malformed analyze-reply payload")
	}

	applicationID, err := uuid.Parse(payload.ApplicationID)
	if err != nil {
		return apperr.InvalidInput("application_id", "not a valid UUID")
	}

	_, _, err = h.orchestrator.AnalyzeAndApply(ctx, applicationID, payload.ToDomain())
	return err
}

func ParsePayload[T any](msg *Message) (*T, error) {
	var payload T
	data, err := json.Marshal(msg.Payload)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}
