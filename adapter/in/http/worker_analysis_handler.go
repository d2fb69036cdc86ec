package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"apptrack_worker/adapter/out/persistence"
	"apptrack_worker/core/domain"
	"apptrack_worker/core/port/out"
	"apptrack_worker/core/service/analysis"
	"apptrack_worker/pkg/apperr"
)

// =============================================================================
// Analysis Handler
// =============================================================================

// AnalysisHandler exposes the reply-analysis flow over HTTP: a synchronous
// analyze endpoint for ad-hoc inspection, a synchronous apply endpoint, and
// an asynchronous ingest endpoint that enqueues onto the worker stream.
type AnalysisHandler struct {
	orchestrator *analysis.Orchestrator
	producer     out.MessageProducer
	store        *persistence.ApplicationRepository
	log          zerolog.Logger
}

func NewAnalysisHandler(orchestrator *analysis.Orchestrator, producer out.MessageProducer, store *persistence.ApplicationRepository, log zerolog.Logger) *AnalysisHandler {
	return &AnalysisHandler{
		orchestrator: orchestrator,
		producer:     producer,
		store:        store,
		log:          log.With().Str("component", "analysis_handler").Logger(),
	}
}

func (h *AnalysisHandler) Register(app *fiber.App) {
	v1 := app.Group("/api/v1")

	v1.Post("/analyze", h.Analyze)
	v1.Post("/applications", h.CreateApplication)
	v1.Get("/applications/:id", h.GetApplication)
	v1.Post("/applications/:id/analyze", h.AnalyzeAndApply)
	v1.Post("/applications/:id/replies", h.EnqueueReply)
}

// replyRequest is the request body shared by the analyze endpoints.
type replyRequest struct {
	MessageID     string    `json:"message_id"`
	Subject       string    `json:"subject"`
	Body          string    `json:"body"`
	SenderAddress string    `json:"sender_address"`
	ReceivedAt    time.Time `json:"received_at"`
}

func (r *replyRequest) toDomain() *domain.InboundMessage {
	receivedAt := r.ReceivedAt
	if receivedAt.IsZero() {
		receivedAt = time.Now().UTC()
	}
	return &domain.InboundMessage{
		MessageID:     r.MessageID,
		Subject:       r.Subject,
		Body:          r.Body,
		SenderAddress: r.SenderAddress,
		ReceivedAt:    receivedAt,
	}
}

// Analyze classifies a message without touching application state.
func (h *AnalysisHandler) Analyze(c *fiber.Ctx) error {
	var req replyRequest
	if err := c.BodyParser(&req); err != nil {
		return AppErrorResponse(c, apperr.InvalidInput("body", "malformed JSON"))
	}

	result, err := h.orchestrator.Analyze(c.Context(), req.toDomain())
	if err != nil {
		return AppErrorResponse(c, err)
	}

	return SuccessResponse(c, result)
}

// createApplicationRequest is the body for registering a new application.
type createApplicationRequest struct {
	Company  string `json:"company"`
	Position string `json:"position"`
}

// CreateApplication registers a new application in the applied state so
// replies can be attributed to it.
func (h *AnalysisHandler) CreateApplication(c *fiber.Ctx) error {
	var req createApplicationRequest
	if err := c.BodyParser(&req); err != nil {
		return AppErrorResponse(c, apperr.InvalidInput("body", "malformed JSON"))
	}

	app := &domain.Application{
		Company:  req.Company,
		Position: req.Position,
	}
	if err := h.store.Create(c.Context(), app); err != nil {
		return AppErrorResponse(c, apperr.DatabaseError("create application", err))
	}

	h.log.Info().
		Str("application_id", app.ID.String()).
		Str("company", app.Company).
		Msg("application created")

	return c.Status(fiber.StatusCreated).JSON(APIResponse{
		Success:   true,
		Data:      app,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// GetApplication returns the application aggregate with its histories.
func (h *AnalysisHandler) GetApplication(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return AppErrorResponse(c, apperr.InvalidInput("id", "not a valid UUID"))
	}

	app, err := h.store.Get(c.Context(), id)
	if err != nil {
		if err == out.ErrApplicationNotFound {
			return AppErrorResponse(c, apperr.NotFound("application"))
		}
		return AppErrorResponse(c, apperr.DatabaseError("get application", err))
	}

	return SuccessResponse(c, app)
}

// AnalyzeAndApply classifies a message and applies the outcome synchronously.
func (h *AnalysisHandler) AnalyzeAndApply(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return AppErrorResponse(c, apperr.InvalidInput("id", "not a valid UUID"))
	}

	var req replyRequest
	if err := c.BodyParser(&req); err != nil {
		return AppErrorResponse(c, apperr.InvalidInput("body", "malformed JSON"))
	}

	result, update, err := h.orchestrator.AnalyzeAndApply(c.Context(), id, req.toDomain())
	if err != nil {
		return AppErrorResponse(c, err)
	}

	return SuccessResponse(c, fiber.Map{
		"analysis": result,
		"update":   update,
	})
}

// EnqueueReply accepts a reply for asynchronous analysis by the worker pool.
func (h *AnalysisHandler) EnqueueReply(c *fiber.Ctx) error {
	if h.producer == nil {
		return ErrorResponse(c, fiber.StatusServiceUnavailable, apperr.CodeInternalError, "async ingestion is not configured")
	}

	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return AppErrorResponse(c, apperr.InvalidInput("id", "not a valid UUID"))
	}

	var req replyRequest
	if err := c.BodyParser(&req); err != nil {
		return AppErrorResponse(c, apperr.InvalidInput("body", "malformed JSON"))
	}

	msg := req.toDomain()
	msg.ApplicationID = &id

	entryID, err := h.producer.PublishInbound(c.Context(), msg)
	if err != nil {
		return AppErrorResponse(c, err)
	}

	h.log.Info().
		Str("application_id", id.String()).
		Str("message_id", msg.MessageID).
		Str("entry_id", entryID).
		Msg("reply enqueued for analysis")

	return AcceptedResponse(c, fiber.Map{
		"entry_id":   entryID,
		"message_id": msg.MessageID,
	})
}
