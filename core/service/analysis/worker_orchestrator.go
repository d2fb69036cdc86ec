// Package analysis wires the classification pipeline and the state updater
// into the end-to-end reply-analysis flow.
package analysis

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"apptrack_worker/core/domain"
	"apptrack_worker/core/port/out"
	"apptrack_worker/core/service/classification"
	"apptrack_worker/core/service/updater"
)

// =============================================================================
// Analysis Orchestrator
// =============================================================================

// archiveTimeout bounds the fire-and-forget raw-message archive write.
const archiveTimeout = 5 * time.Second

// Orchestrator runs the full flow for one inbound reply: validate, classify,
// resolve the action, and apply it to the application aggregate.
type Orchestrator struct {
	arbiter  *classification.ConfidenceArbiter
	resolver *classification.ActionResolver
	updater  *updater.StateUpdater
	archive  out.MessageArchive
	locks    *keyLock
	log      zerolog.Logger
}

// NewOrchestrator creates an orchestrator. The archive may be nil, in which
// case raw messages are not retained.
func NewOrchestrator(arbiter *classification.ConfidenceArbiter, resolver *classification.ActionResolver, upd *updater.StateUpdater, archive out.MessageArchive, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		arbiter:  arbiter,
		resolver: resolver,
		updater:  upd,
		archive:  archive,
		locks:    newKeyLock(),
		log:      log.With().Str("component", "orchestrator").Logger(),
	}
}

// Analyze classifies a message and resolves its action without touching any
// application state. This is the read-only half of the flow, also exposed
// for ad-hoc analysis over HTTP.
func (o *Orchestrator) Analyze(ctx context.Context, msg *domain.InboundMessage) (*domain.AnalysisResult, error) {
	if err := msg.Validate(); err != nil {
		return nil, err
	}

	result := o.arbiter.Classify(ctx, msg)
	o.resolver.Resolve(result)

	o.log.Info().
		Str("message_id", msg.MessageID).
		Str("category", string(result.Category)).
		Float64("confidence", result.Confidence).
		Str("source", string(result.Source)).
		Str("action", string(result.ActionType)).
		Bool("requires_action", result.RequiresAction).
		Msg("message analyzed")

	return result, nil
}

// AnalyzeAndApply classifies a message and applies the outcome to the given
// application. Application of results is serialized per application ID, so
// concurrent messages for the same application cannot interleave their
// load-modify-save cycles on this instance. The result is applied even when
// it requires no action, so the analysis lands in the audit trail.
func (o *Orchestrator) AnalyzeAndApply(ctx context.Context, applicationID uuid.UUID, msg *domain.InboundMessage) (*domain.AnalysisResult, *domain.UpdateResult, error) {
	if err := msg.Validate(); err != nil {
		return nil, nil, err
	}

	o.archiveAsync(msg)

	result, err := o.Analyze(ctx, msg)
	if err != nil {
		return nil, nil, err
	}

	key := applicationID.String()
	o.locks.Lock(key)
	defer o.locks.Unlock(key)

	update, err := o.updater.Apply(ctx, applicationID, result, msg.MessageID)
	if err != nil {
		return result, update, err
	}

	o.log.Info().
		Str("application_id", key).
		Str("message_id", msg.MessageID).
		Strs("actions_taken", update.ActionsTaken).
		Msg("analysis applied")

	return result, update, nil
}

// archiveAsync stores the raw message off the hot path. Archive failures are
// logged and never affect the analysis outcome.
func (o *Orchestrator) archiveAsync(msg *domain.InboundMessage) {
	if o.archive == nil {
		return
	}
	m := *msg
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), archiveTimeout)
		defer cancel()
		if err := o.archive.Archive(ctx, &m); err != nil {
			o.log.Warn().Err(err).Str("message_id", m.MessageID).Msg("message archive failed")
		}
	}()
}
