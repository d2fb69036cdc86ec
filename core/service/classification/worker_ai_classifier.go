package classification

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"apptrack_worker/core/domain"
	"apptrack_worker/core/port/out"
)

// =============================================================================
// AI Classifier (probabilistic stage)
// =============================================================================

// AIClassifier adapts the external text-classification capability to the
// pipeline. It bounds every call with a timeout, validates the returned
// category against the closed taxonomy, and absorbs all failures: it never
// returns an error to the caller, only an Unknown result whose reasoning
// field describes what went wrong.
type AIClassifier struct {
	classifier out.TextClassifier
	timeout    time.Duration
	log        zerolog.Logger
}

// NewAIClassifier creates an AI classifier. A zero timeout defaults to 20s.
func NewAIClassifier(classifier out.TextClassifier, timeout time.Duration, log zerolog.Logger) *AIClassifier {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &AIClassifier{
		classifier: classifier,
		timeout:    timeout,
		log:        log.With().Str("component", "ai_classifier").Logger(),
	}
}

// Classify runs the external classifier on the message.
func (c *AIClassifier) Classify(ctx context.Context, msg *domain.InboundMessage) *domain.AnalysisResult {
	if c.classifier == nil {
		return c.degraded("classifier not configured")
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	senderContext := fmt.Sprintf("sender=%s received=%s", msg.SenderAddress, msg.ReceivedAt.Format(time.RFC3339))
	raw, err := c.classifier.ClassifyReply(callCtx, msg.Subject, msg.Body, senderContext)
	if err != nil {
		c.log.Warn().Err(err).Str("message_id", msg.MessageID).Msg("classifier call failed, degrading to unknown")
		return c.degraded(fmt.Sprintf("classification failed: %v", err))
	}
	if raw == nil {
		return c.degraded("classifier returned empty result")
	}

	category, ok := domain.ParseCategory(raw.Category)
	confidence := clampConfidence(raw.Confidence)
	if !ok {
		// An answer outside the taxonomy is a failure, not a vote. Keeping
		// its confidence would let it outrank a valid pattern result.
		confidence = 0
		c.log.Warn().
			Str("message_id", msg.MessageID).
			Str("raw_category", raw.Category).
			Msg("classifier returned category outside taxonomy")
	}

	return &domain.AnalysisResult{
		Category:      category,
		Confidence:    confidence,
		Source:        domain.SourceAI,
		ActionType:    domain.ActionNone,
		AIReasoning:   raw.Reasoning,
		ExtractedInfo: raw.ExtractedInfo,
		AnalyzedAt:    time.Now().UTC(),
	}
}

// degraded builds the zero-confidence Unknown result used on any failure.
func (c *AIClassifier) degraded(reason string) *domain.AnalysisResult {
	return &domain.AnalysisResult{
		Category:    domain.CategoryUnknown,
		Confidence:  0,
		Source:      domain.SourceAI,
		ActionType:  domain.ActionNone,
		AIReasoning: reason,
		AnalyzedAt:  time.Now().UTC(),
	}
}

func clampConfidence(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
