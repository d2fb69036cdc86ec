// Package llm adapts the OpenAI-backed agent client to the classifier port.
package llm

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	agent "apptrack_worker/core/agent/llm"
	"apptrack_worker/core/port/out"
	"apptrack_worker/pkg/apperr"
)

// =============================================================================
// OpenAI Classifier Adapter
// =============================================================================

// OpenAIClassifier implements out.TextClassifier on top of the agent client,
// guarded by a circuit breaker so a degraded OpenAI endpoint fails fast
// instead of stalling every worker on timeouts.
type OpenAIClassifier struct {
	client *agent.Client
	cb     *gobreaker.CircuitBreaker
	log    zerolog.Logger
}

// NewOpenAIClassifier creates the adapter around an agent client.
func NewOpenAIClassifier(client *agent.Client, log zerolog.Logger) *OpenAIClassifier {
	logger := log.With().Str("component", "openai_classifier").Logger()

	cbSettings := gobreaker.Settings{
		Name:        "openai-classify",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.ConsecutiveFailures > 5 ||
				(counts.Requests >= 10 && failureRatio >= 0.6)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state changed")
		},
	}

	return &OpenAIClassifier{
		client: client,
		cb:     gobreaker.NewCircuitBreaker(cbSettings),
		log:    logger,
	}
}

// ClassifyReply classifies one reply email through the model.
func (a *OpenAIClassifier) ClassifyReply(ctx context.Context, subject, body, senderContext string) (*out.TextClassification, error) {
	resp, err := a.cb.Execute(func() (interface{}, error) {
		return a.client.ClassifyReply(ctx, subject, body, senderContext)
	})
	if err != nil {
		return nil, apperr.ClassifierError(err)
	}

	raw := resp.(*agent.ClassifyResponse)
	return &out.TextClassification{
		Category:      raw.Category,
		Confidence:    raw.Confidence,
		Reasoning:     raw.Reasoning,
		ExtractedInfo: raw.ExtractedInfo,
	}, nil
}
