package classification

import (
	"context"

	"github.com/rs/zerolog"

	"apptrack_worker/core/domain"
)

// =============================================================================
// Confidence Arbiter (hybrid decision policy)
// =============================================================================

// Arbitration thresholds. The pattern matcher is cheap and synchronous, the
// AI classifier costs money and latency, so the policy short-circuits on a
// strong deterministic signal and only consults the AI below it.
const (
	// PatternShortCircuit: a pattern result at or above this confidence is
	// returned without invoking the AI classifier at all.
	PatternShortCircuit = 0.90

	// HybridBandLow: pattern results in [HybridBandLow, PatternShortCircuit)
	// run both classifiers and the higher confidence wins. Below the band
	// the deterministic signal is considered weak and the AI result is
	// preferred.
	HybridBandLow = 0.70
)

// ArbiterConfig controls the hybrid policy.
type ArbiterConfig struct {
	// AIEnabled gates the probabilistic classifier. When false the pattern
	// result is returned regardless of its confidence.
	AIEnabled bool
}

// ConfidenceArbiter sequences the pattern matcher and the AI classifier and
// picks the final classification.
type ConfidenceArbiter struct {
	matcher *PatternMatcher
	ai      *AIClassifier
	config  ArbiterConfig
	log     zerolog.Logger
}

// NewConfidenceArbiter creates an arbiter.
func NewConfidenceArbiter(matcher *PatternMatcher, ai *AIClassifier, config ArbiterConfig, log zerolog.Logger) *ConfidenceArbiter {
	return &ConfidenceArbiter{
		matcher: matcher,
		ai:      ai,
		config:  config,
		log:     log.With().Str("component", "arbiter").Logger(),
	}
}

// Classify applies the decision policy:
//
//  1. Run the pattern matcher.
//  2. Pattern confidence ≥ 0.9 → pattern result, AI never invoked.
//  3. Pattern confidence in [0.7, 0.9) and AI enabled → run AI, return
//     whichever result has the higher confidence.
//  4. Otherwise, AI enabled → run AI; return the AI result unless the
//     pattern result is more confident (covers AI timeouts, which degrade
//     to confidence 0).
//  5. AI disabled → pattern result as-is.
func (a *ConfidenceArbiter) Classify(ctx context.Context, msg *domain.InboundMessage) *domain.AnalysisResult {
	pattern := a.matcher.Match(msg.Subject, msg.Body)

	if pattern.Confidence >= PatternShortCircuit {
		a.log.Debug().
			Str("message_id", msg.MessageID).
			Str("category", string(pattern.Category)).
			Float64("confidence", pattern.Confidence).
			Msg("pattern short-circuit, skipping ai classifier")
		return pattern
	}

	if !a.config.AIEnabled || a.ai == nil {
		return pattern
	}

	ai := a.ai.Classify(ctx, msg)

	var winner *domain.AnalysisResult
	switch {
	case pattern.Confidence >= HybridBandLow:
		// Hybrid band: both signals are credible, higher confidence wins.
		winner = ai
		if pattern.Confidence > ai.Confidence {
			winner = pattern
		}
	case ai.Category == domain.CategoryUnknown && ai.Confidence == 0 && pattern.Confidence > 0:
		// AI degraded (error/timeout): fall back to the weak pattern result.
		winner = pattern
	default:
		// Weak or no deterministic signal: trust the AI result.
		winner = ai
	}

	a.log.Debug().
		Str("message_id", msg.MessageID).
		Str("pattern_category", string(pattern.Category)).
		Float64("pattern_confidence", pattern.Confidence).
		Str("ai_category", string(ai.Category)).
		Float64("ai_confidence", ai.Confidence).
		Str("winner", string(winner.Source)).
		Msg("hybrid arbitration")

	return winner
}
