// Package classification implements the hybrid reply-classification pipeline:
// a deterministic keyword matcher, a probabilistic (LLM-backed) classifier,
// and the confidence arbiter that sequences the two.
package classification

import (
	"strings"
	"time"

	"apptrack_worker/core/domain"
)

// =============================================================================
// Pattern Matcher (deterministic stage)
// =============================================================================

// PatternMatcher classifies a message by substring keyword matching against
// an immutable table. It performs no I/O, is fully deterministic, and is
// safe for unsynchronized concurrent use.
type PatternMatcher struct {
	table []KeywordRule
}

// NewPatternMatcher creates a matcher over the given table.
// A nil table selects the built-in default.
func NewPatternMatcher(table []KeywordRule) *PatternMatcher {
	if table == nil {
		table = DefaultKeywordTable()
	}
	return &PatternMatcher{table: table}
}

// Match classifies the combined subject+body text.
//
// For each category it counts keywords present (case-insensitive substring
// match) and computes confidence = base × (0.7 + 0.3 × matchRatio). Among
// categories with at least one match the highest confidence wins; equal
// confidences are broken by table declaration order (first declared wins).
// Zero matches across all categories yields Unknown with confidence 0.
func (m *PatternMatcher) Match(subject, body string) *domain.AnalysisResult {
	text := strings.ToLower(subject + "\n" + body)

	best := &domain.AnalysisResult{
		Category:   domain.CategoryUnknown,
		Confidence: 0,
		Source:     domain.SourcePattern,
		ActionType: domain.ActionNone,
		AnalyzedAt: time.Now().UTC(),
	}

	for _, rule := range m.table {
		var matched []string
		for _, kw := range rule.Keywords {
			if strings.Contains(text, kw) {
				matched = append(matched, kw)
			}
		}
		if len(matched) == 0 {
			continue
		}

		ratio := float64(len(matched)) / float64(len(rule.Keywords))
		confidence := rule.BaseConfidence * (0.7 + 0.3*ratio)

		// Strictly greater: on a tie the earlier-declared category stays.
		if confidence > best.Confidence {
			best.Category = rule.Category
			best.Confidence = confidence
			best.KeywordsMatched = matched
		}
	}

	return best
}
