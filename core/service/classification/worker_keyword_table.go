package classification

import "apptrack_worker/core/domain"

// KeywordRule maps a category to its keyword list and base confidence.
// The computed confidence is baseConfidence × (0.7 + 0.3 × matchRatio),
// so a rule's base is also its ceiling when every keyword matches.
type KeywordRule struct {
	Category       domain.Category
	Keywords       []string
	BaseConfidence float64
}

// DefaultKeywordTable returns the built-in keyword table.
//
// Declaration order matters: when two categories compute the same
// confidence, the first-declared one wins. Categories with stronger
// consequences (interview, rejection, offer) are declared before the
// softer ones.
//
// The table is treated as immutable, process-wide configuration: it is
// built once at startup, injected into the matcher, and only ever read.
func DefaultKeywordTable() []KeywordRule {
	return []KeywordRule{
		{
			Category: domain.CategoryInterviewInvitation,
			Keywords: []string{
				"interview",
				"schedule",
				"would like to",
				"available",
				"call",
			},
			BaseConfidence: 0.92,
		},
		{
			Category: domain.CategoryRejection,
			Keywords: []string{
				"unfortunately",
				"other candidates",
				"not moving forward",
				"regret to inform",
				"not selected",
				"pursue other",
			},
			BaseConfidence: 0.88,
		},
		{
			Category: domain.CategoryOffer,
			Keywords: []string{
				"pleased to offer",
				"offer letter",
				"congratulations",
				"compensation",
				"salary",
				"start date",
			},
			BaseConfidence: 0.90,
		},
		{
			Category: domain.CategoryInformationRequest,
			Keywords: []string{
				"please provide",
				"could you send",
				"additional information",
				"documents",
				"references",
				"work authorization",
			},
			BaseConfidence: 0.80,
		},
		{
			Category: domain.CategoryFollowUpRequired,
			Keywords: []string{
				"follow up",
				"checking in",
				"any updates",
				"still interested",
				"haven't heard",
			},
			BaseConfidence: 0.75,
		},
		{
			Category: domain.CategoryAcknowledgment,
			Keywords: []string{
				"received your application",
				"thank you for applying",
				"we have received",
				"under review",
				"application confirmation",
			},
			BaseConfidence: 0.80,
		},
		{
			Category: domain.CategorySchedulingRequest,
			Keywords: []string{
				"availability",
				"time slots",
				"calendly",
				"book a time",
				"reschedule",
				"time zone",
			},
			BaseConfidence: 0.85,
		},
	}
}
