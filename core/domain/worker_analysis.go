package domain

import "time"

// Category is the closed set of intents a reply email may express.
type Category string

const (
	CategoryInterviewInvitation Category = "interview_invitation"
	CategoryRejection           Category = "rejection"
	CategoryOffer               Category = "offer"
	CategoryInformationRequest  Category = "information_request"
	CategoryFollowUpRequired    Category = "follow_up_required"
	CategoryAcknowledgment      Category = "acknowledgment"
	CategorySchedulingRequest   Category = "scheduling_request"
	CategoryUnknown             Category = "unknown"
)

// ParseCategory validates a raw category string against the closed taxonomy.
// Anything unrecognized maps to Unknown with ok=false; the AI classifier
// relies on this to sanitize model output.
func ParseCategory(s string) (Category, bool) {
	c := Category(s)
	switch c {
	case CategoryInterviewInvitation, CategoryRejection, CategoryOffer,
		CategoryInformationRequest, CategoryFollowUpRequired,
		CategoryAcknowledgment, CategorySchedulingRequest:
		return c, true
	case CategoryUnknown:
		return c, true
	}
	return CategoryUnknown, false
}

// AnalysisSource indicates which classifier produced a result.
type AnalysisSource string

const (
	SourcePattern AnalysisSource = "pattern"
	SourceAI      AnalysisSource = "ai"
)

// ActionType is the side effect suggested by a classification.
type ActionType string

const (
	ActionUpdateStatus   ActionType = "update_status"
	ActionCreateTask     ActionType = "create_task"
	ActionCreateReminder ActionType = "create_reminder"
	ActionNone           ActionType = "none"
)

// ActionThreshold is the minimum confidence for an action to be applied.
// Below it a classification is still recorded in the audit trail, but the
// application state is left untouched.
const ActionThreshold = 0.70

// AnalysisResult is the outcome of classifying one inbound message.
type AnalysisResult struct {
	Category   Category       `json:"category"`
	Confidence float64        `json:"confidence"` // always within [0,1]
	Source     AnalysisSource `json:"source"`

	// Resolved action (filled by the ActionResolver).
	SuggestedStatus *ApplicationStatus `json:"suggested_status,omitempty"`
	ActionType      ActionType         `json:"action_type"`
	ActionDetails   map[string]any     `json:"action_details,omitempty"`
	RequiresAction  bool               `json:"requires_action"`

	// Provenance.
	KeywordsMatched []string          `json:"keywords_matched,omitempty"` // pattern path only
	AIReasoning     string            `json:"ai_reasoning,omitempty"`     // ai path only
	ExtractedInfo   map[string]string `json:"extracted_info,omitempty"`

	AnalyzedAt time.Time `json:"analyzed_at"`
}
