package classification

import "apptrack_worker/core/domain"

// =============================================================================
// Action Resolver
// =============================================================================

// actionRule is the resolved action for one category.
type actionRule struct {
	suggestedStatus *domain.ApplicationStatus
	actionType      domain.ActionType
	details         map[string]any
}

func statusPtr(s domain.ApplicationStatus) *domain.ApplicationStatus {
	return &s
}

// ActionResolver maps a classification to its suggested side effect. The
// mapping is a fixed category table; confidence only gates whether the
// resolved action is actually applied, never which action is chosen.
type ActionResolver struct {
	rules map[domain.Category]actionRule
}

// NewActionResolver creates a resolver with the built-in action table.
func NewActionResolver() *ActionResolver {
	return &ActionResolver{
		rules: map[domain.Category]actionRule{
			domain.CategoryInterviewInvitation: {
				suggestedStatus: statusPtr(domain.StatusInterviewScheduled),
				actionType:      domain.ActionUpdateStatus,
				details:         map[string]any{"priority": "high", "notify": true},
			},
			domain.CategoryRejection: {
				suggestedStatus: statusPtr(domain.StatusRejected),
				actionType:      domain.ActionUpdateStatus,
				details:         map[string]any{"priority": "high", "notify": true},
			},
			domain.CategoryOffer: {
				suggestedStatus: statusPtr(domain.StatusOfferReceived),
				actionType:      domain.ActionUpdateStatus,
				details:         map[string]any{"priority": "urgent", "notify": true},
			},
			domain.CategoryInformationRequest: {
				actionType: domain.ActionCreateTask,
				details: map[string]any{
					"title":     "Send requested information",
					"priority":  "high",
					"dueInDays": 3,
				},
			},
			domain.CategoryFollowUpRequired: {
				actionType: domain.ActionCreateReminder,
				details: map[string]any{
					"title":        "Follow up on application",
					"remindInDays": 7,
				},
			},
			domain.CategoryAcknowledgment: {
				suggestedStatus: statusPtr(domain.StatusUnderReview),
				actionType:      domain.ActionUpdateStatus,
				details:         map[string]any{"priority": "medium", "notify": false},
			},
			domain.CategorySchedulingRequest: {
				actionType: domain.ActionCreateTask,
				details: map[string]any{
					"title":     "Propose interview time slots",
					"priority":  "urgent",
					"dueInDays": 1,
				},
			},
		},
	}
}

// Resolve fills in the action fields of a classification in place and
// returns it. Unknown (or any unmapped category) resolves to no action.
// RequiresAction holds exactly when confidence meets the action threshold
// and the resolved action is not None.
func (r *ActionResolver) Resolve(result *domain.AnalysisResult) *domain.AnalysisResult {
	rule, ok := r.rules[result.Category]
	if !ok {
		result.SuggestedStatus = nil
		result.ActionType = domain.ActionNone
		result.ActionDetails = nil
		result.RequiresAction = false
		return result
	}

	result.SuggestedStatus = rule.suggestedStatus
	result.ActionType = rule.actionType
	result.ActionDetails = cloneDetails(rule.details)
	result.RequiresAction = result.Confidence >= domain.ActionThreshold && rule.actionType != domain.ActionNone
	return result
}

// cloneDetails copies the rule's detail map so callers mutating a result
// cannot corrupt the shared table.
func cloneDetails(details map[string]any) map[string]any {
	if details == nil {
		return nil
	}
	out := make(map[string]any, len(details))
	for k, v := range details {
		out[k] = v
	}
	return out
}
