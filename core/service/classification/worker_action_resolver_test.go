package classification

import (
	"testing"

	"apptrack_worker/core/domain"
)

func TestActionResolverCategoryTable(t *testing.T) {
	resolver := NewActionResolver()

	tests := []struct {
		name       string
		category   domain.Category
		wantAction domain.ActionType
		wantStatus *domain.ApplicationStatus
	}{
		{
			name:       "interview invitation updates status",
			category:   domain.CategoryInterviewInvitation,
			wantAction: domain.ActionUpdateStatus,
			wantStatus: statusPtr(domain.StatusInterviewScheduled),
		},
		{
			name:       "rejection updates status",
			category:   domain.CategoryRejection,
			wantAction: domain.ActionUpdateStatus,
			wantStatus: statusPtr(domain.StatusRejected),
		},
		{
			name:       "offer updates status",
			category:   domain.CategoryOffer,
			wantAction: domain.ActionUpdateStatus,
			wantStatus: statusPtr(domain.StatusOfferReceived),
		},
		{
			name:       "information request creates task",
			category:   domain.CategoryInformationRequest,
			wantAction: domain.ActionCreateTask,
		},
		{
			name:       "follow up creates reminder",
			category:   domain.CategoryFollowUpRequired,
			wantAction: domain.ActionCreateReminder,
		},
		{
			name:       "acknowledgment moves to under review",
			category:   domain.CategoryAcknowledgment,
			wantAction: domain.ActionUpdateStatus,
			wantStatus: statusPtr(domain.StatusUnderReview),
		},
		{
			name:       "scheduling request creates task",
			category:   domain.CategorySchedulingRequest,
			wantAction: domain.ActionCreateTask,
		},
		{
			name:       "unknown resolves to no action",
			category:   domain.CategoryUnknown,
			wantAction: domain.ActionNone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := &domain.AnalysisResult{Category: tt.category, Confidence: 0.95}
			resolver.Resolve(result)

			if result.ActionType != tt.wantAction {
				t.Errorf("ActionType = %s, want %s", result.ActionType, tt.wantAction)
			}
			switch {
			case tt.wantStatus == nil && result.SuggestedStatus != nil:
				t.Errorf("SuggestedStatus = %s, want nil", *result.SuggestedStatus)
			case tt.wantStatus != nil && result.SuggestedStatus == nil:
				t.Errorf("SuggestedStatus = nil, want %s", *tt.wantStatus)
			case tt.wantStatus != nil && *result.SuggestedStatus != *tt.wantStatus:
				t.Errorf("SuggestedStatus = %s, want %s", *result.SuggestedStatus, *tt.wantStatus)
			}

			wantRequires := tt.wantAction != domain.ActionNone
			if result.RequiresAction != wantRequires {
				t.Errorf("RequiresAction = %v, want %v", result.RequiresAction, wantRequires)
			}
		})
	}
}

func TestActionResolverConfidenceGate(t *testing.T) {
	resolver := NewActionResolver()

	tests := []struct {
		name       string
		confidence float64
		want       bool
	}{
		{"just below threshold", 0.69, false},
		{"exactly at threshold", 0.70, true},
		{"above threshold", 0.92, true},
		{"zero confidence", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := &domain.AnalysisResult{
				Category:   domain.CategoryInterviewInvitation,
				Confidence: tt.confidence,
			}
			resolver.Resolve(result)

			if result.RequiresAction != tt.want {
				t.Errorf("RequiresAction = %v, want %v (confidence %v)", result.RequiresAction, tt.want, tt.confidence)
			}
			// The resolved action itself does not depend on confidence.
			if result.ActionType != domain.ActionUpdateStatus {
				t.Errorf("ActionType = %s, want %s", result.ActionType, domain.ActionUpdateStatus)
			}
		})
	}
}

func TestActionResolverDetailsAreIndependent(t *testing.T) {
	resolver := NewActionResolver()

	first := &domain.AnalysisResult{Category: domain.CategoryInformationRequest, Confidence: 0.9}
	resolver.Resolve(first)
	first.ActionDetails["title"] = "mutated by a consumer"

	second := &domain.AnalysisResult{Category: domain.CategoryInformationRequest, Confidence: 0.9}
	resolver.Resolve(second)

	if second.ActionDetails["title"] != "Send requested information" {
		t.Errorf("ActionDetails[title] = %v, mutation of one result leaked into the table", second.ActionDetails["title"])
	}
}

func TestActionResolverClearsStaleFields(t *testing.T) {
	resolver := NewActionResolver()

	result := &domain.AnalysisResult{
		Category:        domain.CategoryUnknown,
		Confidence:      0.9,
		SuggestedStatus: statusPtr(domain.StatusRejected),
		ActionType:      domain.ActionUpdateStatus,
		ActionDetails:   map[string]any{"priority": "high"},
		RequiresAction:  true,
	}
	resolver.Resolve(result)

	if result.SuggestedStatus != nil {
		t.Errorf("SuggestedStatus = %s, want nil", *result.SuggestedStatus)
	}
	if result.ActionType != domain.ActionNone {
		t.Errorf("ActionType = %s, want %s", result.ActionType, domain.ActionNone)
	}
	if result.ActionDetails != nil {
		t.Errorf("ActionDetails = %v, want nil", result.ActionDetails)
	}
	if result.RequiresAction {
		t.Error("RequiresAction = true, want false")
	}
}
