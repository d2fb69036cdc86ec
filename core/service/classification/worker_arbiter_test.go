package classification

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"apptrack_worker/core/domain"
	"apptrack_worker/core/port/out"
)

// stubClassifier is a counting out.TextClassifier fake.
type stubClassifier struct {
	result *out.TextClassification
	err    error
	calls  int
}

func (s *stubClassifier) ClassifyReply(ctx context.Context, subject, body, senderContext string) (*out.TextClassification, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func testMessage(subject, body string) *domain.InboundMessage {
	return &domain.InboundMessage{
		MessageID:     "msg-1",
		Subject:       subject,
		Body:          body,
		SenderAddress: "recruiter@example.com",
		ReceivedAt:    time.Now().UTC(),
	}
}

func newTestArbiter(stub *stubClassifier, aiEnabled bool) *ConfidenceArbiter {
	log := zerolog.Nop()
	matcher := NewPatternMatcher(nil)
	var ai *AIClassifier
	if stub != nil {
		ai = NewAIClassifier(stub, time.Second, log)
	}
	return NewConfidenceArbiter(matcher, ai, ArbiterConfig{AIEnabled: aiEnabled}, log)
}

func TestArbiterShortCircuitSkipsAI(t *testing.T) {
	stub := &stubClassifier{result: &out.TextClassification{Category: "offer", Confidence: 0.99}}
	arbiter := newTestArbiter(stub, true)

	// Full interview keyword coverage scores 0.92, above the short circuit.
	msg := testMessage("Interview invitation",
		"We would like to schedule an interview. Are you available for a call next week?")

	got := arbiter.Classify(context.Background(), msg)

	if got.Category != domain.CategoryInterviewInvitation {
		t.Errorf("Category = %s, want %s", got.Category, domain.CategoryInterviewInvitation)
	}
	if got.Source != domain.SourcePattern {
		t.Errorf("Source = %s, want %s", got.Source, domain.SourcePattern)
	}
	if stub.calls != 0 {
		t.Errorf("classifier called %d times, want 0", stub.calls)
	}
}

func TestArbiterHybridBand(t *testing.T) {
	// Two rejection keywords score 0.704, inside the hybrid band.
	msg := testMessage("Your application",
		"Unfortunately, we have decided to move ahead with other candidates.")

	tests := []struct {
		name         string
		ai           *out.TextClassification
		wantCategory domain.Category
		wantSource   domain.AnalysisSource
	}{
		{
			name:         "pattern wins when more confident",
			ai:           &out.TextClassification{Category: "offer", Confidence: 0.60},
			wantCategory: domain.CategoryRejection,
			wantSource:   domain.SourcePattern,
		},
		{
			name:         "ai wins when more confident",
			ai:           &out.TextClassification{Category: "rejection", Confidence: 0.95},
			wantCategory: domain.CategoryRejection,
			wantSource:   domain.SourceAI,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := &stubClassifier{result: tt.ai}
			arbiter := newTestArbiter(stub, true)

			got := arbiter.Classify(context.Background(), msg)

			if got.Category != tt.wantCategory {
				t.Errorf("Category = %s, want %s", got.Category, tt.wantCategory)
			}
			if got.Source != tt.wantSource {
				t.Errorf("Source = %s, want %s", got.Source, tt.wantSource)
			}
			if stub.calls != 1 {
				t.Errorf("classifier called %d times, want 1", stub.calls)
			}
		})
	}
}

func TestArbiterInvalidAICategoryCannotOutvotePattern(t *testing.T) {
	// An out-of-taxonomy answer carries no vote, whatever confidence the
	// model attached to it. The pattern rejection must survive arbitration.
	stub := &stubClassifier{result: &out.TextClassification{Category: "spam", Confidence: 0.9}}
	arbiter := newTestArbiter(stub, true)

	// Two rejection keywords score 0.704, inside the hybrid band.
	msg := testMessage("Your application",
		"Unfortunately, we have decided to move ahead with other candidates.")

	got := arbiter.Classify(context.Background(), msg)

	if got.Category != domain.CategoryRejection {
		t.Errorf("Category = %s, want %s", got.Category, domain.CategoryRejection)
	}
	if got.Source != domain.SourcePattern {
		t.Errorf("Source = %s, want %s", got.Source, domain.SourcePattern)
	}
	if stub.calls != 1 {
		t.Errorf("classifier called %d times, want 1", stub.calls)
	}
}

func TestArbiterWeakPatternPrefersAI(t *testing.T) {
	stub := &stubClassifier{result: &out.TextClassification{Category: "acknowledgment", Confidence: 0.50}}
	arbiter := newTestArbiter(stub, true)

	// Single keyword scores 0.66, below the hybrid band. The AI result is
	// preferred even though its confidence is lower.
	msg := testMessage("Re: application", "Unfortunately we cannot say more at this point.")

	got := arbiter.Classify(context.Background(), msg)

	if got.Category != domain.CategoryAcknowledgment {
		t.Errorf("Category = %s, want %s", got.Category, domain.CategoryAcknowledgment)
	}
	if got.Source != domain.SourceAI {
		t.Errorf("Source = %s, want %s", got.Source, domain.SourceAI)
	}
}

func TestArbiterDegradedAIFallsBackToPattern(t *testing.T) {
	stub := &stubClassifier{err: errors.New("upstream unavailable")}
	arbiter := newTestArbiter(stub, true)

	msg := testMessage("Re: application", "Unfortunately we cannot say more at this point.")

	got := arbiter.Classify(context.Background(), msg)

	if got.Category != domain.CategoryRejection {
		t.Errorf("Category = %s, want %s", got.Category, domain.CategoryRejection)
	}
	if got.Source != domain.SourcePattern {
		t.Errorf("Source = %s, want %s", got.Source, domain.SourcePattern)
	}
}

func TestArbiterDegradedAIWithoutPatternSignal(t *testing.T) {
	stub := &stubClassifier{err: errors.New("upstream unavailable")}
	arbiter := newTestArbiter(stub, true)

	msg := testMessage("Hello", "Thank you for your time.")

	got := arbiter.Classify(context.Background(), msg)

	if got.Category != domain.CategoryUnknown {
		t.Errorf("Category = %s, want %s", got.Category, domain.CategoryUnknown)
	}
	if got.Confidence != 0 {
		t.Errorf("Confidence = %v, want 0", got.Confidence)
	}
}

func TestArbiterAIDisabledReturnsPattern(t *testing.T) {
	stub := &stubClassifier{result: &out.TextClassification{Category: "offer", Confidence: 0.99}}
	arbiter := newTestArbiter(stub, false)

	msg := testMessage("Re: application", "Unfortunately we cannot say more at this point.")

	got := arbiter.Classify(context.Background(), msg)

	if got.Source != domain.SourcePattern {
		t.Errorf("Source = %s, want %s", got.Source, domain.SourcePattern)
	}
	if stub.calls != 0 {
		t.Errorf("classifier called %d times, want 0", stub.calls)
	}
}
