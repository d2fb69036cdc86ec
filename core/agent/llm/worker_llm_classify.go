package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
)

// ClassifyResponse is the model's answer to a reply-classification prompt.
type ClassifyResponse struct {
	Category      string            `json:"category"`
	Confidence    float64           `json:"confidence"`
	Reasoning     string            `json:"reasoning"`
	ExtractedInfo map[string]string `json:"extracted_info,omitempty"`
}

const classifySystemPrompt = `You are a job-application reply classifier. Analyze the reply email a candidate received from a company and respond with JSON only.

Categories (pick ONE):
- interview_invitation: The company invites the candidate to an interview
- rejection: The company declines the candidate
- offer: The company extends a job offer
- information_request: The company asks the candidate to send something (documents, references, details)
- follow_up_required: The thread has gone quiet and needs a nudge from the candidate
- acknowledgment: Automated or routine confirmation that the application was received
- scheduling_request: The company asks for the candidate's availability or proposes time slots
- unknown: None of the above fits

Confidence: 0.0 (pure guess) to 1.0 (certain).

Extract concrete facts into extracted_info when present, for example:
- "interview_date": proposed date or range
- "deadline": any stated deadline
- "contact": the person to respond to
- "location": onsite/remote or an address

Respond with this exact JSON format:
{
  "category": "category_name",
  "confidence": 0.0-1.0,
  "reasoning": "brief 1-2 sentence justification",
  "extracted_info": {"key": "value"}
}`

// ClassifyReply classifies one reply email against the application-reply
// taxonomy. The caller validates the returned category.
func (c *Client) ClassifyReply(ctx context.Context, subject, body, senderContext string) (*ClassifyResponse, error) {
	userPrompt := fmt.Sprintf("Context: %s\nSubject: %s\n\nBody:\n%s",
		senderContext, subject, truncateBody(body, 2000))

	resp, err := c.CompleteJSON(ctx, classifySystemPrompt, userPrompt)
	if err != nil {
		return nil, err
	}

	// JSON response format is enforced on the request, but older models
	// still occasionally wrap the object in a markdown fence.
	var result ClassifyResponse
	resp = strings.TrimPrefix(resp, "```json")
	resp = strings.TrimSuffix(resp, "```")
	resp = strings.TrimSpace(resp)

	if err := json.Unmarshal([]byte(resp), &result); err != nil {
		return nil, fmt.Errorf("failed to parse classification response: %w", err)
	}

	return &result, nil
}

func truncateBody(body string, maxLen int) string {
	if len(body) <= maxLen {
		return body
	}
	return body[:maxLen] + "..."
}
