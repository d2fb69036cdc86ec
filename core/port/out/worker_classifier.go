package out

import "context"

// TextClassification is the raw result returned by an external
// text-classification capability. The category string is unvalidated; the
// AI classifier maps anything outside the taxonomy to Unknown.
type TextClassification struct {
	Category      string            `json:"category"`
	Confidence    float64           `json:"confidence"`
	Reasoning     string            `json:"reasoning,omitempty"`
	ExtractedInfo map[string]string `json:"extracted_info,omitempty"`
}

// TextClassifier is the consumed classification capability (an LLM in
// production, a stub in tests). Implementations perform network I/O and
// must honor context cancellation; the caller bounds every call with a
// timeout.
type TextClassifier interface {
	ClassifyReply(ctx context.Context, subject, body, senderContext string) (*TextClassification, error)
}
