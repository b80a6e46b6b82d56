package analysis

import "strings"

// Label is the document-level sentiment classification returned by the text analytics service.
type Label string

const (
	LabelPositive Label = "positive"
	LabelNeutral  Label = "neutral"
	LabelNegative Label = "negative"
)

// ParseLabel normalizes a service label. Anything outside the three known
// labels (the service also emits "mixed") is returned as-is with ok=false.
func ParseLabel(raw string) (Label, bool) {
	label := Label(strings.ToLower(strings.TrimSpace(raw)))
	switch label {
	case LabelPositive, LabelNeutral, LabelNegative:
		return label, true
	default:
		return label, false
	}
}

// Scores holds one confidence value per label.
type Scores struct {
	Positive float64 `json:"positive"`
	Neutral  float64 `json:"neutral"`
	Negative float64 `json:"negative"`
}

// SentimentResult is the outcome of analyzing one text message.
type SentimentResult struct {
	Label  Label  `json:"label"`
	Scores Scores `json:"scores"`
}

// ImageResult is the outcome of analyzing one image.
//
// Caption is empty when the service produced no caption candidate.
type ImageResult struct {
	Caption string   `json:"caption,omitempty"`
	Tags    []string `json:"tags"`
}
