package dispatch

import (
	"fmt"
	"strconv"
	"strings"

	"sentibot/pkg/analysis"
)

const (
	// GreetingReply answers the start command.
	GreetingReply = "Hello! Send me a message, and I will analyze its sentiment or send me an image, and I will describe it."
	// TextErrorReply is sent when sentiment analysis fails.
	TextErrorReply = "Sorry, there was an error analyzing your message."
	// ImageErrorReply is sent when the photo cannot be resolved or analyzed.
	ImageErrorReply = "Sorry, there was an error analyzing your image."
	// NoDescriptionCaption replaces an empty image caption.
	NoDescriptionCaption = "No description available"

	noTags = "none"
)

// FormatSentimentReply renders the text reply: label, three scores and one fun line.
func FormatSentimentReply(result analysis.SentimentResult, funResponse string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Your message sentiment is: %s\n", result.Label)
	fmt.Fprintf(&b, "Positive: %s\n", formatScore(result.Scores.Positive))
	fmt.Fprintf(&b, "Neutral: %s\n", formatScore(result.Scores.Neutral))
	fmt.Fprintf(&b, "Negative: %s", formatScore(result.Scores.Negative))
	fmt.Fprintf(&b, "\n\nHere's something for you: %s", funResponse)

	return b.String()
}

// FormatImageReply renders the photo reply with caption and comma-joined tags.
func FormatImageReply(result analysis.ImageResult) string {
	caption := strings.TrimSpace(result.Caption)
	if caption == "" {
		caption = NoDescriptionCaption
	}

	tags := strings.Join(result.Tags, ", ")
	if tags == "" {
		tags = noTags
	}

	return fmt.Sprintf("I analyzed the image and here's what I see: \"%s\".\nTags: %s", caption, tags)
}

// formatScore prints the shortest decimal that round-trips, e.g. 0.9 or 0.08.
func formatScore(score float64) string {
	return strconv.FormatFloat(score, 'f', -1, 64)
}
