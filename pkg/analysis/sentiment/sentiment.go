// Package sentiment calls the Azure Text Analytics sentiment endpoint.
package sentiment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"sentibot/pkg/analysis"
	"sentibot/pkg/config"
	"sentibot/pkg/logger"

	"github.com/go-resty/resty/v2"
)

const (
	sentimentPath   = "/text/analytics/v3.1/sentiment"
	subscriptionKey = "Ocp-Apim-Subscription-Key"
	documentID      = "1"
)

type Client struct {
	http           *resty.Client
	language       string
	requestTimeout time.Duration
}

type sentimentRequest struct {
	Documents []requestDocument `json:"documents"`
}

type requestDocument struct {
	ID       string `json:"id"`
	Language string `json:"language"`
	Text     string `json:"text"`
}

type sentimentResponse struct {
	Documents []responseDocument `json:"documents"`
	Errors    []documentError    `json:"errors"`
}

type responseDocument struct {
	ID               string          `json:"id"`
	Sentiment        string          `json:"sentiment"`
	ConfidenceScores analysis.Scores `json:"confidenceScores"`
}

type documentError struct {
	ID    string `json:"id"`
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// New builds a client for the configured endpoint and credential.
func New(cfg config.TextAnalyticsConfig) (*Client, error) {
	endpoint := strings.TrimRight(strings.TrimSpace(cfg.Endpoint), "/")
	if endpoint == "" {
		return nil, errors.New("services.text_analytics.endpoint is required")
	}
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("services.text_analytics.api_key is required")
	}

	language := strings.TrimSpace(cfg.Language)
	if language == "" {
		language = "en"
	}

	httpClient := resty.New().
		SetBaseURL(endpoint).
		SetHeader(subscriptionKey, apiKey).
		SetHeader("Content-Type", "application/json")

	return &Client{
		http:           httpClient,
		language:       language,
		requestTimeout: time.Duration(cfg.RequestTimeoutSeconds) * time.Second,
	}, nil
}

// AnalyzeSentiment classifies text and returns the label with its confidence scores.
func (c *Client) AnalyzeSentiment(ctx context.Context, text string) (analysis.SentimentResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return analysis.SentimentResult{}, analysis.NewError(analysis.ErrSentimentAnalysisFailed, errors.New("text is required"))
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	log := clientLogger().With("operation", "analyze_sentiment")
	startedAt := time.Now()
	log.Debug("upstream request started", "text_length", len(text))

	var payload sentimentResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(sentimentRequest{Documents: []requestDocument{{ID: documentID, Language: c.language, Text: text}}}).
		SetResult(&payload).
		Post(sentimentPath)
	if err != nil {
		log.Debug("upstream request failed", logger.KeyDuration, time.Since(startedAt).Milliseconds(), "error", err)
		return analysis.SentimentResult{}, analysis.NewError(analysis.ErrSentimentAnalysisFailed, analysis.TransportError(ctx, err))
	}
	if resp.IsError() {
		log.Debug("upstream request failed", logger.KeyDuration, time.Since(startedAt).Milliseconds(), "status", resp.StatusCode())
		return analysis.SentimentResult{}, &analysis.Error{
			Kind:       analysis.ErrSentimentAnalysisFailed,
			StatusCode: resp.StatusCode(),
			Body:       strings.TrimSpace(resp.String()),
		}
	}

	if len(payload.Documents) == 0 {
		detail := "response contained no documents"
		if len(payload.Errors) > 0 {
			docErr := payload.Errors[0].Error
			detail = fmt.Sprintf("document error %s: %s", docErr.Code, docErr.Message)
		}
		log.Debug("upstream request failed", logger.KeyDuration, time.Since(startedAt).Milliseconds(), "error", detail)
		return analysis.SentimentResult{}, &analysis.Error{
			Kind:       analysis.ErrSentimentAnalysisFailed,
			StatusCode: resp.StatusCode(),
			Err:        errors.New(detail),
		}
	}

	document := payload.Documents[0]
	label, known := analysis.ParseLabel(document.Sentiment)
	log.Debug("upstream request completed", logger.KeyDuration, time.Since(startedAt).Milliseconds(), "label", label, "known_label", known)

	return analysis.SentimentResult{Label: label, Scores: document.ConfidenceScores}, nil
}

func clientLogger() *slog.Logger {
	return slog.Default().With(logger.KeyComponent, "analysis.sentiment")
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.requestTimeout <= 0 {
		return ctx, func() {}
	}

	return context.WithTimeout(ctx, c.requestTimeout)
}
