// Package vision calls the Azure Computer Vision analyze endpoint.
package vision

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"sentibot/pkg/analysis"
	"sentibot/pkg/config"
	"sentibot/pkg/logger"

	"github.com/go-resty/resty/v2"
)

const (
	analyzePath     = "/analyze"
	visualFeatures  = "Description,Tags"
	subscriptionKey = "Ocp-Apim-Subscription-Key"
)

type Client struct {
	http           *resty.Client
	requestTimeout time.Duration
}

type analyzeRequest struct {
	URL string `json:"url"`
}

type analyzeResponse struct {
	Description *struct {
		Tags     []string `json:"tags"`
		Captions []struct {
			Text       string  `json:"text"`
			Confidence float64 `json:"confidence"`
		} `json:"captions"`
	} `json:"description"`
}

// New builds a client for the configured endpoint and credential.
func New(cfg config.VisionConfig) (*Client, error) {
	endpoint := strings.TrimRight(strings.TrimSpace(cfg.Endpoint), "/")
	if endpoint == "" {
		return nil, errors.New("services.vision.endpoint is required")
	}
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("services.vision.api_key is required")
	}

	httpClient := resty.New().
		SetBaseURL(endpoint).
		SetHeader(subscriptionKey, apiKey).
		SetHeader("Content-Type", "application/json")

	return &Client{
		http:           httpClient,
		requestTimeout: time.Duration(cfg.RequestTimeoutSeconds) * time.Second,
	}, nil
}

// AnalyzeImage describes and tags the image at imageURL.
func (c *Client) AnalyzeImage(ctx context.Context, imageURL string) (analysis.ImageResult, error) {
	imageURL = strings.TrimSpace(imageURL)
	if err := validateImageURL(imageURL); err != nil {
		return analysis.ImageResult{}, analysis.NewError(analysis.ErrImageAnalysisFailed, err)
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	log := clientLogger().With("operation", "analyze_image")
	startedAt := time.Now()
	log.Debug("upstream request started", "host", hostOf(imageURL))

	var payload analyzeResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("visualFeatures", visualFeatures).
		SetBody(analyzeRequest{URL: imageURL}).
		SetResult(&payload).
		Post(analyzePath)
	if err != nil {
		log.Debug("upstream request failed", logger.KeyDuration, time.Since(startedAt).Milliseconds(), "error", err)
		return analysis.ImageResult{}, analysis.NewError(analysis.ErrImageAnalysisFailed, analysis.TransportError(ctx, err))
	}
	if resp.IsError() {
		log.Debug("upstream request failed", logger.KeyDuration, time.Since(startedAt).Milliseconds(), "status", resp.StatusCode())
		return analysis.ImageResult{}, &analysis.Error{
			Kind:       analysis.ErrImageAnalysisFailed,
			StatusCode: resp.StatusCode(),
			Body:       strings.TrimSpace(resp.String()),
		}
	}

	if payload.Description == nil {
		log.Debug("upstream request failed", logger.KeyDuration, time.Since(startedAt).Milliseconds(), "error", "missing description")
		return analysis.ImageResult{}, &analysis.Error{
			Kind:       analysis.ErrImageAnalysisFailed,
			StatusCode: resp.StatusCode(),
			Err:        errors.New("response is missing description"),
		}
	}

	result := analysis.ImageResult{Tags: make([]string, 0, len(payload.Description.Tags))}
	if len(payload.Description.Captions) > 0 {
		result.Caption = strings.TrimSpace(payload.Description.Captions[0].Text)
	}
	for _, tag := range payload.Description.Tags {
		if tag = strings.TrimSpace(tag); tag != "" {
			result.Tags = append(result.Tags, tag)
		}
	}
	log.Debug("upstream request completed", logger.KeyDuration, time.Since(startedAt).Milliseconds(), "has_caption", result.Caption != "", "tags", len(result.Tags))

	return result, nil
}

func clientLogger() *slog.Logger {
	return slog.Default().With(logger.KeyComponent, "analysis.vision")
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.requestTimeout <= 0 {
		return ctx, func() {}
	}

	return context.WithTimeout(ctx, c.requestTimeout)
}

func validateImageURL(raw string) error {
	if raw == "" {
		return errors.New("image url is required")
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("parse image url: %w", err)
	}
	if !parsed.IsAbs() || parsed.Host == "" {
		return fmt.Errorf("image url must be absolute: %q", raw)
	}

	return nil
}

// hostOf keeps file paths (which embed the bot token for Telegram) out of logs.
func hostOf(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil {
		return ""
	}

	return parsed.Host
}
