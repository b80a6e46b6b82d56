package sentiment

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"sentibot/pkg/analysis"
	"sentibot/pkg/config"

	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := New(config.TextAnalyticsConfig{Endpoint: server.URL + "/", APIKey: "test-key", RequestTimeoutSeconds: 5})
	require.NoError(t, err)
	return client
}

func TestNewRequiresEndpointAndKey(t *testing.T) {
	_, err := New(config.TextAnalyticsConfig{APIKey: "key"})
	require.Error(t, err)

	_, err = New(config.TextAnalyticsConfig{Endpoint: "https://example.com"})
	require.Error(t, err)
}

func TestAnalyzeSentimentSendsDocumentAndParsesScores(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, sentimentPath, r.URL.Path)
		require.Equal(t, "test-key", r.Header.Get(subscriptionKey))

		var body sentimentRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Len(t, body.Documents, 1)
		require.Equal(t, requestDocument{ID: "1", Language: "en", Text: "I love this"}, body.Documents[0])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"documents":[{"id":"1","sentiment":"positive","confidenceScores":{"positive":0.9,"neutral":0.08,"negative":0.02}}],"errors":[]}`))
	})

	result, err := client.AnalyzeSentiment(context.Background(), " I love this ")
	require.NoError(t, err)
	require.Equal(t, analysis.LabelPositive, result.Label)
	require.Equal(t, analysis.Scores{Positive: 0.9, Neutral: 0.08, Negative: 0.02}, result.Scores)
}

func TestAnalyzeSentimentKeepsUnknownLabel(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"documents":[{"id":"1","sentiment":"mixed","confidenceScores":{"positive":0.4,"neutral":0.2,"negative":0.4}}]}`))
	})

	result, err := client.AnalyzeSentiment(context.Background(), "good and bad")
	require.NoError(t, err)
	require.Equal(t, analysis.Label("mixed"), result.Label)
}

func TestAnalyzeSentimentRejectsBlankText(t *testing.T) {
	called := false
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	})

	_, err := client.AnalyzeSentiment(context.Background(), "   ")
	require.ErrorIs(t, err, analysis.ErrSentimentAnalysisFailed)
	require.False(t, called)
}

func TestAnalyzeSentimentCarriesStatusAndBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"code":"401","message":"Access denied"}}`))
	})

	_, err := client.AnalyzeSentiment(context.Background(), "hello")
	require.ErrorIs(t, err, analysis.ErrSentimentAnalysisFailed)

	var categorized *analysis.Error
	require.True(t, errors.As(err, &categorized))
	require.Equal(t, http.StatusUnauthorized, categorized.StatusCode)
	require.Contains(t, categorized.Body, "Access denied")
}

func TestAnalyzeSentimentDocumentError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"documents":[],"errors":[{"id":"1","error":{"code":"InvalidArgument","message":"Invalid document"}}]}`))
	})

	_, err := client.AnalyzeSentiment(context.Background(), "hello")
	require.ErrorIs(t, err, analysis.ErrSentimentAnalysisFailed)
	require.ErrorContains(t, err, "Invalid document")
}

func TestAnalyzeSentimentTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(server.Close)
	t.Cleanup(func() { close(release) })

	client, err := New(config.TextAnalyticsConfig{Endpoint: server.URL, APIKey: "key"})
	require.NoError(t, err)
	client.requestTimeout = 50 * time.Millisecond

	_, err = client.AnalyzeSentiment(context.Background(), "hello")
	require.ErrorIs(t, err, analysis.ErrSentimentAnalysisFailed)
	require.ErrorIs(t, err, analysis.ErrTimeout)
}
