package llmclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dkovalq/pagepilot-cli/internal/config"
)

func geminiSuccessBody(text string) string {
	payload := map[string]any{
		"candidates": []map[string]any{
			{
				"content":      map[string]any{"parts": []map[string]any{{"text": text}}},
				"finishReason": "STOP",
			},
		},
	}
	body, _ := json.Marshal(payload)
	return string(body)
}

func newTestGemini(t *testing.T, endpoint string) *GeminiClient {
	t.Helper()
	client, err := NewGeminiClient(config.AgentConfig{
		APIKey:         "test-key",
		Model:          "gemini-2.0-flash",
		Endpoint:       endpoint,
		RequestTimeout: 5 * time.Second,
	}, zap.NewNop())
	require.NoError(t, err)
	return client
}

func TestNewGeminiClient_MissingKeyIsAuthError(t *testing.T) {
	_, err := NewGeminiClient(config.AgentConfig{Model: "gemini-2.0-flash"}, zap.NewNop())
	require.Error(t, err)

	var llmErr *Error
	require.ErrorAs(t, err, &llmErr)
	assert.Equal(t, KindAuth, llmErr.Kind)
	assert.Contains(t, err.Error(), "API key")
}

func TestGeminiGenerate_Success(t *testing.T) {
	var gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("x-goog-api-key")
		var payload geminiRequestPayload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "application/json", payload.GenerationConfig.ResponseMimeType)
		w.Write([]byte(geminiSuccessBody(`{"done":true}`)))
	}))
	defer srv.Close()

	client := newTestGemini(t, srv.URL)
	out, err := client.Generate(context.Background(), GenerationRequest{
		SystemPrompt: "you are a browser agent",
		UserPrompt:   "click the button",
		ForceJSON:    true,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"done":true}`, out)
	assert.Equal(t, "test-key", gotKey)
}

func TestGeminiGenerate_PermanentOn400(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, `{"error":"bad request"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	client := newTestGemini(t, srv.URL)
	_, err := client.Generate(context.Background(), GenerationRequest{UserPrompt: "x"})
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load(), "4xx must not be retried")

	var llmErr *Error
	require.ErrorAs(t, err, &llmErr)
	assert.Equal(t, KindProtocol, llmErr.Kind)
}

func TestGeminiGenerate_AuthKindOn401(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid api key"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := newTestGemini(t, srv.URL)
	_, err := client.Generate(context.Background(), GenerationRequest{UserPrompt: "x"})
	require.Error(t, err)

	var llmErr *Error
	require.ErrorAs(t, err, &llmErr)
	assert.Equal(t, KindAuth, llmErr.Kind)
}

func TestGeminiGenerate_RetriesTransient(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(geminiSuccessBody("recovered")))
	}))
	defer srv.Close()

	client := newTestGemini(t, srv.URL)
	out, err := client.Generate(context.Background(), GenerationRequest{UserPrompt: "x"})
	require.NoError(t, err)
	assert.Equal(t, "recovered", out)
	assert.GreaterOrEqual(t, calls.Load(), int32(2))
}

func TestGeminiGenerate_NoCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"candidates":[]}`))
	}))
	defer srv.Close()

	client := newTestGemini(t, srv.URL)
	_, err := client.Generate(context.Background(), GenerationRequest{UserPrompt: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no candidates")
}

func TestClassifyTransportErr(t *testing.T) {
	assert.Equal(t, KindTimeout, classifyTransportErr(context.DeadlineExceeded))
	assert.Equal(t, KindNetwork, classifyTransportErr(errors.New("connection refused")))
}
