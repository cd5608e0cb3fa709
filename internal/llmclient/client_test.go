package llmclient

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dkovalq/pagepilot-cli/internal/config"
)

func TestNew_SelectsProvider(t *testing.T) {
	tests := []struct {
		name     string
		provider config.Provider
		wantType any
	}{
		{"gemini", config.ProviderGemini, &GeminiClient{}},
		{"openai", config.ProviderOpenAI, &OpenAIClient{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := New(config.AgentConfig{
				Provider:       tt.provider,
				Model:          "test-model",
				APIKey:         "key",
				RequestTimeout: time.Second,
			}, zap.NewNop())
			require.NoError(t, err)
			assert.IsType(t, tt.wantType, client)
		})
	}
}

func TestNew_UnknownProvider(t *testing.T) {
	_, err := New(config.AgentConfig{Provider: "llamacloud"}, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown LLM provider")
}

func TestNew_RPMWrapsWithLimiter(t *testing.T) {
	client, err := New(config.AgentConfig{
		Provider:       config.ProviderGemini,
		Model:          "test-model",
		APIKey:         "key",
		RequestTimeout: time.Second,
		RPM:            30,
	}, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &limitedClient{}, client)
}

// stubClient counts Generate calls behind the limiter.
type stubClient struct {
	calls int
}

func (s *stubClient) Generate(ctx context.Context, req GenerationRequest) (string, error) {
	s.calls++
	return "ok", nil
}

func TestLimitedClient_PropagatesContextCancel(t *testing.T) {
	inner := &stubClient{}
	// A drained zero-burst-equivalent limiter forces Wait to block.
	client, err := New(config.AgentConfig{
		Provider:       config.ProviderGemini,
		Model:          "m",
		APIKey:         "key",
		RequestTimeout: time.Second,
		RPM:            1,
	}, zap.NewNop())
	require.NoError(t, err)
	limited := client.(*limitedClient)
	limited.inner = inner

	// First call consumes the single available token.
	_, err = limited.Generate(context.Background(), GenerationRequest{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = limited.Generate(ctx, GenerationRequest{})
	require.Error(t, err)

	var llmErr *Error
	require.ErrorAs(t, err, &llmErr)
	assert.Equal(t, KindTimeout, llmErr.Kind)
	assert.Equal(t, 1, inner.calls)
}
