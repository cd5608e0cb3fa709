// File: internal/llmclient/openai.go
package llmclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/dkovalq/pagepilot-cli/internal/config"
)

// OpenAIClient speaks the chat completions API, including any
// OpenAI-compatible endpoint selected via agent.endpoint.
type OpenAIClient struct {
	client *openai.Client
	model  string
	logger *zap.Logger
}

// NewOpenAIClient initializes the client. A missing API key is an
// initialization failure, reported before the shell loop starts.
func NewOpenAIClient(cfg config.AgentConfig, logger *zap.Logger) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, newError(KindAuth, "openai init", fmt.Errorf("OpenAI API key is required (set agent.api_key or PAGEPILOT_AGENT_API_KEY)"))
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.Endpoint != "" {
		clientCfg.BaseURL = cfg.Endpoint
	}
	clientCfg.HTTPClient = &http.Client{Timeout: cfg.RequestTimeout}

	return &OpenAIClient{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
		logger: logger.Named("llm.openai"),
	}, nil
}

// Generate sends the prompts as a two-message chat completion.
func (c *OpenAIClient) Generate(ctx context.Context, req GenerationRequest) (string, error) {
	chatReq := openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: float32(req.Temperature),
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.SystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: req.UserPrompt},
		},
	}
	if req.ForceJSON {
		chatReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := c.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return "", c.wrapAPIError(err)
	}
	if len(resp.Choices) == 0 {
		return "", newError(KindProtocol, "openai response", fmt.Errorf("API returned no choices"))
	}

	c.logger.Debug("LLM generation complete",
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
	)
	return resp.Choices[0].Message.Content, nil
}

func (c *OpenAIClient) wrapAPIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return newError(classifyHTTPStatus(apiErr.HTTPStatusCode), "openai request", err)
	}
	return newError(classifyTransportErr(err), "openai request", err)
}
