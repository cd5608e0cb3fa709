// File: internal/llmclient/client.go
package llmclient

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/dkovalq/pagepilot-cli/internal/config"
)

// GenerationRequest carries one prompt exchange to a provider.
type GenerationRequest struct {
	SystemPrompt string
	UserPrompt   string
	Temperature  float64
	// ForceJSON asks the provider for a JSON-typed response where supported.
	ForceJSON bool
}

// Client is the minimal surface the agent executor needs from a provider.
type Client interface {
	Generate(ctx context.Context, req GenerationRequest) (string, error)
}

// New builds the provider client selected by cfg, wrapped with a shared
// request rate limiter when agent.rpm is set.
func New(cfg config.AgentConfig, logger *zap.Logger) (Client, error) {
	var (
		client Client
		err    error
	)
	switch cfg.Provider {
	case config.ProviderGemini:
		client, err = NewGeminiClient(cfg, logger)
	case config.ProviderOpenAI:
		client, err = NewOpenAIClient(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	logger.Info("Instantiated LLM client",
		zap.String("provider", string(cfg.Provider)),
		zap.String("model", cfg.Model),
	)

	if cfg.RPM > 0 {
		client = &limitedClient{
			inner:   client,
			limiter: rate.NewLimiter(rate.Limit(float64(cfg.RPM)/60.0), 1),
		}
	}
	return client, nil
}

// limitedClient throttles Generate calls through a token bucket.
type limitedClient struct {
	inner   Client
	limiter *rate.Limiter
}

func (l *limitedClient) Generate(ctx context.Context, req GenerationRequest) (string, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		// Wait fails only when the context ends or its deadline cannot
		// accommodate the required delay.
		return "", newError(KindTimeout, "llm rate limiter", err)
	}
	return l.inner.Generate(ctx, req)
}
