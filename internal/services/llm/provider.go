package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/dastanaron/bookaimark/internal/config"
)

// HealthChecker is implemented by every provider client.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

type unconfigured struct{}

func (unconfigured) CompleteJSON(context.Context, string, string) (string, error) {
	return "", ErrNotConfigured
}

func (unconfigured) HealthCheck(context.Context) error { return ErrNotConfigured }

// New returns the completer selected by cfg.Provider. A missing API key is
// not an error here: the returned completer fails every call with
// ErrNotConfigured so analysis can degrade.
func New(ctx context.Context, cfg config.LLM, opts ...Option) (Completer, error) {
	clientCfg := Config{
		APIKey:         cfg.APIKey,
		BaseURL:        cfg.BaseURL,
		Model:          cfg.Model,
		Referer:        cfg.Referer,
		Title:          cfg.Title,
		TimeoutSeconds: cfg.TimeoutSeconds,
	}
	switch cfg.Provider {
	case config.ProviderGemini:
		client, err := NewGeminiClient(ctx, clientCfg)
		if errors.Is(err, ErrNotConfigured) {
			return unconfigured{}, nil
		}
		return client, err
	case config.ProviderOpenAI, "":
		if cfg.RetryAttempts > 0 {
			opts = append([]Option{WithRetryMaxAttempts(cfg.RetryAttempts)}, opts...)
		}
		return NewClient(clientCfg, opts...), nil
	default:
		return nil, fmt.Errorf("llm provider: unsupported value %q", cfg.Provider)
	}
}
