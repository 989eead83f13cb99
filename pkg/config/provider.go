package config

import (
	"fmt"

	"github.com/entrhq/pilot/pkg/llm"
	"github.com/entrhq/pilot/pkg/llm/anthropic"
	"github.com/entrhq/pilot/pkg/llm/openai"
	"github.com/entrhq/pilot/pkg/logging"
)

// BuildProvider creates the LLM provider selected by cfg.LLM. The config is
// expected to have been produced by Load, so credentials and the default
// model have already been resolved.
func BuildProvider(cfg LLMConfig, logger *logging.Logger) (llm.Provider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w for provider %s", ErrMissingAPIKey, cfg.Provider)
	}

	switch cfg.Provider {
	case ProviderOpenAI:
		p, err := openai.NewProvider(cfg.APIKey,
			openai.WithModel(cfg.Model),
			openai.WithBaseURL(cfg.BaseURL),
			openai.WithLogger(logger),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create LLM provider: %w", err)
		}
		return p, nil

	case ProviderAnthropic:
		opts := []anthropic.ProviderOption{
			anthropic.WithModel(cfg.Model),
			anthropic.WithLogger(logger),
		}
		if cfg.BaseURL != "" {
			opts = append(opts, anthropic.WithBaseURL(cfg.BaseURL))
		}
		p, err := anthropic.NewProvider(cfg.APIKey, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create LLM provider: %w", err)
		}
		return p, nil

	default:
		return nil, fmt.Errorf("unknown LLM provider %q", cfg.Provider)
	}
}
