package core

import (
	"fmt"

	"github.com/droverhq/drover/config"
	"github.com/droverhq/drover/provider"
	anthropic_provider "github.com/droverhq/drover/provider/anthropic"
	openai_provider "github.com/droverhq/drover/provider/openai"
)

// NewLLMProvider creates the configured model provider.
func NewLLMProvider(cfg config.LLMConfig) (provider.Provider, error) {
	switch provider.Client(cfg.Provider) {
	case provider.OpenAI:
		return openai_provider.NewClient(cfg.APIKey, cfg.BaseURL, cfg.Temperature, cfg.MaxTokens, cfg.Timeout), nil
	case provider.Anthropic:
		return anthropic_provider.NewClient(cfg.APIKey, cfg.BaseURL, cfg.Temperature, cfg.MaxTokens, cfg.Timeout), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider type: %s", cfg.Provider)
	}
}
