package llm

import (
	"github.com/sashabaranov/go-openai"

	"github.com/comigor/askdata-go/internal/config"
)

// NewClient creates an OpenAI-compatible client for the configured provider.
// "azure" uses Azure OpenAI deployments; anything else is treated as an OpenAI-compatible
// endpoint at BaseURL (the public API when empty).
func NewClient(cfg config.LLMConfig) *openai.Client {
	if cfg.Provider == "azure" {
		return openai.NewClientWithConfig(openai.DefaultAzureConfig(cfg.APIKey, cfg.BaseURL))
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	return openai.NewClientWithConfig(clientConfig)
}
