package llm

import (
	"fmt"
	"os"
	"strings"

	"github.com/ppiankov/persona/internal/model"
)

// NewProvider creates a new LLM provider based on configuration
func NewProvider(config Config) (Provider, error) {
	provider := strings.ToLower(config.Provider)

	switch provider {
	case ProviderGroq, "":
		config.Provider = ProviderGroq
		return NewGroqProvider(config)

	case ProviderOpenAI:
		return NewOpenAIProvider(config)

	case ProviderAnthropic, "claude":
		config.Provider = ProviderAnthropic
		return NewAnthropicProvider(config)

	case ProviderOllama:
		return NewOllamaProvider(config)

	default:
		return nil, fmt.Errorf("unknown LLM provider: %s (supported: groq, openai, anthropic, ollama)", config.Provider)
	}
}

// ConfigFromModel converts model.LLMConfig to llm.Config
func ConfigFromModel(modelConfig model.LLMConfig, source model.SourceConfig) Config {
	return Config{
		Provider:    modelConfig.Provider,
		Model:       modelConfig.Model,
		APIKey:      modelConfig.APIKey,
		BaseURL:     modelConfig.BaseURL,
		Timeout:     modelConfig.Timeout,
		MaxTokens:   modelConfig.MaxTokens,
		Temperature: modelConfig.Temperature,
		HTTPProxy:   source.HTTPProxy,
		HTTPSProxy:  source.HTTPSProxy,
		NoProxy:     source.NoProxy,
	}
}

// LoadConfigFromEnv fills provider, key and endpoint from the conventional
// environment variables where the config leaves them empty
func LoadConfigFromEnv(config Config) Config {
	if config.Provider == "" {
		config.Provider = os.Getenv("LLM_PROVIDER")
	}
	if config.Provider == "" {
		config.Provider = ProviderGroq
	}
	if config.APIKey == "" {
		config.APIKey = APIKeyFromEnv(config.Provider)
	}
	if config.BaseURL == "" && strings.EqualFold(config.Provider, ProviderOllama) {
		config.BaseURL = os.Getenv("OLLAMA_BASE_URL")
	}
	return config
}
