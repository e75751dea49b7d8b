package llm

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
)

// Provider defines the interface for LLM providers
type Provider interface {
	// Name returns the provider name
	Name() string

	// Complete sends one prompt and returns the raw completion text.
	// It makes a single round trip and never retries.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// Ping checks that the backend is configured and reachable
	Ping(ctx context.Context) error
}

// CompletionRequest contains the input for one completion
type CompletionRequest struct {
	// Prompt is the full user prompt
	Prompt string

	// System is an optional system instruction
	System string

	// Model overrides the configured model (provider-specific)
	Model string

	// MaxTokens limits the response length
	MaxTokens int

	// Temperature overrides the configured sampling temperature when > 0
	Temperature float32
}

// CompletionResponse contains the model's raw output
type CompletionResponse struct {
	// Text is the untrusted completion text
	Text string

	// Model is the model that generated the response
	Model string

	// TokensUsed tracks token consumption
	TokensUsed int
}

// ErrCompletion is matched by every CompletionError
var ErrCompletion = errors.New("completion failed")

// CompletionError reports a failed call to the completion backend
type CompletionError struct {
	Provider string
	Err      error
}

func (e *CompletionError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Provider, ErrCompletion, e.Err)
}

func (e *CompletionError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrCompletion) match
func (e *CompletionError) Is(target error) bool {
	return target == ErrCompletion
}

// Config holds LLM provider configuration
type Config struct {
	// Provider name: "groq", "openai", "anthropic", "ollama"
	Provider string

	// Model name (provider-specific)
	Model string

	// APIKey for Groq/OpenAI/Anthropic
	APIKey string

	// BaseURL for custom endpoints (e.g., Ollama)
	BaseURL string

	// Timeout for API requests
	Timeout int // seconds

	// MaxTokens for response generation
	MaxTokens int

	// Temperature for sampling
	Temperature float32

	// Proxy settings
	HTTPProxy  string
	HTTPSProxy string
	NoProxy    string
}

// Provider names
const (
	ProviderGroq      = "groq"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderOllama    = "ollama"
)

// Default models per provider
const (
	DefaultGroqModel      = "llama-3.1-8b-instant"
	DefaultOpenAIModel    = "gpt-4o-mini"
	DefaultAnthropicModel = "claude-3-5-haiku-20241022"
	DefaultOllamaModel    = "mistral"
)

const (
	defaultTimeout     = 60
	defaultMaxTokens   = 4096
	defaultTemperature = 0.7
)

// SystemPrompt is sent with every persona completion
const SystemPrompt = "You analyze Reddit activity and build evidence-based user personas. Respond with a single JSON object only."

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Provider:    ProviderGroq,
		Timeout:     defaultTimeout,
		MaxTokens:   defaultMaxTokens,
		Temperature: defaultTemperature,
	}
}

// DefaultModel returns the model used when none is configured
func DefaultModel(provider string) string {
	switch strings.ToLower(provider) {
	case ProviderGroq:
		return DefaultGroqModel
	case ProviderOpenAI:
		return DefaultOpenAIModel
	case ProviderAnthropic, "claude":
		return DefaultAnthropicModel
	case ProviderOllama:
		return DefaultOllamaModel
	}
	return ""
}

// APIKeyFromEnv returns the conventional API key variable for provider
func APIKeyFromEnv(provider string) string {
	switch strings.ToLower(provider) {
	case ProviderGroq:
		return os.Getenv("GROQ_API_KEY")
	case ProviderOpenAI:
		return os.Getenv("OPENAI_API_KEY")
	case ProviderAnthropic, "claude":
		return os.Getenv("ANTHROPIC_API_KEY")
	}
	return ""
}

// resolve fills request fields left empty from the provider config
func (c Config) resolve(req CompletionRequest) CompletionRequest {
	if req.Model == "" {
		req.Model = c.Model
	}
	if req.Model == "" {
		req.Model = DefaultModel(c.Provider)
	}
	if req.MaxTokens == 0 {
		req.MaxTokens = c.MaxTokens
	}
	if req.MaxTokens == 0 {
		req.MaxTokens = defaultMaxTokens
	}
	if req.Temperature == 0 {
		req.Temperature = c.Temperature
	}
	if req.System == "" {
		req.System = SystemPrompt
	}
	return req
}

func (c Config) timeoutSeconds() int {
	if c.Timeout <= 0 {
		return defaultTimeout
	}
	return c.Timeout
}
