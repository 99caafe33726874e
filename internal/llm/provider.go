package llm

import (
	"context"

	"github.com/krzemienski/awesome-researcher/internal/model"
)

// Provider defines the interface for chat-completion providers used by the
// planner, the researcher and description trimming
type Provider interface {
	// Name returns the provider name
	Name() string

	// Complete generates a completion for the given request
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// IsAvailable checks if the provider is properly configured and accessible
	IsAvailable(ctx context.Context) bool
}

// CompletionRequest contains the input for a chat completion
type CompletionRequest struct {
	// System is the system message framing the task
	System string

	// Prompt is the user message
	Prompt string

	// Model is the specific model to use (provider-specific); empty falls
	// back to the provider's configured default
	Model string

	// MaxTokens limits the response length
	MaxTokens int

	// Temperature controls sampling; zero means the provider default
	Temperature float32
}

// CompletionResponse contains the provider's output
type CompletionResponse struct {
	// Text is the generated completion
	Text string

	// Model is the model that generated the response
	Model string

	// PromptTokens and CompletionTokens track token consumption for the
	// cost tracker
	PromptTokens     int
	CompletionTokens int
}

// TotalTokens returns the combined token count of the call
func (r *CompletionResponse) TotalTokens() int {
	return r.PromptTokens + r.CompletionTokens
}

// Config holds LLM provider configuration
type Config struct {
	// Provider name: "openai", "anthropic", "ollama"
	Provider string

	// Model is the default model name (provider-specific)
	Model string

	// APIKey for OpenAI/Anthropic
	APIKey string

	// BaseURL for custom endpoints (e.g., Ollama)
	BaseURL string

	// Timeout for API requests
	Timeout int // seconds

	// MaxTokens for response generation
	MaxTokens int

	// Proxy settings
	HTTPProxy  string
	HTTPSProxy string
	NoProxy    string
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Provider:  "openai",
		Timeout:   30,
		MaxTokens: 2000,
	}
}

// ConfigFromModel converts model.LLMConfig to llm.Config
func ConfigFromModel(mc model.LLMConfig) Config {
	return Config{
		Provider:  mc.Provider,
		Model:     mc.ResearchModel,
		APIKey:    mc.APIKey,
		BaseURL:   mc.BaseURL,
		Timeout:   mc.Timeout,
		MaxTokens: mc.MaxTokens,
	}
}
