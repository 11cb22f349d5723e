package llm

import (
	"context"
	"strings"

	"github.com/apca/claimaudit/internal/model"
)

// Provider defines the interface for LLM providers
type Provider interface {
	// Name returns the provider name
	Name() string

	// Generate produces a completion for the request
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error)

	// IsAvailable checks if the provider is properly configured and accessible
	IsAvailable(ctx context.Context) bool
}

// GenerateRequest contains the input for a completion
type GenerateRequest struct {
	// System is the system instruction
	System string

	// Prompt is the user-turn content
	Prompt string

	// Model overrides the provider's configured model if set
	Model string

	// MaxTokens limits the response length
	MaxTokens int

	// Temperature controls sampling (0 means provider default)
	Temperature float32

	// JSONMode asks the provider for a JSON-only response where the
	// API supports it. The response is still passed through
	// ExtractJSON since not every model honors the mode.
	JSONMode bool
}

// GenerateResponse contains the model's output
type GenerateResponse struct {
	// Text is the raw completion text
	Text string

	// Model is the model that generated the response
	Model string

	// TokensUsed tracks token consumption
	TokensUsed int
}

// Config holds LLM provider configuration
type Config struct {
	// Provider name: "openai", "groq", "gemini", "ollama", ""
	Provider string

	// Model name (provider-specific)
	Model string

	// APIKey for hosted providers
	APIKey string

	// BaseURL for custom endpoints (Groq, Ollama, self-hosted gateways)
	BaseURL string

	// Timeout for API requests
	Timeout int // seconds

	// MaxTokens for response generation
	MaxTokens int
}

// ConfigFromModel converts model.LLMConfig to llm.Config
func ConfigFromModel(mc model.LLMConfig) Config {
	return Config{
		Provider:  mc.Provider,
		Model:     mc.Model,
		APIKey:    mc.APIKey,
		BaseURL:   mc.BaseURL,
		Timeout:   mc.Timeout,
		MaxTokens: mc.MaxTokens,
	}
}

// transientSignatures identify upstream failures that are worth
// retrying on another provider or degrading gracefully from, as
// opposed to bad requests that would fail anywhere.
var transientSignatures = []string{
	"rate limit",
	"quota",
	"429",
	"too many requests",
	"daily limit",
	"resource has been exhausted",
	"service unavailable",
	"503",
	"overloaded",
	"connection refused",
	"timeout",
	"deadline exceeded",
}

// IsTransient reports whether an error looks like a temporary upstream
// condition rather than a permanent request failure.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, sig := range transientSignatures {
		if strings.Contains(msg, sig) {
			return true
		}
	}
	return false
}
