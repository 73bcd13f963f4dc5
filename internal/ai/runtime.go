package ai

import "context"

// Runtime is the chat backend the issue reporter talks to: a hosted
// OpenAI-compatible endpoint (Groq, OpenRouter) or a local Ollama.
type Runtime interface {
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error)
}

// Provider identifiers used across the CLI for selection.
const (
	ProviderGroq       = "groq"
	ProviderOpenRouter = "openrouter"
	ProviderOllama     = "ollama"
)

// Providers lists the selectable providers in display order.
func Providers() []string {
	return []string{ProviderGroq, ProviderOpenRouter, ProviderOllama}
}

// Default request parameters for the issue assessment call.
const (
	DefaultTemperature = 0.3
	DefaultMaxTokens   = 1500
)

// DefaultModel returns the model used when none is configured.
func DefaultModel(provider string) string {
	switch provider {
	case ProviderOpenRouter:
		return "meta-llama/llama-3.3-70b-instruct"
	case ProviderOllama:
		return "llama3.1:8b-instruct"
	default:
		return "llama-3.3-70b-versatile"
	}
}

// NeedsAPIKey reports whether the provider is hosted and requires a key.
func NeedsAPIKey(provider string) bool {
	return provider != ProviderOllama
}

// apiKeyEnv names the provider's conventional key variable.
func apiKeyEnv(provider string) string {
	if provider == ProviderOpenRouter {
		return "OPENROUTER_API_KEY"
	}
	return "GROQ_API_KEY"
}

// APIKeyEnv is the exported form of apiKeyEnv for config fallbacks.
func APIKeyEnv(provider string) string { return apiKeyEnv(provider) }
