package ai

import (
	"fmt"
	"time"

	"github.com/KaramelBytes/datatidy-cli/internal/errors"
)

// Typed provider errors. Each wraps the decoded APIError so callers can reach
// the status code and request id with errors.As.

// AuthError is a 401/403: missing, revoked or wrong-provider key.
type AuthError struct{ *APIError }

func (e *AuthError) Error() string { return "authentication failed: " + e.APIError.Error() }
func (e *AuthError) Unwrap() error { return e.APIError }

// RateLimitError is a 429 that survived the retries.
type RateLimitError struct {
	*APIError
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited (retry in %s): %s", e.RetryAfter, e.APIError.Error())
	}
	return "rate limited: " + e.APIError.Error()
}

func (e *RateLimitError) Unwrap() error { return e.APIError }

// ModelNotFoundError means the provider does not serve the requested model.
type ModelNotFoundError struct{ *APIError }

func (e *ModelNotFoundError) Error() string { return "model not found: " + e.APIError.Error() }
func (e *ModelNotFoundError) Unwrap() error { return e.APIError }

// BadRequestError is any other 4xx, typically a prompt over the context window.
type BadRequestError struct{ *APIError }

func (e *BadRequestError) Error() string { return "bad request: " + e.APIError.Error() }
func (e *BadRequestError) Unwrap() error { return e.APIError }

// QuotaExceededError is a billing or credit problem (402, or a quota message).
type QuotaExceededError struct{ *APIError }

func (e *QuotaExceededError) Error() string { return "quota exceeded: " + e.APIError.Error() }
func (e *QuotaExceededError) Unwrap() error { return e.APIError }

// ServerError is a 5xx that survived the retries.
type ServerError struct{ *APIError }

func (e *ServerError) Error() string { return "provider error: " + e.APIError.Error() }
func (e *ServerError) Unwrap() error { return e.APIError }

// UnreachableError means no HTTP response at all (DNS, refused connection,
// local Ollama not running).
type UnreachableError struct {
	Host string
	Err  error
}

func (e *UnreachableError) Error() string {
	if e.Host == "" {
		return fmt.Sprintf("endpoint unreachable: %v", e.Err)
	}
	return fmt.Sprintf("endpoint unreachable at %s: %v", e.Host, e.Err)
}

func (e *UnreachableError) Unwrap() error { return e.Err }

// Hint suggests a fix for a provider error, or "" when there is none.
func Hint(provider string, err error) string {
	var (
		auth    *AuthError
		model   *ModelNotFoundError
		quota   *QuotaExceededError
		limited *RateLimitError
		down    *UnreachableError
	)
	switch {
	case errors.Is(err, ErrMissingAPIKey), errors.As(err, &auth):
		if !NeedsAPIKey(provider) {
			return ""
		}
		return fmt.Sprintf("set %s or run: datatidy config set api_key <key>", APIKeyEnv(provider))
	case errors.As(err, &model):
		return "list known models with: datatidy models show --provider " + provider
	case errors.As(err, &quota):
		return "check the provider account balance, or use --provider ollama"
	case errors.As(err, &limited):
		return "lower requests_per_minute, or retry later"
	case errors.As(err, &down):
		if provider == ProviderOllama {
			return "start Ollama (ollama serve) or set ollama_host"
		}
		return "check network access to the provider"
	}
	return ""
}
