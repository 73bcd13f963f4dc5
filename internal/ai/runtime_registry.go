package ai

import (
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// RuntimeFactory builds a Runtime from the generic config below.
type RuntimeFactory func(RuntimeConfig) Runtime

// RuntimeConfig carries common knobs used by runtimes.
type RuntimeConfig struct {
	// Common
	HTTPTimeout time.Duration
	RetryMax    int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	// Limiter is shared by every runtime built for a batch so concurrent
	// runs stay under the provider's request budget. Nil means unpaced.
	Limiter *rate.Limiter
	Logger  *zap.SugaredLogger
	// Hosted providers
	APIKey  string
	BaseURL string
	// Ollama
	Host string
}

// NewLimiter returns a limiter allowing perMinute requests per minute, or nil
// when perMinute is not positive.
func NewLimiter(perMinute int) *rate.Limiter {
	if perMinute <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1)
}

var registry = map[string]RuntimeFactory{}

// RegisterRuntime registers a provider name with its factory.
func RegisterRuntime(name string, f RuntimeFactory) { registry[name] = f }

// GetRuntime creates a Runtime for the given provider if registered.
func GetRuntime(name string, cfg RuntimeConfig) (Runtime, bool) {
	if f, ok := registry[name]; ok {
		return f(cfg), true
	}
	return nil, false
}

func hosted(provider string) RuntimeFactory {
	return func(c RuntimeConfig) Runtime {
		cl := NewClient(provider, c.APIKey, c.HTTPTimeout, c.RetryMax, c.BaseDelay, c.MaxDelay)
		if c.BaseURL != "" {
			cl.baseURL = trimSlash(c.BaseURL)
		}
		return cl.WithLimiter(c.Limiter).WithLogger(c.Logger)
	}
}

// init registers built-in runtimes.
func init() {
	RegisterRuntime(ProviderGroq, hosted(ProviderGroq))
	RegisterRuntime(ProviderOpenRouter, hosted(ProviderOpenRouter))
	RegisterRuntime(ProviderOllama, func(c RuntimeConfig) Runtime {
		if c.RetryMax <= 0 {
			c.RetryMax = 2
		}
		if c.BaseDelay <= 0 {
			c.BaseDelay = 200 * time.Millisecond
		}
		if c.MaxDelay <= 0 {
			c.MaxDelay = 1 * time.Second
		}
		return NewOllamaClient(c.Host, c.HTTPTimeout, c.RetryMax, c.BaseDelay, c.MaxDelay).
			WithLimiter(c.Limiter).WithLogger(c.Logger)
	})
}
