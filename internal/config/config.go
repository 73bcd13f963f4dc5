package config

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/KaramelBytes/datatidy-cli/internal/ai"
	"github.com/KaramelBytes/datatidy-cli/internal/errors"
)

// EnvPrefix prefixes every environment override (DATATIDY_API_KEY, ...).
const EnvPrefix = "DATATIDY"

// Global configuration structure.
type Global struct {
	APIKey          string `mapstructure:"api_key" yaml:"api_key"`
	DefaultProvider string `mapstructure:"default_provider" yaml:"default_provider"`
	DefaultModel    string `mapstructure:"default_model" yaml:"default_model"`
	// ModelsCatalog optionally points at a JSON model catalog merged over the
	// built-in one.
	ModelsCatalog string `mapstructure:"models_catalog" yaml:"models_catalog,omitempty"`

	// HTTP/Retry configuration
	HTTPTimeoutSec    int `mapstructure:"http_timeout_sec" yaml:"http_timeout_sec"`
	RetryMaxAttempts  int `mapstructure:"retry_max_attempts" yaml:"retry_max_attempts"`
	RetryBaseDelayMs  int `mapstructure:"retry_base_delay_ms" yaml:"retry_base_delay_ms"`
	RetryMaxDelayMs   int `mapstructure:"retry_max_delay_ms" yaml:"retry_max_delay_ms"`
	RequestsPerMinute int `mapstructure:"requests_per_minute" yaml:"requests_per_minute"`

	// Local runtimes (Ollama)
	OllamaHost string `mapstructure:"ollama_host" yaml:"ollama_host"`

	// Pipeline
	SampleRows          int     `mapstructure:"sample_rows" yaml:"sample_rows"`
	MissingRowThreshold float64 `mapstructure:"missing_row_threshold" yaml:"missing_row_threshold"`
	ReporterTimeoutSec  int     `mapstructure:"reporter_timeout_sec" yaml:"reporter_timeout_sec"`
	MaxFileMB           int     `mapstructure:"max_file_mb" yaml:"max_file_mb"`
	CasePolicy          string  `mapstructure:"case_policy" yaml:"case_policy"`
	Reimpute            bool    `mapstructure:"reimpute" yaml:"reimpute"`
	BatchConcurrency    int     `mapstructure:"batch_concurrency" yaml:"batch_concurrency"`

	// Logging
	LogLevel string `mapstructure:"log_level" yaml:"log_level"`
	LogJSON  bool   `mapstructure:"log_json" yaml:"log_json"`
}

var defaults = map[string]any{
	"api_key":               "",
	"default_provider":      ai.ProviderGroq,
	"default_model":         "",
	"models_catalog":        "",
	"http_timeout_sec":      60,
	"retry_max_attempts":    3,
	"retry_base_delay_ms":   500,
	"retry_max_delay_ms":    4000,
	"requests_per_minute":   30,
	"ollama_host":           ai.DefaultOllamaHost,
	"sample_rows":           100,
	"missing_row_threshold": 0.5,
	"reporter_timeout_sec":  30,
	"max_file_mb":           200,
	"case_policy":           "none",
	"reimpute":              true,
	"batch_concurrency":     4,
	"log_level":             "warn",
	"log_json":              false,
}

// Keys returns every configuration key in sorted order.
func Keys() []string {
	out := make([]string, 0, len(defaults))
	for k := range defaults {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Dir returns ~/.datatidy.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "resolve home dir")
	}
	return filepath.Join(home, ".datatidy"), nil
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ~/.datatidy/config.yaml, creating the directory if necessary.
func Save(c *Global, cfgFile string) error {
	path := cfgFile
	if path == "" {
		dir, err := Dir()
		if err != nil {
			return err
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrap(err, "mkdir config dir")
		}
		path = filepath.Join(dir, "config.yaml")
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return errors.Wrap(err, "marshal yaml")
	}
	if err := os.WriteFile(path, b, 0o600); err != nil {
		return errors.Wrap(err, "write config")
	}
	return nil
}

// Load loads configuration from file, env, and defaults.
// Precedence: env > config file > defaults. Flags are applied by the caller.
func Load(cfgFile string) (*Global, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		dir, err := Dir()
		if err != nil {
			return nil, err
		}
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return nil, errors.WithHint(errors.Wrap(err, "read config"), "fix or remove the config file")
		}
	}

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, errors.Wrap(err, "unmarshal config")
	}
	c.DefaultProvider = strings.ToLower(strings.TrimSpace(c.DefaultProvider))
	return &c, nil
}

// ResolveAPIKey returns the key for provider: the configured api_key first,
// then the provider's conventional variable (GROQ_API_KEY, OPENROUTER_API_KEY).
func (c *Global) ResolveAPIKey(provider string) string {
	if c.APIKey != "" {
		return c.APIKey
	}
	if !ai.NeedsAPIKey(provider) {
		return ""
	}
	return os.Getenv(ai.APIKeyEnv(provider))
}

// ModelFor returns the configured model, or the provider's default.
func (c *Global) ModelFor(provider string) string {
	if c.DefaultModel != "" {
		return c.DefaultModel
	}
	return ai.DefaultModel(provider)
}

// Set assigns value to key after converting it to the key's type.
func (c *Global) Set(key, value string) error {
	value = strings.TrimSpace(value)
	atoi := func() (int, error) {
		n, err := strconv.Atoi(value)
		if err != nil {
			return 0, errors.WithHintf(errors.Newf("%s must be an integer, got %q", key, value), "example: datatidy config set %s 10", key)
		}
		return n, nil
	}
	var err error
	switch key {
	case "api_key":
		c.APIKey = value
	case "default_provider":
		p := strings.ToLower(value)
		if _, ok := ai.GetRuntime(p, ai.RuntimeConfig{}); !ok {
			return errors.WithHintf(errors.Newf("unknown provider %q", value), "choose one of: %s", strings.Join(ai.Providers(), ", "))
		}
		c.DefaultProvider = p
	case "default_model":
		c.DefaultModel = value
	case "models_catalog":
		c.ModelsCatalog = value
	case "ollama_host":
		c.OllamaHost = value
	case "case_policy":
		c.CasePolicy = strings.ToLower(value)
	case "log_level":
		c.LogLevel = strings.ToLower(value)
	case "http_timeout_sec":
		c.HTTPTimeoutSec, err = atoi()
	case "retry_max_attempts":
		c.RetryMaxAttempts, err = atoi()
	case "retry_base_delay_ms":
		c.RetryBaseDelayMs, err = atoi()
	case "retry_max_delay_ms":
		c.RetryMaxDelayMs, err = atoi()
	case "requests_per_minute":
		c.RequestsPerMinute, err = atoi()
	case "sample_rows":
		c.SampleRows, err = atoi()
	case "reporter_timeout_sec":
		c.ReporterTimeoutSec, err = atoi()
	case "max_file_mb":
		c.MaxFileMB, err = atoi()
	case "batch_concurrency":
		c.BatchConcurrency, err = atoi()
	case "missing_row_threshold":
		f, perr := strconv.ParseFloat(value, 64)
		if perr != nil || f < 0 || f > 1 {
			return errors.Newf("missing_row_threshold must be a number in [0,1], got %q", value)
		}
		c.MissingRowThreshold = f
	case "reimpute", "log_json":
		b, perr := strconv.ParseBool(value)
		if perr != nil {
			return errors.Newf("%s must be true or false, got %q", key, value)
		}
		if key == "reimpute" {
			c.Reimpute = b
		} else {
			c.LogJSON = b
		}
	default:
		return errors.WithHintf(errors.Newf("unknown config key %q", key), "known keys: %s", strings.Join(Keys(), ", "))
	}
	return err
}

// Redacted returns a copy safe to print.
func (c Global) Redacted() Global {
	if n := len(c.APIKey); n > 8 {
		c.APIKey = c.APIKey[:4] + strings.Repeat("*", n-8) + c.APIKey[n-4:]
	} else if n > 0 {
		c.APIKey = "****"
	}
	return c
}
