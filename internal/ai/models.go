package ai

import (
	"encoding/json"
	"os"
	"sort"

	"github.com/KaramelBytes/datatidy-cli/internal/errors"
)

// ModelInfo describes a chat model the issue reporter can use. Prices are
// indicative and only feed the cost line of the report.
type ModelInfo struct {
	Name          string  `json:"name"`
	Provider      string  `json:"provider"`
	ContextTokens int     `json:"context_tokens"`
	InputPerK     float64 `json:"input_per_k"`  // USD per 1K input tokens
	OutputPerK    float64 `json:"output_per_k"` // USD per 1K output tokens
}

// fallbackContextTokens applies to models missing from the catalog.
const fallbackContextTokens = 8192

var models = map[string]ModelInfo{
	"llama-3.3-70b-versatile": {Name: "llama-3.3-70b-versatile", Provider: ProviderGroq, ContextTokens: 131072, InputPerK: 0.00059, OutputPerK: 0.00079},
	"llama-3.1-8b-instant":    {Name: "llama-3.1-8b-instant", Provider: ProviderGroq, ContextTokens: 131072, InputPerK: 0.00005, OutputPerK: 0.00008},
	"gemma2-9b-it":            {Name: "gemma2-9b-it", Provider: ProviderGroq, ContextTokens: 8192, InputPerK: 0.0002, OutputPerK: 0.0002},

	"meta-llama/llama-3.3-70b-instruct": {Name: "meta-llama/llama-3.3-70b-instruct", Provider: ProviderOpenRouter, ContextTokens: 131072, InputPerK: 0.00012, OutputPerK: 0.0003},
	"openai/gpt-4o-mini":                {Name: "openai/gpt-4o-mini", Provider: ProviderOpenRouter, ContextTokens: 128000, InputPerK: 0.00015, OutputPerK: 0.0006},
	"deepseek/deepseek-r1:free":         {Name: "deepseek/deepseek-r1:free", Provider: ProviderOpenRouter, ContextTokens: 128000},

	"llama3.1:8b-instruct":  {Name: "llama3.1:8b-instruct", Provider: ProviderOllama, ContextTokens: 8192},
	"mistral:7b-instruct":   {Name: "mistral:7b-instruct", Provider: ProviderOllama, ContextTokens: 8192},
	"phi3:mini-4k-instruct": {Name: "phi3:mini-4k-instruct", Provider: ProviderOllama, ContextTokens: 4096},
}

// LookupModel returns ModelInfo and ok flag.
func LookupModel(name string) (ModelInfo, bool) {
	mi, ok := models[name]
	return mi, ok
}

// ContextTokens returns the model's context window, or a conservative default
// for unknown models.
func ContextTokens(model string) int {
	if mi, ok := models[model]; ok && mi.ContextTokens > 0 {
		return mi.ContextTokens
	}
	return fallbackContextTokens
}

// EstimateCostUSD estimates total cost in USD for given tokens using model pricing.
// If the model is unknown, returns 0 and ok=false.
func EstimateCostUSD(model string, promptTokens, completionTokens int) (float64, bool) {
	mi, ok := LookupModel(model)
	if !ok {
		return 0, false
	}
	inCost := (float64(promptTokens) / 1000.0) * mi.InputPerK
	outCost := (float64(completionTokens) / 1000.0) * mi.OutputPerK
	return inCost + outCost, true
}

// LoadCatalogFromJSON loads a JSON object map[string]ModelInfo from a file path.
func LoadCatalogFromJSON(path string) (map[string]ModelInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var m map[string]ModelInfo
	if err := json.NewDecoder(f).Decode(&m); err != nil {
		return nil, errors.Wrapf(err, "decode model catalog %s", path)
	}
	for k, v := range m {
		if v.Name == "" {
			v.Name = k
			m[k] = v
		}
	}
	return m, nil
}

// MergeCatalog merges/overrides entries in the in-memory catalog.
func MergeCatalog(m map[string]ModelInfo) {
	for k, v := range m {
		models[k] = v
	}
}

// Catalog returns the catalog entries for provider (all when empty), sorted
// by name.
func Catalog(provider string) []ModelInfo {
	out := make([]ModelInfo, 0, len(models))
	for _, v := range models {
		if provider == "" || v.Provider == provider {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
