package llm

import (
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	openai "github.com/sashabaranov/go-openai"
)

const (
	openRouterBaseURL = "https://openrouter.ai/api/v1"
	defaultOllamaHost = "http://localhost:11434"
)

// NewProvider creates a completion backend for the given type and model.
// Supported types: "openai", "openrouter", "ollama". A non-empty baseURL
// replaces the backend's default endpoint.
func NewProvider(providerType string, model string, baseURL string) (Provider, error) {
	switch providerType {
	case "openai":
		apiKey := os.Getenv("OPENAI_API_KEY")
		if apiKey == "" {
			return nil, errors.WithHint(
				errors.New("OPENAI_API_KEY environment variable is not set"),
				"export OPENAI_API_KEY or choose another backend in the config file",
			)
		}
		return NewOpenAIProvider(apiKey, model, baseURL), nil

	case "openrouter":
		apiKey := os.Getenv("OPENROUTER_API_KEY")
		if apiKey == "" {
			return nil, errors.New("OPENROUTER_API_KEY environment variable is not set")
		}
		cfg := openai.DefaultConfig(apiKey)
		cfg.BaseURL = openRouterBaseURL
		if baseURL != "" {
			cfg.BaseURL = baseURL
		}
		return newOpenAICompatible("openrouter", cfg, model), nil

	case "ollama":
		host := os.Getenv("OLLAMA_HOST")
		if host == "" {
			host = defaultOllamaHost
		}
		cfg := openai.DefaultConfig("ollama")
		cfg.BaseURL = strings.TrimSuffix(host, "/") + "/v1"
		if baseURL != "" {
			cfg.BaseURL = baseURL
		}
		return newOpenAICompatible("ollama", cfg, model), nil

	default:
		return nil, errors.Newf("unsupported backend: %s", providerType)
	}
}
