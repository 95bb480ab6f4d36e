package model

import (
	"fmt"
	"os"
	"strings"

	"trpc.group/trpc-go/trpc-agent-go/model"
	"trpc.group/trpc-go/trpc-agent-go/model/openai"
)

// Supported providers.
const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
)

const defaultOllamaBaseURL = "http://localhost:11434/v1"

// Config describes how to construct a Model instance.
type Config struct {
	Provider  string `json:"provider,omitempty" yaml:"provider,omitempty"`       // e.g. "openai"
	Model     string `json:"model,omitempty" yaml:"model,omitempty"`             // e.g. "gpt-4o-mini"
	BaseURL   string `json:"base_url,omitempty" yaml:"base_url,omitempty"`       // optional per-agent override
	APIKeyEnv string `json:"api_key_env,omitempty" yaml:"api_key_env,omitempty"` // env var name, or a literal key starting with sk-
}

// Generation holds per-agent sampling settings.
type Generation struct {
	Temperature *float64  `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	MaxTokens   *int      `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`
	TopP        *float64  `json:"top_p,omitempty" yaml:"top_p,omitempty"`
	Stream      bool      `json:"stream,omitempty" yaml:"stream,omitempty"`
	Thinking    *Thinking `json:"thinking,omitempty" yaml:"thinking,omitempty"`
}

// Thinking asks the backend to include its reasoning, bounded by Tokens.
type Thinking struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
	Tokens  int  `json:"tokens,omitempty" yaml:"tokens,omitempty"`
}

// ParseModelName splits a provider-prefixed model name such as
// "openai/gpt-4o-mini" or "ollama/llama3.1". Names without a prefix are
// OpenAI models.
func ParseModelName(name string) Config {
	name = strings.TrimSpace(name)
	provider, rest, ok := strings.Cut(name, "/")
	if !ok {
		return Config{Provider: ProviderOpenAI, Model: name}
	}
	return Config{Provider: strings.ToLower(provider), Model: rest}
}

// String renders the config back to provider/model form.
func (c Config) String() string {
	if c.Provider == "" {
		return c.Model
	}
	return c.Provider + "/" + c.Model
}

// WithDefaults fills empty provider and model fields from def.
func (c Config) WithDefaults(def Config) Config {
	if c.Provider == "" && c.Model == "" {
		out := def
		if c.BaseURL != "" {
			out.BaseURL = c.BaseURL
		}
		if c.APIKeyEnv != "" {
			out.APIKeyEnv = c.APIKeyEnv
		}
		return out
	}
	if c.Provider == "" {
		c.Provider = ProviderOpenAI
	}
	if c.Model == "" {
		c.Model = def.Model
	}
	return c
}

// openAIModelPrefixes name models served by OpenAI itself, which reject the
// thinking_* request fields.
var openAIModelPrefixes = []string{"gpt-", "chatgpt-", "o1", "o3", "o4"}

// ThinkingSupported reports whether the backend accepts the thinking
// request fields. They are understood by Claude and Gemini models behind an
// OpenAI-compatible endpoint, not by OpenAI's own models or Ollama.
func (c Config) ThinkingSupported() bool {
	if c.Provider != ProviderOpenAI {
		return false
	}
	name := strings.ToLower(c.Model)
	for _, p := range openAIModelPrefixes {
		if strings.HasPrefix(name, p) {
			return false
		}
	}
	return true
}

// NewModelFromConfig builds a model.Model and its GenerationConfig.
func NewModelFromConfig(cfg Config, gen Generation) (model.Model, model.GenerationConfig, error) {
	if cfg.Model == "" {
		return nil, model.GenerationConfig{}, fmt.Errorf("model name is empty for provider %q", cfg.Provider)
	}

	var opts []openai.Option
	switch cfg.Provider {
	case ProviderOpenAI:
		// Base URL: config override > OPENAI_BASE_URL.
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = os.Getenv("OPENAI_BASE_URL")
		}
		if baseURL != "" {
			opts = append(opts, openai.WithBaseURL(baseURL))
		}

		apiKey, err := resolveAPIKey(cfg.APIKeyEnv)
		if err != nil {
			return nil, model.GenerationConfig{}, err
		}
		opts = append(opts, openai.WithAPIKey(apiKey))

	case ProviderOllama:
		// Ollama serves an OpenAI-compatible API under /v1 and ignores the key.
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = os.Getenv("OLLAMA_BASE_URL")
		}
		if baseURL == "" {
			baseURL = defaultOllamaBaseURL
		}
		apiKey := ProviderOllama
		if cfg.APIKeyEnv != "" {
			if k, err := resolveAPIKey(cfg.APIKeyEnv); err == nil {
				apiKey = k
			}
		}
		opts = append(opts, openai.WithBaseURL(baseURL), openai.WithAPIKey(apiKey))

	default:
		return nil, model.GenerationConfig{}, fmt.Errorf("unsupported model provider: %s", cfg.Provider)
	}

	m := openai.New(cfg.Model, opts...)
	return m, gen.GenerationConfig(), nil
}

// GenerationConfig converts the settings to the framework type.
func (g Generation) GenerationConfig() model.GenerationConfig {
	return model.GenerationConfig{
		Stream:      g.Stream,
		Temperature: g.Temperature,
		MaxTokens:   g.MaxTokens,
		TopP:        g.TopP,
	}
}

func resolveAPIKey(keyEnv string) (string, error) {
	if strings.HasPrefix(keyEnv, "sk-") {
		return keyEnv, nil
	}
	if keyEnv == "" {
		keyEnv = "OPENAI_API_KEY"
	}
	apiKey := os.Getenv(keyEnv)
	if apiKey == "" {
		return "", fmt.Errorf("missing API key, env %s is empty", keyEnv)
	}
	return apiKey, nil
}
