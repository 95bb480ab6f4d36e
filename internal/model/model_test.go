package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseModelName(t *testing.T) {
	tests := []struct {
		in   string
		want Config
	}{
		{"openai/gpt-4o-mini", Config{Provider: "openai", Model: "gpt-4o-mini"}},
		{"Ollama/llama3.1", Config{Provider: "ollama", Model: "llama3.1"}},
		{"gpt-4o", Config{Provider: "openai", Model: "gpt-4o"}},
		{" ollama/qwen2.5:7b ", Config{Provider: "ollama", Model: "qwen2.5:7b"}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseModelName(tt.in))
		})
	}
}

func TestWithDefaults(t *testing.T) {
	def := Config{Provider: "ollama", Model: "llama3.1"}

	assert.Equal(t, def, Config{}.WithDefaults(def))
	assert.Equal(t,
		Config{Provider: "ollama", Model: "llama3.1", BaseURL: "http://gpu:11434/v1"},
		Config{BaseURL: "http://gpu:11434/v1"}.WithDefaults(def))
	assert.Equal(t,
		Config{Provider: "openai", Model: "gpt-4o"},
		Config{Provider: "openai", Model: "gpt-4o"}.WithDefaults(def))
	assert.Equal(t,
		Config{Provider: "openai", Model: "llama3.1"},
		Config{Provider: "openai"}.WithDefaults(def))
}

func TestNewModelFromConfigOpenAI(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")

	m, gen, err := NewModelFromConfig(Config{Provider: "openai", Model: "gpt-4o-mini"}, Generation{Stream: true})
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.True(t, gen.Stream)
}

func TestNewModelFromConfigMissingKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("MY_KEY", "")

	_, _, err := NewModelFromConfig(Config{Provider: "openai", Model: "gpt-4o-mini"}, Generation{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OPENAI_API_KEY")

	_, _, err = NewModelFromConfig(Config{Provider: "openai", Model: "gpt-4o-mini", APIKeyEnv: "MY_KEY"}, Generation{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MY_KEY")
}

func TestNewModelFromConfigLiteralKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	_, _, err := NewModelFromConfig(Config{Provider: "openai", Model: "gpt-4o-mini", APIKeyEnv: "sk-literal"}, Generation{})
	assert.NoError(t, err)
}

func TestNewModelFromConfigOllamaNeedsNoKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	m, _, err := NewModelFromConfig(Config{Provider: "ollama", Model: "llama3.1"}, Generation{})
	require.NoError(t, err)
	assert.NotNil(t, m)
}

func TestNewModelFromConfigErrors(t *testing.T) {
	_, _, err := NewModelFromConfig(Config{Provider: "bedrock", Model: "x"}, Generation{})
	assert.ErrorContains(t, err, "unsupported model provider")

	_, _, err = NewModelFromConfig(Config{Provider: "openai"}, Generation{})
	assert.ErrorContains(t, err, "model name is empty")
}

func TestGenerationConfig(t *testing.T) {
	temp := 0.2
	maxTokens := 250
	gen := Generation{Temperature: &temp, MaxTokens: &maxTokens}.GenerationConfig()

	require.NotNil(t, gen.Temperature)
	assert.InDelta(t, 0.2, *gen.Temperature, 1e-9)
	require.NotNil(t, gen.MaxTokens)
	assert.Equal(t, 250, *gen.MaxTokens)
	assert.Nil(t, gen.TopP)
	assert.False(t, gen.Stream)
}

func TestThinkingSupported(t *testing.T) {
	tests := []struct {
		cfg  Config
		want bool
	}{
		{Config{Provider: ProviderOpenAI, Model: "gpt-4o-mini"}, false},
		{Config{Provider: ProviderOpenAI, Model: "o3-mini"}, false},
		{Config{Provider: ProviderOpenAI, Model: "ChatGPT-4o-latest"}, false},
		{Config{Provider: ProviderOllama, Model: "llama3.1"}, false},
		{Config{Provider: ProviderOpenAI, Model: "claude-sonnet-4", BaseURL: "http://proxy.local/v1"}, true},
		{Config{Provider: ProviderOpenAI, Model: "gemini-2.5-flash"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.cfg.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cfg.ThinkingSupported())
		})
	}
}
