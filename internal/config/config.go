// Package config loads process configuration from .env files and the
// environment.
package config

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"

	appmodel "agentdemos/internal/model"
)

// Config is the process-wide configuration shared by the server and the CLI.
type Config struct {
	// ModelName is the default backend in provider/model form, e.g.
	// "openai/gpt-4o-mini" or "ollama/llama3.1".
	ModelName     string `env:"LLM_MODEL_NAME,default=openai/gpt-4o-mini"`
	OpenAIBaseURL string `env:"OPENAI_BASE_URL"`
	OllamaBaseURL string `env:"OLLAMA_BASE_URL,default=http://localhost:11434/v1"`

	AppName   string `env:"AGENTDEMOS_APP_NAME,default=agentdemos"`
	ConfigDir string `env:"AGENTDEMOS_CONFIG_DIR"`
	HTTPAddr  string `env:"AGENTDEMOS_HTTP_ADDR,default=:8081"`
	WebDir    string `env:"AGENTDEMOS_WEB_DIR,default=./web"`
	LogLevel  string `env:"LOG_LEVEL,default=info"`

	Tools ToolsConfig
}

// ToolsConfig holds the upstream endpoints used by the HTTP-backed tools.
type ToolsConfig struct {
	HTTPTimeout     time.Duration `env:"TOOL_HTTP_TIMEOUT,default=5s"`
	UserAgent       string        `env:"TOOL_USER_AGENT,default=time_agent_app"`
	NominatimURL    string        `env:"NOMINATIM_URL,default=https://nominatim.openstreetmap.org"`
	WorldTimeURL    string        `env:"WORLDTIME_URL,default=https://worldtimeapi.org"`
	OpenMeteoURL    string        `env:"OPEN_METEO_URL,default=https://api.open-meteo.com"`
	GeocodingURL    string        `env:"OPEN_METEO_GEOCODING_URL,default=https://geocoding-api.open-meteo.com"`
	DuckDuckGoURL   string        `env:"DUCKDUCKGO_URL,default=https://api.duckduckgo.com"`
	LocalTimeOnFail bool          `env:"CURRENT_TIME_LOCAL_FALLBACK,default=true"`
}

// Load reads .env files (overriding existing variables, like the tutorials
// do) and then processes the environment.
func Load(ctx context.Context, envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		// Missing .env files are fine.
		_ = godotenv.Overload(f)
	}
	return Process(ctx, envconfig.OsLookuper())
}

// Process fills a Config from the given lookuper.
func Process(ctx context.Context, l envconfig.Lookuper) (Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: l,
	}); err != nil {
		return Config{}, fmt.Errorf("process config: %w", err)
	}
	return cfg, nil
}

// Defaults returns a Config with every default applied and nothing read
// from the environment.
func Defaults() Config {
	cfg, err := Process(context.Background(), envconfig.MapLookuper(map[string]string{}))
	if err != nil {
		panic(err)
	}
	return cfg
}

// SlogLevel maps LogLevel to a slog.Level, defaulting to info.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// DefaultModel is the backend used by agents that don't name one.
func (c Config) DefaultModel() appmodel.Config {
	m := appmodel.ParseModelName(c.ModelName)
	switch m.Provider {
	case appmodel.ProviderOpenAI:
		m.BaseURL = c.OpenAIBaseURL
	case appmodel.ProviderOllama:
		m.BaseURL = c.OllamaBaseURL
	}
	return m
}
