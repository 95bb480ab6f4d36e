package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Config captures PostgreSQL connection tuning options.
type Config struct {
	URL               string        `env:"DATABASE_URL"`
	MaxConns          int32         `env:"PG_MAX_CONNS"`
	MinConns          int32         `env:"PG_MIN_CONNS"`
	MaxConnIdleTime   time.Duration `env:"PG_MAX_CONN_IDLE"`
	MaxConnLifetime   time.Duration `env:"PG_MAX_CONN_LIFETIME"`
	HealthCheckPeriod time.Duration `env:"PG_HEALTHCHECK_PERIOD"`
}

// FromEnv builds a Config by reading well-known environment variables.
func FromEnv(ctx context.Context) (Config, error) {
	return FromLookuper(ctx, envconfig.OsLookuper())
}

// FromLookuper builds a Config from l.
func FromLookuper(ctx context.Context, l envconfig.Lookuper) (Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: l}); err != nil {
		return Config{}, fmt.Errorf("postgres: process config: %w", err)
	}
	return cfg, nil
}

// Enabled reports whether a database URL is configured.
func (c Config) Enabled() bool {
	return c.URL != ""
}
