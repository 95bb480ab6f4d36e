package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chainguard-dev/clog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"agentdemos/configs"
	"agentdemos/internal/agents"
	"agentdemos/internal/config"
	httpserver "agentdemos/internal/http"
	"agentdemos/internal/metrics"
	"agentdemos/internal/runner"
	"agentdemos/internal/store"
	pgstore "agentdemos/internal/store/postgres"
	"agentdemos/internal/tools"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(ctx)
	if err != nil {
		clog.FatalContextf(ctx, "loading config: %v", err)
	}
	logger := clog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	ctx = clog.WithLogger(ctx, logger)

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	rec := metrics.NewRecorder(promReg)

	reg, err := loadRegistry(cfg, rec)
	if err != nil {
		clog.FatalContextf(ctx, "failed to load agent registry: %v", err)
	}
	clog.InfoContextf(ctx, "Loaded agents: %v", reg.ListAgentIDs())

	svc := runner.NewService(reg)
	svc.WithRunnerName(cfg.AppName)
	svc.WithMetrics(rec)

	runStore, closeStore := initRunStore(ctx)
	defer closeStore()
	svc.WithStore(runStore)

	mux := httpserver.NewMux(httpserver.NewChatServer(svc), promReg, cfg.WebDir)
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpserver.WithLogger(logger, mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("shutdown failed", "err", err)
		}
	}()

	clog.InfoContextf(ctx, "agentdemos listening on %s (default model %s)", cfg.HTTPAddr, cfg.DefaultModel())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		clog.FatalContextf(ctx, "server error: %v", err)
	}
}

// loadRegistry reads agent configs from cfg.ConfigDir, or the embedded
// defaults when it is unset.
func loadRegistry(cfg config.Config, rec *metrics.Recorder) (*agents.Registry, error) {
	opts := []agents.Option{
		agents.WithDefaultModel(cfg.DefaultModel()),
		agents.WithToolbox(tools.New(cfg.Tools)),
		agents.WithMetrics(rec),
	}
	if cfg.ConfigDir != "" {
		return agents.LoadRegistry(cfg.ConfigDir, opts...)
	}
	return agents.LoadRegistryFS(configs.Agents(), opts...)
}

// initRunStore uses Postgres when DATABASE_URL is set and falls back to
// memory otherwise.
func initRunStore(ctx context.Context) (store.Store, func()) {
	log := clog.FromContext(ctx)
	cfg, err := pgstore.FromEnv(ctx)
	if err != nil {
		log.Warn("invalid postgres config, recording runs in memory", "err", err)
		return store.NewMemory(), func() {}
	}
	if !cfg.Enabled() {
		return store.NewMemory(), func() {}
	}

	pool, err := pgstore.NewPool(ctx, cfg)
	if err != nil {
		log.Warn("failed to connect to postgres, recording runs in memory", "err", err)
		return store.NewMemory(), func() {}
	}
	runs := pgstore.NewRunStore(pool)
	if err := runs.Migrate(ctx); err != nil {
		pool.Close()
		log.Warn("failed to migrate postgres, recording runs in memory", "err", err)
		return store.NewMemory(), func() {}
	}
	log.Info("recording runs in postgres")
	return runs, pool.Close
}
