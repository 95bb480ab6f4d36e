// Command ask runs a single query against an agent from the terminal.
//
//	ask -agent capital_agent "What's the capital of France?"
//	ask -agent writer_critic -debug "a lighthouse keeper who collects storms"
//	ask -timezone "Tbilisi, Georgia"
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/chainguard-dev/clog"

	"agentdemos/configs"
	"agentdemos/internal/agents"
	"agentdemos/internal/config"
	"agentdemos/internal/runner"
	"agentdemos/internal/tools"

	"trpc.group/trpc-go/trpc-agent-go/event"
)

func main() {
	var (
		agentID   = flag.String("agent", "capital_agent", "agent id to run")
		userID    = flag.String("user", runner.DefaultUserID, "user id")
		sessionID = flag.String("session", "", "session id (default: new session)")
		debug     = flag.Bool("debug", false, "print every event as it arrives")
		list      = flag.Bool("list", false, "list agents and exit")
		timezone  = flag.String("timezone", "", "resolve the timezone of a place without a model and exit")
	)
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(ctx)
	if err != nil {
		clog.FatalContextf(ctx, "loading config: %v", err)
	}
	level := cfg.SlogLevel()
	if !*debug && level < slog.LevelWarn {
		level = slog.LevelWarn
	}
	ctx = clog.WithLogger(ctx, clog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	toolbox := tools.New(cfg.Tools)

	if *timezone != "" {
		if err := printTimeZone(ctx, os.Stdout, toolbox, *timezone); err != nil {
			clog.FatalContextf(ctx, "timezone lookup: %v", err)
		}
		return
	}

	opts := []agents.Option{agents.WithDefaultModel(cfg.DefaultModel()), agents.WithToolbox(toolbox)}
	var reg *agents.Registry
	if cfg.ConfigDir != "" {
		reg, err = agents.LoadRegistry(cfg.ConfigDir, opts...)
	} else {
		reg, err = agents.LoadRegistryFS(configs.Agents(), opts...)
	}
	if err != nil {
		clog.FatalContextf(ctx, "failed to load agent registry: %v", err)
	}

	if *list {
		printAgents(os.Stdout, reg)
		return
	}

	query := strings.TrimSpace(strings.Join(flag.Args(), " "))
	if query == "" {
		fmt.Fprintln(os.Stderr, "usage: ask [-agent id] [-debug] query")
		flag.PrintDefaults()
		os.Exit(2)
	}

	svc := runner.NewService(reg)
	svc.WithRunnerName(cfg.AppName)

	var onEvent func(*event.Event)
	if *debug {
		onEvent = func(ev *event.Event) { printEvent(os.Stderr, ev) }
	}

	fmt.Fprintf(os.Stdout, ">>> User Query: %s\n", query)
	res, err := svc.Ask(ctx, runner.Request{AgentID: *agentID, Query: query, UserID: *userID, SessionID: *sessionID}, onEvent)
	if err != nil {
		clog.FatalContextf(ctx, "run failed: %v", err)
	}
	if res.Err != nil {
		fmt.Fprintf(os.Stdout, "<<< Agent Error: %v\n", res.Err)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stdout, "<<< Agent Response: %s\n", res.Answer)
}

func printAgents(w io.Writer, reg *agents.Registry) {
	for _, id := range reg.ListAgentIDs() {
		info, err := reg.Describe(id)
		if err != nil {
			continue
		}
		fmt.Fprintf(w, "%-24s %-10s %s\n", info.ID, info.Type, info.Description)
	}
}

func printTimeZone(ctx context.Context, w io.Writer, tb *tools.Toolbox, location string) error {
	tz, err := tb.TimeZones.Resolve(ctx, location)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%s: %s (%.4f, %.4f)\n", tz.Location, tz.Timezone, tz.Latitude, tz.Longitude)

	now, err := tb.Clock.CurrentTime(ctx, location, tz.Timezone)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "current time: %s (%s)\n", now.Time, now.Source)
	return nil
}
