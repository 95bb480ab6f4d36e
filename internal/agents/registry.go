// Package agents builds framework agents from declarative YAML/JSON configs.
package agents

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/chainguard-dev/clog"
	"gopkg.in/yaml.v3"

	"agentdemos/internal/config"
	"agentdemos/internal/metrics"
	appmodel "agentdemos/internal/model"
	"agentdemos/internal/tools"

	"trpc.group/trpc-go/trpc-agent-go/agent"
	"trpc.group/trpc-go/trpc-agent-go/agent/chainagent"
	"trpc.group/trpc-go/trpc-agent-go/agent/cycleagent"
	"trpc.group/trpc-go/trpc-agent-go/agent/graphagent"
	"trpc.group/trpc-go/trpc-agent-go/agent/llmagent"
	"trpc.group/trpc-go/trpc-agent-go/agent/parallelagent"
	"trpc.group/trpc-go/trpc-agent-go/graph"
	"trpc.group/trpc-go/trpc-agent-go/model"
	"trpc.group/trpc-go/trpc-agent-go/planner/builtin"
)

// ErrUnknownAgent is returned for agent IDs that are not in the registry.
var ErrUnknownAgent = errors.New("unknown agent")

// Registry holds agent configs keyed by ID.
type Registry struct {
	configs      map[string]AgentConfig
	defaultModel appmodel.Config
	toolbox      *tools.Toolbox
	metrics      *metrics.Recorder
}

// Option configures a Registry.
type Option func(*Registry)

// WithDefaultModel sets the backend used by agents that don't name one.
func WithDefaultModel(cfg appmodel.Config) Option {
	return func(r *Registry) { r.defaultModel = cfg }
}

// WithToolbox sets the clients behind HTTP-backed tools.
func WithToolbox(tb *tools.Toolbox) Option {
	return func(r *Registry) { r.toolbox = tb }
}

// WithMetrics records tool calls and loop exits on rec.
func WithMetrics(rec *metrics.Recorder) Option {
	return func(r *Registry) { r.metrics = rec }
}

// Info summarizes an agent for listings.
type Info struct {
	ID          string   `json:"id"`
	Type        string   `json:"type"`
	Description string   `json:"description,omitempty"`
	SubAgents   []string `json:"sub_agents,omitempty"`
}

// LoadRegistry loads all *.json, *.yaml and *.yml configs from a directory.
func LoadRegistry(dir string, opts ...Option) (*Registry, error) {
	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("read config dir: %w", err)
	}
	reg, err := LoadRegistryFS(os.DirFS(dir), opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", dir, err)
	}
	return reg, nil
}

// LoadRegistryFS loads configs from the root of fsys.
func LoadRegistryFS(fsys fs.FS, opts ...Option) (*Registry, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("read config dir: %w", err)
	}

	reg := &Registry{
		configs:      make(map[string]AgentConfig),
		defaultModel: appmodel.ParseModelName("openai/gpt-4o-mini"),
	}
	for _, opt := range opts {
		opt(reg)
	}
	if reg.toolbox == nil {
		reg.toolbox = tools.New(config.Defaults().Tools)
	}

	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := path.Ext(e.Name())
		if ext != ".json" && ext != ".yaml" && ext != ".yml" {
			continue
		}

		data, err := fs.ReadFile(fsys, e.Name())
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", e.Name(), err)
		}

		var cfg AgentConfig
		if ext == ".json" {
			err = json.Unmarshal(data, &cfg)
		} else {
			err = yaml.Unmarshal(data, &cfg)
		}
		if err != nil {
			return nil, fmt.Errorf("unmarshal %s: %w", e.Name(), err)
		}

		if cfg.ID == "" {
			cfg.ID = strings.TrimSuffix(e.Name(), ext)
		}
		cfg.normalize()
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("validate %s: %w", e.Name(), err)
		}
		if _, dup := reg.configs[cfg.ID]; dup {
			return nil, fmt.Errorf("duplicate agent ID %q in %s", cfg.ID, e.Name())
		}

		reg.configs[cfg.ID] = cfg
	}

	if len(reg.configs) == 0 {
		return nil, errors.New("no agent configs found")
	}

	return reg, nil
}

// ListAgentIDs returns all known agent IDs, sorted.
func (r *Registry) ListAgentIDs() []string {
	out := make([]string, 0, len(r.configs))
	for id := range r.configs {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Describe returns a summary of the agent.
func (r *Registry) Describe(id string) (Info, error) {
	cfg, ok := r.configs[id]
	if !ok {
		return Info{}, fmt.Errorf("%w: %s", ErrUnknownAgent, id)
	}
	info := Info{ID: cfg.ID, Type: cfg.Type, Description: cfg.Description}
	for _, sub := range cfg.SubAgents {
		info.SubAgents = append(info.SubAgents, sub.ID)
	}
	return info, nil
}

// Config returns the config for id.
func (r *Registry) Config(id string) (AgentConfig, bool) {
	cfg, ok := r.configs[id]
	return cfg, ok
}

// SeedStateKey returns the state key the user's query seeds, if any.
func (r *Registry) SeedStateKey(id string) string {
	return r.configs[id].SeedStateKey
}

// ResultKey returns the state key holding the agent's final answer, if any.
func (r *Registry) ResultKey(id string) string {
	return r.configs[id].ResultKey
}

// BuildAgent builds a fresh agent.Agent instance from config.
func (r *Registry) BuildAgent(ctx context.Context, id string) (agent.Agent, error) {
	cfg, ok := r.configs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAgent, id)
	}
	return r.build(ctx, cfg)
}

func (r *Registry) build(ctx context.Context, cfg AgentConfig) (agent.Agent, error) {
	switch cfg.Type {
	case AgentTypeLLM:
		return r.buildLLMAgent(ctx, cfg)
	case AgentTypeSequential, AgentTypeParallel, AgentTypeLoop:
		return r.buildCompositeAgent(ctx, cfg)
	case AgentTypeGraph:
		return r.buildGraphAgent(cfg)
	default:
		return nil, fmt.Errorf("unsupported agent type: %s", cfg.Type)
	}
}

func (r *Registry) resolveModel(cfg AgentConfig) (model.Model, model.GenerationConfig, string, error) {
	mc := cfg.Model.WithDefaults(r.defaultModel)
	llm, genCfg, err := appmodel.NewModelFromConfig(mc, cfg.Generation)
	if err != nil {
		return nil, model.GenerationConfig{}, "", fmt.Errorf("build model for %q: %w", cfg.ID, err)
	}
	return llm, genCfg, mc.String(), nil
}

func (r *Registry) buildLLMAgent(ctx context.Context, cfg AgentConfig) (agent.Agent, error) {
	llm, genCfg, modelName, err := r.resolveModel(cfg)
	if err != nil {
		return nil, err
	}

	agentTools, err := r.buildTools(ctx, cfg, modelName)
	if err != nil {
		return nil, fmt.Errorf("build tools for %q: %w", cfg.ID, err)
	}

	opts := []llmagent.Option{
		llmagent.WithModel(llm),
		llmagent.WithDescription(cfg.Description),
		llmagent.WithInstruction(cfg.Instruction),
		llmagent.WithGenerationConfig(genCfg),
		llmagent.WithTools(agentTools),
	}
	if cfg.OutputKey != "" {
		opts = append(opts, llmagent.WithOutputKey(cfg.OutputKey))
	}
	if p := r.thinkingPlanner(ctx, cfg); p != nil {
		opts = append(opts, llmagent.WithPlanner(p))
	}

	return llmagent.New(cfg.ID, opts...), nil
}

// thinkingPlanner returns the planner for agents that ask for thinking, or
// nil when none is wanted or the backend would reject it.
func (r *Registry) thinkingPlanner(ctx context.Context, cfg AgentConfig) *builtin.Planner {
	th := cfg.Generation.Thinking
	if th == nil || !th.Enabled {
		return nil
	}
	mc := cfg.Model.WithDefaults(r.defaultModel)
	if !mc.ThinkingSupported() {
		clog.FromContext(ctx).With("agent", cfg.ID).
			With("model", mc.String()).
			Warn("thinking disabled for model")
		return nil
	}
	return newThinkingPlanner(*th)
}

func newThinkingPlanner(th appmodel.Thinking) *builtin.Planner {
	enabled := th.Enabled
	popts := builtin.Options{ThinkingEnabled: &enabled}
	if th.Tokens > 0 {
		tokens := th.Tokens
		popts.ThinkingTokens = &tokens
	}
	return builtin.New(popts)
}

func (r *Registry) buildCompositeAgent(ctx context.Context, cfg AgentConfig) (agent.Agent, error) {
	subs := make([]agent.Agent, 0, len(cfg.SubAgents))
	for _, subCfg := range cfg.SubAgents {
		sub, err := r.build(ctx, subCfg)
		if err != nil {
			return nil, fmt.Errorf("build sub-agent %q of %q: %w", subCfg.ID, cfg.ID, err)
		}
		subs = append(subs, sub)
	}

	// WithSubAgents takes a []agent.Agent, not variadic agents.
	switch cfg.Type {
	case AgentTypeSequential:
		return chainagent.New(cfg.ID, chainagent.WithSubAgents(subs)), nil
	case AgentTypeParallel:
		return parallelagent.New(cfg.ID, parallelagent.WithSubAgents(subs)), nil
	default:
		return cycleagent.New(
			cfg.ID,
			cycleagent.WithSubAgents(subs),
			cycleagent.WithMaxIterations(cfg.MaxIterations),
			cycleagent.WithEscalationFunc(loopEscalation(r.metrics)),
		), nil
	}
}

func (r *Registry) buildGraphAgent(cfg AgentConfig) (agent.Agent, error) {
	if cfg.Graph == nil {
		return nil, fmt.Errorf("graph config is required for type=graph")
	}

	llm, _, _, err := r.resolveModel(cfg)
	if err != nil {
		return nil, err
	}

	schema := graph.MessagesStateSchema()
	sg := graph.NewStateGraph(schema)

	for _, node := range cfg.Graph.Nodes {
		switch node.Type {
		case "entry":
			// Passthrough node.
			sg.AddNode(node.ID, func(ctx context.Context, s graph.State) (any, error) {
				return graph.State{}, nil
			})
		case "llm":
			sg.AddLLMNode(node.ID, llm, node.Instruction, nil)
		default:
			return nil, fmt.Errorf("unsupported graph node type: %s", node.Type)
		}
	}

	for _, edge := range cfg.Graph.Edges {
		sg.AddEdge(edge.From, edge.To)
	}

	sg.SetEntryPoint(cfg.Graph.Entry).SetFinishPoint(cfg.Graph.Finish)

	compiled, err := sg.Compile()
	if err != nil {
		return nil, fmt.Errorf("compile graph: %w", err)
	}

	ga, err := graphagent.New(
		cfg.ID,
		compiled,
		graphagent.WithDescription(cfg.Description),
		graphagent.WithInitialState(graph.State{}),
	)
	if err != nil {
		return nil, fmt.Errorf("new graph agent: %w", err)
	}

	return ga, nil
}
