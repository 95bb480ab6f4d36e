package agents

import (
	"errors"
	"fmt"
	"strings"

	"agentdemos/internal/model"
)

// AgentType values.
const (
	AgentTypeLLM        = "llm"        // single LLM agent
	AgentTypeSequential = "sequential" // sub-agents run one after another
	AgentTypeParallel   = "parallel"   // sub-agents run concurrently
	AgentTypeLoop       = "loop"       // sub-agents repeat until exit or max_iterations
	AgentTypeGraph      = "graph"      // graph-based agent
)

// AgentConfig is the YAML/JSON schema used to describe agents. Composite
// agents nest their steps under SubAgents.
type AgentConfig struct {
	ID          string           `json:"id" yaml:"id"`
	Type        string           `json:"type" yaml:"type"`
	Description string           `json:"description,omitempty" yaml:"description,omitempty"`
	Instruction string           `json:"instruction,omitempty" yaml:"instruction,omitempty"`
	Model       model.Config     `json:"model,omitempty" yaml:"model,omitempty"`
	Generation  model.Generation `json:"generation,omitempty" yaml:"generation,omitempty"`
	Tools       []ToolConfig     `json:"tools,omitempty" yaml:"tools,omitempty"`

	// OutputKey stores the agent's final text in session state under this key.
	OutputKey string `json:"output_key,omitempty" yaml:"output_key,omitempty"`
	// SeedStateKey stores the user's query in a new session under this key.
	SeedStateKey string `json:"seed_state_key,omitempty" yaml:"seed_state_key,omitempty"`
	// ResultKey reads the final answer from session state instead of the
	// last model message.
	ResultKey string `json:"result_key,omitempty" yaml:"result_key,omitempty"`

	MaxIterations int           `json:"max_iterations,omitempty" yaml:"max_iterations,omitempty"`
	SubAgents     []AgentConfig `json:"sub_agents,omitempty" yaml:"sub_agents,omitempty"`
	Graph         *GraphConfig  `json:"graph,omitempty" yaml:"graph,omitempty"`
}

// ToolConfig selects a tool by type. Name is informational.
type ToolConfig struct {
	Name string `json:"name,omitempty" yaml:"name,omitempty"`
	Type string `json:"type" yaml:"type"` // e.g. "capital"
}

// GraphConfig describes a simple state graph for GraphAgent.
type GraphConfig struct {
	Nodes  []GraphNodeConfig `json:"nodes" yaml:"nodes"`
	Edges  []GraphEdgeConfig `json:"edges" yaml:"edges"`
	Entry  string            `json:"entry" yaml:"entry"`
	Finish string            `json:"finish" yaml:"finish"`
}

// GraphNodeConfig describes a node in the graph.
type GraphNodeConfig struct {
	ID          string `json:"id" yaml:"id"`
	Type        string `json:"type" yaml:"type"` // "entry" or "llm"
	Instruction string `json:"instruction,omitempty" yaml:"instruction,omitempty"`
}

// GraphEdgeConfig describes a directed edge between nodes.
type GraphEdgeConfig struct {
	From string `json:"from" yaml:"from"`
	To   string `json:"to" yaml:"to"`
}

// normalizeType maps legacy type names onto the current ones.
func normalizeType(t string) string {
	switch strings.ToLower(strings.TrimSpace(t)) {
	case "", "single", AgentTypeLLM:
		return AgentTypeLLM
	case "chain", "multi_chain", AgentTypeSequential:
		return AgentTypeSequential
	case AgentTypeParallel:
		return AgentTypeParallel
	case "cycle", AgentTypeLoop:
		return AgentTypeLoop
	case AgentTypeGraph:
		return AgentTypeGraph
	default:
		return t
	}
}

// normalize applies type aliases throughout the tree.
func (c *AgentConfig) normalize() {
	c.Type = normalizeType(c.Type)
	for i := range c.SubAgents {
		c.SubAgents[i].normalize()
	}
}

// Validate checks the config tree. Agent names must be unique within a tree
// because the framework addresses sub-agents by name.
func (c AgentConfig) Validate() error {
	seen := map[string]bool{}
	return c.validate(seen)
}

func (c AgentConfig) validate(seen map[string]bool) error {
	if c.ID == "" {
		return errors.New("agent id is required")
	}
	if seen[c.ID] {
		return fmt.Errorf("duplicate agent name %q", c.ID)
	}
	seen[c.ID] = true

	switch c.Type {
	case AgentTypeLLM:
		if len(c.SubAgents) > 0 {
			return fmt.Errorf("agent %q: type llm cannot have sub_agents", c.ID)
		}
	case AgentTypeSequential, AgentTypeParallel, AgentTypeLoop:
		if len(c.SubAgents) == 0 {
			return fmt.Errorf("agent %q: type %s must define at least one sub-agent", c.ID, c.Type)
		}
		if c.Type == AgentTypeLoop && c.MaxIterations <= 0 {
			return fmt.Errorf("agent %q: loop agents need max_iterations > 0", c.ID)
		}
	case AgentTypeGraph:
		if c.Graph == nil {
			return fmt.Errorf("agent %q: graph config is required for type=graph", c.ID)
		}
	default:
		return fmt.Errorf("agent %q: unsupported agent type: %s", c.ID, c.Type)
	}

	for _, sub := range c.SubAgents {
		if err := sub.validate(seen); err != nil {
			return err
		}
	}
	return nil
}

// Names returns the agent names in the tree, depth first.
func (c AgentConfig) Names() []string {
	out := []string{c.ID}
	for _, sub := range c.SubAgents {
		out = append(out, sub.Names()...)
	}
	return out
}
