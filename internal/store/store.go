// Package store records completed agent runs.
package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// DefaultListLimit caps List when no limit is given.
const DefaultListLimit = 50

// Run is one completed agent invocation.
type Run struct {
	ID         string            `json:"id"`
	AgentID    string            `json:"agent_id"`
	UserID     string            `json:"user_id"`
	SessionID  string            `json:"session_id"`
	Query      string            `json:"query"`
	Answer     string            `json:"answer"`
	Author     string            `json:"author,omitempty"`
	ToolCalls  []string          `json:"tool_calls,omitempty"`
	State      map[string]string `json:"state,omitempty"`
	Error      string            `json:"error,omitempty"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at"`
}

// Store persists runs.
type Store interface {
	SaveRun(ctx context.Context, run Run) error
	// ListRuns returns the newest runs first. An empty agentID lists all.
	ListRuns(ctx context.Context, agentID string, limit int) ([]Run, error)
}

// Memory is an in-process Store.
type Memory struct {
	mu   sync.RWMutex
	runs []Run
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{}
}

// SaveRun implements Store.
func (m *Memory) SaveRun(_ context.Context, run Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, run)
	return nil
}

// ListRuns implements Store.
func (m *Memory) ListRuns(_ context.Context, agentID string, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	m.mu.RLock()
	out := make([]Run, 0, len(m.runs))
	for _, r := range m.runs {
		if agentID == "" || r.AgentID == agentID {
			out = append(out, r)
		}
	}
	m.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
