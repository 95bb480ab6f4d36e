package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"agentdemos/internal/store"
)

// DB is the subset of *pgxpool.Pool used by RunStore.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

const schemaSQL = `CREATE TABLE IF NOT EXISTS agent_runs (
	id          TEXT PRIMARY KEY,
	agent_id    TEXT NOT NULL,
	user_id     TEXT NOT NULL,
	session_id  TEXT NOT NULL,
	query       TEXT NOT NULL,
	answer      TEXT NOT NULL DEFAULT '',
	author      TEXT NOT NULL DEFAULT '',
	tool_calls  TEXT[] NOT NULL DEFAULT '{}',
	state       JSONB NOT NULL DEFAULT '{}',
	error       TEXT NOT NULL DEFAULT '',
	started_at  TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS agent_runs_agent_started_idx ON agent_runs (agent_id, started_at DESC);`

const insertRunSQL = `INSERT INTO agent_runs
	(id, agent_id, user_id, session_id, query, answer, author, tool_calls, state, error, started_at, finished_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

const listRunsSQL = `SELECT id, agent_id, user_id, session_id, query, answer, author, tool_calls, state, error, started_at, finished_at
FROM agent_runs
WHERE ($1 = '' OR agent_id = $1)
ORDER BY started_at DESC
LIMIT $2`

// RunStore persists runs in the agent_runs table.
type RunStore struct {
	db DB
}

var _ store.Store = (*RunStore)(nil)

// NewRunStore returns a RunStore over db.
func NewRunStore(db DB) *RunStore {
	return &RunStore{db: db}
}

// Migrate creates the agent_runs table if needed.
func (s *RunStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("postgres: migrate: %w", err)
	}
	return nil
}

// SaveRun implements store.Store.
func (s *RunStore) SaveRun(ctx context.Context, run store.Run) error {
	state := run.State
	if state == nil {
		state = map[string]string{}
	}
	stateJSON, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("postgres: marshal state: %w", err)
	}
	toolCalls := run.ToolCalls
	if toolCalls == nil {
		toolCalls = []string{}
	}

	if _, err := s.db.Exec(ctx, insertRunSQL,
		run.ID, run.AgentID, run.UserID, run.SessionID, run.Query, run.Answer, run.Author,
		toolCalls, stateJSON, run.Error, run.StartedAt, run.FinishedAt,
	); err != nil {
		return fmt.Errorf("postgres: insert run %s: %w", run.ID, err)
	}
	return nil
}

// ListRuns implements store.Store.
func (s *RunStore) ListRuns(ctx context.Context, agentID string, limit int) ([]store.Run, error) {
	if limit <= 0 {
		limit = store.DefaultListLimit
	}

	rows, err := s.db.Query(ctx, listRunsSQL, agentID, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list runs: %w", err)
	}
	defer rows.Close()

	var out []store.Run
	for rows.Next() {
		var (
			r         store.Run
			stateJSON []byte
		)
		if err := rows.Scan(
			&r.ID, &r.AgentID, &r.UserID, &r.SessionID, &r.Query, &r.Answer, &r.Author,
			&r.ToolCalls, &stateJSON, &r.Error, &r.StartedAt, &r.FinishedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan run: %w", err)
		}
		if len(stateJSON) > 0 {
			if err := json.Unmarshal(stateJSON, &r.State); err != nil {
				return nil, fmt.Errorf("postgres: decode state of run %s: %w", r.ID, err)
			}
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list runs: %w", err)
	}
	return out, nil
}
