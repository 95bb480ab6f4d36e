package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/chainguard-dev/clog"

	"agentdemos/internal/agents"
	"agentdemos/internal/runner"
	"agentdemos/internal/store"
)

// AskHandler is an HTTP handler for POST /ask that returns the final result
// as JSON.
func (s *ChatServer) AskHandler(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeChatRequest(w, r)
	if !ok {
		return
	}

	res, err := s.svc.Ask(r.Context(), req.toRunner(), nil)
	switch {
	case errors.Is(err, agents.ErrUnknownAgent):
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	case errors.Is(err, runner.ErrEmptyQuery):
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	case err != nil:
		clog.FromContext(r.Context()).Warn("ask failed", "agent", req.AgentID, "err", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	status := http.StatusOK
	if res.Err != nil {
		status = http.StatusBadGateway
	}
	writeJSON(w, r, status, res)
}

// AgentsHandler lists the registered agents for GET /agents.
func (s *ChatServer) AgentsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "GET required", http.StatusMethodNotAllowed)
		return
	}
	reg := s.svc.Registry()
	ids := reg.ListAgentIDs()
	out := make([]agents.Info, 0, len(ids))
	for _, id := range ids {
		info, err := reg.Describe(id)
		if err != nil {
			continue
		}
		out = append(out, info)
	}
	writeJSON(w, r, http.StatusOK, out)
}

// RunsHandler lists recorded runs for GET /runs?agent_id=&limit=.
func (s *ChatServer) RunsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "GET required", http.StatusMethodNotAllowed)
		return
	}
	q := r.URL.Query()
	limit := store.DefaultListLimit
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	runs, err := s.svc.Store().ListRuns(r.Context(), q.Get("agent_id"), limit)
	if err != nil {
		clog.FromContext(r.Context()).Warn("list runs failed", "err", err)
		http.Error(w, "failed to list runs", http.StatusInternalServerError)
		return
	}
	if runs == nil {
		runs = []store.Run{}
	}
	writeJSON(w, r, http.StatusOK, runs)
}

// HealthHandler answers GET /healthz.
func HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		clog.FromContext(r.Context()).Debug("encode response failed", "err", err)
	}
}
