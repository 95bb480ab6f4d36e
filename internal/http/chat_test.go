package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentdemos/configs"
	"agentdemos/internal/agents"
	"agentdemos/internal/metrics"
	"agentdemos/internal/runner"
	"agentdemos/internal/store"

	"trpc.group/trpc-go/trpc-agent-go/event"
	"trpc.group/trpc-go/trpc-agent-go/graph"
	"trpc.group/trpc-go/trpc-agent-go/model"
)

func newTestMux(t *testing.T, opts ...agents.Option) (*http.ServeMux, *store.Memory) {
	t.Helper()
	reg, err := agents.LoadRegistryFS(configs.Agents(), opts...)
	require.NoError(t, err)

	mem := store.NewMemory()
	promReg := prometheus.NewRegistry()
	svc := runner.NewService(reg)
	svc.WithStore(mem)
	svc.WithMetrics(metrics.NewRecorder(promReg))

	return NewMux(NewChatServer(svc), promReg, ""), mem
}

func TestChatValidation(t *testing.T) {
	mux, _ := newTestMux(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
		want   string
	}{
		{"chat get", http.MethodGet, "/chat", "", http.StatusMethodNotAllowed, "POST required"},
		{"chat bad json", http.MethodPost, "/chat", "{", http.StatusBadRequest, "invalid JSON"},
		{"chat no agent", http.MethodPost, "/chat", `{"message":"hi"}`, http.StatusBadRequest, "agent_id is required"},
		{"chat no message", http.MethodPost, "/chat", `{"agent_id":"capital_agent"}`, http.StatusBadRequest, "message is required"},
		{"ask no message", http.MethodPost, "/ask", `{"agent_id":"capital_agent"}`, http.StatusBadRequest, "message is required"},
		{"ask unknown agent", http.MethodPost, "/ask", `{"agent_id":"nope","message":"hi"}`, http.StatusNotFound, "unknown agent"},
		{"agents post", http.MethodPost, "/agents", "", http.StatusMethodNotAllowed, "GET required"},
		{"runs bad limit", http.MethodGet, "/runs?limit=zero", "", http.StatusBadRequest, "limit must be"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)
			assert.Equal(t, tt.status, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.want)
		})
	}
}

func TestRequestBodyLimit(t *testing.T) {
	mux, _ := newTestMux(t)
	body := `{"agent_id":"capital_agent","message":"` + strings.Repeat("a", maxRequestBytes) + `"}`

	for _, path := range []string{"/chat", "/ask"} {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, path, strings.NewReader(body)))
		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code, path)
		assert.Contains(t, rec.Body.String(), "request body exceeds", path)
	}
}

func TestChatUnknownAgentStreamsError(t *testing.T) {
	mux, _ := newTestMux(t)

	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(`{"agent_id":"nope","message":"hi"}`))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	body := rec.Body.String()
	require.True(t, strings.HasPrefix(body, "data: "))
	var env struct {
		Type  string `json:"type"`
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(strings.TrimPrefix(body, "data: "))), &env))
	assert.Equal(t, "error", env.Type)
	assert.Contains(t, env.Error.Message, "unknown agent")
}

func TestAgentsHandler(t *testing.T) {
	mux, _ := newTestMux(t)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/agents", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var got []agents.Info
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	ids := make([]string, 0, len(got))
	for _, info := range got {
		ids = append(ids, info.ID)
	}
	assert.Contains(t, ids, "capital_agent")
	assert.Contains(t, ids, "writer_critic")
	assert.IsIncreasing(t, ids)
}

func TestRunsHandler(t *testing.T) {
	mux, mem := newTestMux(t)
	ctx := context.Background()
	base := time.Date(2025, 11, 8, 10, 0, 0, 0, time.UTC)
	require.NoError(t, mem.SaveRun(ctx, store.Run{ID: "1", AgentID: "capital_agent", StartedAt: base}))
	require.NoError(t, mem.SaveRun(ctx, store.Run{ID: "2", AgentID: "time_agent", StartedAt: base.Add(time.Second)}))
	require.NoError(t, mem.SaveRun(ctx, store.Run{ID: "3", AgentID: "capital_agent", StartedAt: base.Add(2 * time.Second)}))

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/runs?agent_id=capital_agent&limit=1", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var got []store.Run
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "3", got[0].ID)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/runs?agent_id=calculator_agent", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestHealthAndMetrics(t *testing.T) {
	mux, _ := newTestMux(t)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestBuildUIEvent(t *testing.T) {
	assert.Nil(t, BuildUIEvent(nil))

	ts := time.Date(2025, 11, 8, 10, 0, 0, 0, time.UTC)
	partial := BuildUIEvent(&event.Event{
		ID:        "e1",
		Author:    "capital_agent",
		Timestamp: ts,
		Response: &model.Response{
			Object:    "chat.completion.chunk",
			IsPartial: true,
			Choices:   []model.Choice{{Delta: model.Message{Content: "Par"}}},
			Usage:     &model.Usage{TotalTokens: 3},
		},
	})
	assert.Equal(t, "chat.completion.chunk", partial.Type)
	assert.Equal(t, "Par", partial.ContentDelta)
	assert.Empty(t, partial.Content)
	assert.Nil(t, partial.Usage)
	assert.Equal(t, ts.Format(time.RFC3339Nano), partial.Timestamp)

	final := BuildUIEvent(&event.Event{
		Author: "capital_agent",
		Response: &model.Response{
			Object:  "chat.completion",
			Choices: []model.Choice{{Message: model.Message{Role: model.RoleAssistant, Content: "Paris"}}},
			Usage:   &model.Usage{TotalTokens: 12},
		},
	})
	assert.Equal(t, "Paris", final.Content)
	require.NotNil(t, final.Usage)
	assert.Equal(t, 12, final.Usage.TotalTokens)

	toolResp := BuildUIEvent(&event.Event{
		Author: "RefinerAgent",
		Response: &model.Response{
			Object:  "tool.response",
			Choices: []model.Choice{{Message: model.Message{Role: model.RoleTool, ToolName: "exit_loop", Content: `{"status":"exited"}`}}},
		},
	})
	assert.Equal(t, "exit_loop", toolResp.ToolName)
	assert.Equal(t, `{"status":"exited"}`, toolResp.ToolResult)
	assert.Empty(t, toolResp.Content)

	failed := BuildUIEvent(&event.Event{
		Response: &model.Response{Error: &model.ResponseError{Message: "boom"}},
	})
	require.NotNil(t, failed.Error)
	assert.Equal(t, "boom", failed.Error.Message)

	bad := BuildUIEvent(&event.Event{StateDelta: map[string][]byte{graph.MetadataKeyNode: []byte("{")}})
	assert.Nil(t, bad.NodeMetadata)
}
