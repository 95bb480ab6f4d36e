package http

import (
	"bufio"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentdemos/internal/agents"
	"agentdemos/internal/llmtest"
	"agentdemos/internal/runner"
	"agentdemos/internal/store"
)

// capitalScript calls get_capital_name once and answers from its result.
// Queries mentioning "boom" fail with an API error.
func capitalScript(req llmtest.Request) llmtest.Reply {
	for _, m := range req.Messages {
		if m.Role == "user" && strings.Contains(m.Content, "boom") {
			return llmtest.Reply{Status: http.StatusBadRequest, Error: "model does not exist"}
		}
	}
	if req.LastRole() == "tool" {
		last := req.Messages[len(req.Messages)-1]
		if strings.Contains(last.Content, "Paris") {
			return llmtest.Reply{Content: "The capital of France is Paris."}
		}
		return llmtest.Reply{Content: "Unable to find the capital."}
	}
	return llmtest.Reply{ToolCall: "get_capital_name", ToolArgs: `{"country":"France"}`}
}

func newCapitalMux(t *testing.T) (*http.ServeMux, *store.Memory) {
	t.Helper()
	srv := llmtest.NewServer(t, capitalScript)
	return newTestMux(t, agents.WithDefaultModel(srv.Model("gpt-test")))
}

func post(mux http.Handler, path, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, path, strings.NewReader(body)))
	return rec
}

func TestAskCapital(t *testing.T) {
	mux, mem := newCapitalMux(t)

	rec := post(mux, "/ask", `{"agent_id":"capital_agent","message":"What's the capital of France?","user_id":"u1"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res runner.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, "The capital of France is Paris.", res.Answer)
	assert.Equal(t, "capital_agent", res.Author)
	assert.Equal(t, []string{"get_capital_name"}, res.ToolCalls)
	assert.Equal(t, "u1", res.UserID)
	assert.Empty(t, res.Error)

	runs, err := mem.ListRuns(t.Context(), "capital_agent", 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, res.RunID, runs[0].ID)
	assert.Equal(t, "What's the capital of France?", runs[0].Query)
}

func TestAskModelErrorIsBadGateway(t *testing.T) {
	mux, mem := newCapitalMux(t)

	rec := post(mux, "/ask", `{"agent_id":"capital_agent","message":"boom"}`)
	require.Equal(t, http.StatusBadGateway, rec.Code, rec.Body.String())

	var res runner.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Contains(t, res.Error, "model does not exist")

	runs, err := mem.ListRuns(t.Context(), "", 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.NotEmpty(t, runs[0].Error)
}

func TestChatCapitalStream(t *testing.T) {
	mux, _ := newCapitalMux(t)

	rec := post(mux, "/chat", `{"agent_id":"capital_agent","message":"What's the capital of France?","session_id":"s-42"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	var envelopes []map[string]json.RawMessage
	sc := bufio.NewScanner(rec.Body)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			continue
		}
		require.True(t, strings.HasPrefix(line, "data: "), line)
		var env map[string]json.RawMessage
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &env))
		envelopes = append(envelopes, env)
	}
	require.NoError(t, sc.Err())
	require.NotEmpty(t, envelopes)

	var sawToolCall, sawToolResult bool
	for _, env := range envelopes[:len(envelopes)-1] {
		var ui UIEvent
		raw, _ := json.Marshal(env)
		require.NoError(t, json.Unmarshal(raw, &ui))
		for _, tc := range ui.ToolCalls {
			sawToolCall = sawToolCall || tc.Function.Name == "get_capital_name"
		}
		if ui.ToolName == "get_capital_name" && strings.Contains(ui.ToolResult, "Paris") {
			sawToolResult = true
		}
	}
	assert.True(t, sawToolCall)
	assert.True(t, sawToolResult)

	last := envelopes[len(envelopes)-1]
	assert.JSONEq(t, `"result"`, string(last["type"]))
	var res runner.Result
	require.NoError(t, json.Unmarshal(last["result"], &res))
	assert.Equal(t, "The capital of France is Paris.", res.Answer)
	assert.Equal(t, "s-42", res.SessionID)
	assert.Equal(t, runner.DefaultUserID, res.UserID)
}
