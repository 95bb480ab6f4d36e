// Package llmtest serves a scripted OpenAI-compatible chat completions API
// for tests that run agents end to end.
package llmtest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"

	appmodel "agentdemos/internal/model"
)

// Message is one chat message of a captured request.
type Message struct {
	Role       string
	Content    string
	ToolCallID string
	ToolCalls  []string
}

// Request is a captured chat completions request.
type Request struct {
	Model    string
	Stream   bool
	Messages []Message
	Tools    []string
	// Keys are the top-level JSON fields of the request body.
	Keys []string
}

// System returns the concatenated system prompt.
func (r Request) System() string {
	var parts []string
	for _, m := range r.Messages {
		if m.Role == "system" {
			parts = append(parts, m.Content)
		}
	}
	return strings.Join(parts, "\n")
}

// HasTool reports whether the request offers a tool named name.
func (r Request) HasTool(name string) bool {
	for _, t := range r.Tools {
		if t == name {
			return true
		}
	}
	return false
}

// LastRole returns the role of the final message.
func (r Request) LastRole() string {
	if len(r.Messages) == 0 {
		return ""
	}
	return r.Messages[len(r.Messages)-1].Role
}

// Reply is the scripted answer to a request. A non-zero Status answers with
// an API error instead.
type Reply struct {
	Content  string
	ToolCall string
	ToolArgs string
	Status   int
	Error    string
}

// Usage reported for every successful completion.
const (
	PromptTokens     = 10
	CompletionTokens = 5
)

// Server is a fake chat completions endpoint.
type Server struct {
	*httptest.Server

	script func(Request) Reply

	mu       sync.Mutex
	requests []Request
}

// NewServer starts a Server answering with script. It is closed when the
// test ends.
func NewServer(t testing.TB, script func(Request) Reply) *Server {
	t.Helper()
	s := &Server{script: script}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.Close)
	return s
}

// Model returns a backend config pointing at the server.
func (s *Server) Model(name string) appmodel.Config {
	return appmodel.Config{
		Provider:  appmodel.ProviderOpenAI,
		Model:     name,
		BaseURL:   s.URL + "/v1",
		APIKeyEnv: "sk-test",
	}
}

// Requests returns the requests seen so far.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

type wireRequest struct {
	Model    string `json:"model"`
	Stream   bool   `json:"stream"`
	Messages []struct {
		Role       string          `json:"role"`
		Content    json.RawMessage `json:"content"`
		ToolCallID string          `json:"tool_call_id"`
		ToolCalls  []struct {
			Function struct {
				Name string `json:"name"`
			} `json:"function"`
		} `json:"tool_calls"`
	} `json:"messages"`
	Tools []struct {
		Function struct {
			Name string `json:"name"`
		} `json:"function"`
	} `json:"tools"`
}

func decodeRequest(body []byte) (Request, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return Request{}, err
	}
	var wr wireRequest
	if err := json.Unmarshal(body, &wr); err != nil {
		return Request{}, err
	}

	req := Request{Model: wr.Model, Stream: wr.Stream}
	for k := range raw {
		req.Keys = append(req.Keys, k)
	}
	sort.Strings(req.Keys)
	for _, t := range wr.Tools {
		req.Tools = append(req.Tools, t.Function.Name)
	}
	for _, m := range wr.Messages {
		msg := Message{Role: m.Role, Content: contentText(m.Content), ToolCallID: m.ToolCallID}
		for _, tc := range m.ToolCalls {
			msg.ToolCalls = append(msg.ToolCalls, tc.Function.Name)
		}
		req.Messages = append(req.Messages, msg)
	}
	return req, nil
}

// contentText accepts both plain string content and content part arrays.
func contentText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var parts []struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw, &parts); err != nil {
		return ""
	}
	var b strings.Builder
	for _, p := range parts {
		b.WriteString(p.Text)
	}
	return b.String()
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost || !strings.HasSuffix(r.URL.Path, "/chat/completions") {
		http.NotFound(w, r)
		return
	}
	var body json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	req, err := decodeRequest(body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	s.requests = append(s.requests, req)
	n := len(s.requests)
	s.mu.Unlock()

	reply := s.script(req)
	if reply.Status != 0 {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(reply.Status)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"message": reply.Error, "type": "invalid_request_error"},
		})
		return
	}

	id := fmt.Sprintf("chatcmpl-%d", n)
	message := map[string]any{"role": "assistant", "content": reply.Content}
	finish := "stop"
	if reply.ToolCall != "" {
		args := reply.ToolArgs
		if args == "" {
			args = "{}"
		}
		message["tool_calls"] = []map[string]any{{
			"index": 0,
			"id":    fmt.Sprintf("call_%d", n),
			"type":  "function",
			"function": map[string]any{
				"name":      reply.ToolCall,
				"arguments": args,
			},
		}}
		finish = "tool_calls"
	}
	usage := map[string]any{
		"prompt_tokens":     PromptTokens,
		"completion_tokens": CompletionTokens,
		"total_tokens":      PromptTokens + CompletionTokens,
	}

	if req.Stream {
		writeStream(w, id, req.Model, message, finish, usage)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"id":      id,
		"object":  "chat.completion",
		"created": 1,
		"model":   req.Model,
		"choices": []map[string]any{{
			"index":         0,
			"message":       message,
			"finish_reason": finish,
		}},
		"usage": usage,
	})
}

func writeStream(w http.ResponseWriter, id, model string, message map[string]any, finish string, usage map[string]any) {
	w.Header().Set("Content-Type", "text/event-stream")
	chunk := func(delta map[string]any, finish any, usage any) {
		data, _ := json.Marshal(map[string]any{
			"id":      id,
			"object":  "chat.completion.chunk",
			"created": 1,
			"model":   model,
			"choices": []map[string]any{{
				"index":         0,
				"delta":         delta,
				"finish_reason": finish,
			}},
			"usage": usage,
		})
		fmt.Fprintf(w, "data: %s\n\n", data)
	}
	chunk(message, nil, nil)
	chunk(map[string]any{}, finish, usage)
	fmt.Fprint(w, "data: [DONE]\n\n")
}
