package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/chainguard-dev/clog"

	"agentdemos/internal/runner"

	"trpc.group/trpc-go/trpc-agent-go/event"
)

const maxRequestBytes = 1 << 20

// ChatServer handles the agent HTTP API.
type ChatServer struct {
	svc *runner.Service
}

// NewChatServer creates a ChatServer.
func NewChatServer(svc *runner.Service) *ChatServer {
	return &ChatServer{svc: svc}
}

// ChatRequest is the JSON payload accepted by /chat and /ask.
type ChatRequest struct {
	AgentID   string `json:"agent_id"`
	Message   string `json:"message"`
	UserID    string `json:"user_id,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

func (c ChatRequest) toRunner() runner.Request {
	return runner.Request{AgentID: c.AgentID, Query: c.Message, UserID: c.UserID, SessionID: c.SessionID}
}

// decodeChatRequest reads and validates the request body, writing an error
// response and returning false when it is unusable.
func decodeChatRequest(w http.ResponseWriter, r *http.Request) (ChatRequest, bool) {
	var req ChatRequest
	if r.Method != http.MethodPost {
		http.Error(w, "POST required", http.StatusMethodNotAllowed)
		return req, false
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit), http.StatusRequestEntityTooLarge)
			return req, false
		}
		http.Error(w, fmt.Sprintf("invalid JSON: %v", err), http.StatusBadRequest)
		return req, false
	}
	if req.AgentID == "" {
		http.Error(w, "agent_id is required", http.StatusBadRequest)
		return req, false
	}
	if req.Message == "" {
		http.Error(w, "message is required", http.StatusBadRequest)
		return req, false
	}
	return req, true
}

// ChatHandler is an HTTP handler for POST /chat that streams SSE. Every
// framework event is sent as a UIEvent, followed by one "result" envelope.
func (s *ChatServer) ChatHandler(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeChatRequest(w, r)
	if !ok {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	ctx := r.Context()
	log := clog.FromContext(ctx).With("agent", req.AgentID)

	// Once the client is gone further writes are skipped, but the run is
	// still drained and recorded.
	broken := false
	res, err := s.svc.Ask(ctx, req.toRunner(), func(ev *event.Event) {
		if broken {
			return
		}
		if err := writeSSE(w, flusher, BuildUIEvent(ev)); err != nil {
			log.Debug("client went away", "err", err)
			broken = true
		}
	})
	if err != nil {
		log.Warn("chat run failed", "err", err)
		writeSSEError(w, flusher, err)
		return
	}
	if broken {
		return
	}
	if err := writeSSE(w, flusher, map[string]any{"type": "result", "result": res}); err != nil {
		log.Debug("client went away", "err", err)
	}
}

// writeSSE encodes v as a single SSE data: line.
func writeSSE(w http.ResponseWriter, flusher http.Flusher, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}

func writeSSEError(w http.ResponseWriter, flusher http.Flusher, err error) {
	env := map[string]any{
		"type": "error",
		"error": map[string]any{
			"message": err.Error(),
		},
	}
	_ = writeSSE(w, flusher, env)
}
