package runner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chainguard-dev/clog"
	"github.com/google/uuid"

	"agentdemos/internal/agents"
	"agentdemos/internal/metrics"
	"agentdemos/internal/store"

	"trpc.group/trpc-go/trpc-agent-go/event"
	"trpc.group/trpc-go/trpc-agent-go/model"
	trpcrunner "trpc.group/trpc-go/trpc-agent-go/runner"
	"trpc.group/trpc-go/trpc-agent-go/session"
	"trpc.group/trpc-go/trpc-agent-go/session/inmemory"
)

const (
	defaultRunnerName = "agentdemos"
	// DefaultUserID is used when a request names no user.
	DefaultUserID = "anonymous"
)

var (
	// ErrBuildAgent indicates that the agent could not be constructed from the registry.
	ErrBuildAgent = errors.New("runner: build agent failed")
	// ErrEmptyQuery is returned for requests without a message.
	ErrEmptyQuery = errors.New("runner: query is required")
)

// Service bundles all runner-related wiring so transports only need to
// provide the request information.
type Service struct {
	registry       *agents.Registry
	sessionService session.Service
	runnerName     string
	store          store.Store
	metrics        *metrics.Recorder
	now            func() time.Time
}

// NewService creates a Runner service with the default in-memory session
// store and run store.
func NewService(reg *agents.Registry) *Service {
	return &Service{
		registry:       reg,
		sessionService: inmemory.NewSessionService(),
		runnerName:     defaultRunnerName,
		store:          store.NewMemory(),
		now:            time.Now,
	}
}

// WithSessionService overrides the default session backend.
func (s *Service) WithSessionService(svc session.Service) {
	if svc == nil {
		return
	}
	s.sessionService = svc
}

// WithRunnerName overrides the app name under which sessions are stored.
func (s *Service) WithRunnerName(name string) {
	if name == "" {
		return
	}
	s.runnerName = name
}

// WithStore overrides where completed runs are recorded.
func (s *Service) WithStore(st store.Store) {
	if st == nil {
		return
	}
	s.store = st
}

// WithMetrics sets the metrics recorder.
func (s *Service) WithMetrics(rec *metrics.Recorder) {
	s.metrics = rec
}

// Store returns the run store.
func (s *Service) Store() store.Store {
	return s.store
}

// Registry returns the agent registry.
func (s *Service) Registry() *agents.Registry {
	return s.registry
}

// Request is a single query to an agent.
type Request struct {
	AgentID   string `json:"agent_id"`
	Query     string `json:"message"`
	UserID    string `json:"user_id,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

// normalize fills in the default user and a fresh session id.
func (r *Request) normalize() {
	r.AgentID = strings.TrimSpace(r.AgentID)
	if r.UserID == "" {
		r.UserID = DefaultUserID
	}
	if r.SessionID == "" {
		r.SessionID = uuid.NewString()
	}
}

// Result is the outcome of Ask.
type Result struct {
	RunID     string            `json:"run_id"`
	AgentID   string            `json:"agent_id"`
	UserID    string            `json:"user_id"`
	SessionID string            `json:"session_id"`
	Answer    string            `json:"answer"`
	Author    string            `json:"author,omitempty"`
	ToolCalls []string          `json:"tool_calls,omitempty"`
	Usage     model.Usage       `json:"usage"`
	State     map[string]string `json:"state,omitempty"`
	Error     string            `json:"error,omitempty"`
	Err       error             `json:"-"`
	Started   time.Time         `json:"started"`
	Finished  time.Time         `json:"finished"`
}

// Run executes the requested agent with the provided message and streams events.
func (s *Service) Run(ctx context.Context, agentID, userID, sessionID string, message model.Message) (<-chan *event.Event, error) {
	if s == nil {
		return nil, fmt.Errorf("runner service is not initialized")
	}
	if s.registry == nil {
		return nil, fmt.Errorf("runner service registry is not configured")
	}
	agt, err := s.registry.BuildAgent(ctx, agentID)
	if err != nil {
		return nil, errors.Join(ErrBuildAgent, fmt.Errorf("build agent %q: %w", agentID, err))
	}
	if err := s.seedSession(ctx, agentID, userID, sessionID, message.Content); err != nil {
		return nil, err
	}

	appRunner := trpcrunner.NewRunner(
		s.runnerName,
		agt,
		trpcrunner.WithSessionService(s.sessionService),
	)

	return appRunner.Run(ctx, userID, sessionID, message)
}

// Stream normalizes req and starts a run. The returned request carries the
// resolved user and session ids.
func (s *Service) Stream(ctx context.Context, req Request) (Request, <-chan *event.Event, error) {
	req.normalize()
	if strings.TrimSpace(req.Query) == "" {
		return req, nil, ErrEmptyQuery
	}
	events, err := s.Run(ctx, req.AgentID, req.UserID, req.SessionID, model.NewUserMessage(req.Query))
	return req, events, err
}

// Ask runs the agent to completion, records the run and returns its result.
// onEvent, if set, sees every event as it arrives.
func (s *Service) Ask(ctx context.Context, req Request, onEvent func(*event.Event)) (*Result, error) {
	started := s.now()
	req, events, err := s.Stream(ctx, req)
	if err != nil {
		return nil, err
	}
	log := clog.FromContext(ctx).With("agent", req.AgentID, "session", req.SessionID)

	t := Collect(events, onEvent)

	res := &Result{
		RunID:     uuid.NewString(),
		AgentID:   req.AgentID,
		UserID:    req.UserID,
		SessionID: req.SessionID,
		Answer:    t.Answer,
		Author:    t.Author,
		ToolCalls: t.ToolCalls,
		Usage:     t.Usage,
		Err:       t.Err,
		Started:   started,
	}
	if err := ctx.Err(); err != nil && res.Err == nil {
		res.Err = err
	}
	if res.Err != nil {
		res.Error = res.Err.Error()
	}

	res.State = s.sessionState(ctx, req)
	if key := s.registry.ResultKey(req.AgentID); key != "" {
		if v, ok := res.State[key]; ok && v != "" {
			res.Answer = v
		}
	}
	res.Finished = s.now()

	s.metrics.ObserveRun(req.AgentID, res.Err == nil, res.Finished.Sub(started))
	s.metrics.AddTokens(req.AgentID, t.Usage.PromptTokens, t.Usage.CompletionTokens)

	// Recording uses a fresh context so a cancelled request is still stored.
	if err := s.store.SaveRun(context.WithoutCancel(ctx), res.record(req.Query)); err != nil {
		log.Warn("failed to record run", "err", err)
	}
	log.Info("run finished", "events", t.Events, "tool_calls", len(t.ToolCalls), "ok", res.Err == nil)
	return res, nil
}

func (r *Result) record(query string) store.Run {
	return store.Run{
		ID:         r.RunID,
		AgentID:    r.AgentID,
		UserID:     r.UserID,
		SessionID:  r.SessionID,
		Query:      query,
		Answer:     r.Answer,
		Author:     r.Author,
		ToolCalls:  r.ToolCalls,
		State:      r.State,
		Error:      r.Error,
		StartedAt:  r.Started,
		FinishedAt: r.Finished,
	}
}

func (s *Service) sessionKey(userID, sessionID string) session.Key {
	return session.Key{AppName: s.runnerName, UserID: userID, SessionID: sessionID}
}

// seedSession creates the session with the query stored under the agent's
// seed key. Existing sessions keep their state.
func (s *Service) seedSession(ctx context.Context, agentID, userID, sessionID, query string) error {
	stateKey := s.registry.SeedStateKey(agentID)
	if stateKey == "" {
		return nil
	}
	key := s.sessionKey(userID, sessionID)
	sess, err := s.sessionService.GetSession(ctx, key)
	if err != nil {
		return fmt.Errorf("get session %s: %w", sessionID, err)
	}
	if sess != nil {
		return nil
	}
	if _, err := s.sessionService.CreateSession(ctx, key, session.StateMap{stateKey: []byte(query)}); err != nil {
		return fmt.Errorf("create session %s: %w", sessionID, err)
	}
	clog.FromContext(ctx).Debug("seeded session state", "agent", agentID, "key", stateKey)
	return nil
}

// sessionState returns the session's text state after a run.
func (s *Service) sessionState(ctx context.Context, req Request) map[string]string {
	sess, err := s.sessionService.GetSession(context.WithoutCancel(ctx), s.sessionKey(req.UserID, req.SessionID))
	if err != nil || sess == nil || len(sess.State) == 0 {
		return nil
	}
	out := make(map[string]string, len(sess.State))
	for k, v := range sess.State {
		// Framework bookkeeping keys start with an underscore.
		if strings.HasPrefix(k, "_") {
			continue
		}
		out[k] = string(v)
	}
	return out
}
