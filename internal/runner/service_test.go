package runner

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentdemos/configs"
	"agentdemos/internal/agents"
	"agentdemos/internal/store"

	"trpc.group/trpc-go/trpc-agent-go/event"
	"trpc.group/trpc-go/trpc-agent-go/model"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	reg, err := agents.LoadRegistryFS(configs.Agents())
	require.NoError(t, err)
	return NewService(reg)
}

func feed(evts ...*event.Event) <-chan *event.Event {
	ch := make(chan *event.Event, len(evts))
	for _, e := range evts {
		ch <- e
	}
	close(ch)
	return ch
}

func assistant(author, content string, usage *model.Usage) *event.Event {
	return &event.Event{
		Author: author,
		Response: &model.Response{
			Choices: []model.Choice{{Message: model.Message{Role: model.RoleAssistant, Content: content}}},
			Usage:   usage,
		},
	}
}

func TestCollect(t *testing.T) {
	toolCall := &event.Event{
		Author: "capital_agent",
		Response: &model.Response{
			Choices: []model.Choice{{Message: model.Message{
				Role: model.RoleAssistant,
				ToolCalls: []model.ToolCall{{
					Type:     "function",
					ID:       "call-1",
					Function: model.FunctionDefinitionParam{Name: "get_capital_name"},
				}},
			}}},
			Usage: &model.Usage{PromptTokens: 10, CompletionTokens: 2, TotalTokens: 12},
		},
	}
	partial := &event.Event{
		Author: "capital_agent",
		Response: &model.Response{
			IsPartial: true,
			Choices:   []model.Choice{{Delta: model.Message{Content: "The cap"}}},
		},
	}
	final := assistant("capital_agent", "The capital of France is Paris.",
		&model.Usage{PromptTokens: 20, CompletionTokens: 8, TotalTokens: 28})

	seen := 0
	got := Collect(feed(toolCall, nil, partial, final, &event.Event{}), func(*event.Event) { seen++ })

	assert.Equal(t, 4, seen)
	assert.Equal(t, 4, got.Events)
	assert.Equal(t, "The capital of France is Paris.", got.Answer)
	assert.Equal(t, "capital_agent", got.Author)
	assert.Equal(t, []string{"get_capital_name"}, got.ToolCalls)
	assert.Equal(t, 30, got.Usage.PromptTokens)
	assert.Equal(t, 10, got.Usage.CompletionTokens)
	assert.Equal(t, 40, got.Usage.TotalTokens)
	assert.NoError(t, got.Err)
}

func TestCollectKeepsLastAuthor(t *testing.T) {
	got := Collect(feed(
		assistant("RenewableEnergyResearcher", "solar summary", nil),
		assistant("EVResearcher", "ev summary", nil),
		assistant("SynthesisAgent", "## Summary of Recent Sustainable Technology Advancements", nil),
	), nil)

	assert.Equal(t, "SynthesisAgent", got.Author)
	assert.Contains(t, got.Answer, "Summary of Recent")
}

func TestCollectError(t *testing.T) {
	got := Collect(feed(&event.Event{
		Author: "time_agent",
		Response: &model.Response{
			Error: &model.ResponseError{Message: "model unavailable", Type: "api_error"},
		},
	}), nil)

	require.Error(t, got.Err)
	assert.Equal(t, "model unavailable", got.Err.Error())
	assert.Empty(t, got.Answer)
}

func TestRequestNormalize(t *testing.T) {
	req := Request{AgentID: " capital_agent ", Query: "hi"}
	req.normalize()
	assert.Equal(t, "capital_agent", req.AgentID)
	assert.Equal(t, DefaultUserID, req.UserID)
	assert.Len(t, req.SessionID, 36)

	kept := Request{AgentID: "a", UserID: "u", SessionID: "s"}
	kept.normalize()
	assert.Equal(t, "u", kept.UserID)
	assert.Equal(t, "s", kept.SessionID)
}

func TestAskValidation(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Ask(context.Background(), Request{AgentID: "capital_agent"}, nil)
	assert.ErrorIs(t, err, ErrEmptyQuery)

	_, err = svc.Ask(context.Background(), Request{AgentID: "nope", Query: "hi"}, nil)
	assert.ErrorIs(t, err, ErrBuildAgent)
	assert.ErrorIs(t, err, agents.ErrUnknownAgent)

	var nilSvc *Service
	_, err = nilSvc.Run(context.Background(), "capital_agent", "u", "s", model.NewUserMessage("hi"))
	assert.Error(t, err)
}

func TestSeedSession(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	require.NoError(t, svc.seedSession(ctx, "writer_critic", "u", "s-1", "a robot learning to paint"))

	sess, err := svc.sessionService.GetSession(ctx, svc.sessionKey("u", "s-1"))
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.Equal(t, "a robot learning to paint", string(sess.State["initial_topic"]))

	// An existing session keeps its seed.
	require.NoError(t, svc.seedSession(ctx, "writer_critic", "u", "s-1", "something else"))
	assert.Equal(t, map[string]string{"initial_topic": "a robot learning to paint"},
		svc.sessionState(ctx, Request{UserID: "u", SessionID: "s-1"}))

	// Agents without a seed key do not create sessions.
	require.NoError(t, svc.seedSession(ctx, "capital_agent", "u", "s-2", "France"))
	sess, err = svc.sessionService.GetSession(ctx, svc.sessionKey("u", "s-2"))
	require.NoError(t, err)
	assert.Nil(t, sess)
}

func TestResultRecord(t *testing.T) {
	started := time.Date(2025, 11, 8, 10, 0, 0, 0, time.UTC)
	res := &Result{
		RunID:     "r",
		AgentID:   "writer_critic",
		UserID:    "u",
		SessionID: "s",
		Answer:    "final draft",
		Author:    "RefinerAgent",
		ToolCalls: []string{"exit_loop"},
		State:     map[string]string{"current_document": "final draft"},
		Err:       errors.New("boom"),
		Error:     "boom",
		Started:   started,
		Finished:  started.Add(time.Minute),
	}

	run := res.record("a lighthouse")
	assert.Equal(t, store.Run{
		ID:         "r",
		AgentID:    "writer_critic",
		UserID:     "u",
		SessionID:  "s",
		Query:      "a lighthouse",
		Answer:     "final draft",
		Author:     "RefinerAgent",
		ToolCalls:  []string{"exit_loop"},
		State:      map[string]string{"current_document": "final draft"},
		Error:      "boom",
		StartedAt:  started,
		FinishedAt: started.Add(time.Minute),
	}, run)
}

func TestOptions(t *testing.T) {
	svc := newTestService(t)
	mem := store.NewMemory()

	svc.WithStore(nil)
	svc.WithRunnerName("")
	svc.WithSessionService(nil)
	assert.NotNil(t, svc.Store())
	assert.Equal(t, defaultRunnerName, svc.runnerName)

	svc.WithStore(mem)
	svc.WithRunnerName("demo")
	assert.Same(t, mem, svc.Store())
	assert.Equal(t, "demo", svc.sessionKey("u", "s").AppName)
	assert.NotNil(t, svc.Registry())
}
