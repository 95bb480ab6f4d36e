package runner

import (
	"errors"

	"trpc.group/trpc-go/trpc-agent-go/event"
	"trpc.group/trpc-go/trpc-agent-go/model"
)

// Transcript is what Collect extracts from an event stream.
type Transcript struct {
	Answer    string
	Author    string
	ToolCalls []string
	Usage     model.Usage
	Events    int
	Err       error
}

// Collect drains events and keeps the last complete assistant message as the
// answer. onEvent, if set, sees every event before it is folded in.
func Collect(events <-chan *event.Event, onEvent func(*event.Event)) Transcript {
	var t Transcript
	for ev := range events {
		if ev == nil {
			continue
		}
		t.Events++
		if onEvent != nil {
			onEvent(ev)
		}
		t.add(ev)
	}
	return t
}

func (t *Transcript) add(ev *event.Event) {
	resp := ev.Response
	if resp == nil {
		return
	}
	if resp.Error != nil {
		t.Err = errors.New(resp.Error.Message)
	}
	// The completion event repeats the final response.
	if resp.IsPartial || ev.IsRunnerCompletion() {
		return
	}
	if resp.Usage != nil {
		t.Usage.PromptTokens += resp.Usage.PromptTokens
		t.Usage.CompletionTokens += resp.Usage.CompletionTokens
		t.Usage.TotalTokens += resp.Usage.TotalTokens
	}
	for _, choice := range resp.Choices {
		for _, tc := range choice.Message.ToolCalls {
			t.ToolCalls = append(t.ToolCalls, tc.Function.Name)
		}
		if choice.Message.Role == model.RoleAssistant && choice.Message.Content != "" {
			t.Answer = choice.Message.Content
			t.Author = ev.Author
		}
	}
}
