package http

import (
	"encoding/json"
	"time"

	"trpc.group/trpc-go/trpc-agent-go/event"
	"trpc.group/trpc-go/trpc-agent-go/graph"
	"trpc.group/trpc-go/trpc-agent-go/model"
)

// UIEvent is the envelope streamed to the browser for every run event.
type UIEvent struct {
	Type               string `json:"type"`   // ev.Object
	Object             string `json:"object"` // e.g. graph.node.execution, chat.completion
	EventID            string `json:"eventId"`
	Author             string `json:"author,omitempty"`
	Timestamp          string `json:"timestamp"` // RFC3339Nano
	RequestID          string `json:"requestId,omitempty"`
	InvocationID       string `json:"invocationId,omitempty"`
	ParentInvocationID string `json:"parentInvocationId,omitempty"`
	FilterKey          string `json:"filterKey,omitempty"`
	RunnerCompletion   bool   `json:"runnerCompletion,omitempty"`

	ContentDelta   string           `json:"contentDelta,omitempty"`
	Content        string           `json:"content,omitempty"`
	ToolCallsDelta []model.ToolCall `json:"toolCallsDelta,omitempty"`
	ToolCalls      []model.ToolCall `json:"toolCalls,omitempty"`
	// ToolName and ToolResult are set on tool response events.
	ToolName   string `json:"toolName,omitempty"`
	ToolResult string `json:"toolResult,omitempty"`

	// Only set on non-partial events.
	Usage *model.Usage `json:"usage,omitempty"`

	// Graph agents report execution metadata through StateDelta.
	ModelMetadata   *graph.ModelExecutionMetadata `json:"modelMetadata,omitempty"`
	NodeMetadata    *graph.NodeExecutionMetadata  `json:"nodeMetadata,omitempty"`
	PregelMetadata  *graph.PregelStepMetadata     `json:"pregelMetadata,omitempty"`
	ChannelMetadata *graph.ChannelUpdateMetadata  `json:"channelMetadata,omitempty"`
	StateMetadata   *graph.StateUpdateMetadata    `json:"stateMetadata,omitempty"`

	Error *model.ResponseError `json:"error,omitempty"`
}

// BuildUIEvent projects ev onto a UIEvent.
func BuildUIEvent(ev *event.Event) *UIEvent {
	if ev == nil {
		return nil
	}

	ui := &UIEvent{
		EventID:            ev.ID,
		Author:             ev.Author,
		Timestamp:          ev.Timestamp.Format(time.RFC3339Nano),
		RequestID:          ev.RequestID,
		InvocationID:       ev.InvocationID,
		ParentInvocationID: ev.ParentInvocationID,
		FilterKey:          ev.FilterKey,
	}

	if resp := ev.Response; resp != nil {
		ui.Type = resp.Object
		ui.Object = resp.Object
		ui.Error = resp.Error
		ui.RunnerCompletion = ev.IsRunnerCompletion()

		if len(resp.Choices) > 0 {
			choice := resp.Choices[0]
			if resp.IsPartial {
				ui.ContentDelta = choice.Delta.Content
				if len(choice.Delta.ToolCalls) > 0 {
					ui.ToolCallsDelta = choice.Delta.ToolCalls
				}
			} else if choice.Message.Role == model.RoleTool {
				ui.ToolName = choice.Message.ToolName
				ui.ToolResult = choice.Message.Content
			} else {
				ui.Content = choice.Message.Content
				if len(choice.Message.ToolCalls) > 0 {
					ui.ToolCalls = choice.Message.ToolCalls
				}
			}
		}

		if !resp.IsPartial && resp.Usage != nil {
			ui.Usage = resp.Usage
		}
	}

	if len(ev.StateDelta) > 0 {
		ui.ModelMetadata = decodeMetadata[graph.ModelExecutionMetadata](ev.StateDelta, graph.MetadataKeyModel)
		ui.NodeMetadata = decodeMetadata[graph.NodeExecutionMetadata](ev.StateDelta, graph.MetadataKeyNode)
		ui.PregelMetadata = decodeMetadata[graph.PregelStepMetadata](ev.StateDelta, graph.MetadataKeyPregel)
		ui.ChannelMetadata = decodeMetadata[graph.ChannelUpdateMetadata](ev.StateDelta, graph.MetadataKeyChannel)
		ui.StateMetadata = decodeMetadata[graph.StateUpdateMetadata](ev.StateDelta, graph.MetadataKeyState)
	}

	return ui
}

// decodeMetadata returns the value stored under key, or nil if it is absent
// or malformed.
func decodeMetadata[T any](delta map[string][]byte, key string) *T {
	b, ok := delta[key]
	if !ok {
		return nil
	}
	var md T
	if err := json.Unmarshal(b, &md); err != nil {
		return nil
	}
	return &md
}
