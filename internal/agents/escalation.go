package agents

import (
	"agentdemos/internal/metrics"
	"agentdemos/internal/tools"

	"trpc.group/trpc-go/trpc-agent-go/event"
	"trpc.group/trpc-go/trpc-agent-go/model"
)

// Loop exit reasons.
const (
	ExitReasonTool  = "exit_loop"
	ExitReasonError = "error"
)

// LoopExitReason reports why evt should end a loop agent, or "" if it
// should not.
func LoopExitReason(evt *event.Event) string {
	if evt == nil || evt.Response == nil {
		return ""
	}
	if evt.Response.Error != nil {
		return ExitReasonError
	}
	for _, choice := range evt.Response.Choices {
		if choice.Message.Role == model.RoleTool && choice.Message.ToolName == tools.ExitLoopName {
			return ExitReasonTool
		}
	}
	return ""
}

// loopEscalation returns the escalation check handed to loop agents.
func loopEscalation(rec *metrics.Recorder) func(*event.Event) bool {
	return func(evt *event.Event) bool {
		reason := LoopExitReason(evt)
		if reason == "" {
			return false
		}
		rec.IncLoopExit(reason)
		return true
	}
}
