package main

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"trpc.group/trpc-go/trpc-agent-go/event"
	"trpc.group/trpc-go/trpc-agent-go/model"
)

// printEvent writes a one-line summary of each complete message in ev.
// Streaming deltas are skipped.
func printEvent(w io.Writer, ev *event.Event) {
	if ev == nil || ev.Response == nil {
		return
	}
	resp := ev.Response
	if resp.Error != nil {
		fmt.Fprintf(w, "[%s] error: %s\n", ev.Author, resp.Error.Message)
		return
	}
	if resp.IsPartial || ev.IsRunnerCompletion() {
		return
	}
	for _, choice := range resp.Choices {
		msg := choice.Message
		for _, tc := range msg.ToolCalls {
			fmt.Fprintf(w, "[%s] tool call: %s(%s)\n", ev.Author, tc.Function.Name, string(tc.Function.Arguments))
		}
		switch {
		case msg.Role == model.RoleTool:
			fmt.Fprintf(w, "[%s] tool result %s: %s\n", ev.Author, msg.ToolName, oneLine(msg.Content))
		case msg.Content != "":
			fmt.Fprintf(w, "[%s] %s\n", ev.Author, oneLine(msg.Content))
		}
	}
}

const maxLineRunes = 200

func oneLine(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= maxLineRunes {
		return s
	}
	return string([]rune(s)[:maxLineRunes]) + "..."
}
