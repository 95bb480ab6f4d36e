package tools

// ExitLoopName is the tool name a refiner calls to end a refinement loop.
const ExitLoopName = "exit_loop"

// ExitLoopResult is returned by the exit_loop tool.
type ExitLoopResult struct {
	Status string `json:"status"`
}

// ExitLoop signals that the enclosing loop is complete. The loop agent
// watches for this tool's response and stops iterating.
func ExitLoop() ExitLoopResult {
	return ExitLoopResult{Status: "loop exited"}
}
