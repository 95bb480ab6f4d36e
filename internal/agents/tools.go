package agents

import (
	"context"
	"fmt"
	"time"

	"github.com/chainguard-dev/clog"

	"agentdemos/internal/metrics"
	"agentdemos/internal/tools"

	"trpc.group/trpc-go/trpc-agent-go/tool"
	"trpc.group/trpc-go/trpc-agent-go/tool/function"
)

// Tool types accepted in agent configs.
const (
	ToolTypeCapital     = "capital"
	ToolTypeTimezone    = "timezone"
	ToolTypeCurrentTime = "current_time"
	ToolTypeWeather     = "weather"
	ToolTypeWebSearch   = "web_search"
	ToolTypeExitLoop    = "exit_loop"
	ToolTypeCalculator  = "calculator"
)

// instrument wraps a tool function with logging and metrics.
func instrument[I, O any](name string, rec *metrics.Recorder, fn func(context.Context, I) (O, error)) func(context.Context, I) (O, error) {
	return func(ctx context.Context, in I) (O, error) {
		log := clog.FromContext(ctx).With("tool", name)
		start := time.Now()
		out, err := fn(ctx, in)
		rec.ObserveToolCall(name, err == nil, time.Since(start))
		if err != nil {
			log.With("error", err).Warn("Tool call failed")
			return out, err
		}
		log.With("elapsed", time.Since(start)).Debug("Tool call succeeded")
		return out, nil
	}
}

type capitalRequest struct {
	Country string `json:"country"`
}

func capitalTool(rec *metrics.Recorder) tool.Tool {
	fn := func(_ context.Context, req capitalRequest) (string, error) {
		return tools.CapitalName(req.Country)
	}
	return function.NewFunctionTool(
		instrument("get_capital_name", rec, fn),
		function.WithName("get_capital_name"),
		function.WithDescription("Get the capital city of the input `country` (a valid country name with correct spelling). Returns the capital name."),
	)
}

type timezoneRequest struct {
	Location string `json:"location"`
}

func timezoneTool(tb *tools.Toolbox, rec *metrics.Recorder) tool.Tool {
	fn := func(ctx context.Context, req timezoneRequest) (tools.TimeZone, error) {
		return tb.TimeZones.Resolve(ctx, req.Location)
	}
	return function.NewFunctionTool(
		instrument("get_time_zone", rec, fn),
		function.WithName("get_time_zone"),
		function.WithDescription("Resolve the IANA timezone of a place, e.g. location='Tbilisi, Georgia' returns 'Asia/Tbilisi' with its coordinates."),
	)
}

type currentTimeRequest struct {
	City     string `json:"city"`
	Timezone string `json:"timezone"`
}

func currentTimeTool(tb *tools.Toolbox, rec *metrics.Recorder) tool.Tool {
	fn := func(ctx context.Context, req currentTimeRequest) (tools.CityTime, error) {
		return tb.Clock.CurrentTime(ctx, req.City, req.Timezone)
	}
	return function.NewFunctionTool(
		instrument("get_current_time", rec, fn),
		function.WithName("get_current_time"),
		function.WithDescription("Fetch the current time for `city` using the given IANA `timezone`, which must be a valid string such as 'Asia/Karachi' or 'Asia/Dubai'."),
	)
}

type weatherRequest struct {
	City string `json:"city"`
}

func weatherTool(tb *tools.Toolbox, rec *metrics.Recorder) tool.Tool {
	fn := func(ctx context.Context, req weatherRequest) (tools.Weather, error) {
		return tb.Weather.CurrentWeather(ctx, req.City)
	}
	return function.NewFunctionTool(
		instrument("get_weather", rec, fn),
		function.WithName("get_weather"),
		function.WithDescription("Get the current weather for `city`: temperature in Celsius, wind speed, condition and whether it is raining or snowing."),
	)
}

type searchRequest struct {
	Query string `json:"query"`
}

func webSearchTool(tb *tools.Toolbox, rec *metrics.Recorder) tool.Tool {
	fn := func(ctx context.Context, req searchRequest) (tools.SearchResponse, error) {
		return tb.Search.Search(ctx, req.Query)
	}
	return function.NewFunctionTool(
		instrument("web_search", rec, fn),
		function.WithName("web_search"),
		function.WithDescription("Search the web for `query` and return a short abstract with related results."),
	)
}

// exitLoopTool ends the calling agent's turn: its result is not sent back to
// the model.
func exitLoopTool(rec *metrics.Recorder) tool.Tool {
	fn := func(_ context.Context, _ struct{}) (tools.ExitLoopResult, error) {
		return tools.ExitLoop(), nil
	}
	return function.NewFunctionTool(
		instrument(tools.ExitLoopName, rec, fn),
		function.WithName(tools.ExitLoopName),
		function.WithDescription("Call this function ONLY when the critique indicates no further changes are needed, signaling the iterative process should end."),
		function.WithSkipSummarization(true),
	)
}

type calculatorRequest struct {
	Operation string  `json:"operation"`
	A         float64 `json:"a"`
	B         float64 `json:"b"`
}

// calculatorTool returns a very simple arithmetic tool.
func calculatorTool(rec *metrics.Recorder) tool.Tool {
	fn := func(_ context.Context, req calculatorRequest) (map[string]any, error) {
		switch req.Operation {
		case "add":
			return map[string]any{"result": req.A + req.B}, nil
		case "multiply":
			return map[string]any{"result": req.A * req.B}, nil
		default:
			return nil, fmt.Errorf("unsupported operation: %s", req.Operation)
		}
	}

	return function.NewFunctionTool(
		instrument("calculator", rec, fn),
		function.WithName("calculator"),
		function.WithDescription("Simple calculator tool (add/multiply)."),
	)
}

// buildTools instantiates the tools listed in an agent config. modelName is
// the resolved backend, used to drop tools the backend cannot serve.
func (r *Registry) buildTools(ctx context.Context, cfg AgentConfig, modelName string) ([]tool.Tool, error) {
	var out []tool.Tool
	for _, tc := range cfg.Tools {
		switch tc.Type {
		case ToolTypeCapital:
			out = append(out, capitalTool(r.metrics))
		case ToolTypeTimezone:
			out = append(out, timezoneTool(r.toolbox, r.metrics))
		case ToolTypeCurrentTime:
			out = append(out, currentTimeTool(r.toolbox, r.metrics))
		case ToolTypeWeather:
			out = append(out, weatherTool(r.toolbox, r.metrics))
		case ToolTypeWebSearch:
			if !tools.SearchSupported(modelName) {
				clog.FromContext(ctx).With("agent", cfg.ID).
					With("model", modelName).
					Warn("web_search disabled for model")
				continue
			}
			out = append(out, webSearchTool(r.toolbox, r.metrics))
		case ToolTypeExitLoop:
			out = append(out, exitLoopTool(r.metrics))
		case ToolTypeCalculator:
			out = append(out, calculatorTool(r.metrics))
		default:
			return nil, fmt.Errorf("unsupported tool type: %s", tc.Type)
		}
	}
	return out, nil
}
