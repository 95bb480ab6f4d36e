// Package metrics provides Prometheus metrics for agent runs and tool calls.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder records run, tool and token metrics. A nil *Recorder is valid
// and records nothing.
type Recorder struct {
	runsTotal     *prometheus.CounterVec
	runDuration   *prometheus.HistogramVec
	toolCalls     *prometheus.CounterVec
	toolDuration  *prometheus.HistogramVec
	tokensTotal   *prometheus.CounterVec
	loopsFinished *prometheus.CounterVec
}

// NewRecorder registers the metrics on reg.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		runsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agent_runs_total",
				Help: "Total number of agent runs by agent and status",
			},
			[]string{"agent_id", "status"},
		),
		runDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agent_run_duration_seconds",
				Help:    "Duration of agent runs in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"agent_id"},
		),
		toolCalls: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agent_tool_calls_total",
				Help: "Total number of tool invocations by tool and status",
			},
			[]string{"tool", "status"},
		),
		toolDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agent_tool_call_duration_seconds",
				Help:    "Duration of tool invocations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"tool"},
		),
		tokensTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agent_tokens_total",
				Help: "Total number of LLM tokens used by agent and type",
			},
			[]string{"agent_id", "type"},
		),
		loopsFinished: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agent_loop_exits_total",
				Help: "Total number of loop agents ended by escalation",
			},
			[]string{"reason"},
		),
	}
}

func status(ok bool) string {
	if ok {
		return "success"
	}
	return "error"
}

// ObserveRun records a finished run.
func (r *Recorder) ObserveRun(agentID string, ok bool, d time.Duration) {
	if r == nil {
		return
	}
	r.runsTotal.WithLabelValues(agentID, status(ok)).Inc()
	r.runDuration.WithLabelValues(agentID).Observe(d.Seconds())
}

// ObserveToolCall records a single tool invocation.
func (r *Recorder) ObserveToolCall(tool string, ok bool, d time.Duration) {
	if r == nil {
		return
	}
	r.toolCalls.WithLabelValues(tool, status(ok)).Inc()
	r.toolDuration.WithLabelValues(tool).Observe(d.Seconds())
}

// AddTokens records prompt and completion token usage.
func (r *Recorder) AddTokens(agentID string, prompt, completion int) {
	if r == nil {
		return
	}
	r.tokensTotal.WithLabelValues(agentID, "prompt").Add(float64(prompt))
	r.tokensTotal.WithLabelValues(agentID, "completion").Add(float64(completion))
}

// IncLoopExit counts a loop ended early, by reason ("exit_loop" or "error").
func (r *Recorder) IncLoopExit(reason string) {
	if r == nil {
		return
	}
	r.loopsFinished.WithLabelValues(reason).Inc()
}
