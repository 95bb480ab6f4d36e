package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewRecorder(reg)

	r.ObserveRun("capital_agent", true, 2*time.Second)
	r.ObserveRun("capital_agent", false, time.Second)
	r.ObserveToolCall("get_capital_name", true, 10*time.Millisecond)
	r.AddTokens("capital_agent", 120, 30)
	r.IncLoopExit("exit_loop")

	assert.InDelta(t, 1, testutil.ToFloat64(r.runsTotal.WithLabelValues("capital_agent", "success")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(r.runsTotal.WithLabelValues("capital_agent", "error")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(r.toolCalls.WithLabelValues("get_capital_name", "success")), 0)
	assert.InDelta(t, 120, testutil.ToFloat64(r.tokensTotal.WithLabelValues("capital_agent", "prompt")), 0)
	assert.InDelta(t, 30, testutil.ToFloat64(r.tokensTotal.WithLabelValues("capital_agent", "completion")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(r.loopsFinished.WithLabelValues("exit_loop")), 0)

	n, err := testutil.GatherAndCount(reg, "agent_run_duration_seconds")
	assert.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestNilRecorder(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() {
		r.ObserveRun("a", true, time.Second)
		r.ObserveToolCall("t", false, time.Second)
		r.AddTokens("a", 1, 1)
		r.IncLoopExit("error")
	})
}
