package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

// NewMetrics registers with Prometheus's default registry, which panics on a
// duplicate name, so every subtest below shares one instance.
var testMetrics = NewMetrics()

func TestRecordLLMRequest(t *testing.T) {
	testMetrics.RecordLLMRequest("anthropic", "claude-3-5-sonnet", "success", 1.2, 100, 50)
	require.Equal(t, float64(100), testutil.ToFloat64(testMetrics.LLMTokensUsed.WithLabelValues("anthropic", "claude-3-5-sonnet", "prompt")))
	require.Equal(t, float64(50), testutil.ToFloat64(testMetrics.LLMTokensUsed.WithLabelValues("anthropic", "claude-3-5-sonnet", "completion")))
	require.Equal(t, float64(1), testutil.ToFloat64(testMetrics.LLMRequestCounter.WithLabelValues("anthropic", "claude-3-5-sonnet", "success")))
}

func TestRecordToolExecution(t *testing.T) {
	testMetrics.RecordToolExecution("web_search", "success", 0.3)
	testMetrics.RecordToolExecution("web_search", "error", 0.1)
	require.Equal(t, float64(1), testutil.ToFloat64(testMetrics.ToolExecutionCounter.WithLabelValues("web_search", "success")))
	require.Equal(t, float64(1), testutil.ToFloat64(testMetrics.ToolExecutionCounter.WithLabelValues("web_search", "error")))
}

func TestRecordError(t *testing.T) {
	testMetrics.RecordError("agentgraph", "provider_exhausted")
	testMetrics.RecordError("agentgraph", "provider_exhausted")
	require.Equal(t, float64(2), testutil.ToFloat64(testMetrics.ErrorCounter.WithLabelValues("agentgraph", "provider_exhausted")))
}

func TestTurnLifecycle(t *testing.T) {
	testMetrics.TurnStarted()
	testMetrics.TurnStarted()
	require.Equal(t, float64(2), testutil.ToFloat64(testMetrics.ActiveTurns))

	testMetrics.TurnEnded("success", 4.5)
	require.Equal(t, float64(1), testutil.ToFloat64(testMetrics.ActiveTurns))
	require.Equal(t, float64(1), testutil.ToFloat64(testMetrics.ChatOutcome.WithLabelValues("success")))
}

func TestRecordDatabaseQuery(t *testing.T) {
	testMetrics.RecordDatabaseQuery("select", "messages", "success", 0.01)
	require.Equal(t, float64(1), testutil.ToFloat64(testMetrics.DatabaseQueryCounter.WithLabelValues("select", "messages", "success")))
}

func TestRecordLLMCostAndContextWindow(t *testing.T) {
	testMetrics.RecordLLMCost("anthropic", "claude-3-5-sonnet", 0.015)
	require.Equal(t, 0.015, testutil.ToFloat64(testMetrics.LLMCostUSD.WithLabelValues("anthropic", "claude-3-5-sonnet")))

	testMetrics.RecordContextWindow("anthropic", "claude-3-5-sonnet", 4096)
	require.Equal(t, uint64(1), testutil.CollectAndCount(testMetrics.ContextWindowUsed))
}

func TestRecordToolLoopIteration(t *testing.T) {
	testMetrics.RecordToolLoopIteration("continued")
	testMetrics.RecordToolLoopIteration("recursion_cap")
	require.Equal(t, float64(1), testutil.ToFloat64(testMetrics.RunAttempts.WithLabelValues("continued")))
	require.Equal(t, float64(1), testutil.ToFloat64(testMetrics.RunAttempts.WithLabelValues("recursion_cap")))
}
