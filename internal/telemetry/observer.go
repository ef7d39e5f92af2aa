// Package telemetry re-expresses the source system's decorator-driven
// cross-cutting logging and evaluation (its @observe/@traceable/@evaluate
// annotations) as an explicit Go interface. Agent graph nodes, provider
// calls, tool dispatch, and memory flush all call through it explicitly
// rather than relying on hidden wrapping.
package telemetry

import "time"

// Observer receives lifecycle notifications about named operations. An
// implementation may log, record metrics, or both; callers never depend on
// the concrete type.
type Observer interface {
	// OnOperationStart is called immediately before an operation begins.
	// It returns an opaque handle that must be passed to OnOperationEnd.
	OnOperationStart(op string, attrs map[string]any) OperationHandle

	// OnOperationEnd is called when the operation completes, successfully
	// or not.
	OnOperationEnd(h OperationHandle, err error)

	// OnAnomaly reports a condition worth surfacing that is not itself an
	// operation failure (e.g. an empty-response fallback, a circuit breaker
	// trip, a rejected internal-prompt-filter match).
	OnAnomaly(kind string, attrs map[string]any)
}

// OperationHandle is opaque bookkeeping state threaded from
// OnOperationStart to OnOperationEnd.
type OperationHandle struct {
	Op        string
	StartedAt time.Time
}

// NoopObserver discards everything. Useful as a default when no telemetry
// sink is configured.
type NoopObserver struct{}

func (NoopObserver) OnOperationStart(op string, _ map[string]any) OperationHandle {
	return OperationHandle{Op: op, StartedAt: time.Now()}
}
func (NoopObserver) OnOperationEnd(OperationHandle, error)            {}
func (NoopObserver) OnAnomaly(string, map[string]any)                 {}
