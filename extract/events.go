// ABOUTME: Engine lifecycle event types emitted during template passes, merging, and derivation.
// ABOUTME: Events carry non-fatal findings (unresolved references, dangling targets) to the caller for visibility.
package extract

import "time"

// EngineEventType identifies the kind of engine lifecycle event.
type EngineEventType string

const (
	EventPassStarted   EngineEventType = "pass.started"
	EventPassCompleted EngineEventType = "pass.completed"
	EventPassFailed    EngineEventType = "pass.failed"
	EventEdgeAdded     EngineEventType = "edge.added"
	EventPseudoCreated EngineEventType = "pseudo.created"
	EventMergeDone     EngineEventType = "merge.completed"
	EventDeriveDone    EngineEventType = "derive.completed"

	// EventUnresolvedReference reports an expression that resolved to no known
	// identifier. The candidate is dropped, never turned into an edge; the
	// event exists so callers can surface what was skipped.
	EventUnresolvedReference EngineEventType = "reference.unresolved"

	// EventDanglingTarget reports an edge whose target has no node definition
	// in the accumulated graph. The edge itself is preserved.
	EventDanglingTarget EngineEventType = "target.dangling"
)

// EngineEvent is one lifecycle event emitted while the engine works. NodeID
// names the resource the event concerns, when there is one.
type EngineEvent struct {
	Type      EngineEventType
	NodeID    string
	Data      map[string]any
	Timestamp time.Time
}
