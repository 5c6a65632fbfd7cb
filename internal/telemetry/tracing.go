package telemetry

import (
	"sync"

	"github.com/google/uuid"

	"github.com/forgebuild/forge/internal/types"
)

// Tracer stamps BuildEvents with OTel-shaped correlation IDs: every
// event in one build shares a trace ID, and each node's events share a
// span ID, parented to the build-level span. This mirrors OpenTelemetry's
// trace/span/parent-span triad closely enough that events can be fed
// into an OTel-compatible exporter later without reshaping the payload,
// without forge taking on the otel SDK as a dependency for what is, at
// this scope, just ID stamping.
type Tracer struct {
	mu          sync.Mutex
	traceID     string
	buildSpanID string
	nodeSpanIDs map[string]string
}

// NewTracer starts a new trace for one build run, generating the
// build-level (root) span.
func NewTracer() *Tracer {
	return &Tracer{
		traceID:     uuid.NewString(),
		buildSpanID: uuid.NewString(),
		nodeSpanIDs: make(map[string]string),
	}
}

// Stamp fills in event's TraceID/SpanID/ParentSpan. Build-level events
// (EventBuildStarted/EventBuildCompleted) use the root span; node
// events get a per-target span parented to the root, created lazily on
// first use and reused for that target's remaining events.
func (t *Tracer) Stamp(event types.BuildEvent) types.BuildEvent {
	event.TraceID = t.traceID

	if event.TargetID == "" {
		event.SpanID = t.buildSpanID
		event.ParentSpan = ""
		return event
	}

	t.mu.Lock()
	span, ok := t.nodeSpanIDs[event.TargetID]
	if !ok {
		span = uuid.NewString()
		t.nodeSpanIDs[event.TargetID] = span
	}
	t.mu.Unlock()

	event.SpanID = span
	event.ParentSpan = t.buildSpanID
	return event
}

// TracedPublisher wraps a Publisher so every Publish call is stamped
// with trace/span IDs before fan-out.
type TracedPublisher struct {
	*Publisher
	tracer *Tracer
}

// NewTraced creates a TracedPublisher with a fresh Tracer.
func NewTraced() *TracedPublisher {
	return &TracedPublisher{Publisher: New(), tracer: NewTracer()}
}

// Publish stamps event via the wrapped Tracer before delegating to
// Publisher.Publish.
func (tp *TracedPublisher) Publish(event types.BuildEvent) {
	tp.Publisher.Publish(tp.tracer.Stamp(event))
}
