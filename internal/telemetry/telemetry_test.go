package telemetry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgebuild/forge/internal/types"
)

func TestPublisher_Publish_DeliversToSubscriber(t *testing.T) {
	p := New()
	ch := p.Subscribe()

	p.Publish(types.BuildEvent{Kind: types.EventBuildStarted, Timestamp: time.Now()})

	select {
	case event := <-ch:
		assert.Equal(t, types.EventBuildStarted, event.Kind)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestPublisher_Publish_FansOutToMultipleSubscribers(t *testing.T) {
	p := New()
	a := p.Subscribe()
	b := p.Subscribe()

	p.Publish(types.BuildEvent{Kind: types.EventBuildCompleted})

	for _, ch := range []<-chan types.BuildEvent{a, b} {
		select {
		case event := <-ch:
			assert.Equal(t, types.EventBuildCompleted, event.Kind)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for event")
		}
	}
}

func TestPublisher_Publish_DoesNotBlockOnFullSubscriber(t *testing.T) {
	p := New()
	ch := p.Subscribe()

	for i := 0; i < subscriberBuffer+10; i++ {
		p.Publish(types.BuildEvent{Kind: types.EventNodeStarted})
	}

	assert.Len(t, ch, subscriberBuffer)
}

func TestPublisher_Unsubscribe_StopsDeliveryAndClosesChannel(t *testing.T) {
	p := New()
	ch := p.Subscribe()
	p.Unsubscribe(ch)

	p.Publish(types.BuildEvent{Kind: types.EventBuildStarted})

	_, ok := <-ch
	assert.False(t, ok, "channel should be closed after Unsubscribe")
}

func TestPublisher_Unsubscribe_UnknownChannelIsNoop(t *testing.T) {
	p := New()
	other := make(chan types.BuildEvent)
	assert.NotPanics(t, func() { p.Unsubscribe(other) })
}

func TestTracer_Stamp_BuildLevelEventUsesRootSpan(t *testing.T) {
	tr := NewTracer()
	event := tr.Stamp(types.BuildEvent{Kind: types.EventBuildStarted})

	assert.NotEmpty(t, event.TraceID)
	assert.NotEmpty(t, event.SpanID)
	assert.Empty(t, event.ParentSpan)
}

func TestTracer_Stamp_NodeEventsShareSpanAcrossCalls(t *testing.T) {
	tr := NewTracer()
	first := tr.Stamp(types.BuildEvent{Kind: types.EventNodeStarted, TargetID: "ws//.:a"})
	second := tr.Stamp(types.BuildEvent{Kind: types.EventNodeCompleted, TargetID: "ws//.:a"})

	assert.Equal(t, first.TraceID, second.TraceID)
	assert.Equal(t, first.SpanID, second.SpanID)
	assert.NotEmpty(t, first.ParentSpan)
}

func TestTracer_Stamp_DifferentTargetsGetDifferentSpans(t *testing.T) {
	tr := NewTracer()
	a := tr.Stamp(types.BuildEvent{TargetID: "ws//.:a"})
	b := tr.Stamp(types.BuildEvent{TargetID: "ws//.:b"})

	assert.NotEqual(t, a.SpanID, b.SpanID)
	assert.Equal(t, a.ParentSpan, b.ParentSpan)
}

func TestTracedPublisher_Publish_StampsBeforeDelivery(t *testing.T) {
	tp := NewTraced()
	ch := tp.Subscribe()

	tp.Publish(types.BuildEvent{Kind: types.EventBuildStarted})

	event := <-ch
	assert.NotEmpty(t, event.TraceID)
	require.NotEmpty(t, event.SpanID)
}
