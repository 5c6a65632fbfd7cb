// Package telemetry implements forge's lifecycle event bus: a fan-out
// of executor BuildEvents to any number of subscribers, plus
// OTel-shaped trace/span stamping so events from one build can be
// correlated across a distributed trace.
package telemetry

import (
	"sync"

	"github.com/forgebuild/forge/internal/interfaces"
	"github.com/forgebuild/forge/internal/types"
)

// subscriberBuffer is the channel capacity given to each Subscribe
// call. A slow subscriber drops events rather than stalling the
// publisher; the build must never block on a renderer.
const subscriberBuffer = 64

// Publisher is an in-process, non-blocking BuildEvent bus.
type Publisher struct {
	mu   sync.RWMutex
	subs map[chan types.BuildEvent]struct{}
}

var _ interfaces.EventPublisher = (*Publisher)(nil)

// New creates an empty Publisher.
func New() *Publisher {
	return &Publisher{subs: make(map[chan types.BuildEvent]struct{})}
}

// Publish delivers event to every current subscriber. A subscriber
// whose buffer is full has the event dropped for it rather than
// blocking the caller.
func (p *Publisher) Publish(event types.BuildEvent) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for ch := range p.subs {
		select {
		case ch <- event:
		default:
		}
	}
}

// Subscribe registers a new channel that receives every subsequent
// Publish call until Unsubscribe is called.
func (p *Publisher) Subscribe() <-chan types.BuildEvent {
	ch := make(chan types.BuildEvent, subscriberBuffer)
	p.mu.Lock()
	p.subs[ch] = struct{}{}
	p.mu.Unlock()
	return ch
}

// Unsubscribe removes and closes a channel previously returned by
// Subscribe. Unsubscribing a channel that is not subscribed is a no-op.
func (p *Publisher) Unsubscribe(ch <-chan types.BuildEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for sub := range p.subs {
		if sub == ch {
			delete(p.subs, sub)
			close(sub)
			return
		}
	}
}
