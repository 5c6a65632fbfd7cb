package watch

import (
	"context"
	"sync"
	"time"
)

// debouncer groups rapid file changes into batches, deduplicating by
// path (keeping each path's latest event) before flushing to output.
type debouncer struct {
	delay   time.Duration
	events  chan ChangeEvent
	output  chan []ChangeEvent
	timer   *time.Timer
	pending []ChangeEvent
	mu      sync.Mutex
}

func (d *debouncer) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-d.events:
			d.addEvent(event)
		}
	}
}

func (d *debouncer) addEvent(event ChangeEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.pending) >= MaxPendingEvents {
		evictCount := MaxPendingEvents / 4
		copy(d.pending, d.pending[evictCount:])
		d.pending = d.pending[:len(d.pending)-evictCount]
	}

	d.pending = append(d.pending, event)

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, d.flush)
}

func (d *debouncer) flush() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.pending) == 0 {
		return
	}

	byPath := make(map[string]ChangeEvent, len(d.pending))
	for _, event := range d.pending {
		byPath[event.Path] = event
	}
	d.pending = d.pending[:0]

	batch := make([]ChangeEvent, 0, len(byPath))
	for _, event := range byPath {
		batch = append(batch, event)
	}

	select {
	case d.output <- batch:
	default:
		// Output backlog full: drop this batch rather than block.
	}
}
