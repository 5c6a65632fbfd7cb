package executor

import (
	"context"
	"sync"

	"github.com/forgebuild/forge/internal/interfaces"
)

// Pool is a configurable worker pool pulling node IDs from a TaskQueue
// and invoking a handler for each.
type Pool struct {
	mu      sync.RWMutex
	workers int
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

var _ interfaces.WorkerManager = (*Pool)(nil)

// NewPool creates a Pool configured for the given worker count.
func NewPool(workers int) *Pool {
	if workers <= 0 {
		workers = 1
	}
	return &Pool{workers: workers}
}

// Start launches the configured number of worker goroutines, each
// pulling node IDs from queue until ctx is cancelled or the queue
// closes, invoking handle for every node ID received.
func (p *Pool) Start(ctx context.Context, queue interfaces.TaskQueue, handle func(nodeID string)) {
	p.mu.Lock()
	ctx, p.cancel = context.WithCancel(ctx)
	workers := p.workers
	p.mu.Unlock()

	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx, queue, handle)
	}
}

func (p *Pool) worker(ctx context.Context, queue interfaces.TaskQueue, handle func(nodeID string)) {
	defer p.wg.Done()
	for {
		nodeID, ok := queue.Dequeue(ctx)
		if !ok {
			return
		}
		handle(nodeID)
	}
}

// Stop cancels all workers and waits for them to exit.
func (p *Pool) Stop() {
	p.mu.RLock()
	cancel := p.cancel
	p.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	p.wg.Wait()
}

// SetWorkerCount adjusts the configured worker count for the next
// Start call; it does not resize an already-running pool.
func (p *Pool) SetWorkerCount(count int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if count > 0 {
		p.workers = count
	}
}
