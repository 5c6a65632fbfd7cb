package interfaces

import (
	"context"
	"testing"
	"time"

	"github.com/forgebuild/forge/internal/types"
)

// fakeHandler exercises the LanguageHandler contract end to end so a
// compile-time assertion alone can't hide a signature drift.
type fakeHandler struct{}

func (fakeHandler) Build(ctx context.Context, target *types.Target, workspaceRoot string) (string, error) {
	return "deadbeef", nil
}

func (fakeHandler) AnalyzeImports(sources []string) ([]Import, error) {
	return nil, nil
}

func (fakeHandler) Outputs(target *types.Target, workspaceRoot string) ([]string, error) {
	return []string{target.OutputPath}, nil
}

func (fakeHandler) Clean(target *types.Target, workspaceRoot string) error {
	return nil
}

var _ LanguageHandler = fakeHandler{}

func TestLanguageHandler_Contract(t *testing.T) {
	h := fakeHandler{}
	target := &types.Target{Workspace: "ws", Path: "pkg", Name: "a", OutputPath: "bin/a"}

	hash, err := h.Build(context.Background(), target, "/tmp")
	if err != nil || hash == "" {
		t.Fatalf("Build() = %q, %v", hash, err)
	}

	outs, err := h.Outputs(target, "/tmp")
	if err != nil || len(outs) != 1 {
		t.Fatalf("Outputs() = %v, %v", outs, err)
	}
}

type fakeQueue struct {
	items chan string
}

func newFakeQueue() *fakeQueue { return &fakeQueue{items: make(chan string, 8)} }

func (q *fakeQueue) Enqueue(nodeID string) error { q.items <- nodeID; return nil }
func (q *fakeQueue) Dequeue(ctx context.Context) (string, bool) {
	select {
	case id := <-q.items:
		return id, true
	case <-ctx.Done():
		return "", false
	}
}
func (q *fakeQueue) Len() int { return len(q.items) }
func (q *fakeQueue) Close()   { close(q.items) }

var _ TaskQueue = (*fakeQueue)(nil)

func TestTaskQueue_Contract(t *testing.T) {
	q := newFakeQueue()
	if err := q.Enqueue("//pkg:a"); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	id, ok := q.Dequeue(ctx)
	if !ok || id != "//pkg:a" {
		t.Fatalf("Dequeue() = %q, %v", id, ok)
	}
}
