package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcher_AddRecursive_RejectsPathOutsideCWD(t *testing.T) {
	w, err := New(10 * time.Millisecond)
	require.NoError(t, err)
	defer w.Stop()

	err = w.AddRecursive("/etc")
	assert.Error(t, err)
}

func TestWatcher_DetectsFileModification(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(file, []byte("v1"), 0o644))

	// AddRecursive only accepts paths under the working directory, so
	// the test runs from inside the temp dir and watches ".".
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	w, err := New(20 * time.Millisecond)
	require.NoError(t, err)
	defer w.Stop()
	require.NoError(t, w.AddRecursive("."))

	var mu sync.Mutex
	var seen []ChangeEvent
	w.AddHandler(func(events []ChangeEvent) error {
		mu.Lock()
		seen = append(seen, events...)
		mu.Unlock()
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, os.WriteFile(file, []byte("v2"), 0o644))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) > 0
	}, 2*time.Second, 20*time.Millisecond)
}

func TestDebouncer_DeduplicatesByPath(t *testing.T) {
	d := &debouncer{delay: 20 * time.Millisecond, events: make(chan ChangeEvent, 10), output: make(chan []ChangeEvent, 1)}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.run(ctx)

	d.events <- ChangeEvent{Path: "a.txt", Type: EventModified}
	d.events <- ChangeEvent{Path: "a.txt", Type: EventModified}
	d.events <- ChangeEvent{Path: "b.txt", Type: EventCreated}

	select {
	case batch := <-d.output:
		assert.Len(t, batch, 2)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for debounced batch")
	}
}
