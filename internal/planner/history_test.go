package planner

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgebuild/forge/internal/types"
)

func TestHistory_SaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "execution-history.json")

	h, err := LoadHistory(path, 0)
	require.NoError(t, err)
	assert.Zero(t, h.Len())

	h.Append(types.ExecutionRecord{TargetID: "//pkg:a", Duration: 2 * time.Second, Timestamp: time.Now()})
	h.Append(types.ExecutionRecord{TargetID: "//pkg:b", Duration: 3 * time.Second, CacheHit: true, Timestamp: time.Now()})
	require.NoError(t, h.Save())

	reloaded, err := LoadHistory(path, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, reloaded.Len())
}

func TestHistory_MissingFileStartsEmpty(t *testing.T) {
	h, err := LoadHistory(filepath.Join(t.TempDir(), "never-written.json"), 0)
	require.NoError(t, err)
	assert.Zero(t, h.Len())
}

func TestHistory_CorruptFileStartsEmptyAndReportsError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "execution-history.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	h, err := LoadHistory(path, 0)
	assert.Error(t, err)
	assert.Zero(t, h.Len())

	// The history is still usable after a corrupt load.
	h.Append(types.ExecutionRecord{TargetID: "//pkg:a", Duration: time.Second})
	require.NoError(t, h.Save())
}

func TestHistory_RetentionDropsOldestFirst(t *testing.T) {
	path := filepath.Join(t.TempDir(), "execution-history.json")
	h, err := LoadHistory(path, 3)
	require.NoError(t, err)

	for _, id := range []string{"//pkg:a", "//pkg:b", "//pkg:c", "//pkg:d"} {
		h.Append(types.ExecutionRecord{TargetID: id, Duration: time.Second})
	}
	assert.Equal(t, 3, h.Len())

	est := NewEstimator()
	h.Replay(est)
	duration, _ := est.Estimate("//pkg:a")
	assert.Equal(t, conservativeFallback, duration, "oldest record should have been dropped")
	duration, _ = est.Estimate("//pkg:d")
	assert.Equal(t, time.Second, duration)
}

func TestHistory_ReplayWarmsEstimator(t *testing.T) {
	path := filepath.Join(t.TempDir(), "execution-history.json")
	h, err := LoadHistory(path, 0)
	require.NoError(t, err)
	h.Append(types.ExecutionRecord{TargetID: "//pkg:a", Duration: 7 * time.Second})
	require.NoError(t, h.Save())

	reloaded, err := LoadHistory(path, 0)
	require.NoError(t, err)

	est := NewEstimator()
	reloaded.Replay(est)
	duration, _ := est.Estimate("//pkg:a")
	assert.Equal(t, 7*time.Second, duration)
}
