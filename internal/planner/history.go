package planner

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/forgebuild/forge/internal/interfaces"
	"github.com/forgebuild/forge/internal/types"
)

// defaultHistoryRetention bounds how many ExecutionRecords the history
// file keeps; older records are dropped first.
const defaultHistoryRetention = 10_000

// History persists ExecutionRecords across builds as a JSON file so the
// Estimator has real durations to work from on the next invocation.
// Appends are in-memory; Save writes the whole retained window in one
// atomic replace, the same lazy-flush shape the action cache uses.
type History struct {
	path       string
	maxRecords int

	mu      sync.Mutex
	records []types.ExecutionRecord
}

// LoadHistory reads the history file at path, bounded to maxRecords
// (most recent kept). A missing file yields an empty history. A corrupt
// file also yields an empty, usable history; the parse error is
// returned so the caller can log it.
func LoadHistory(path string, maxRecords int) (*History, error) {
	if maxRecords <= 0 {
		maxRecords = defaultHistoryRetention
	}
	h := &History{path: path, maxRecords: maxRecords}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return h, nil
		}
		return h, err
	}
	if err := json.Unmarshal(data, &h.records); err != nil {
		h.records = nil
		return h, err
	}
	h.truncate()
	return h, nil
}

// Append adds one record, dropping the oldest past the retention bound.
func (h *History) Append(rec types.ExecutionRecord) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, rec)
	h.truncate()
}

// truncate keeps the most recent maxRecords entries. Callers must hold
// h.mu (or have exclusive access during construction).
func (h *History) truncate() {
	if len(h.records) > h.maxRecords {
		h.records = append([]types.ExecutionRecord(nil), h.records[len(h.records)-h.maxRecords:]...)
	}
}

// Len returns the number of retained records.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.records)
}

// Replay feeds every retained record into est, oldest first, so a fresh
// Estimator starts each invocation warm.
func (h *History) Replay(est interfaces.CostEstimator) {
	h.mu.Lock()
	records := append([]types.ExecutionRecord(nil), h.records...)
	h.mu.Unlock()

	for _, rec := range records {
		est.Record(rec)
	}
}

// Save writes the retained window to disk via write-temp-then-rename.
func (h *History) Save() error {
	h.mu.Lock()
	data, err := json.MarshalIndent(h.records, "", "  ")
	h.mu.Unlock()
	if err != nil {
		return err
	}

	dir := filepath.Dir(h.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".history-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return os.Rename(tmpPath, h.path)
}
