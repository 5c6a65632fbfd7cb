package executor

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/forgebuild/forge/internal/graph"
	"github.com/forgebuild/forge/internal/types"
)

// Checkpoint captures enough of a BuildGraph's progress to resume a
// build after an interruption: the graph's structural fingerprint
// (internal/graph.BuildGraph.Fingerprint)
// guards against resuming against a graph that has since changed shape,
// and per-node statuses let the executor skip already-finished work.
type Checkpoint struct {
	GraphFingerprint string
	NodeStatuses     map[string]types.NodeStatus
}

// Save captures g's current fingerprint and per-node statuses and
// writes them to path as JSON.
func Save(path string, g *graph.BuildGraph) error {
	cp := Checkpoint{
		GraphFingerprint: g.Fingerprint(),
		NodeStatuses:     make(map[string]types.NodeStatus),
	}
	for _, node := range g.TopologicalOrder() {
		cp.NodeStatuses[node.ID()] = node.Status()
	}

	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return fmt.Errorf("executor: encoding checkpoint: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// Load reads a Checkpoint from path.
func Load(path string) (Checkpoint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Checkpoint{}, fmt.Errorf("executor: reading checkpoint: %w", err)
	}
	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return Checkpoint{}, fmt.Errorf("executor: decoding checkpoint: %w", err)
	}
	return cp, nil
}

// Restore applies cp's statuses onto g, skipping restoration entirely
// (returning false) if g's current fingerprint no longer matches the
// checkpoint's: the graph shape changed since the checkpoint was
// taken, so resuming would silently skip nodes that are no longer
// equivalent to what was built before.
//
// Only success-equivalent nodes are restored: a node that
// was Failed is left Pending so it re-enters the ready set and its
// handler runs again, along with any dependent left Pending by never
// having reached a terminal state in the checkpointed run.
func Restore(cp Checkpoint, g *graph.BuildGraph) bool {
	if cp.GraphFingerprint != g.Fingerprint() {
		return false
	}
	for id, status := range cp.NodeStatuses {
		if node, ok := g.Node(id); ok && status.SuccessEquivalent() {
			node.SetStatus(status)
		}
	}
	return true
}
