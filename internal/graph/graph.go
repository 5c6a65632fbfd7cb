// Package graph implements forge's build graph: a DAG of BuildNodes keyed
// by target identifier, with cycle detection on insert, Kahn's topological
// sort, and ready-set enumeration for the scheduler.
package graph

import (
	"sort"
	"sync"

	"github.com/forgebuild/forge/internal/errors"
	"github.com/forgebuild/forge/internal/types"
)

// BuildNode is a scheduler-visible graph vertex: a target plus its
// scheduling state.
type BuildNode struct {
	Target *types.Target

	deps       map[string]*BuildNode
	dependents map[string]*BuildNode

	mu     sync.RWMutex
	status types.NodeStatus
	depth  int

	StartedAt  int64 // unix nanos, 0 until building starts
	FinishedAt int64
}

// ID returns the node's target identifier.
func (n *BuildNode) ID() string { return n.Target.ID() }

// Status returns the node's current lifecycle status.
func (n *BuildNode) Status() types.NodeStatus {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.status
}

// SetStatus transitions the node to status under the node's own lock;
// it does not take the graph's lock. The executor calls it directly
// and recomputes the ready set after each change.
func (n *BuildNode) SetStatus(status types.NodeStatus) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.status = status
}

// Depth returns the node's longest-path-from-a-root depth.
func (n *BuildNode) Depth() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.depth
}

// Dependencies returns the node's upstream dependency identifiers.
func (n *BuildNode) Dependencies() []string {
	out := make([]string, 0, len(n.deps))
	for id := range n.deps {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Dependents returns the node's downstream identifiers.
func (n *BuildNode) Dependents() []string {
	out := make([]string, 0, len(n.dependents))
	for id := range n.dependents {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// BuildGraph is forge's DAG: a mapping from target identifier to
// BuildNode plus adjacency indices, mutated only under mu.
type BuildGraph struct {
	mu    sync.RWMutex
	nodes map[string]*BuildNode
}

// New returns an empty graph.
func New() *BuildGraph {
	return &BuildGraph{nodes: make(map[string]*BuildNode)}
}

// AddTarget inserts a node for target if one doesn't already exist. It is
// a pure data operation; edges are added separately via AddEdge, which
// is where cycle detection happens.
func (g *BuildGraph) AddTarget(target *types.Target) *BuildNode {
	g.mu.Lock()
	defer g.mu.Unlock()

	id := target.ID()
	if n, ok := g.nodes[id]; ok {
		return n
	}
	n := &BuildNode{
		Target:     target,
		deps:       make(map[string]*BuildNode),
		dependents: make(map[string]*BuildNode),
		status:     types.StatusPending,
	}
	g.nodes[id] = n
	return n
}

// Node returns the node for id, if present.
func (g *BuildGraph) Node(id string) (*BuildNode, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n, ok := g.nodes[id]
	return n, ok
}

// Len returns the number of nodes in the graph.
func (g *BuildGraph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

// AddEdge records that fromID depends on toID (fromID -> toID), rejecting
// the edge with a CycleError if it would create a cycle. Both ids must
// already have been added via AddTarget. Detection runs a DFS from toID
// looking for fromID.
func (g *BuildGraph) AddEdge(fromID, toID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	from, ok := g.nodes[fromID]
	if !ok {
		return errors.NewUnresolvedDependency(fromID, toID)
	}
	to, ok := g.nodes[toID]
	if !ok {
		return errors.NewUnresolvedDependency(fromID, toID)
	}

	if toID == fromID {
		return errors.NewCycleError([]string{fromID, toID})
	}
	if path := g.findPath(toID, fromID); path != nil {
		cycle := append([]string{fromID}, path...)
		return errors.NewCycleError(cycle)
	}

	from.deps[toID] = to
	to.dependents[fromID] = from
	g.recomputeDepths()
	return nil
}

// findPath runs DFS from startID looking for targetID, returning the
// path (inclusive of targetID) if found, or nil.
func (g *BuildGraph) findPath(startID, targetID string) []string {
	visited := make(map[string]bool)
	var dfs func(id string) []string
	dfs = func(id string) []string {
		if id == targetID {
			return []string{id}
		}
		if visited[id] {
			return nil
		}
		visited[id] = true
		node := g.nodes[id]
		for depID := range node.deps {
			if p := dfs(depID); p != nil {
				return append([]string{id}, p...)
			}
		}
		return nil
	}
	return dfs(startID)
}

// recomputeDepths assigns each node's longest-path-from-a-root depth via
// a topological pass. Must be called with mu already held.
func (g *BuildGraph) recomputeDepths() {
	order := g.topoOrderLocked()
	for _, n := range order {
		depth := 0
		for depID := range n.deps {
			if d := g.nodes[depID]; d.depth+1 > depth {
				depth = d.depth + 1
			}
		}
		n.mu.Lock()
		n.depth = depth
		n.mu.Unlock()
	}
}

// TopologicalOrder returns all nodes via Kahn's algorithm, processing
// zero-indegree nodes in increasing depth with identifier tie-break
// within a depth tier, so the order is reproducible across runs.
func (g *BuildGraph) TopologicalOrder() []*BuildNode {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.topoOrderLocked()
}

func (g *BuildGraph) topoOrderLocked() []*BuildNode {
	indegree := make(map[string]int, len(g.nodes))
	for id, n := range g.nodes {
		indegree[id] = len(n.deps)
	}

	var tier []string
	for id, deg := range indegree {
		if deg == 0 {
			tier = append(tier, id)
		}
	}

	// Each pass drains one whole depth tier before touching the next:
	// a node whose last dependency sits in the current tier joins the
	// NEXT tier, never the one being emitted, so emitted depths are
	// non-decreasing and ties break by identifier within each tier.
	order := make([]*BuildNode, 0, len(g.nodes))
	for len(tier) > 0 {
		sort.Strings(tier)

		var next []string
		for _, id := range tier {
			n := g.nodes[id]
			order = append(order, n)

			for depID := range n.dependents {
				indegree[depID]--
				if indegree[depID] == 0 {
					next = append(next, depID)
				}
			}
		}
		tier = next
	}
	return order
}

// ReadySet returns every Pending node whose dependencies have all
// reached a success-equivalent terminal status. Callers recompute this
// after every status change.
func (g *BuildGraph) ReadySet() []*BuildNode {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var ready []*BuildNode
	for _, n := range g.nodes {
		if n.Status() != types.StatusPending {
			continue
		}
		allDepsDone := true
		for depID := range n.deps {
			if !g.nodes[depID].Status().SuccessEquivalent() {
				allDepsDone = false
				break
			}
		}
		if allDepsDone {
			ready = append(ready, n)
		}
	}
	sort.Slice(ready, func(i, j int) bool { return ready[i].ID() < ready[j].ID() })
	return ready
}

// ActiveCount returns the number of nodes currently Building.
func (g *BuildGraph) ActiveCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	count := 0
	for _, n := range g.nodes {
		if n.Status() == types.StatusBuilding {
			count++
		}
	}
	return count
}

// ResetStatuses returns every node to Pending so a new build pass can
// re-evaluate the whole graph, e.g. between watch-triggered rebuilds.
func (g *BuildGraph) ResetStatuses() {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, n := range g.nodes {
		n.SetStatus(types.StatusPending)
		n.StartedAt = 0
		n.FinishedAt = 0
	}
}

// Done reports whether every node has reached a terminal status.
func (g *BuildGraph) Done() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	for _, n := range g.nodes {
		if !n.Status().Terminal() {
			return false
		}
	}
	return true
}

// Fingerprint returns a deterministic identifier of the graph's shape
// (node ids + edges), used by checkpoint/resume to confirm a later run's
// graph matches the one a checkpoint was taken against.
func (g *BuildGraph) Fingerprint() string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	ids := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	h := fnv1aString("")
	for _, id := range ids {
		h = fnv1aAccum(h, id)
		deps := g.nodes[id].Dependencies()
		for _, d := range deps {
			h = fnv1aAccum(h, d)
		}
	}
	return fnv1aHex(h)
}
