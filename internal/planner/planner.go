package planner

import (
	"fmt"
	"sync"
	"time"

	"github.com/forgebuild/forge/internal/interfaces"
	"github.com/forgebuild/forge/internal/types"
)

// Planner selects a single BuildPlan for the build currently queued,
// using the latest WorkloadEstimate supplied via UpdateWorkload. The
// caller recomputes and pushes a fresh workload estimate at the start
// of each build from graph size and the Estimator's per-target
// history.
type Planner struct {
	mu       sync.RWMutex
	workload WorkloadEstimate
}

var _ interfaces.Planner = (*Planner)(nil)

// New creates a Planner with a zero workload; callers must call
// UpdateWorkload before the first Plan.
func New() *Planner {
	return &Planner{}
}

// UpdateWorkload replaces the workload estimate used by subsequent
// Plan calls.
func (p *Planner) UpdateWorkload(w WorkloadEstimate) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.workload = w
}

// Plan enumerates candidate strategies, filters to the Pareto frontier,
// and selects one plan by objective.
func (p *Planner) Plan(objective string, budgetUSD float64, timeLimit time.Duration) (types.BuildPlan, error) {
	p.mu.RLock()
	workload := p.workload
	p.mu.RUnlock()

	candidates := Enumerate(workload)
	frontier := ParetoFrontier(candidates)

	plan, ok := Select(frontier, Objective(objective), budgetUSD, timeLimit.Seconds())
	if !ok {
		return types.BuildPlan{}, fmt.Errorf("planner: no candidate plans available")
	}
	return plan, nil
}
