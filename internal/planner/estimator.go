// Package planner implements forge's cost estimator and strategy
// planner: an EMA-based per-target cost estimator, a strategy
// enumerator modeling parallel speedup and platform pricing, and
// Pareto-frontier objective selection.
package planner

import (
	"sync"
	"time"

	"github.com/forgebuild/forge/internal/interfaces"
	"github.com/forgebuild/forge/internal/types"
)

// emaAlpha weights the most recent sample against the running average.
// 0.3 favors responsiveness to recent runs over long-run stability,
// matching typical build-duration EMA smoothing.
const emaAlpha = 0.3

// conservativeFallback is the duration estimate for a target with no
// execution history.
const conservativeFallback = 30 * time.Second

type targetStats struct {
	emaDuration   time.Duration
	totalSamples  int
	cacheHits     int
}

// Estimator is an EMA-based CostEstimator keyed by target ID.
type Estimator struct {
	mu    sync.RWMutex
	stats map[string]*targetStats
}

var _ interfaces.CostEstimator = (*Estimator)(nil)

// NewEstimator creates an empty Estimator.
func NewEstimator() *Estimator {
	return &Estimator{stats: make(map[string]*targetStats)}
}

// Record folds one ExecutionRecord into the target's running estimate.
func (e *Estimator) Record(rec types.ExecutionRecord) {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, ok := e.stats[rec.TargetID]
	if !ok {
		s = &targetStats{emaDuration: rec.Duration}
		e.stats[rec.TargetID] = s
	} else {
		delta := float64(rec.Duration-s.emaDuration) * emaAlpha
		s.emaDuration += time.Duration(delta)
	}
	s.totalSamples++
	if rec.CacheHit {
		s.cacheHits++
	}
}

// Estimate returns the expected duration and cache-hit probability for
// targetID, falling back to a conservative heuristic when unseen.
func (e *Estimator) Estimate(targetID string) (time.Duration, float64) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	s, ok := e.stats[targetID]
	if !ok || s.totalSamples == 0 {
		return conservativeFallback, 0
	}
	return s.emaDuration, float64(s.cacheHits) / float64(s.totalSamples)
}

// AncestorCacheHitProbability estimates a node's cache-hit probability
// from the hit rate of its dependency (ancestor) targets when the node
// itself has no recorded cache hit (no history, or a zero hit rate).
// Only ancestors with a nonzero hit rate enter the average.
func (e *Estimator) AncestorCacheHitProbability(targetID string, ancestorIDs []string) float64 {
	if hit := e.cacheHitOnly(targetID); hit > 0 {
		return hit
	}
	if len(ancestorIDs) == 0 {
		return 0
	}
	var sum float64
	var counted int
	for _, id := range ancestorIDs {
		if hit := e.cacheHitOnly(id); hit > 0 {
			sum += hit
			counted++
		}
	}
	if counted == 0 {
		return 0
	}
	return sum / float64(counted)
}

func (e *Estimator) cacheHitOnly(targetID string) float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	s, ok := e.stats[targetID]
	if !ok || s.totalSamples == 0 {
		return 0
	}
	return float64(s.cacheHits) / float64(s.totalSamples)
}
