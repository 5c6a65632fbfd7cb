package planner

import (
	"time"

	"github.com/forgebuild/forge/internal/types"
)

// parallelFraction is the portion of a build assumed parallelizable
// under Amdahl's law.
const parallelFraction = 0.8

// amdahlSpeedup returns the speedup factor for workers under Amdahl's
// law with parallelFraction parallelizable.
func amdahlSpeedup(workers int) float64 {
	if workers <= 1 {
		return 1
	}
	return 1 / ((1 - parallelFraction) + parallelFraction/float64(workers))
}

// WorkloadEstimate summarizes the serial-execution cost of a build,
// used as the seed for candidate strategy generation.
type WorkloadEstimate struct {
	SerialDuration      time.Duration
	SerialCPUHours      float64
	NetworkBytes        float64
	StorageBytes        float64
	CacheHitProbability float64
}

// defaultWorkerCounts is the search space the enumerator sweeps over
// for worker-parallel strategies.
var defaultWorkerCounts = []int{1, 2, 4, 8, 16, 32}

// Enumerate generates candidate BuildPlans across the cross product of
// execution strategies and worker counts.
func Enumerate(workload WorkloadEstimate) []types.BuildPlan {
	var candidates []types.BuildPlan

	candidates = append(candidates, cachedPlan(workload))

	for _, w := range defaultWorkerCounts {
		candidates = append(candidates, planFor(types.StrategyLocal, w, workload))
		candidates = append(candidates, planFor(types.StrategyDistributed, w, workload))
		candidates = append(candidates, planFor(types.StrategyPremium, w, workload))
	}

	return candidates
}

func planFor(strategy types.Strategy, workers int, workload WorkloadEstimate) types.BuildPlan {
	speedup := amdahlSpeedup(workers)
	estimatedTime := time.Duration(float64(workload.SerialDuration) / speedup)

	usage := ResourceUsage{CPUHours: workload.SerialCPUHours / speedup}
	if strategy == types.StrategyDistributed || strategy == types.StrategyPremium {
		usage.NetworkBytes = workload.NetworkBytes
		usage.StorageBytes = workload.StorageBytes
	}

	return types.BuildPlan{
		Config:              types.StrategyConfig{Strategy: strategy, Workers: workers},
		EstimatedTime:       estimatedTime,
		EstimatedCost:       pricingFor(strategy).Cost(usage),
		CacheHitProbability: workload.CacheHitProbability,
	}
}

// cachedPlan models the Cached strategy: time scales with the expected
// fraction of work that must actually execute after cache lookups.
func cachedPlan(workload WorkloadEstimate) types.BuildPlan {
	missFraction := 1 - workload.CacheHitProbability
	estimatedTime := time.Duration(float64(workload.SerialDuration) * missFraction)
	usage := ResourceUsage{CPUHours: workload.SerialCPUHours * missFraction}

	return types.BuildPlan{
		Config:              types.StrategyConfig{Strategy: types.StrategyCached, Workers: 1},
		EstimatedTime:       estimatedTime,
		EstimatedCost:       pricingFor(types.StrategyCached).Cost(usage),
		CacheHitProbability: workload.CacheHitProbability,
	}
}
