package planner

import "github.com/forgebuild/forge/internal/types"

// ParetoFrontier filters candidates so no remaining plan is dominated
// in both cost and time by another candidate.
func ParetoFrontier(candidates []types.BuildPlan) []types.BuildPlan {
	var frontier []types.BuildPlan
	for i, c := range candidates {
		dominated := false
		for j, other := range candidates {
			if i == j {
				continue
			}
			if dominates(other, c) {
				dominated = true
				break
			}
		}
		if !dominated {
			frontier = append(frontier, c)
		}
	}
	return frontier
}

// dominates reports whether a is at least as good as b in both cost
// and time, and strictly better in at least one.
func dominates(a, b types.BuildPlan) bool {
	costLE := a.EstimatedCost <= b.EstimatedCost
	timeLE := a.EstimatedTime <= b.EstimatedTime
	costLT := a.EstimatedCost < b.EstimatedCost
	timeLT := a.EstimatedTime < b.EstimatedTime
	return costLE && timeLE && (costLT || timeLT)
}

// Objective names the selection rule applied to a Pareto frontier.
type Objective string

const (
	ObjectiveMinimizeCost Objective = "minimize_cost"
	ObjectiveMinimizeTime Objective = "minimize_time"
	ObjectiveBalanced     Objective = "balanced"
	ObjectiveBudget       Objective = "budget"
	ObjectiveTimeLimit    Objective = "time_limit"
)

// balancedAlpha weights cost against time in the Balanced objective.
const balancedAlpha = 0.5

// Select applies objective to frontier, returning the chosen plan.
// budgetUSD and timeLimit parameterize the Budget/TimeLimit objectives;
// they are ignored by the other objectives.
func Select(frontier []types.BuildPlan, objective Objective, budgetUSD float64, timeLimit float64) (types.BuildPlan, bool) {
	if len(frontier) == 0 {
		return types.BuildPlan{}, false
	}

	switch objective {
	case ObjectiveMinimizeCost:
		return minBy(frontier, func(p types.BuildPlan) float64 { return p.EstimatedCost }), true

	case ObjectiveMinimizeTime:
		return minBy(frontier, func(p types.BuildPlan) float64 { return float64(p.EstimatedTime) }), true

	case ObjectiveBalanced:
		return selectBalanced(frontier), true

	case ObjectiveBudget:
		return selectBudget(frontier, budgetUSD), true

	case ObjectiveTimeLimit:
		return selectTimeLimit(frontier, timeLimit), true

	default:
		return minBy(frontier, func(p types.BuildPlan) float64 { return p.EstimatedCost }), true
	}
}

func minBy(plans []types.BuildPlan, key func(types.BuildPlan) float64) types.BuildPlan {
	best := plans[0]
	bestKey := key(best)
	for _, p := range plans[1:] {
		if k := key(p); k < bestKey {
			best, bestKey = p, k
		}
	}
	return best
}

// selectBalanced normalizes cost and time to [0,1] across the frontier
// and picks the plan minimizing α·cost_norm + (1−α)·time_norm.
func selectBalanced(plans []types.BuildPlan) types.BuildPlan {
	minCost, maxCost := extent(plans, func(p types.BuildPlan) float64 { return p.EstimatedCost })
	minTime, maxTime := extent(plans, func(p types.BuildPlan) float64 { return float64(p.EstimatedTime) })

	best := plans[0]
	bestScore := balancedScore(best, minCost, maxCost, minTime, maxTime)
	for _, p := range plans[1:] {
		score := balancedScore(p, minCost, maxCost, minTime, maxTime)
		if score < bestScore {
			best, bestScore = p, score
		}
	}
	return best
}

func balancedScore(p types.BuildPlan, minCost, maxCost, minTime, maxTime float64) float64 {
	costNorm := normalize(p.EstimatedCost, minCost, maxCost)
	timeNorm := normalize(float64(p.EstimatedTime), minTime, maxTime)
	return balancedAlpha*costNorm + (1-balancedAlpha)*timeNorm
}

func normalize(v, min, max float64) float64 {
	if max <= min {
		return 0
	}
	return (v - min) / (max - min)
}

func extent(plans []types.BuildPlan, key func(types.BuildPlan) float64) (min, max float64) {
	min, max = key(plans[0]), key(plans[0])
	for _, p := range plans[1:] {
		if v := key(p); v < min {
			min = v
		} else if v > max {
			max = v
		}
	}
	return min, max
}

// selectBudget picks the fastest plan within budgetUSD, falling back
// to the cheapest overall plan if none qualify.
func selectBudget(plans []types.BuildPlan, budgetUSD float64) types.BuildPlan {
	var within []types.BuildPlan
	for _, p := range plans {
		if p.EstimatedCost <= budgetUSD {
			within = append(within, p)
		}
	}
	if len(within) == 0 {
		return minBy(plans, func(p types.BuildPlan) float64 { return p.EstimatedCost })
	}
	return minBy(within, func(p types.BuildPlan) float64 { return float64(p.EstimatedTime) })
}

// selectTimeLimit picks the cheapest plan within timeLimitSeconds,
// falling back to the fastest overall plan.
func selectTimeLimit(plans []types.BuildPlan, timeLimitSeconds float64) types.BuildPlan {
	var within []types.BuildPlan
	for _, p := range plans {
		if float64(p.EstimatedTime.Seconds()) <= timeLimitSeconds {
			within = append(within, p)
		}
	}
	if len(within) == 0 {
		return minBy(plans, func(p types.BuildPlan) float64 { return float64(p.EstimatedTime) })
	}
	return minBy(within, func(p types.BuildPlan) float64 { return p.EstimatedCost })
}
