package planner

import "github.com/forgebuild/forge/internal/types"

// PricingProfile rates the cost of a platform's resource usage:
// compute-hour, network-byte, and storage-byte rates, one profile per
// strategy.
type PricingProfile struct {
	ComputeHourRate  float64 // USD per CPU-hour
	NetworkByteRate  float64 // USD per byte transferred
	StorageByteRate  float64 // USD per byte stored
}

// LocalPricing is the zero-cost profile for strategies that run on the
// caller's own machine.
var LocalPricing = PricingProfile{}

// DistributedPricing models a typical pay-per-use remote worker.
var DistributedPricing = PricingProfile{
	ComputeHourRate: 0.05,
	NetworkByteRate: 1e-10,
	StorageByteRate: 5e-11,
}

// PremiumPricing models faster, pricier remote workers.
var PremiumPricing = PricingProfile{
	ComputeHourRate: 0.25,
	NetworkByteRate: 2e-10,
	StorageByteRate: 5e-11,
}

// ResourceUsage is the estimated consumption one build would incur.
type ResourceUsage struct {
	CPUHours    float64
	NetworkBytes float64
	StorageBytes float64
}

// Cost applies p to usage.
func (p PricingProfile) Cost(usage ResourceUsage) float64 {
	return usage.CPUHours*p.ComputeHourRate +
		usage.NetworkBytes*p.NetworkByteRate +
		usage.StorageBytes*p.StorageByteRate
}

func pricingFor(strategy types.Strategy) PricingProfile {
	switch strategy {
	case types.StrategyDistributed:
		return DistributedPricing
	case types.StrategyPremium:
		return PremiumPricing
	default:
		return LocalPricing
	}
}
