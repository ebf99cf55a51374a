package interfaces

import (
	"context"

	"github.com/mev-engine/mev-searcher/pkg/types"
)

// Strategy is the common lifecycle surface the orchestrator drives
// every one of the four strategy families through.
type Strategy interface {
	Name() string
	Tag() string
}

// MempoolStrategy reacts to individual pending transactions
// (sandwich).
type MempoolStrategy interface {
	Strategy
	OnTransaction(ctx context.Context, tx *types.Transaction) (*types.Opportunity, error)
}

// ScannedStrategy is driven by the real-time scheduler on a fixed
// cadence rather than by individual mempool events (liquidation,
// micro-arbitrage, cross-chain).
type ScannedStrategy interface {
	Strategy
	Scan(ctx context.Context) ([]*types.Opportunity, error)
}

// OpportunitySink is where strategies hand finished Opportunities to
// the bundle manager.
type OpportunitySink interface {
	Submit(ctx context.Context, opp *types.Opportunity) error
}

// BundleSimulator is the narrow interface through which the bundle
// manager queries a simulator; no simulation engine is specified
// beyond this contract (§1 Non-goals).
type BundleSimulator interface {
	Simulate(ctx context.Context, bundle *types.Bundle) (*SimulationOutcome, error)
}

// SimulationOutcome is the result of simulating a bundle.
type SimulationOutcome struct {
	Success   bool
	NetValue  float64 // in the same base units as Opportunity.ExpectedProfit
	RevertMsg string
}

// BundleRelay submits a Bundle for atomic inclusion, or a single
// Transaction for public broadcast.
type BundleRelay interface {
	SubmitBundle(ctx context.Context, bundle *types.Bundle) error
	SubmitPublic(ctx context.Context, tx *types.Transaction) error
	Available(ctx context.Context) bool
}
