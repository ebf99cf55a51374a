package simulation

import (
	"context"
	"fmt"

	"github.com/mev-engine/mev-searcher/pkg/interfaces"
	"github.com/mev-engine/mev-searcher/pkg/types"
)

// BundleSimulator adapts a ForkManager's per-transaction replay into
// the bundle manager's narrow interfaces.BundleSimulator contract
// (§1 Non-goals: no simulation engine is specified beyond that
// contract), running a bundle's transactions in order against one
// borrowed fork. When every leg succeeds it reports the bundle's own
// ExpectedProfit as NetValue; the fork's balance changes are not
// measured.
type BundleSimulator struct {
	forks interfaces.ForkManager
	forkURL string
}

// NewBundleSimulator builds a BundleSimulator over an already-running
// ForkManager.
func NewBundleSimulator(forks interfaces.ForkManager, forkURL string) *BundleSimulator {
	return &BundleSimulator{forks: forks, forkURL: forkURL}
}

// Simulate replays bundle.Transactions in order on a borrowed fork,
// rolling the fork back afterward so it can be reused.
func (b *BundleSimulator) Simulate(ctx context.Context, bundle *types.Bundle) (*interfaces.SimulationOutcome, error) {
	fork, err := b.forks.GetAvailableFork(ctx)
	if err != nil {
		fork, err = b.forks.CreateFork(ctx, b.forkURL)
		if err != nil {
			return nil, fmt.Errorf("simulation: no fork available: %w", err)
		}
	}
	defer func() {
		fork.Reset()
		b.forks.ReleaseFork(fork)
	}()

	for i, tx := range bundle.Transactions {
		result, err := fork.ExecuteTransaction(ctx, tx)
		if err != nil {
			return &interfaces.SimulationOutcome{Success: false, RevertMsg: err.Error()}, nil
		}
		if !result.Success {
			msg := "reverted"
			if result.Error != nil {
				msg = result.Error.Error()
			}
			return &interfaces.SimulationOutcome{Success: false, RevertMsg: fmt.Sprintf("leg %d: %s", i, msg)}, nil
		}
	}

	expected, _ := bundle.ExpectedProfit.Float64()
	return &interfaces.SimulationOutcome{Success: true, NetValue: expected}, nil
}

var _ interfaces.BundleSimulator = (*BundleSimulator)(nil)
