package bundlemgr

import (
	"context"
	"sync"

	"github.com/mev-engine/mev-searcher/pkg/interfaces"
	"github.com/mev-engine/mev-searcher/pkg/types"
)

// MockSimulator always reports success at the bundle's own expected
// profit, for the `mock` run mode where no fork-backed simulator is
// available.
type MockSimulator struct{}

// NewMockSimulator builds a MockSimulator.
func NewMockSimulator() *MockSimulator { return &MockSimulator{} }

func (m *MockSimulator) Simulate(ctx context.Context, bundle *types.Bundle) (*interfaces.SimulationOutcome, error) {
	netValue, _ := bundle.ExpectedProfit.Float64()
	return &interfaces.SimulationOutcome{Success: true, NetValue: netValue}, nil
}

// MockRelay records submissions in memory instead of calling out to a
// live Flashbots relay, for the `mock` run mode.
type MockRelay struct {
	mu       sync.Mutex
	bundles  []*types.Bundle
	public   []*types.Transaction
	available bool
}

// NewMockRelay builds a MockRelay reporting itself as available.
func NewMockRelay() *MockRelay {
	return &MockRelay{available: true}
}

// SetAvailable toggles the relay's reachability, to exercise the
// §8 invariant 8 no-public-fallback path for ordering-sensitive bundles.
func (m *MockRelay) SetAvailable(available bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.available = available
}

func (m *MockRelay) SubmitBundle(ctx context.Context, bundle *types.Bundle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bundles = append(m.bundles, bundle)
	return nil
}

func (m *MockRelay) SubmitPublic(ctx context.Context, tx *types.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.public = append(m.public, tx)
	return nil
}

func (m *MockRelay) Available(ctx context.Context) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.available
}

// Submissions returns a snapshot of everything submitted so far, used
// by the status API and tests.
func (m *MockRelay) Submissions() (bundles []*types.Bundle, public []*types.Transaction) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*types.Bundle(nil), m.bundles...), append([]*types.Transaction(nil), m.public...)
}

var (
	_ interfaces.BundleSimulator = (*MockSimulator)(nil)
	_ interfaces.BundleRelay     = (*MockRelay)(nil)
)
