package bundlemgr

import (
	"context"
	"sync"

	"github.com/mev-engine/mev-searcher/pkg/errs"
	"github.com/mev-engine/mev-searcher/pkg/interfaces"
	"github.com/mev-engine/mev-searcher/pkg/types"
)

// SimulationDiscountFactor is the §4.12 step 2 threshold: a bundle is
// dropped if its simulated net value falls below
// expected_profit * SimulationDiscountFactor.
const SimulationDiscountFactor = 0.7

// requiresOrdering is the set of strategy tags that must go through
// the relay rather than public broadcast (§4.12 step 3).
var requiresOrdering = map[string]bool{
	"sandwich":    true,
	"liquidation": true,
}

// BundleStatus is the lifecycle §4.12 step 4 tracks via block polling.
type BundleStatus string

const (
	BundleSubmitted BundleStatus = "submitted"
	BundleIncluded  BundleStatus = "included"
	BundleMissed    BundleStatus = "missed"
	BundleReverted  BundleStatus = "reverted"
)

// TxBuilder turns a strategy-specific Opportunity.Details into the
// ordered transaction list a Bundle carries. DispatchBuilder in this
// package is the implementation the engine wires; it switches on the
// Details variant.
type TxBuilder interface {
	BuildBundle(opp *types.Opportunity) (*types.Bundle, string, error) // returns bundle + dedupe key
}

// Manager drives Opportunities from the priority queue through
// simulate, submit, and track, per §4.12.
type Manager struct {
	queue     *Queue
	simulator interfaces.BundleSimulator
	relay     interfaces.BundleRelay
	builder   TxBuilder
	blockNow  func() uint64

	mu       sync.Mutex
	tracked  map[string]BundleStatus
	missed   int64
	reverted int64
	included int64
}

// New builds a Manager.
func New(queue *Queue, simulator interfaces.BundleSimulator, relay interfaces.BundleRelay, builder TxBuilder, blockNow func() uint64) *Manager {
	return &Manager{
		queue: queue, simulator: simulator, relay: relay, builder: builder, blockNow: blockNow,
		tracked: make(map[string]BundleStatus),
	}
}

// Submit accepts an Opportunity from a strategy and enqueues it under
// its dedupe key (§4.12 guarantee).
func (m *Manager) Submit(ctx context.Context, opp *types.Opportunity) error {
	_, dedupeKey, err := m.builder.BuildBundle(opp)
	if err != nil {
		return errs.New(errs.Fatal, "bundlemgr", err).WithOpportunity(opp.ID)
	}
	if !m.queue.Push(opp, dedupeKey) {
		return nil // already in flight for this key; silently coalesced
	}
	return nil
}

var _ interfaces.OpportunitySink = (*Manager)(nil)

// ProcessOne dequeues the highest-priority Opportunity, builds its
// Bundle, simulates it, and submits it. It returns false when the
// queue was empty.
func (m *Manager) ProcessOne(ctx context.Context) (bool, error) {
	opp := m.queue.Pop()
	if opp == nil {
		return false, nil
	}

	bundle, dedupeKey, err := m.builder.BuildBundle(opp)
	if err != nil {
		m.queue.Release(dedupeKey)
		return true, errs.New(errs.Fatal, "bundlemgr", err).WithOpportunity(opp.ID)
	}

	if m.simulator != nil {
		outcome, err := m.simulator.Simulate(ctx, bundle)
		if err != nil {
			m.queue.Release(dedupeKey)
			return true, errs.New(errs.Reverted, "bundlemgr", err).WithOpportunity(opp.ID)
		}
		expected, _ := bundle.ExpectedProfit.Float64()
		if !outcome.Success || outcome.NetValue < expected*SimulationDiscountFactor {
			m.queue.Release(dedupeKey)
			return true, nil
		}
	}

	if err := m.submit(ctx, opp, bundle); err != nil {
		m.queue.Release(dedupeKey)
		return true, err
	}

	m.mu.Lock()
	m.tracked[dedupeKey] = BundleSubmitted
	m.mu.Unlock()

	return true, nil
}

// submit routes to the relay or public broadcast per §4.12 step 3.
func (m *Manager) submit(ctx context.Context, opp *types.Opportunity, bundle *types.Bundle) error {
	if requiresOrdering[opp.StrategyTag] {
		if !m.relay.Available(ctx) {
			// Sandwich bundles never fall back to public broadcast;
			// dropped instead (§8 invariant 8).
			return errs.New(errs.Rejected, "bundlemgr", errRelayUnavailableAtomicRequired).WithOpportunity(opp.ID)
		}
		return m.relay.SubmitBundle(ctx, bundle)
	}

	if m.relay.Available(ctx) {
		return m.relay.SubmitBundle(ctx, bundle)
	}
	if len(bundle.Transactions) == 1 {
		return m.relay.SubmitPublic(ctx, bundle.Transactions[0])
	}
	return errs.New(errs.Rejected, "bundlemgr", errMultiTxNoRelay).WithOpportunity(opp.ID)
}

// TrackInclusion records a submitted bundle's reported outcome and
// updates the included/miss/revert counters (§4.12 step 4): a bundle
// still pending after its TargetBlock counts as missed, and any
// terminal outcome releases its dedupe key. No code in this module
// calls it, so inclusion is not polled and the counters Stats reports
// stay at zero.
func (m *Manager) TrackInclusion(dedupeKey string, targetBlock uint64, included bool, reverted bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch {
	case reverted:
		m.tracked[dedupeKey] = BundleReverted
		m.reverted++
	case included:
		m.tracked[dedupeKey] = BundleIncluded
		m.included++
	case m.blockNow() > targetBlock:
		m.tracked[dedupeKey] = BundleMissed
		m.missed++
	default:
		return // still pending; not yet terminal
	}
	m.queue.Release(dedupeKey)
}

// Stats exposes the manager's lifecycle counters for the read-only
// status API.
func (m *Manager) Stats() (included, missed, reverted int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.included, m.missed, m.reverted
}

type bundlemgrError string

func (e bundlemgrError) Error() string { return string(e) }

const (
	errRelayUnavailableAtomicRequired = bundlemgrError("relay unavailable for an atomicity-required bundle")
	errMultiTxNoRelay                 = bundlemgrError("multi-transaction bundle cannot broadcast publicly")
)
