package bundlemgr

import (
	"context"
	"testing"
	"time"

	"github.com/mev-engine/mev-searcher/pkg/interfaces"
	"github.com/mev-engine/mev-searcher/pkg/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type fakeBuilder struct{}

func (fakeBuilder) BuildBundle(opp *types.Opportunity) (*types.Bundle, string, error) {
	return &types.Bundle{
		ID:             opp.ID,
		Transactions:   []*types.Transaction{{Hash: "0xvictim"}},
		ExpectedProfit: opp.ExpectedProfit,
		StrategyTag:    opp.StrategyTag,
	}, types.DedupeKey(opp.StrategyTag, 100, opp.ID), nil
}

type fakeSimulator struct {
	success  bool
	netValue float64
	err      error
}

func (f *fakeSimulator) Simulate(ctx context.Context, bundle *types.Bundle) (*interfaces.SimulationOutcome, error) {
	return &interfaces.SimulationOutcome{Success: f.success, NetValue: f.netValue}, f.err
}

type fakeRelay struct {
	available    bool
	submittedBundle bool
	submittedPublic bool
}

func (f *fakeRelay) SubmitBundle(ctx context.Context, bundle *types.Bundle) error {
	f.submittedBundle = true
	return nil
}
func (f *fakeRelay) SubmitPublic(ctx context.Context, tx *types.Transaction) error {
	f.submittedPublic = true
	return nil
}
func (f *fakeRelay) Available(ctx context.Context) bool { return f.available }

func TestProcessOne_SimulationPassesAndSubmitsToRelay(t *testing.T) {
	q := NewQueue()
	relay := &fakeRelay{available: true}
	sim := &fakeSimulator{success: true, netValue: 100}
	m := New(q, sim, relay, fakeBuilder{}, func() uint64 { return 100 })

	opp := &types.Opportunity{ID: "opp-1", StrategyTag: "sandwich", ExpectedProfit: decimal.NewFromInt(100), Priority: types.PriorityHigh, Timestamp: time.Now()}
	require.NoError(t, m.Submit(context.Background(), opp))

	ok, err := m.ProcessOne(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, relay.submittedBundle)
}

func TestProcessOne_SimulationBelowThresholdDrops(t *testing.T) {
	q := NewQueue()
	relay := &fakeRelay{available: true}
	sim := &fakeSimulator{success: true, netValue: 10} // below 0.7*100
	m := New(q, sim, relay, fakeBuilder{}, func() uint64 { return 100 })

	opp := &types.Opportunity{ID: "opp-1", StrategyTag: "sandwich", ExpectedProfit: decimal.NewFromInt(100), Priority: types.PriorityHigh, Timestamp: time.Now()}
	require.NoError(t, m.Submit(context.Background(), opp))

	ok, err := m.ProcessOne(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	require.False(t, relay.submittedBundle)
}

func TestProcessOne_SandwichNeverFallsBackToPublic(t *testing.T) {
	q := NewQueue()
	relay := &fakeRelay{available: false}
	sim := &fakeSimulator{success: true, netValue: 100}
	m := New(q, sim, relay, fakeBuilder{}, func() uint64 { return 100 })

	opp := &types.Opportunity{ID: "opp-1", StrategyTag: "sandwich", ExpectedProfit: decimal.NewFromInt(100), Priority: types.PriorityHigh, Timestamp: time.Now()}
	require.NoError(t, m.Submit(context.Background(), opp))

	_, err := m.ProcessOne(context.Background())
	require.Error(t, err)
	require.False(t, relay.submittedPublic)
}

func TestQueue_DedupesInFlightKey(t *testing.T) {
	q := NewQueue()
	opp1 := &types.Opportunity{ID: "a", Timestamp: time.Now()}
	ok1 := q.Push(opp1, "key-1")
	ok2 := q.Push(opp1, "key-1")
	require.True(t, ok1)
	require.False(t, ok2)
	require.Equal(t, 1, q.Len())
}
