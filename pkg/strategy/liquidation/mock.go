package liquidation

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mev-engine/mev-searcher/pkg/types"
	"github.com/shopspring/decimal"
)

// MockSubgraph is a deterministic SubgraphClient for the `mock` run
// mode, grounded on the same paper-data convention as pkg/exchange's
// and pkg/bridge's MockClient.
type MockSubgraph struct {
	mu        sync.Mutex
	atRisk    map[string][]common.Address
	fail      bool
}

// NewMockSubgraph builds a MockSubgraph seeded per protocol.
func NewMockSubgraph(atRisk map[string][]common.Address) *MockSubgraph {
	return &MockSubgraph{atRisk: atRisk}
}

// SetFail toggles the client into always erroring, to exercise the
// §4.9 tiered-fallback path in tests/mock mode.
func (m *MockSubgraph) SetFail(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail = fail
}

func (m *MockSubgraph) QueryAtRisk(ctx context.Context, protocol string) ([]common.Address, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return nil, errSubgraphUnavailable
	}
	return m.atRisk[protocol], nil
}

// MockEventScanner is a deterministic EventScanner, the tier-3
// discovery fallback.
type MockEventScanner struct {
	atRisk map[string][]common.Address
}

// NewMockEventScanner builds a MockEventScanner seeded per protocol.
func NewMockEventScanner(atRisk map[string][]common.Address) *MockEventScanner {
	return &MockEventScanner{atRisk: atRisk}
}

func (m *MockEventScanner) ScanAtRisk(ctx context.Context, protocol string) ([]common.Address, error) {
	return m.atRisk[protocol], nil
}

// MockProtocolPool is a deterministic ProtocolPool returning seeded
// account snapshots.
type MockProtocolPool struct {
	mu       sync.Mutex
	accounts map[common.Address]*types.LiquidatableUser
}

// NewMockProtocolPool builds a MockProtocolPool.
func NewMockProtocolPool(accounts map[common.Address]*types.LiquidatableUser) *MockProtocolPool {
	return &MockProtocolPool{accounts: accounts}
}

// SetAccount seeds or updates one account's snapshot.
func (m *MockProtocolPool) SetAccount(user *types.LiquidatableUser) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[user.Address] = user
}

func (m *MockProtocolPool) AccountData(ctx context.Context, protocol string, user common.Address) (*types.LiquidatableUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	acct, ok := m.accounts[user]
	if !ok {
		return nil, errAccountUnknown
	}
	cp := *acct
	return &cp, nil
}

// MockDEXAggregator is a deterministic DEXAggregator quoting amount
// times a fixed exchange rate; no slippage is applied.
type MockDEXAggregator struct {
	name   string
	rate   decimal.Decimal // buyAsset per sellAsset
	router common.Address
	fail   bool
}

// NewMockDEXAggregator builds a MockDEXAggregator quoting at a fixed rate.
func NewMockDEXAggregator(name string, rate decimal.Decimal, router common.Address) *MockDEXAggregator {
	return &MockDEXAggregator{name: name, rate: rate, router: router}
}

// SetFail toggles the aggregator into always erroring, to exercise
// the primary-then-backup fallback.
func (m *MockDEXAggregator) SetFail(fail bool) { m.fail = fail }

func (m *MockDEXAggregator) Name() string { return m.name }

func (m *MockDEXAggregator) Quote(ctx context.Context, sellAsset, buyAsset common.Address, amount decimal.Decimal) (decimal.Decimal, common.Address, []byte, error) {
	if m.fail {
		return decimal.Zero, common.Address{}, nil, errQuoteUnavailable
	}
	return amount.Mul(m.rate), m.router, []byte{}, nil
}

type mockLiquidationError string

func (e mockLiquidationError) Error() string { return string(e) }

const (
	errSubgraphUnavailable = mockLiquidationError("liquidation: mock subgraph unavailable")
	errAccountUnknown      = mockLiquidationError("liquidation: mock pool has no data for this account")
	errQuoteUnavailable    = mockLiquidationError("liquidation: mock aggregator quote unavailable")
)
