package oracle

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// MockFeed is a deterministic ExternalFeed for the `mock` run mode.
type MockFeed struct {
	mu     sync.Mutex
	prices map[string]decimal.Decimal
	asOf   map[string]time.Time
	now    func() time.Time
}

// NewMockFeed builds a MockFeed seeded with current-time prices.
func NewMockFeed(prices map[string]decimal.Decimal) *MockFeed {
	now := time.Now()
	asOf := make(map[string]time.Time, len(prices))
	for asset := range prices {
		asOf[asset] = now
	}
	return &MockFeed{prices: prices, asOf: asOf, now: time.Now}
}

// SetPrice updates an asset's price and refreshes its timestamp.
func (m *MockFeed) SetPrice(asset string, price decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prices[asset] = price
	m.asOf[asset] = m.now()
}

func (m *MockFeed) Price(ctx context.Context, asset string) (decimal.Decimal, time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.prices[asset], m.asOf[asset], nil
}

// MockTWAP is a deterministic PoolTWAP holding per-asset values set
// independently of the feed; seeding a value that differs from the
// feed exercises the §4.2 divergence confidence penalty.
type MockTWAP struct {
	mu     sync.Mutex
	values map[string]decimal.Decimal
}

// NewMockTWAP builds a MockTWAP seeded per asset.
func NewMockTWAP(values map[string]decimal.Decimal) *MockTWAP {
	return &MockTWAP{values: values}
}

// SetTWAP updates an asset's time-weighted average price.
func (m *MockTWAP) SetTWAP(asset string, value decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[asset] = value
}

func (m *MockTWAP) TWAP(ctx context.Context, asset string) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.values[asset], nil
}
