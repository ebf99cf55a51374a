package crosschain

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"
)

// MockPriceSource is a deterministic PriceSource for the `mock` run
// mode, keyed by (chain, symbol).
type MockPriceSource struct {
	mu     sync.Mutex
	prices map[string]map[string]decimal.Decimal
}

// NewMockPriceSource builds a MockPriceSource seeded with per-chain prices.
func NewMockPriceSource(prices map[string]map[string]decimal.Decimal) *MockPriceSource {
	return &MockPriceSource{prices: prices}
}

// SetPrice updates the price for (chain, symbol).
func (m *MockPriceSource) SetPrice(chain, symbol string, price decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.prices[chain] == nil {
		m.prices[chain] = make(map[string]decimal.Decimal)
	}
	m.prices[chain][symbol] = price
}

func (m *MockPriceSource) Price(ctx context.Context, chain, symbol string) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.prices[chain][symbol], nil
}
