package exchange

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mev-engine/mev-searcher/pkg/interfaces"
	"github.com/mev-engine/mev-searcher/pkg/types"
	"github.com/shopspring/decimal"
)

// MockClient is a deterministic paper-trading adapter used for the
// `mock` run mode (§6) and in strategy tests, grounded on cryptofunk's
// internal/exchange/mock.go paper-trading adapter.
type MockClient struct {
	name    string
	mu      sync.Mutex
	prices  map[string]*types.PriceData
	orders  map[string]*interfaces.OrderExecutionResult
	fills   map[string][]interfaces.Fill
	balances map[string]decimal.Decimal
	latency time.Duration
	// FillBehavior controls how PlaceOrder resolves; defaults to
	// immediate full fill. Tests override it to model timeouts.
	FillBehavior func(order interfaces.Order) interfaces.OrderStatus
}

// NewMockClient builds a MockClient seeded with the given balances.
func NewMockClient(name string, balances map[string]decimal.Decimal) *MockClient {
	return &MockClient{
		name:     name,
		prices:   make(map[string]*types.PriceData),
		orders:   make(map[string]*interfaces.OrderExecutionResult),
		fills:    make(map[string][]interfaces.Fill),
		balances: balances,
		latency:  5 * time.Millisecond,
	}
}

var _ interfaces.ExchangeClient = (*MockClient)(nil)

// SetPrice seeds the mock's current price for a symbol.
func (m *MockClient) SetPrice(symbol string, p *types.PriceData) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prices[symbol] = p
}

func (m *MockClient) Name() string { return m.name }

func (m *MockClient) PlaceOrder(ctx context.Context, order interfaces.Order) (*interfaces.OrderExecutionResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	status := interfaces.OrderStatusFilled
	if m.FillBehavior != nil {
		status = m.FillBehavior(order)
	}

	result := &interfaces.OrderExecutionResult{
		OrderID:     uuid.NewString(),
		Status:      status,
		SubmittedAt: time.Now(),
	}
	if status == interfaces.OrderStatusFilled {
		result.FilledQty = order.Quantity
		result.AvgPrice = order.Price
		m.fills[result.OrderID] = []interfaces.Fill{{
			OrderID:   result.OrderID,
			Price:     order.Price,
			Quantity:  order.Quantity,
			Timestamp: result.SubmittedAt,
		}}
	}
	m.orders[result.OrderID] = result
	return result, nil
}

func (m *MockClient) CancelOrder(ctx context.Context, orderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	result, ok := m.orders[orderID]
	if !ok {
		return fmt.Errorf("exchange: order %s not found", orderID)
	}
	result.Status = interfaces.OrderStatusCancelled
	return nil
}

func (m *MockClient) GetBalance(ctx context.Context, asset string) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[asset], nil
}

func (m *MockClient) GetCurrentPrice(ctx context.Context, symbol string) (*types.PriceData, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.prices[symbol]
	if !ok {
		return nil, fmt.Errorf("exchange: no price seeded for %s", symbol)
	}
	cp := *p
	return &cp, nil
}

func (m *MockClient) GetOrderStatus(ctx context.Context, orderID string) (interfaces.OrderStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result, ok := m.orders[orderID]
	if !ok {
		return "", fmt.Errorf("exchange: order %s not found", orderID)
	}
	return result.Status, nil
}

func (m *MockClient) GetOrderFills(ctx context.Context, orderID string) ([]interfaces.Fill, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fills[orderID], nil
}

func (m *MockClient) AverageLatency() time.Duration { return m.latency }

func (m *MockClient) IsConnected() bool { return true }
