// Package bridge implements the bridge client facade of §4.4: a
// uniform quote/execute/status capability set over heterogeneous
// cross-chain bridge protocols.
package bridge

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mev-engine/mev-searcher/pkg/interfaces"
	"github.com/mev-engine/mev-searcher/pkg/types"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
)

// Route identifies a supported (chain, chain, token) triple.
type Route struct {
	FromChain string
	ToChain   string
	Token     string
}

// MockClient is a deterministic bridge adapter for tests and the
// `mock` run mode, grounded on the pack's cross-chain quote/execute
// shape (palaseus-Adrenochain cross_chain_defi.go).
type MockClient struct {
	name    string
	mu      sync.Mutex
	routes  map[Route]bool
	quotes  func(route Route, amount decimal.Decimal) *types.BridgeQuote
	status  map[string]types.BridgeExecutionStatus
	breaker *gobreaker.CircuitBreaker
	reliability float64
}

// NewMockClient builds a MockClient supporting the given routes, with
// quotes produced by the supplied pricing function.
func NewMockClient(name string, routes []Route, quotes func(route Route, amount decimal.Decimal) *types.BridgeQuote) *MockClient {
	set := make(map[Route]bool, len(routes))
	for _, r := range routes {
		set[r] = true
	}
	return &MockClient{
		name:        name,
		routes:      set,
		quotes:      quotes,
		status:      make(map[string]types.BridgeExecutionStatus),
		breaker:     NewBreaker(name),
		reliability: 0.99,
	}
}

var _ interfaces.BridgeClient = (*MockClient)(nil)

func (m *MockClient) Name() string { return m.name }

func (m *MockClient) SupportsRoute(ctx context.Context, fromChain, toChain, token string) (bool, error) {
	return m.routes[Route{fromChain, toChain, token}], nil
}

func (m *MockClient) GetQuote(ctx context.Context, fromChain, toChain, token string, amount decimal.Decimal, maxSlippage decimal.Decimal) (*types.BridgeQuote, error) {
	route := Route{fromChain, toChain, token}
	if !m.routes[route] {
		return nil, fmt.Errorf("bridge[%s]: unsupported route %s->%s for %s", m.name, fromChain, toChain, token)
	}
	raw, err := m.breaker.Execute(func() (interface{}, error) {
		return m.quotes(route, amount), nil
	})
	if err != nil {
		return nil, fmt.Errorf("bridge[%s]: quote: %w", m.name, err)
	}
	return raw.(*types.BridgeQuote), nil
}

func (m *MockClient) ExecuteBridge(ctx context.Context, quote *types.BridgeQuote) (*types.BridgeExecution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sourceTx := uuid.NewString()
	m.status[sourceTx] = types.BridgeStatusSourceConfirmed
	return &types.BridgeExecution{
		Status:    types.BridgeStatusSourceConfirmed,
		SourceTx:  sourceTx,
		StartedAt: time.Now(),
	}, nil
}

func (m *MockClient) GetExecutionStatus(ctx context.Context, sourceTx string) (types.BridgeExecutionStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	status, ok := m.status[sourceTx]
	if !ok {
		return "", fmt.Errorf("bridge[%s]: unknown execution %s", m.name, sourceTx)
	}
	return status, nil
}

// Advance is a test helper moving a tracked execution to its next
// lifecycle status.
func (m *MockClient) Advance(sourceTx string, status types.BridgeExecutionStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status[sourceTx] = status
}

func (m *MockClient) Reliability() float64 { return m.reliability }
