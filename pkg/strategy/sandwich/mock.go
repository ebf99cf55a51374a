package sandwich

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// MockPoolReader is a deterministic PoolReader for the `mock` run mode
// (spec.md §6), grounded on the same paper-data convention as
// pkg/exchange's and pkg/bridge's MockClient.
type MockPoolReader struct {
	mu       sync.Mutex
	reserves map[common.Address][2]*big.Int
	feeBps   uint32
}

// NewMockPoolReader seeds a reserve table with a uniform fee.
func NewMockPoolReader(feeBps uint32) *MockPoolReader {
	return &MockPoolReader{reserves: make(map[common.Address][2]*big.Int), feeBps: feeBps}
}

// SetReserves seeds or updates the (reserveIn, reserveOut) pair for a pool.
func (m *MockPoolReader) SetReserves(pool common.Address, reserveIn, reserveOut *big.Int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reserves[pool] = [2]*big.Int{reserveIn, reserveOut}
}

func (m *MockPoolReader) GetReserves(ctx context.Context, pool common.Address) (*big.Int, *big.Int, uint32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reserves[pool]
	if !ok {
		return nil, nil, 0, errPoolUnknown
	}
	return r[0], r[1], m.feeBps, nil
}

// MockRouterRegistry recognizes a static set of routers and decodes
// calldata encoded by this package's own constructTransactions, so a
// whole mock sandwich pipeline can run without a live router ABI
// decoder.
type MockRouterRegistry struct {
	routers map[common.Address]bool
	pairs   map[[2]common.Address]common.Address // (tokenIn,tokenOut) -> pool
}

// NewMockRouterRegistry builds a registry recognizing the given
// router addresses and pool lookups.
func NewMockRouterRegistry(routers []common.Address, pairs map[[2]common.Address]common.Address) *MockRouterRegistry {
	set := make(map[common.Address]bool, len(routers))
	for _, r := range routers {
		set[r] = true
	}
	return &MockRouterRegistry{routers: set, pairs: pairs}
}

func (m *MockRouterRegistry) IsRouter(addr common.Address) bool { return m.routers[addr] }

func (m *MockRouterRegistry) IsSwapSelector(sel [4]byte) bool {
	return sel == swapExactTokensForTokensSelector
}

// DecodePath decodes the calldata this package's own
// encodeSwapExactTokensForTokens emits: selector, amountIn(32),
// amountOutMin(32), tokenIn(20), tokenOut(20).
func (m *MockRouterRegistry) DecodePath(data []byte) (tokenIn, tokenOut, pool common.Address, amountIn *big.Int, ok bool) {
	const minLen = 4 + 32 + 32 + 20 + 20
	if len(data) < minLen {
		return common.Address{}, common.Address{}, common.Address{}, nil, false
	}
	body := data[4:]
	amountIn = new(big.Int).SetBytes(body[:32])
	tokenIn = common.BytesToAddress(body[64:84])
	tokenOut = common.BytesToAddress(body[84:104])

	pool, ok = m.pairs[[2]common.Address{tokenIn, tokenOut}]
	return tokenIn, tokenOut, pool, amountIn, ok
}

type mockSandwichError string

func (e mockSandwichError) Error() string { return string(e) }

const errPoolUnknown = mockSandwichError("sandwich: mock pool reader has no reserves for this pool")
