package crosschain

import (
	"context"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mev-engine/mev-searcher/pkg/interfaces"
	"github.com/mev-engine/mev-searcher/pkg/tokenregistry"
	"github.com/mev-engine/mev-searcher/pkg/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type fakeBridge struct {
	name        string
	supports    bool
	quote       *types.BridgeQuote
	quoteErr    error
	execResult  *types.BridgeExecution
	execErr     error
	status      types.BridgeExecutionStatus
	reliability float64
}

func (f *fakeBridge) Name() string { return f.name }
func (f *fakeBridge) SupportsRoute(ctx context.Context, fromChain, toChain, token string) (bool, error) {
	return f.supports, nil
}
func (f *fakeBridge) GetQuote(ctx context.Context, fromChain, toChain, token string, amount, maxSlippage decimal.Decimal) (*types.BridgeQuote, error) {
	return f.quote, f.quoteErr
}
func (f *fakeBridge) ExecuteBridge(ctx context.Context, quote *types.BridgeQuote) (*types.BridgeExecution, error) {
	return f.execResult, f.execErr
}
func (f *fakeBridge) GetExecutionStatus(ctx context.Context, sourceTx string) (types.BridgeExecutionStatus, error) {
	return f.status, nil
}
func (f *fakeBridge) Reliability() float64 { return f.reliability }

type fakePrices struct {
	byChain map[string]decimal.Decimal
}

func (f *fakePrices) Price(ctx context.Context, chain, symbol string) (decimal.Decimal, error) {
	return f.byChain[chain], nil
}

func newTokenRegistry() *tokenregistry.Registry {
	reg := tokenregistry.New()
	reg.Put(types.TokenInfo{
		Symbol: "USDC",
		Chains: map[string]common.Address{
			"arbitrum": common.HexToAddress("0x1111111111111111111111111111111111111111"),
			"optimism": common.HexToAddress("0x2222222222222222222222222222222222222222"),
		},
	})
	return reg
}

func TestScan_FindsProfitableRoute(t *testing.T) {
	quote := &types.BridgeQuote{
		Protocol: "across", AmountIn: decimal.NewFromInt(1), AmountOut: decimal.NewFromFloat(1.05),
		BridgeFee: decimal.NewFromFloat(0.001), EstimatedTime: 5 * time.Minute, ExpiresAt: time.Now().Add(time.Hour),
	}
	bridge := &fakeBridge{name: "across", supports: true, quote: quote, reliability: 0.95}

	cfg := DefaultConfig()
	cfg.Enabled = true
	cfg.SupportedChains = []string{"arbitrum", "optimism"}
	cfg.MinProfitUSD = decimal.NewFromFloat(0.01)

	prices := &fakePrices{byChain: map[string]decimal.Decimal{
		"arbitrum": decimal.NewFromFloat(1.0),
		"optimism": decimal.NewFromFloat(1.02),
	}}

	s := New(cfg, newTokenRegistry(), []interfaces.BridgeClient{bridge}, prices, nil)

	opps, err := s.Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, opps, 1)
	require.Equal(t, types.KindCrossChain, opps[0].Kind)
}

func TestScan_NoProfitableRouteWhenDestNotHigher(t *testing.T) {
	bridge := &fakeBridge{name: "across", supports: true, reliability: 0.9}
	cfg := DefaultConfig()
	cfg.Enabled = true
	cfg.SupportedChains = []string{"arbitrum", "optimism"}

	prices := &fakePrices{byChain: map[string]decimal.Decimal{
		"arbitrum": decimal.NewFromFloat(1.02),
		"optimism": decimal.NewFromFloat(1.0),
	}}

	s := New(cfg, newTokenRegistry(), []interfaces.BridgeClient{bridge}, prices, nil)
	opps, err := s.Scan(context.Background())
	require.NoError(t, err)
	require.Empty(t, opps)
}
