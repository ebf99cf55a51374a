package microarb

import (
	"context"
	"testing"
	"time"

	"github.com/mev-engine/mev-searcher/pkg/interfaces"
	"github.com/mev-engine/mev-searcher/pkg/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type fakeExchange struct {
	name        string
	placeResult *interfaces.OrderExecutionResult
	placeErr    error
	statusSeq   []interfaces.OrderStatus
	statusIdx   int
	cancelled   bool
}

func (f *fakeExchange) Name() string { return f.name }
func (f *fakeExchange) PlaceOrder(ctx context.Context, order interfaces.Order) (*interfaces.OrderExecutionResult, error) {
	return f.placeResult, f.placeErr
}
func (f *fakeExchange) CancelOrder(ctx context.Context, orderID string) error {
	f.cancelled = true
	return nil
}
func (f *fakeExchange) GetBalance(ctx context.Context, asset string) (decimal.Decimal, error) {
	return decimal.Zero, nil
}
func (f *fakeExchange) GetCurrentPrice(ctx context.Context, symbol string) (*types.PriceData, error) {
	return nil, nil
}
func (f *fakeExchange) GetOrderStatus(ctx context.Context, orderID string) (interfaces.OrderStatus, error) {
	if f.statusIdx >= len(f.statusSeq) {
		return f.statusSeq[len(f.statusSeq)-1], nil
	}
	st := f.statusSeq[f.statusIdx]
	f.statusIdx++
	return st, nil
}
func (f *fakeExchange) GetOrderFills(ctx context.Context, orderID string) ([]interfaces.Fill, error) {
	return nil, nil
}
func (f *fakeExchange) AverageLatency() time.Duration { return 0 }
func (f *fakeExchange) IsConnected() bool             { return true }

func baseConfig() Config {
	return Config{
		Enabled:             true,
		MinProfitPercentage: decimal.NewFromFloat(0.001),
		MinProfitUSD:        decimal.NewFromFloat(1),
		ExecutionTimeout:    200 * time.Millisecond,
		MaxConcurrentTrades: 2,
		RiskLimitPerTrade:   decimal.NewFromInt(10_000),
		MinOrderSize:        decimal.NewFromFloat(0.001),
		MaxOrderSize:        decimal.NewFromInt(1000),
		Exchanges:           []string{"A", "B"},
		TradingPairs:        []string{"ETH/USDC"},
		VenueFees: map[string]decimal.Decimal{
			"A": decimal.NewFromFloat(0.001),
			"B": decimal.NewFromFloat(0.001),
		},
	}
}

func TestScan_S1HappyPathFindsOpportunity(t *testing.T) {
	s := New(baseConfig(), nil)
	now := time.Now()
	s.now = func() time.Time { return now }

	s.UpdatePriceData(&types.PriceData{Exchange: "A", Symbol: "ETH/USDC", Bid: decimal.NewFromFloat(2000), Ask: decimal.NewFromFloat(2001), Timestamp: now, Sequence: 1})
	s.UpdatePriceData(&types.PriceData{Exchange: "B", Symbol: "ETH/USDC", Bid: decimal.NewFromFloat(2010), Ask: decimal.NewFromFloat(2011), Timestamp: now, Sequence: 1})

	opps, err := s.Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, opps, 1)
	details := opps[0].Details.(*Details)
	require.Equal(t, "A", details.Opportunity.BuyVenue)
	require.Equal(t, "B", details.Opportunity.SellVenue)
	require.True(t, details.Opportunity.ProfitPercentage.GreaterThan(decimal.Zero))
}

func TestScan_InsufficientVenuesSkips(t *testing.T) {
	s := New(baseConfig(), nil)
	now := time.Now()
	s.now = func() time.Time { return now }
	s.UpdatePriceData(&types.PriceData{Exchange: "A", Symbol: "ETH/USDC", Bid: decimal.NewFromFloat(2000), Ask: decimal.NewFromFloat(2001), Timestamp: now, Sequence: 1})

	opps, err := s.Scan(context.Background())
	require.NoError(t, err)
	require.Empty(t, opps)
}

func TestExecute_S2TimeoutUnwind(t *testing.T) {
	buy := &fakeExchange{
		name:        "A",
		placeResult: &interfaces.OrderExecutionResult{OrderID: "buy-1"},
		statusSeq:   []interfaces.OrderStatus{interfaces.OrderStatusFilled},
	}
	sell := &fakeExchange{
		name:        "B",
		placeResult: &interfaces.OrderExecutionResult{OrderID: "sell-1"},
		statusSeq:   []interfaces.OrderStatus{interfaces.OrderStatusPending},
	}

	cfg := baseConfig()
	cfg.ExecutionTimeout = 50 * time.Millisecond
	s := New(cfg, map[string]interfaces.ExchangeClient{"A": buy, "B": sell})

	opp := &types.MicroArbitrageOpportunity{
		ID: "opp-1", Symbol: "ETH/USDC", BuyVenue: "A", SellVenue: "B",
		BuyPrice: decimal.NewFromFloat(2000), SellPrice: decimal.NewFromFloat(2010),
		MaxTradeAmount: decimal.NewFromFloat(1), ExecutionWindow: cfg.ExecutionTimeout,
	}

	trade, err := s.Execute(context.Background(), opp)
	require.Error(t, err)
	require.NotNil(t, trade)
	require.Equal(t, types.TradeStateTimedOut, trade.State)
	require.Equal(t, int64(1), s.stats.TimedOut)
	require.True(t, sell.cancelled)
}
