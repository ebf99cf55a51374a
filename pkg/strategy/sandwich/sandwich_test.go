package sandwich

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mev-engine/mev-searcher/pkg/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var testPool = common.HexToAddress("0x2222222222222222222222222222222222222222")
var testRouter = common.HexToAddress("0x3333333333333333333333333333333333333333")
var tokenA = common.HexToAddress("0x4444444444444444444444444444444444444444")
var tokenB = common.HexToAddress("0x5555555555555555555555555555555555555555")

type fakePools struct {
	reserveIn, reserveOut *big.Int
	feeBps                uint32
	err                   error
}

func (f *fakePools) GetReserves(ctx context.Context, pool common.Address) (*big.Int, *big.Int, uint32, error) {
	return f.reserveIn, f.reserveOut, f.feeBps, f.err
}

type fakeRouters struct {
	amountIn *big.Int
}

func (f *fakeRouters) IsRouter(addr common.Address) bool { return addr == testRouter }
func (f *fakeRouters) IsSwapSelector(sel [4]byte) bool {
	return sel == swapExactTokensForTokensSelector
}
func (f *fakeRouters) DecodePath(data []byte) (common.Address, common.Address, common.Address, *big.Int, bool) {
	return tokenA, tokenB, testPool, f.amountIn, true
}

func victimTx(gasPriceGwei int64) *types.Transaction {
	return &types.Transaction{
		To:       &testRouter,
		GasPrice: new(big.Int).Mul(big.NewInt(gasPriceGwei), oneGwei),
		Data:     append(swapExactTokensForTokensSelector[:], make([]byte, 64)...),
		Value:    big.NewInt(0),
	}
}

func newStrategy(pools *fakePools, routers *fakeRouters, maxGasGwei decimal.Decimal) *Strategy {
	cfg := Config{
		Enabled:         true,
		MinTargetUSD:    decimal.NewFromInt(1000),
		MaxSlippagePct:  decimal.NewFromFloat(0.02),
		MinProfitETH:    decimal.NewFromFloat(0.001),
		MinProfitRatio:  decimal.NewFromFloat(0.001),
		MaxGasPriceGwei: maxGasGwei,
		GasMultiplier:   decimal.NewFromFloat(1.1),
	}
	usdValue := func(ctx context.Context, token common.Address, amount *big.Int) (decimal.Decimal, error) {
		// treat 1 unit == 1 USD for test determinism
		return decimal.NewFromBigInt(amount, 0), nil
	}
	return New(cfg, pools, routers, usdValue, func() uint64 { return 100 })
}

func TestOnTransaction_ProfitableSandwich(t *testing.T) {
	pools := &fakePools{
		reserveIn:  big.NewInt(0).SetUint64(1_000_000_000),
		reserveOut: big.NewInt(0).SetUint64(1_000_000_000),
		feeBps:     30,
	}
	routers := &fakeRouters{amountIn: big.NewInt(50_000_000)}
	s := newStrategy(pools, routers, decimal.NewFromInt(500))

	opp, err := s.OnTransaction(context.Background(), victimTx(100))
	require.NoError(t, err)
	require.NotNil(t, opp)
	require.Equal(t, types.KindSandwich, opp.Kind)
	details, ok := opp.Details.(*Details)
	require.True(t, ok)
	require.Len(t, details.Bundle.Transactions, 3)
}

func TestOnTransaction_NotARouter(t *testing.T) {
	pools := &fakePools{reserveIn: big.NewInt(1), reserveOut: big.NewInt(1)}
	routers := &fakeRouters{amountIn: big.NewInt(1)}
	s := newStrategy(pools, routers, decimal.NewFromInt(500))

	notRouter := common.HexToAddress("0x9999999999999999999999999999999999999999")
	tx := victimTx(100)
	tx.To = &notRouter

	opp, err := s.OnTransaction(context.Background(), tx)
	require.NoError(t, err)
	require.Nil(t, opp)
}

func TestOnTransaction_GasCapBinds(t *testing.T) {
	pools := &fakePools{
		reserveIn:  big.NewInt(0).SetUint64(1_000_000_000),
		reserveOut: big.NewInt(0).SetUint64(1_000_000_000),
		feeBps:     30,
	}
	routers := &fakeRouters{amountIn: big.NewInt(50_000_000)}
	// victim at 495 gwei, cap at 495 gwei means front-run (496) binds the cap (S3).
	s := newStrategy(pools, routers, decimal.NewFromInt(495))

	opp, err := s.OnTransaction(context.Background(), victimTx(495))
	require.NoError(t, err)
	require.Nil(t, opp)
}

func TestOnTransaction_PoolReadFailureSkipsNotFatal(t *testing.T) {
	pools := &fakePools{err: context.DeadlineExceeded}
	routers := &fakeRouters{amountIn: big.NewInt(50_000_000)}
	s := newStrategy(pools, routers, decimal.NewFromInt(500))

	opp, err := s.OnTransaction(context.Background(), victimTx(100))
	require.NoError(t, err)
	require.Nil(t, opp)
}
