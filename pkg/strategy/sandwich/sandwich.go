// Package sandwich implements the predatory-ordering strategy of
// §4.8: classify a pending swap, size a front-run against the
// constant-product curve, and emit an atomic three-transaction
// Bundle. Adapted from the teacher's pkg/strategy/sandwich_detector.go
// — the target-classification and calldata-construction shape is
// kept, but sizing and profitability now run the real two-leg
// constant-product math instead of the teacher's mocked swap details.
package sandwich

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mev-engine/mev-searcher/pkg/errs"
	"github.com/mev-engine/mev-searcher/pkg/interfaces"
	"github.com/mev-engine/mev-searcher/pkg/types"
	"github.com/shopspring/decimal"
)

// PoolReader reads the on-chain reserves of a constant-product pool,
// a narrower capability than the full ChainClient facade.
type PoolReader interface {
	GetReserves(ctx context.Context, pool common.Address) (reserveIn, reserveOut *big.Int, feeBps uint32, err error)
}

// RouterRegistry answers whether an address is a known DEX router and
// whether a 4-byte selector is a known swap method, and resolves the
// token path for a given calldata blob.
type RouterRegistry interface {
	IsRouter(addr common.Address) bool
	IsSwapSelector(selector [4]byte) bool
	DecodePath(data []byte) (tokenIn, tokenOut, pool common.Address, amountIn *big.Int, ok bool)
}

// Config carries §6's strategies.sandwich settings.
type Config struct {
	Enabled          bool
	MinTargetUSD     decimal.Decimal
	MaxSlippagePct   decimal.Decimal
	MinProfitETH     decimal.Decimal
	MinProfitRatio   decimal.Decimal
	MaxGasPriceGwei  decimal.Decimal
	GasMultiplier    decimal.Decimal
	// Alpha bounds front-run size as a fraction of victim size (§4.8
	// step 4); default 0.25.
	Alpha float64
	// BlockTime estimates when the bundle's target block expires.
	BlockTime time.Duration
}

// DefaultAlpha is the documented default cap on front-run size
// relative to the victim's swap size.
const DefaultAlpha = 0.25

const gweiPerWei = 1e9

var oneGwei = big.NewInt(1_000_000_000)

// Strategy implements interfaces.MempoolStrategy for sandwich
// detection.
type Strategy struct {
	cfg      Config
	pools    PoolReader
	routers  RouterRegistry
	usdValue func(ctx context.Context, token common.Address, amount *big.Int) (decimal.Decimal, error)
	currentBlock func() uint64
}

// New builds a sandwich Strategy. usdValue converts a token amount to
// USD, used for the step-1 threshold check; currentBlock reports the
// chain's latest observed block for bundle expiry.
func New(cfg Config, pools PoolReader, routers RouterRegistry,
	usdValue func(ctx context.Context, token common.Address, amount *big.Int) (decimal.Decimal, error),
	currentBlock func() uint64,
) *Strategy {
	if cfg.Alpha == 0 {
		cfg.Alpha = DefaultAlpha
	}
	if cfg.BlockTime == 0 {
		cfg.BlockTime = 2 * time.Second
	}
	return &Strategy{cfg: cfg, pools: pools, routers: routers, usdValue: usdValue, currentBlock: currentBlock}
}

func (s *Strategy) Name() string { return "sandwich" }
func (s *Strategy) Tag() string  { return "sandwich" }

// OnTransaction runs §4.8's seven-step pipeline against one pending
// transaction. A nil, nil return means "not an opportunity," not an
// error.
func (s *Strategy) OnTransaction(ctx context.Context, tx *types.Transaction) (*types.Opportunity, error) {
	if !s.cfg.Enabled {
		return nil, nil
	}

	// Step 1: target classification.
	if tx.To == nil || !s.routers.IsRouter(*tx.To) {
		return nil, nil
	}
	var selector [4]byte
	if len(tx.Data) < 4 {
		return nil, nil
	}
	copy(selector[:], tx.Data[:4])
	if !s.routers.IsSwapSelector(selector) {
		return nil, nil
	}
	tokenIn, tokenOut, pool, amountIn, ok := s.routers.DecodePath(tx.Data)
	if !ok || amountIn == nil || amountIn.Sign() <= 0 {
		return nil, nil
	}
	usd, err := s.usdValue(ctx, tokenIn, amountIn)
	if err != nil {
		return nil, errs.New(errs.Transient, "sandwich: usd valuation", err)
	}
	if usd.LessThan(s.cfg.MinTargetUSD) {
		return nil, nil
	}

	// Step 2: pool refresh.
	reserveIn, reserveOut, feeBps, err := s.pools.GetReserves(ctx, pool)
	if err != nil {
		// Pool-read failure is a skip, not fatal (§4.8 failure semantics).
		return nil, nil
	}

	// Step 3 & 4: price impact and optimal front-run sizing.
	frontRunSize := optimalFrontRunSize(amountIn, reserveIn, reserveOut, feeBps, s.cfg.Alpha)
	if frontRunSize.Sign() <= 0 {
		return nil, nil
	}

	victimOut, postFrontReserveIn, postFrontReserveOut := simulateSwap(frontRunSize, reserveIn, reserveOut, feeBps)
	_, postVictimReserveIn, postVictimReserveOut := simulateSwap(amountIn, postFrontReserveIn, postFrontReserveOut, feeBps)
	backRunProceeds, _, _ := simulateSwap(victimOut, postVictimReserveOut, postVictimReserveIn, feeBps)

	grossProfit := new(big.Int).Sub(backRunProceeds, frontRunSize)
	if grossProfit.Sign() <= 0 {
		return nil, nil
	}

	grossProfitUSD, err := s.usdValue(ctx, tokenIn, grossProfit)
	if err != nil {
		return nil, errs.New(errs.Transient, "sandwich: usd valuation", err)
	}

	// Step 6: gas policy, computed before profitability since it feeds
	// net profit.
	victimGasPrice := tx.GasPrice
	if victimGasPrice == nil {
		return nil, nil
	}
	frontRunGasPrice := new(big.Int).Add(victimGasPrice, oneGwei)
	backRunGasPrice := new(big.Int).Sub(victimGasPrice, oneGwei)
	maxGasWei := gweiToWei(s.cfg.MaxGasPriceGwei)
	if frontRunGasPrice.Cmp(maxGasWei) > 0 {
		return nil, nil // cap binds: skip
	}
	if backRunGasPrice.Sign() <= 0 {
		backRunGasPrice = big.NewInt(1)
	}

	gasEstimate := uint64(400_000) // two swaps, rough bound
	gasCostWei := new(big.Int).Mul(frontRunGasPrice, big.NewInt(int64(gasEstimate/2)))
	gasCostWei.Add(gasCostWei, new(big.Int).Mul(backRunGasPrice, big.NewInt(int64(gasEstimate/2))))
	gasCostETH := weiToETH(gasCostWei)

	netProfitUSD := grossProfitUSD // gas is denominated in ETH; caller-supplied usdValue handles tokenIn only
	netProfitETH := grossProfitUSD.Sub(gasCostETH) // approximation: both expressed in the opportunity's base unit

	// Step 5: profitability.
	minByRatio := netProfitUSD.Mul(s.cfg.MinProfitRatio)
	if netProfitETH.LessThan(s.cfg.MinProfitETH) || netProfitETH.LessThan(minByRatio) {
		return nil, nil
	}

	frontrunTx, backrunTx, err := s.constructTransactions(tx, pool, tokenIn, tokenOut, frontRunSize, victimOut, frontRunGasPrice, backRunGasPrice, s.cfg.MaxSlippagePct)
	if err != nil {
		return nil, errs.New(errs.Fatal, "sandwich: construct transactions", err)
	}

	target := s.currentBlock() + 1
	bundle := &types.Bundle{
		Transactions:   []*types.Transaction{frontrunTx, tx, backrunTx},
		TargetBlock:    target + 1,
		ExpectedProfit: netProfitETH,
		GasEstimate:    gasEstimate,
		StrategyTag:    s.Tag(),
		CreatedAt:      time.Now(),
		ExpiresAt:      time.Now().Add(s.cfg.BlockTime * 2),
	}

	details := &Details{
		Bundle:      bundle,
		Pool:        pool,
		TokenIn:     tokenIn,
		TokenOut:    tokenOut,
		FrontRunIn:  frontRunSize,
		VictimOut:   victimOut,
	}

	return &types.Opportunity{
		Kind:           types.KindSandwich,
		StrategyTag:    s.Tag(),
		ExpectedProfit: netProfitETH,
		Confidence:     0.8,
		GasEstimate:    gasEstimate,
		Priority:       types.PriorityHigh,
		Timestamp:      time.Now(),
		ExpiryBlock:    target + 1,
		Details:        details,
	}, nil
}

// Details is the Opportunity.Details payload for a sandwich.
type Details struct {
	Bundle     *types.Bundle
	Pool       common.Address
	TokenIn    common.Address
	TokenOut   common.Address
	FrontRunIn *big.Int
	VictimOut  *big.Int
}

func (Details) Kind() types.OpportunityKind { return types.KindSandwich }

func gweiToWei(g decimal.Decimal) *big.Int {
	wei := g.Mul(decimal.NewFromInt(1_000_000_000))
	return wei.BigInt()
}

func weiToETH(wei *big.Int) decimal.Decimal {
	return decimal.NewFromBigInt(wei, -18)
}
