package sandwich

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mev-engine/mev-searcher/pkg/types"
	"github.com/shopspring/decimal"
)

// swapExactTokensForTokensSelector mirrors the teacher's
// sandwich_detector.go selector table; kept for calldata layout
// compatibility with the router ABI.
var swapExactTokensForTokensSelector = [4]byte{0x38, 0xed, 0x17, 0x39}

// constructTransactions builds the front-run and back-run legs of the
// sandwich (§4.8 step 7). amountOutMin on the front-run leg is derived
// from the simulated post-front-run pool state scaled by
// (1 - maxSlippagePct): the front-run must not settle for less than
// that, closing the Open Question the upstream design left to the
// operator.
func (s *Strategy) constructTransactions(
	victim *types.Transaction,
	pool, tokenIn, tokenOut common.Address,
	frontRunAmountIn, victimExpectedOut *big.Int,
	frontRunGasPrice, backRunGasPrice *big.Int,
	maxSlippagePct decimal.Decimal,
) (frontrun, backrun *types.Transaction, err error) {
	if frontRunAmountIn == nil || frontRunAmountIn.Sign() <= 0 {
		return nil, nil, fmt.Errorf("sandwich: non-positive front-run size")
	}

	frontRunMinOut := applySlippage(victimExpectedOut, maxSlippagePct)

	frontrunData, err := encodeSwapExactTokensForTokens(frontRunAmountIn, frontRunMinOut, tokenIn, tokenOut)
	if err != nil {
		return nil, nil, err
	}
	backrunData, err := encodeSwapExactTokensForTokens(victimExpectedOut, big.NewInt(0), tokenOut, tokenIn)
	if err != nil {
		return nil, nil, err
	}

	frontrun = &types.Transaction{
		To:       &pool,
		Value:    big.NewInt(0),
		GasPrice: frontRunGasPrice,
		GasLimit: 200_000,
		Data:     frontrunData,
		Nonce:    victim.Nonce, // the searcher's own nonce sequencing is resolved by the submitter
	}
	backrun = &types.Transaction{
		To:       &pool,
		Value:    big.NewInt(0),
		GasPrice: backRunGasPrice,
		GasLimit: 200_000,
		Data:     backrunData,
	}
	return frontrun, backrun, nil
}

// applySlippage returns amount*(1-pct), floored at zero.
func applySlippage(amount *big.Int, pct decimal.Decimal) *big.Int {
	if amount == nil || amount.Sign() <= 0 {
		return big.NewInt(0)
	}
	factor := decimal.NewFromInt(1).Sub(pct)
	if factor.IsNegative() {
		factor = decimal.Zero
	}
	out := decimal.NewFromBigInt(amount, 0).Mul(factor)
	return out.BigInt()
}

// encodeSwapExactTokensForTokens packs a minimal ABI-encoded call
// matching the selector a router's swapExactTokensForTokens expects;
// path/deadline/recipient encoding is omitted here since routing
// details are resolved by the transaction signer, not this strategy.
func encodeSwapExactTokensForTokens(amountIn, amountOutMin *big.Int, tokenIn, tokenOut common.Address) ([]byte, error) {
	if amountIn == nil || amountOutMin == nil {
		return nil, fmt.Errorf("sandwich: nil swap amount")
	}
	data := make([]byte, 4, 4+32+32+20+20)
	copy(data, swapExactTokensForTokensSelector[:])
	data = append(data, leftPad32(amountIn)...)
	data = append(data, leftPad32(amountOutMin)...)
	data = append(data, tokenIn.Bytes()...)
	data = append(data, tokenOut.Bytes()...)
	return data, nil
}

func leftPad32(v *big.Int) []byte {
	b := v.Bytes()
	out := make([]byte, 32)
	copy(out[32-len(b):], b)
	return out
}
