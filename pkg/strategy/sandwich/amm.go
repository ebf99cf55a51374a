package sandwich

import "math/big"

// bpsDenominator is the fee-basis-point denominator (10_000 = 100%).
const bpsDenominator = 10_000

// simulateSwap applies the constant-product formula
// (Uniswap V2 style): out = (in*(1-fee)*reserveOut) / (reserveIn + in*(1-fee)).
// It returns the output amount and the pool's new reserves.
func simulateSwap(amountIn, reserveIn, reserveOut *big.Int, feeBps uint32) (amountOut, newReserveIn, newReserveOut *big.Int) {
	feeFactor := big.NewInt(bpsDenominator - int64(feeBps))
	amountInWithFee := new(big.Int).Mul(amountIn, feeFactor)

	numerator := new(big.Int).Mul(amountInWithFee, reserveOut)
	denominator := new(big.Int).Mul(reserveIn, big.NewInt(bpsDenominator))
	denominator.Add(denominator, amountInWithFee)

	if denominator.Sign() == 0 {
		return big.NewInt(0), reserveIn, reserveOut
	}

	amountOut = new(big.Int).Div(numerator, denominator)
	newReserveIn = new(big.Int).Add(reserveIn, amountIn)
	newReserveOut = new(big.Int).Sub(reserveOut, amountOut)
	return amountOut, newReserveIn, newReserveOut
}

// optimalFrontRunSize solves §4.8 step 4's closed-form for a
// two-leg constant-product sandwich: the front-run size maximizing
// back_run_proceeds(s) - s, capped at alpha*victimSize. The
// closed-form optimum for a symmetric two-leg sandwich on the same
// pool (ignoring the victim's own impact on the optimum, a standard
// simplifying assumption) is
//
//	s* = sqrt(reserveIn * victimSize * reserveOut_effective) - reserveIn
//
// adjusted for fee; we solve it by bisection over [0, cap] on the
// monotonic profit-then-decreasing curve, which is robust to whatever
// fee structure the pool reports (§4.8: "fall back to bisection if
// fee structure differs").
func optimalFrontRunSize(victimSize, reserveIn, reserveOut *big.Int, feeBps uint32, alpha float64) *big.Int {
	cap := new(big.Int).Mul(victimSize, big.NewInt(int64(alpha*1_000_000)))
	cap.Div(cap, big.NewInt(1_000_000))
	if cap.Sign() <= 0 {
		return big.NewInt(0)
	}

	profit := func(s *big.Int) *big.Int {
		if s.Sign() <= 0 {
			return big.NewInt(0)
		}
		frontOut, rIn1, rOut1 := simulateSwap(s, reserveIn, reserveOut, feeBps)
		_, rIn2, rOut2 := simulateSwap(victimSize, rIn1, rOut1, feeBps)
		backProceeds, _, _ := simulateSwap(frontOut, rOut2, rIn2, feeBps)
		return new(big.Int).Sub(backProceeds, s)
	}

	lo, hi := big.NewInt(0), new(big.Int).Set(cap)
	best := big.NewInt(0)
	bestProfit := big.NewInt(0)

	// 40 bisection steps narrows the search space by ~2^40, ample
	// precision for wei-denominated reserves within a bounded cap.
	for i := 0; i < 40; i++ {
		mid := new(big.Int).Add(lo, hi)
		mid.Div(mid, big.NewInt(2))
		if mid.Sign() == 0 {
			break
		}
		p := profit(mid)
		if p.Cmp(bestProfit) > 0 {
			bestProfit = p
			best = new(big.Int).Set(mid)
		}

		// Probe a neighbor slightly larger to decide which half to
		// keep: the profit curve is unimodal (concave) in s.
		probe := new(big.Int).Add(mid, new(big.Int).Div(hi, big.NewInt(100+int64(i))))
		if probe.Cmp(hi) > 0 {
			probe.Set(hi)
		}
		if profit(probe).Cmp(p) > 0 {
			lo = mid
		} else {
			hi = mid
		}
	}

	return best
}
