// Package funding implements the funding-mode selector shared by the
// liquidation (§4.9) and micro-arbitrage (§4.10) strategies: it
// chooses between a wallet-backed and a flashloan-backed execution
// path. Factored out as its own package (a SPEC_FULL.md supplemented
// feature) so both strategies share one implementation instead of
// duplicating the auto-mode cost comparison, grounded on cryptofunk's
// cost-comparison style in internal/exchange/position_manager.go.
package funding

import "github.com/shopspring/decimal"

// Mode is the funding path a strategy executes through.
type Mode string

const (
	ModeAuto      Mode = "auto"
	ModeFlashloan Mode = "flashloan"
	ModeWallet    Mode = "wallet"
)

// Decision is the selector's output: which path to take and why.
type Decision struct {
	Mode   Mode
	Reason string
}

// Select implements the §4.10 `auto` rule: if wallet balance covers
// the required amount and wallet gas cost <= flashloan gas cost +
// flashloan fee, use wallet; else if the balance suffices, use the
// cheaper of the two; else flashloan.
func Select(configured Mode, walletBalance, requiredAmount, walletGasCost, flashloanGasCost, flashloanFee decimal.Decimal) Decision {
	switch configured {
	case ModeFlashloan:
		return Decision{Mode: ModeFlashloan, Reason: "funding mode pinned to flashloan"}
	case ModeWallet:
		return Decision{Mode: ModeWallet, Reason: "funding mode pinned to wallet"}
	}

	sufficientBalance := walletBalance.GreaterThanOrEqual(requiredAmount)
	flashloanTotalCost := flashloanGasCost.Add(flashloanFee)

	if sufficientBalance && walletGasCost.LessThanOrEqual(flashloanTotalCost) {
		return Decision{Mode: ModeWallet, Reason: "wallet balance sufficient and cheaper than flashloan"}
	}
	if sufficientBalance {
		if walletGasCost.LessThan(flashloanTotalCost) {
			return Decision{Mode: ModeWallet, Reason: "wallet balance sufficient, wallet path cheaper"}
		}
		return Decision{Mode: ModeFlashloan, Reason: "wallet balance sufficient, flashloan path cheaper"}
	}
	return Decision{Mode: ModeFlashloan, Reason: "wallet balance insufficient"}
}
