package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// BridgeExecutionStatus is the lifecycle status reported by a bridge
// adapter for an in-flight transfer (§4.4).
type BridgeExecutionStatus string

const (
	BridgeStatusPending         BridgeExecutionStatus = "pending"
	BridgeStatusSourceConfirmed BridgeExecutionStatus = "source_confirmed"
	BridgeStatusInProgress      BridgeExecutionStatus = "bridge_in_progress"
	BridgeStatusCompleted       BridgeExecutionStatus = "completed"
	BridgeStatusFailed          BridgeExecutionStatus = "failed"
	BridgeStatusRequiresAction  BridgeExecutionStatus = "requires_action"
)

// BridgeQuote is a priced route from a bridge adapter (§3/§4.4).
type BridgeQuote struct {
	Protocol      string
	AmountIn      decimal.Decimal
	BridgeFee     decimal.Decimal
	SourceGas     decimal.Decimal
	DestGas       decimal.Decimal
	AmountOut     decimal.Decimal
	EffectiveRate decimal.Decimal
	PriceImpact   decimal.Decimal
	EstimatedTime time.Duration
	ExpiresAt     time.Time
}

// TotalCost is bridge_fee + source_gas + destination_gas.
func (q *BridgeQuote) TotalCost() decimal.Decimal {
	return q.BridgeFee.Add(q.SourceGas).Add(q.DestGas)
}

// NetProfit is amount_out - amount_in - total_cost.
func (q *BridgeQuote) NetProfit() decimal.Decimal {
	return q.AmountOut.Sub(q.AmountIn).Sub(q.TotalCost())
}

// IsValid reports whether the quote has not yet expired.
func (q *BridgeQuote) IsValid(now time.Time) bool {
	return now.Before(q.ExpiresAt)
}

// BridgeExecution is the result of submitting a quote for execution.
type BridgeExecution struct {
	Status     BridgeExecutionStatus
	SourceTx   string
	DestTx     string
	StartedAt  time.Time
}
