package types

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// OpportunityKind tags which strategy family produced an Opportunity.
type OpportunityKind string

const (
	KindSandwich        OpportunityKind = "sandwich"
	KindLiquidation     OpportunityKind = "liquidation"
	KindMicroArbitrage  OpportunityKind = "micro_arbitrage"
	KindCrossChain      OpportunityKind = "cross_chain"
)

// Priority is the urgency class a strategy assigns to an Opportunity.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// OpportunityDetails is the tagged variant payload carried on an
// Opportunity. The bundle manager dispatches on Opportunity.Kind, not
// on the dynamic type of Details, so implementations need not be
// exhaustively enumerable here.
type OpportunityDetails interface {
	Kind() OpportunityKind
}

// Opportunity is the shared envelope every strategy emits. It is
// exclusively owned by the emitting strategy until handed to the
// bundle manager.
type Opportunity struct {
	ID             string
	Kind           OpportunityKind
	StrategyTag    string
	ExpectedProfit decimal.Decimal
	Confidence     float64
	GasEstimate    uint64
	Priority       Priority
	Timestamp      time.Time
	ExpiryBlock    uint64
	Deadline       time.Time // wall-clock deadline; zero value means none
	Details        OpportunityDetails
}

// ProfitPerGas is expected_profit / gas_estimate, used by the bundle
// manager's priority ordering.
func (o *Opportunity) ProfitPerGas() decimal.Decimal {
	if o.GasEstimate == 0 {
		return decimal.Zero
	}
	return o.ExpectedProfit.Div(decimal.NewFromInt(int64(o.GasEstimate)))
}

// IsExpired reports whether the opportunity can no longer be acted on.
// expiry_block = 0 means the opportunity is time-bound only.
func (o *Opportunity) IsExpired(currentBlock uint64, now time.Time) bool {
	if o.ExpiryBlock > 0 && currentBlock >= o.ExpiryBlock {
		return true
	}
	if !o.Deadline.IsZero() && now.After(o.Deadline) {
		return true
	}
	return false
}

// Bundle is an ordered sequence of transactions the relay must honor
// in the given order.
type Bundle struct {
	ID             string
	Transactions   []*Transaction
	TargetBlock    uint64
	ExpectedProfit decimal.Decimal
	GasEstimate    uint64
	StrategyTag    string
	CreatedAt      time.Time
	ExpiresAt      time.Time
}

// IsExpired reports whether the bundle's submission window has passed.
func (b *Bundle) IsExpired(now time.Time) bool {
	return !b.ExpiresAt.IsZero() && now.After(b.ExpiresAt)
}

// DedupeKey identifies Opportunities that the bundle manager treats as
// the same logical opportunity across consecutive scans: at most one
// in-flight bundle may exist per (strategy, target block, key).
func DedupeKey(strategyTag string, targetBlock uint64, key string) string {
	return strategyTag + ":" + strconv.FormatUint(targetBlock, 10) + ":" + key
}
