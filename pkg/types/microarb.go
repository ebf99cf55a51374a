package types

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// MicroArbTradeState is the lifecycle of a single micro-arbitrage
// execution (§3).
type MicroArbTradeState string

const (
	TradeStatePending    MicroArbTradeState = "pending"
	TradeStateBuyFilled  MicroArbTradeState = "buy_filled"
	TradeStateSellFilled MicroArbTradeState = "sell_filled"
	TradeStateBothFilled MicroArbTradeState = "both_filled"
	TradeStateCancelled  MicroArbTradeState = "cancelled"
	TradeStateTimedOut   MicroArbTradeState = "timed_out"
)

// MicroArbitrageOpportunity is a detected cross-venue price
// dislocation, per §3/§4.10.
type MicroArbitrageOpportunity struct {
	ID               string
	Symbol           string
	BuyVenue         string
	SellVenue        string
	BuyPrice         decimal.Decimal // ask on the buy side
	SellPrice        decimal.Decimal // bid on the sell side
	MaxTradeAmount   decimal.Decimal
	ProfitPercentage decimal.Decimal // net of both venues' fees
	ExecutionWindow  time.Duration
	Confidence       float64
	DiscoveredAt     time.Time
}

func (MicroArbitrageOpportunity) Kind() OpportunityKind { return KindMicroArbitrage }

// Validate enforces §3/§8 invariant 3.
func (m *MicroArbitrageOpportunity) Validate(minProfitPercentage decimal.Decimal) error {
	if !m.SellPrice.GreaterThan(m.BuyPrice) {
		return errors.New("microarb: sell price must exceed buy price")
	}
	if m.ProfitPercentage.LessThan(minProfitPercentage) {
		return errors.New("microarb: net profit below minimum")
	}
	if m.ExecutionWindow <= 0 {
		return errors.New("microarb: execution window must be positive")
	}
	return nil
}

// ActiveTrade tracks a trade task in flight.
type ActiveTrade struct {
	ID           string
	Opportunity  *MicroArbitrageOpportunity
	State        MicroArbTradeState
	BuyOrderID   string
	SellOrderID  string
	StartedAt    time.Time
	Deadline     time.Time
	RealizedPnL  decimal.Decimal
}
