package types

import (
	"errors"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// TokenInfo is a registry entry mapping a symbol to its per-chain
// address and decimals (§3, §4.11).
type TokenInfo struct {
	Symbol   string
	Chains   map[string]common.Address
	Decimals map[string]uint8
}

// HasChain reports whether the token has a known address on chain.
func (t *TokenInfo) HasChain(chain string) bool {
	_, ok := t.Chains[chain]
	return ok
}

// CrossChainStage identifies which leg of a cross-chain trade a
// failure occurred in.
type CrossChainStage string

const (
	StageSourceChainBuy CrossChainStage = "source_chain_buy"
	StageBridgeTransfer CrossChainStage = "bridge_transfer"
	StageDestChainSell  CrossChainStage = "dest_chain_sell"
)

// CrossChainTradeStatus is the lifecycle of a cross-chain arbitrage
// execution (§3).
type CrossChainTradeStatus string

const (
	CCStatusInitiated         CrossChainTradeStatus = "initiated"
	CCStatusSourceTxConfirmed CrossChainTradeStatus = "source_tx_confirmed"
	CCStatusBridgeInProgress  CrossChainTradeStatus = "bridge_in_progress"
	CCStatusBridgeCompleted   CrossChainTradeStatus = "bridge_completed"
	CCStatusDestTxConfirmed   CrossChainTradeStatus = "dest_tx_confirmed"
	CCStatusCompleted         CrossChainTradeStatus = "completed"
	CCStatusFailed            CrossChainTradeStatus = "failed"
)

// FailureInfo records where a cross-chain trade failed and whether an
// operator can recover it.
type FailureInfo struct {
	Stage             CrossChainStage
	RecoveryPossible  bool
	Reason            string
}

// CrossChainTrade tracks one execution of a CrossChainArbitrageOpportunity
// through its state machine, persisted for crash recovery (§4.11 step 5).
type CrossChainTrade struct {
	ID            string
	OpportunityID string
	Status        CrossChainTradeStatus
	Failure       *FailureInfo
	SourceTxHash  string
	DestTxHash    string
	BridgeTxRef   string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// CrossChainArbitrageOpportunity is a detected N-chain price
// dislocation routable over a bridge (§3/§4.11).
type CrossChainArbitrageOpportunity struct {
	ID                  string
	Token               TokenInfo
	SourceChain         string
	DestChain           string
	Bridge              string
	SourcePrice         decimal.Decimal
	DestPrice           decimal.Decimal
	Amount              decimal.Decimal
	ExpectedNetProfit   decimal.Decimal
	EstimatedBridgeTime time.Duration
	Confidence          float64
	DiscoveredAt        time.Time
	ExpiresAt           time.Time
}

func (CrossChainArbitrageOpportunity) Kind() OpportunityKind { return KindCrossChain }

// MaxEstimatedBridgeTime bounds the estimated completion time for a
// profitable opportunity per §8 invariant 5.
const MaxEstimatedBridgeTime = 15 * time.Minute

// Validate enforces §3/§8 invariant 5.
func (c *CrossChainArbitrageOpportunity) Validate() error {
	if c.SourceChain == c.DestChain {
		return errors.New("crosschain: source and destination chain must differ")
	}
	if !c.Token.HasChain(c.SourceChain) || !c.Token.HasChain(c.DestChain) {
		return errors.New("crosschain: token missing address on source or destination chain")
	}
	if !c.ExpectedNetProfit.IsPositive() {
		return errors.New("crosschain: net profit must be positive")
	}
	if c.EstimatedBridgeTime > MaxEstimatedBridgeTime {
		return errors.New("crosschain: estimated bridge time exceeds cap")
	}
	return nil
}

// IsExpired reports whether the opportunity's quote has lapsed.
func (c *CrossChainArbitrageOpportunity) IsExpired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && now.After(c.ExpiresAt)
}
