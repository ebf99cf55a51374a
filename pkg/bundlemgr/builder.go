package bundlemgr

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mev-engine/mev-searcher/pkg/strategy/sandwich"
	"github.com/mev-engine/mev-searcher/pkg/types"
)

// DispatchBuilder implements TxBuilder by dispatching on the dynamic
// type of Opportunity.Details, since only each strategy package knows
// how to read its own Details variant (the same tagged-variant
// convention types.OpportunityDetails documents). Only sandwich and
// liquidation opportunities carry on-chain transactions — the
// micro-arbitrage and cross-chain strategies settle off-chain and
// never reach the bundle manager.
type DispatchBuilder struct {
	// FlashloanReceiver is the contract the liquidation strategy's
	// repay/seize/swap sequence executes through when
	// funding.mode selects flashloan.
	FlashloanReceiver common.Address

	// Sign, when set, populates each transaction's Raw field with its
	// signed RLP encoding before the bundle reaches the relay. Left
	// nil in the `mock` run mode, where MockRelay never inspects Raw.
	Sign func(tx *types.Transaction) ([]byte, error)
}

// BuildBundle turns an Opportunity into a Bundle plus its dedupe key.
func (b *DispatchBuilder) BuildBundle(opp *types.Opportunity) (*types.Bundle, string, error) {
	var bundle *types.Bundle
	var dedupeKey string
	var err error

	switch d := opp.Details.(type) {
	case sandwich.Details:
		bundle, dedupeKey, err = b.buildSandwich(opp, d)
	case *sandwich.Details:
		bundle, dedupeKey, err = b.buildSandwich(opp, *d)
	case types.LiquidationDetails:
		bundle, dedupeKey, err = b.buildLiquidation(opp, d)
	case *types.LiquidationDetails:
		bundle, dedupeKey, err = b.buildLiquidation(opp, *d)
	default:
		return nil, "", fmt.Errorf("bundlemgr: opportunity kind %s has no bundle builder", opp.Kind)
	}
	if err != nil || b.Sign == nil {
		return bundle, dedupeKey, err
	}

	for _, tx := range bundle.Transactions {
		raw, signErr := b.Sign(tx)
		if signErr != nil {
			return nil, "", fmt.Errorf("bundlemgr: sign transaction for %s: %w", opp.ID, signErr)
		}
		tx.Raw = raw
	}
	return bundle, dedupeKey, nil
}

func (b *DispatchBuilder) buildSandwich(opp *types.Opportunity, d sandwich.Details) (*types.Bundle, string, error) {
	bundle := d.Bundle
	if bundle == nil {
		return nil, "", fmt.Errorf("bundlemgr: sandwich opportunity %s has no constructed bundle", opp.ID)
	}
	bundle.ID = opp.ID
	bundle.ExpectedProfit = opp.ExpectedProfit
	bundle.GasEstimate = opp.GasEstimate
	bundle.StrategyTag = opp.StrategyTag
	bundle.CreatedAt = opp.Timestamp
	bundle.TargetBlock = opp.ExpiryBlock

	dedupeKey := types.DedupeKey("sandwich", opp.ExpiryBlock, d.Pool.Hex())
	return bundle, dedupeKey, nil
}

func (b *DispatchBuilder) buildLiquidation(opp *types.Opportunity, d types.LiquidationDetails) (*types.Bundle, string, error) {
	if d.User == nil {
		return nil, "", fmt.Errorf("bundlemgr: liquidation opportunity %s has no target user", opp.ID)
	}

	tx := &types.Transaction{
		To:   &b.FlashloanReceiver,
		Data: d.SwapCalldata,
	}

	bundle := &types.Bundle{
		ID:             opp.ID,
		Transactions:   []*types.Transaction{tx},
		ExpectedProfit: opp.ExpectedProfit,
		GasEstimate:    opp.GasEstimate,
		StrategyTag:    opp.StrategyTag,
		CreatedAt:      opp.Timestamp,
		TargetBlock:    opp.ExpiryBlock,
	}

	dedupeKey := types.DedupeKey("liquidation", opp.ExpiryBlock, d.User.Protocol+":"+d.User.Address.Hex())
	return bundle, dedupeKey, nil
}

var _ TxBuilder = (*DispatchBuilder)(nil)
