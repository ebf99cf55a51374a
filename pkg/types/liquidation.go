package types

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// AssetPosition is a single collateral or debt leg of a user's
// lending-protocol account.
type AssetPosition struct {
	Asset           common.Address
	Symbol          string
	CollateralValue decimal.Decimal
	DebtValue       decimal.Decimal
}

// LiquidatableUser is a candidate position discovered by the
// liquidation strategy (§3/§4.9).
type LiquidatableUser struct {
	Protocol              string
	Address               common.Address
	HealthFactor          decimal.Decimal
	TotalCollateralValue  decimal.Decimal
	TotalDebtValue        decimal.Decimal
	Positions             []AssetPosition
	MaxDebtRepayable       decimal.Decimal
	LiquidationBonusBps   int
	PriorityScore         float64
}

// IsLiquidatable implements the §3 definition: health_factor < 1.0.
func (u *LiquidatableUser) IsLiquidatable() bool {
	return u.HealthFactor.LessThan(decimal.NewFromInt(1))
}

// LiquidationDetails is the Opportunity.Details payload for a
// liquidation opportunity.
type LiquidationDetails struct {
	User            *LiquidatableUser
	RepayAsset      common.Address
	RepayAmount     decimal.Decimal
	CollateralAsset common.Address
	SeizedAmount    decimal.Decimal
	SwapRouter      common.Address
	SwapCalldata    []byte
	FlashloanFeeBps int
}

func (LiquidationDetails) Kind() OpportunityKind { return KindLiquidation }
