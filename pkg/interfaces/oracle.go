package interfaces

import (
	"context"

	"github.com/shopspring/decimal"
)

// OracleAggregator combines an external price feed with a
// pool-derived TWAP and exposes a confidence-weighted price (§4.2).
type OracleAggregator interface {
	Price(ctx context.Context, asset string) (price decimal.Decimal, confidence float64, err error)
}
