package interfaces

import (
	"context"

	"github.com/mev-engine/mev-searcher/pkg/types"
	"github.com/shopspring/decimal"
)

// BridgeClient is the uniform quote/execute/status capability set
// every bridge protocol adapter exposes (§4.4).
type BridgeClient interface {
	Name() string
	SupportsRoute(ctx context.Context, fromChain, toChain, token string) (bool, error)
	GetQuote(ctx context.Context, fromChain, toChain, token string, amount decimal.Decimal, maxSlippage decimal.Decimal) (*types.BridgeQuote, error)
	ExecuteBridge(ctx context.Context, quote *types.BridgeQuote) (*types.BridgeExecution, error)
	GetExecutionStatus(ctx context.Context, sourceTx string) (types.BridgeExecutionStatus, error)
	Reliability() float64 // EMA success rate from the metrics cache
}
