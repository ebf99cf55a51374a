package interfaces

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mev-engine/mev-searcher/pkg/types"
)

// ChainErrorKind classifies a chain client facade failure (§4.1/§7).
type ChainErrorKind string

const (
	ChainErrTransport   ChainErrorKind = "transport"
	ChainErrTimeout     ChainErrorKind = "timeout"
	ChainErrDecode      ChainErrorKind = "decode"
	ChainErrRateLimited ChainErrorKind = "rate_limited"
	ChainErrReverted    ChainErrorKind = "reverted"
)

// ChainError wraps a facade failure with its classification.
type ChainError struct {
	Kind ChainErrorKind
	Err  error
}

func (e *ChainError) Error() string { return string(e.Kind) + ": " + e.Err.Error() }
func (e *ChainError) Unwrap() error { return e.Err }

// ChainClient is the uniform read/send/subscribe facade over an
// HTTP+WS RPC pair (§4.1). It multiplexes HTTP for calls and WS for
// subscriptions.
type ChainClient interface {
	GetBlockNumber(ctx context.Context) (uint64, error)
	GetGasPrice(ctx context.Context) (*big.Int, error)
	GetBalance(ctx context.Context, address common.Address) (*big.Int, error)
	Call(ctx context.Context, to common.Address, data []byte) ([]byte, error)
	SendRaw(ctx context.Context, signedTx []byte) (common.Hash, error)
	SubscribePending(ctx context.Context) (<-chan *types.Transaction, error)
	Close() error
}
