// Package chainclient implements the chain client facade of §4.1: a
// single interface over an HTTP JSON-RPC endpoint (reads, sends) and a
// WebSocket endpoint (pending-transaction subscription), multiplexed
// the way the teacher's pkg/mempool connection manager multiplexes
// WS endpoints for the mempool monitor.
package chainclient

import (
	"context"
	"fmt"
	"math/big"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/mev-engine/mev-searcher/pkg/interfaces"
	"github.com/mev-engine/mev-searcher/pkg/mempool"
	"github.com/mev-engine/mev-searcher/pkg/types"
)

// Config configures the facade's two endpoints.
type Config struct {
	HTTPURL        string
	WSURL          string
	DialTimeout    time.Duration
	RequestTimeout time.Duration
}

// Client implements interfaces.ChainClient over go-ethereum's
// ethclient for HTTP reads/sends and the teacher's WebSocket
// connection manager for pending-transaction subscription.
type Client struct {
	cfg      Config
	httpRPC  *rpc.Client
	eth      *ethclient.Client
	wsConn   interfaces.WebSocketConnection
	stream   interfaces.TransactionStream
}

// Dial connects both the HTTP and WS endpoints.
func Dial(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = 30 * time.Second
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = 10 * time.Second
	}

	dialCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()

	rpcClient, err := rpc.DialContext(dialCtx, cfg.HTTPURL)
	if err != nil {
		return nil, &interfaces.ChainError{Kind: interfaces.ChainErrTransport, Err: fmt.Errorf("dial http rpc: %w", err)}
	}

	wsConn := mempool.NewWebSocketConnection()
	if err := wsConn.Connect(dialCtx, cfg.WSURL); err != nil {
		rpcClient.Close()
		return nil, &interfaces.ChainError{Kind: interfaces.ChainErrTransport, Err: fmt.Errorf("dial ws: %w", err)}
	}

	stream := mempool.NewTransactionStream(mempool.TransactionStreamConfig{})

	return &Client{
		cfg:     cfg,
		httpRPC: rpcClient,
		eth:     ethclient.NewClient(rpcClient),
		wsConn:  wsConn,
		stream:  stream,
	}, nil
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.cfg.RequestTimeout)
}

// GetBlockNumber returns the current chain head.
func (c *Client) GetBlockNumber(ctx context.Context) (uint64, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	n, err := c.eth.BlockNumber(ctx)
	if err != nil {
		return 0, classifyRPCErr(err)
	}
	return n, nil
}

// GetGasPrice returns the network's suggested gas price.
func (c *Client) GetGasPrice(ctx context.Context) (*big.Int, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	price, err := c.eth.SuggestGasPrice(ctx)
	if err != nil {
		return nil, classifyRPCErr(err)
	}
	return price, nil
}

// GetBalance returns an address's native balance at the latest block.
func (c *Client) GetBalance(ctx context.Context, address common.Address) (*big.Int, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	bal, err := c.eth.BalanceAt(ctx, address, nil)
	if err != nil {
		return nil, classifyRPCErr(err)
	}
	return bal, nil
}

// Call performs a read-only contract call against the latest state.
func (c *Client) Call(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	out, err := c.eth.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return nil, &interfaces.ChainError{Kind: interfaces.ChainErrReverted, Err: err}
	}
	return out, nil
}

// SendRaw broadcasts a signed, RLP-encoded transaction.
func (c *Client) SendRaw(ctx context.Context, signedTx []byte) (common.Hash, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	var hash common.Hash
	if err := c.httpRPC.CallContext(ctx, &hash, "eth_sendRawTransaction", signedTx); err != nil {
		return common.Hash{}, classifyRPCErr(err)
	}
	return hash, nil
}

// SubscribePending streams decoded pending transactions off the WS
// endpoint, applying the teacher's eth_subscription decode pipeline.
func (c *Client) SubscribePending(ctx context.Context) (<-chan *types.Transaction, error) {
	raw, err := c.wsConn.Subscribe(ctx, "eth_subscribe", "newPendingTransactions", true)
	if err != nil {
		return nil, &interfaces.ChainError{Kind: interfaces.ChainErrTransport, Err: err}
	}

	out := make(chan *types.Transaction, 1024)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-raw:
				if !ok {
					return
				}
				tx, err := c.stream.ProcessTransaction(ctx, msg)
				if err != nil || tx == nil {
					continue
				}
				select {
				case out <- tx:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// Close releases both endpoints.
func (c *Client) Close() error {
	c.httpRPC.Close()
	return c.wsConn.Close()
}

func classifyRPCErr(err error) error {
	if err == context.DeadlineExceeded {
		return &interfaces.ChainError{Kind: interfaces.ChainErrTimeout, Err: err}
	}
	return &interfaces.ChainError{Kind: interfaces.ChainErrTransport, Err: err}
}
