// Package relay implements the bundle manager's §4.12 step 3 submit
// path against a Flashbots-style block-builder relay: eth_sendBundle
// over JSON-RPC, signed with the searcher's own key via the
// X-Flashbots-Signature header the relay's auth scheme requires.
// Grounded on chainclient's HTTP RPC dial style and exchange/breaker.go's
// gobreaker wrapping convention.
package relay

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/mev-engine/mev-searcher/pkg/interfaces"
	"github.com/mev-engine/mev-searcher/pkg/types"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
)

// Config configures the relay client.
type Config struct {
	RelayURL       string
	SignerKey      *ecdsa.PrivateKey
	SimulationMode bool // spec.md §6 flashbots.simulation_mode: never broadcasts live bundles
	HTTPClient     *http.Client
}

// Client implements interfaces.BundleRelay against a single Flashbots
// relay endpoint.
type Client struct {
	cfg     Config
	signer  *ecdsa.PrivateKey
	addr    string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
}

// New builds a relay Client. A nil SignerKey is valid only in
// simulation mode, where no request is ever actually signed and sent.
func New(cfg Config) *Client {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 5 * time.Second}
	}
	var addr string
	if cfg.SignerKey != nil {
		addr = crypto.PubkeyToAddress(cfg.SignerKey.PublicKey).Hex()
	}
	return &Client{
		cfg:     cfg,
		signer:  cfg.SignerKey,
		addr:    addr,
		http:    cfg.HTTPClient,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "flashbots-relay",
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		}),
	}
}

type jsonRPCRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int           `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type sendBundleParams struct {
	Txs         []string `json:"txs"`
	BlockNumber string   `json:"blockNumber"`
}

// SubmitBundle sends an atomic bundle of already-signed transactions
// to the relay for the bundle's target block.
func (c *Client) SubmitBundle(ctx context.Context, bundle *types.Bundle) error {
	if c.cfg.SimulationMode {
		log.Debug().Str("bundle_id", bundle.ID).Msg("simulation_mode: skipping live bundle submission")
		return nil
	}

	txs := make([]string, len(bundle.Transactions))
	for i, tx := range bundle.Transactions {
		if len(tx.Raw) == 0 {
			return fmt.Errorf("relay: transaction %d in bundle %s is unsigned", i, bundle.ID)
		}
		txs[i] = "0x" + hex.EncodeToString(tx.Raw)
	}

	req := jsonRPCRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "eth_sendBundle",
		Params: []interface{}{sendBundleParams{
			Txs:         txs,
			BlockNumber: fmt.Sprintf("0x%x", bundle.TargetBlock),
		}},
	}

	_, err := c.doSigned(ctx, req)
	return err
}

// SubmitPublic sends a single signed transaction outside a bundle via
// the relay's eth_sendPrivateTransaction method; used for
// opportunities that do not require atomic ordering.
func (c *Client) SubmitPublic(ctx context.Context, tx *types.Transaction) error {
	if c.cfg.SimulationMode {
		log.Debug().Msg("simulation_mode: skipping public transaction broadcast")
		return nil
	}
	if len(tx.Raw) == 0 {
		return fmt.Errorf("relay: transaction is unsigned")
	}

	req := jsonRPCRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "eth_sendPrivateTransaction",
		Params: []interface{}{map[string]string{
			"tx": "0x" + hex.EncodeToString(tx.Raw),
		}},
	}

	_, err := c.doSigned(ctx, req)
	return err
}

// Available reports whether the relay is currently reachable, probed
// through the circuit breaker's state rather than a live request —
// the breaker already tracks consecutive submit failures.
func (c *Client) Available(ctx context.Context) bool {
	return c.breaker.State() != gobreaker.StateOpen
}

func (c *Client) doSigned(ctx context.Context, req jsonRPCRequest) (json.RawMessage, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("relay: encode request: %w", err)
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.RelayURL, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		httpReq.Header.Set("Content-Type", "application/json")

		if c.signer != nil {
			sig, err := signPayload(body, c.signer)
			if err != nil {
				return nil, err
			}
			httpReq.Header.Set("X-Flashbots-Signature", fmt.Sprintf("%s:%s", c.addr, sig))
		}

		resp, err := c.http.Do(httpReq)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("relay returned status %d: %s", resp.StatusCode, string(respBody))
		}

		var rpcResp struct {
			Result json.RawMessage `json:"result"`
			Error  *struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		if err := json.Unmarshal(respBody, &rpcResp); err != nil {
			return nil, fmt.Errorf("relay: decode response: %w", err)
		}
		if rpcResp.Error != nil {
			return nil, fmt.Errorf("relay error: %s", rpcResp.Error.Message)
		}
		return rpcResp.Result, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(json.RawMessage), nil
}

// signPayload produces the hex-encoded secp256k1 signature over
// keccak256(body) that Flashbots relays verify against the signer
// address in X-Flashbots-Signature.
func signPayload(body []byte, key *ecdsa.PrivateKey) (string, error) {
	hash := crypto.Keccak256Hash(body)
	sig, err := crypto.Sign(hash.Bytes(), key)
	if err != nil {
		return "", fmt.Errorf("relay: sign payload: %w", err)
	}
	return "0x" + hex.EncodeToString(sig), nil
}

var _ interfaces.BundleRelay = (*Client)(nil)
