package relay

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"

	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/mev-engine/mev-searcher/pkg/types"
)

// TxSigner signs the searcher's own constructed transactions
// (sandwich legs, liquidation calls) for submission, using go-ethereum's
// London signer.
type TxSigner struct {
	key     *ecdsa.PrivateKey
	chainID *big.Int
	nonceOf func() uint64
}

// NewTxSigner builds a TxSigner. nonceOf supplies the searcher
// wallet's next nonce; the bundle manager calls Sign once per
// transaction in bundle order, so nonceOf must advance between calls.
func NewTxSigner(key *ecdsa.PrivateKey, chainID *big.Int, nonceOf func() uint64) *TxSigner {
	return &TxSigner{key: key, chainID: chainID, nonceOf: nonceOf}
}

// Sign encodes tx as a dynamic-fee transaction and returns its signed
// RLP bytes, matching bundlemgr.DispatchBuilder's Sign hook shape.
func (s *TxSigner) Sign(tx *types.Transaction) ([]byte, error) {
	if s.key == nil {
		return nil, fmt.Errorf("relay: no signer key configured")
	}

	nonce := tx.Nonce
	if s.nonceOf != nil {
		nonce = s.nonceOf()
	}

	gasTip := tx.GasPrice
	if gasTip == nil {
		gasTip = big.NewInt(0)
	}

	ethTx := ethtypes.NewTx(&ethtypes.DynamicFeeTx{
		ChainID:   s.chainID,
		Nonce:     nonce,
		GasTipCap: gasTip,
		GasFeeCap: gasTip,
		Gas:       tx.GasLimit,
		To:        tx.To,
		Value:     tx.Value,
		Data:      tx.Data,
	})

	signer := ethtypes.NewLondonSigner(s.chainID)
	signed, err := ethtypes.SignTx(ethTx, signer, s.key)
	if err != nil {
		return nil, fmt.Errorf("relay: sign transaction: %w", err)
	}

	return signed.MarshalBinary()
}
