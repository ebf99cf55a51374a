package kvstore

import (
	"context"

	"github.com/mev-engine/mev-searcher/pkg/types"
)

// SaveCrossChainTrade persists a trade's current state so an
// orchestrator restart can resume from its last known stage (§4.11
// step 5).
func (s *Store) SaveCrossChainTrade(ctx context.Context, trade *types.CrossChainTrade) error {
	return s.putJSON(ctx, crossChainKey(trade.ID), trade)
}

// LoadCrossChainTrade returns the persisted trade state, if any.
func (s *Store) LoadCrossChainTrade(ctx context.Context, tradeID string) (*types.CrossChainTrade, bool, error) {
	var trade types.CrossChainTrade
	ok, err := s.getJSON(ctx, crossChainKey(tradeID), &trade)
	if err != nil || !ok {
		return nil, ok, err
	}
	return &trade, true, nil
}

// DeleteCrossChainTrade removes a trade record once it reaches a
// terminal status (completed or unrecoverably failed).
func (s *Store) DeleteCrossChainTrade(ctx context.Context, tradeID string) error {
	return s.delete(ctx, crossChainKey(tradeID))
}
