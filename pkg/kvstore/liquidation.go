package kvstore

import (
	"context"

	"github.com/mev-engine/mev-searcher/pkg/types"
)

// SaveLiquidatablePosition caches a discovered position so a
// subsequent scan tier (§4.9 step 1: subgraph -> cache -> event scan)
// can short-circuit without re-querying a subgraph.
func (s *Store) SaveLiquidatablePosition(ctx context.Context, user *types.LiquidatableUser) error {
	return s.putJSON(ctx, liquidationKey(user.Protocol, user.Address.Hex()), user)
}

// LoadLiquidatablePosition returns a cached position, if any.
func (s *Store) LoadLiquidatablePosition(ctx context.Context, protocol, address string) (*types.LiquidatableUser, bool, error) {
	var user types.LiquidatableUser
	ok, err := s.getJSON(ctx, liquidationKey(protocol, address), &user)
	if err != nil || !ok {
		return nil, ok, err
	}
	return &user, true, nil
}

// DeleteLiquidatablePosition removes a position once it's liquidated
// or found healthy again.
func (s *Store) DeleteLiquidatablePosition(ctx context.Context, protocol, address string) error {
	return s.delete(ctx, liquidationKey(protocol, address))
}
