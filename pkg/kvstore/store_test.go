package kvstore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/mev-engine/mev-searcher/pkg/types"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewWithClient(rdb, time.Hour)
}

func TestCrossChainTradeRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	trade := &types.CrossChainTrade{
		ID:            "trade-1",
		OpportunityID: "opp-1",
		Status:        types.CCStatusBridgeInProgress,
		SourceTxHash:  "0xabc",
		CreatedAt:     time.Unix(0, 0).UTC(),
		UpdatedAt:     time.Unix(0, 0).UTC(),
	}
	require.NoError(t, store.SaveCrossChainTrade(ctx, trade))

	got, ok, err := store.LoadCrossChainTrade(ctx, "trade-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, trade.Status, got.Status)
	require.Equal(t, trade.SourceTxHash, got.SourceTxHash)

	require.NoError(t, store.DeleteCrossChainTrade(ctx, "trade-1"))
	_, ok, err = store.LoadCrossChainTrade(ctx, "trade-1")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestLiquidatablePositionRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	user := &types.LiquidatableUser{
		Protocol:     "aave-v3",
		Address:      common.HexToAddress("0x1111111111111111111111111111111111111111"),
		HealthFactor: decimal.NewFromFloat(0.92),
	}
	require.NoError(t, store.SaveLiquidatablePosition(ctx, user))

	got, ok, err := store.LoadLiquidatablePosition(ctx, "aave-v3", user.Address.Hex())
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, got.HealthFactor.Equal(user.HealthFactor))
	require.True(t, got.IsLiquidatable())

	_, ok, err = store.LoadLiquidatablePosition(ctx, "aave-v3", "0xnope")
	require.NoError(t, err)
	require.False(t, ok)
}
