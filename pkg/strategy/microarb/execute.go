package microarb

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mev-engine/mev-searcher/pkg/errs"
	"github.com/mev-engine/mev-searcher/pkg/interfaces"
	"github.com/mev-engine/mev-searcher/pkg/types"
	"golang.org/x/sync/errgroup"
)

const pollInterval = 500 * time.Millisecond

// Execute runs §4.10's trade-task steps 1-6 for one opportunity: it
// registers the trade in the active set, dispatches both legs
// concurrently, polls fill status, and unwinds on partial fill or
// timeout. It returns the ActiveTrade's final state for stats/logging.
func (s *Strategy) Execute(ctx context.Context, opp *types.MicroArbitrageOpportunity) (*types.ActiveTrade, error) {
	if !s.reserveSlot(opp.ID) {
		return nil, errs.New(errs.Rejected, "microarb", fmt.Errorf("active trade set full"))
	}
	defer s.releaseSlot(opp.ID)

	trade := &types.ActiveTrade{
		ID:          uuid.NewString(),
		Opportunity: opp,
		State:       types.TradeStatePending,
		StartedAt:   s.now(),
		Deadline:    s.now().Add(opp.ExecutionWindow),
	}

	buyClient, ok := s.exchanges[opp.BuyVenue]
	if !ok {
		return nil, errs.New(errs.Fatal, "microarb", fmt.Errorf("unknown buy venue %s", opp.BuyVenue))
	}
	sellClient, ok := s.exchanges[opp.SellVenue]
	if !ok {
		return nil, errs.New(errs.Fatal, "microarb", fmt.Errorf("unknown sell venue %s", opp.SellVenue))
	}

	dispatchCtx, cancel := context.WithDeadline(ctx, trade.Deadline)
	defer cancel()

	var buyResult, sellResult *interfaces.OrderExecutionResult
	g, gctx := errgroup.WithContext(dispatchCtx)
	g.Go(func() error {
		res, err := buyClient.PlaceOrder(gctx, interfaces.Order{
			Symbol: opp.Symbol, Side: interfaces.OrderSideBuy, Quantity: opp.MaxTradeAmount, Price: opp.BuyPrice,
		})
		buyResult = res
		return err
	})
	g.Go(func() error {
		res, err := sellClient.PlaceOrder(gctx, interfaces.Order{
			Symbol: opp.Symbol, Side: interfaces.OrderSideSell, Quantity: opp.MaxTradeAmount, Price: opp.SellPrice,
		})
		sellResult = res
		return err
	})

	if err := g.Wait(); err != nil {
		s.stats.recordFailure()
		trade.State = types.TradeStateCancelled
		return trade, errs.New(errs.Transient, "microarb", err).WithOpportunity(opp.ID)
	}
	if buyResult != nil {
		trade.BuyOrderID = buyResult.OrderID
	}
	if sellResult != nil {
		trade.SellOrderID = sellResult.OrderID
	}

	return s.monitor(ctx, trade, buyClient, sellClient)
}

// monitor implements §4.10 step 4-6: poll both legs every 500ms until
// both filled, one is cancelled/rejected/expired, or the deadline
// passes.
func (s *Strategy) monitor(ctx context.Context, trade *types.ActiveTrade, buyClient, sellClient interfaces.ExchangeClient) (*types.ActiveTrade, error) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return s.finalizeTimeout(ctx, trade, buyClient, sellClient)
		case <-ticker.C:
			buyStatus, err := buyClient.GetOrderStatus(ctx, trade.BuyOrderID)
			if err != nil {
				continue // transient status-poll error: try again next tick
			}
			sellStatus, err := sellClient.GetOrderStatus(ctx, trade.SellOrderID)
			if err != nil {
				continue
			}

			if buyStatus == interfaces.OrderStatusFilled && sellStatus == interfaces.OrderStatusFilled {
				trade.State = types.TradeStateBothFilled
				s.stats.recordSuccess()
				return trade, nil
			}
			if terminalNonFill(buyStatus) || terminalNonFill(sellStatus) {
				return s.unwind(ctx, trade, buyClient, sellClient, buyStatus, sellStatus)
			}
			if s.now().After(trade.Deadline) {
				return s.finalizeTimeout(ctx, trade, buyClient, sellClient)
			}
		}
	}
}

func terminalNonFill(status interfaces.OrderStatus) bool {
	return status == interfaces.OrderStatusCancelled || status == interfaces.OrderStatusRejected || status == interfaces.OrderStatusExpired
}

// unwind implements the §4.10 failure semantics: buy-only fill
// triggers a compensating market-sell on the buy venue; sell-only
// fill is marked partial; both unfilled is inert.
func (s *Strategy) unwind(ctx context.Context, trade *types.ActiveTrade, buyClient, sellClient interfaces.ExchangeClient, buyStatus, sellStatus interfaces.OrderStatus) (*types.ActiveTrade, error) {
	buyFilled := buyStatus == interfaces.OrderStatusFilled
	sellFilled := sellStatus == interfaces.OrderStatusFilled

	switch {
	case buyFilled && !sellFilled:
		_, _ = buyClient.PlaceOrder(ctx, interfaces.Order{
			Symbol: trade.Opportunity.Symbol, Side: interfaces.OrderSideSell, Quantity: trade.Opportunity.MaxTradeAmount,
		})
		trade.State = types.TradeStateBuyFilled
	case sellFilled && !buyFilled:
		trade.State = types.TradeStateSellFilled
	default:
		trade.State = types.TradeStateCancelled
	}

	s.stats.recordFailure()
	return trade, errs.New(errs.Rejected, "microarb", fmt.Errorf("leg rejected or cancelled: buy=%s sell=%s", buyStatus, sellStatus)).WithOpportunity(trade.Opportunity.ID)
}

// finalizeTimeout implements §4.10 step 5: cancel any unfilled leg,
// sell back a filled buy leg whose sell leg did not fill, and record a
// timeout.
func (s *Strategy) finalizeTimeout(ctx context.Context, trade *types.ActiveTrade, buyClient, sellClient interfaces.ExchangeClient) (*types.ActiveTrade, error) {
	buyFilled, sellFilled := false, false
	if trade.BuyOrderID != "" {
		if status, err := buyClient.GetOrderStatus(ctx, trade.BuyOrderID); err == nil {
			buyFilled = status == interfaces.OrderStatusFilled
			if !buyFilled {
				_ = buyClient.CancelOrder(ctx, trade.BuyOrderID)
			}
		}
	}
	if trade.SellOrderID != "" {
		if status, err := sellClient.GetOrderStatus(ctx, trade.SellOrderID); err == nil {
			sellFilled = status == interfaces.OrderStatusFilled
			if !sellFilled {
				_ = sellClient.CancelOrder(ctx, trade.SellOrderID)
			}
		}
	}
	if buyFilled && !sellFilled {
		_, _ = buyClient.PlaceOrder(ctx, interfaces.Order{
			Symbol: trade.Opportunity.Symbol, Side: interfaces.OrderSideSell, Quantity: trade.Opportunity.MaxTradeAmount,
		})
	}
	trade.State = types.TradeStateTimedOut
	s.stats.recordTimeout()
	return trade, errs.New(errs.Stale, "microarb", fmt.Errorf("execution window elapsed")).WithOpportunity(trade.Opportunity.ID)
}

// reserveSlot enforces the max_concurrent_trades bound under a lock
// (§4.10 trade-task step 1).
func (s *Strategy) reserveSlot(oppID string) bool {
	s.activeMu.Lock()
	defer s.activeMu.Unlock()
	if s.cfg.MaxConcurrentTrades > 0 && len(s.active) >= s.cfg.MaxConcurrentTrades {
		return false
	}
	s.active[oppID] = &types.ActiveTrade{ID: oppID}
	return true
}

func (s *Strategy) releaseSlot(oppID string) {
	s.activeMu.Lock()
	defer s.activeMu.Unlock()
	delete(s.active, oppID)
}
