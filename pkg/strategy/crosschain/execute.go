package crosschain

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mev-engine/mev-searcher/pkg/errs"
	"github.com/mev-engine/mev-searcher/pkg/interfaces"
	"github.com/mev-engine/mev-searcher/pkg/types"
	"github.com/shopspring/decimal"
)

// Execute implements §4.11's execution steps 1-5: re-quote near
// expiry, re-check profitability and time cap, execute via the
// primary bridge with a generous timeout, fall back to a different
// bridge on failure, and persist every state transition so a restart
// can resume (§4.11 step 5 / §6 persisted state).
func (s *Strategy) Execute(ctx context.Context, opp *types.CrossChainArbitrageOpportunity, quote *types.BridgeQuote, primary interfaces.BridgeClient) (*types.CrossChainTrade, error) {
	trade := &types.CrossChainTrade{
		ID:            uuid.NewString(),
		OpportunityID: opp.Bridge + ":" + opp.Token.Symbol,
		Status:        types.CCStatusInitiated,
		CreatedAt:     s.now(),
		UpdatedAt:     s.now(),
	}
	s.persist(ctx, trade)

	quote, err := s.ensureFreshQuote(ctx, opp, quote, primary)
	if err != nil {
		trade.Status = types.CCStatusFailed
		trade.Failure = &types.FailureInfo{Stage: types.StageSourceChainBuy, RecoveryPossible: false, Reason: err.Error()}
		s.persist(ctx, trade)
		return trade, errs.New(errs.Stale, "crosschain", err)
	}

	if !quote.NetProfit().IsPositive() || quote.EstimatedTime > s.cfg.MaxExecutionTime {
		trade.Status = types.CCStatusFailed
		trade.Failure = &types.FailureInfo{Stage: types.StageSourceChainBuy, RecoveryPossible: false, Reason: "profitability or time cap failed on re-check"}
		s.persist(ctx, trade)
		return trade, errs.New(errs.Stale, "crosschain", fmt.Errorf("re-check failed"))
	}

	execCtx, cancel := context.WithTimeout(ctx, quote.EstimatedTime+60*time.Second)
	defer cancel()

	exec, err := primary.ExecuteBridge(execCtx, quote)
	if err == nil {
		trade.Status = types.CCStatusSourceTxConfirmed
		trade.SourceTxHash = exec.SourceTx
		trade.BridgeTxRef = exec.SourceTx
		s.persist(ctx, trade)
		return s.trackToCompletion(ctx, trade, primary)
	}

	// Primary execution failed: re-quote across bridges and pick a
	// different fallback (§4.11 step 4).
	fallbackQuotes := s.fanOutQuotes(ctx, opp.SourceChain, opp.DestChain, opp.Token.Symbol, opp.Amount)
	var fallback *types.BridgeQuote
	for _, q := range fallbackQuotes {
		if q.Protocol != quote.Protocol {
			fallback = q
			break
		}
	}
	if fallback == nil {
		trade.Status = types.CCStatusFailed
		trade.Failure = &types.FailureInfo{Stage: types.StageBridgeTransfer, RecoveryPossible: true, Reason: "primary failed and no fallback bridge available"}
		s.persist(ctx, trade)
		return trade, errs.New(errs.Rejected, "crosschain", fmt.Errorf("primary bridge failed, no fallback"))
	}

	var fallbackClient interfaces.BridgeClient
	for _, b := range s.bridges {
		if b.Name() == fallback.Protocol {
			fallbackClient = b
			break
		}
	}
	if fallbackClient == nil {
		trade.Status = types.CCStatusFailed
		trade.Failure = &types.FailureInfo{Stage: types.StageBridgeTransfer, RecoveryPossible: true, Reason: "fallback bridge client not found"}
		s.persist(ctx, trade)
		return trade, errs.New(errs.Rejected, "crosschain", fmt.Errorf("fallback bridge client not found"))
	}

	exec, err = fallbackClient.ExecuteBridge(execCtx, fallback)
	if err != nil {
		trade.Status = types.CCStatusFailed
		trade.Failure = &types.FailureInfo{Stage: types.StageBridgeTransfer, RecoveryPossible: true, Reason: err.Error()}
		s.persist(ctx, trade)
		return trade, errs.New(errs.Rejected, "crosschain", err)
	}

	trade.Status = types.CCStatusSourceTxConfirmed
	trade.SourceTxHash = exec.SourceTx
	trade.BridgeTxRef = exec.SourceTx
	s.persist(ctx, trade)
	return s.trackToCompletion(ctx, trade, fallbackClient)
}

// ensureFreshQuote implements §4.11 step 1: re-quote if the quote
// expires in under 30s; if the re-quote is still invalid, abort.
func (s *Strategy) ensureFreshQuote(ctx context.Context, opp *types.CrossChainArbitrageOpportunity, quote *types.BridgeQuote, primary interfaces.BridgeClient) (*types.BridgeQuote, error) {
	if time.Until(quote.ExpiresAt) > s.cfg.ReQuoteBeforeExpiry {
		return quote, nil
	}

	requoted, err := primary.GetQuote(ctx, opp.SourceChain, opp.DestChain, opp.Token.Symbol, opp.Amount, decimal.NewFromFloat(0.01))
	if err != nil || !requoted.IsValid(s.now()) {
		return nil, fmt.Errorf("crosschain: re-quote still invalid")
	}
	return requoted, nil
}

// trackToCompletion polls bridge execution status through the
// remaining §4.11 trade-state machine, persisting each transition.
func (s *Strategy) trackToCompletion(ctx context.Context, trade *types.CrossChainTrade, bridge interfaces.BridgeClient) (*types.CrossChainTrade, error) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			trade.Status = types.CCStatusFailed
			trade.Failure = &types.FailureInfo{Stage: types.StageBridgeTransfer, RecoveryPossible: true, Reason: "execution context cancelled"}
			s.persist(ctx, trade)
			return trade, errs.New(errs.Stale, "crosschain", ctx.Err())
		case <-ticker.C:
			status, err := bridge.GetExecutionStatus(ctx, trade.SourceTxHash)
			if err != nil {
				continue
			}
			switch status {
			case types.BridgeStatusSourceConfirmed:
				trade.Status = types.CCStatusSourceTxConfirmed
			case types.BridgeStatusInProgress:
				trade.Status = types.CCStatusBridgeInProgress
			case types.BridgeStatusCompleted:
				trade.Status = types.CCStatusCompleted
				s.persist(ctx, trade)
				_ = s.store.DeleteCrossChainTrade(ctx, trade.ID)
				return trade, nil
			case types.BridgeStatusFailed:
				trade.Status = types.CCStatusFailed
				trade.Failure = &types.FailureInfo{Stage: types.StageBridgeTransfer, RecoveryPossible: false, Reason: "bridge reported failure"}
				s.persist(ctx, trade)
				return trade, errs.New(errs.Rejected, "crosschain", fmt.Errorf("bridge reported failure"))
			case types.BridgeStatusRequiresAction:
				// Treated as external-broadcast-required per the
				// design-note resolution: surface via the failure
				// info and keep polling, since the bridge may still
				// reach a terminal state once the operator acts.
				trade.Failure = &types.FailureInfo{Stage: types.StageBridgeTransfer, RecoveryPossible: true, Reason: "bridge requires external action"}
				s.persist(ctx, trade)
			}
			trade.UpdatedAt = s.now()
			s.persist(ctx, trade)
		}
	}
}

func (s *Strategy) persist(ctx context.Context, trade *types.CrossChainTrade) {
	if s.store == nil {
		return
	}
	_ = s.store.SaveCrossChainTrade(ctx, trade)
}
