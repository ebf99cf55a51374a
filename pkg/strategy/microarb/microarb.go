// Package microarb implements the intra-chain cross-venue
// micro-arbitrage strategy of §4.10: spread detection across cached
// venue prices on every scheduler tick, and concurrent dual-leg trade
// execution bracketed by a deadline. Adapted from the teacher's
// pkg/strategy/backrun_detector.go — the candidate-then-size shape is
// kept, but candidates now come from real cross-venue price diffing
// instead of a single-pool price-impact estimate.
package microarb

import (
	"context"
	"sync"
	"time"

	"github.com/mev-engine/mev-searcher/pkg/funding"
	"github.com/mev-engine/mev-searcher/pkg/interfaces"
	"github.com/mev-engine/mev-searcher/pkg/types"
	"github.com/shopspring/decimal"
)

// MaxTickAge is the oldest a cached price may be and still count as
// fresh for a candidate pair (§4.10 step 1).
const MaxTickAge = time.Second

// Config carries §6's strategies.micro_arbitrage settings.
type Config struct {
	Enabled             bool
	MinProfitPercentage decimal.Decimal
	MinProfitUSD        decimal.Decimal
	ExecutionTimeout    time.Duration
	MaxConcurrentTrades int
	LatencyThreshold    time.Duration
	RiskLimitPerTrade   decimal.Decimal
	DailyVolumeLimit    decimal.Decimal
	FundingMode         funding.Mode
	Exchanges           []string
	TradingPairs        []string
	// MinOrderSize / MaxOrderSize bound the clamp in §4.10's
	// max_amount formula.
	MinOrderSize decimal.Decimal
	MaxOrderSize decimal.Decimal
	VenueFees    map[string]decimal.Decimal
}

// Stats accumulates the per-strategy counters §4.10's S1/S2 scenarios
// reference.
type Stats struct {
	mu              sync.Mutex
	SuccessfulTrades int64
	TimedOut         int64
	Failed           int64
}

func (s *Stats) recordSuccess() { s.mu.Lock(); s.SuccessfulTrades++; s.mu.Unlock() }
func (s *Stats) recordTimeout() { s.mu.Lock(); s.TimedOut++; s.mu.Unlock() }
func (s *Stats) recordFailure() { s.mu.Lock(); s.Failed++; s.mu.Unlock() }

// Strategy implements interfaces.ScannedStrategy and
// interfaces.PriceDataSink — it owns its own price/order-book cache,
// fed by the price feed manager's push interface (§9).
type Strategy struct {
	cfg       Config
	exchanges map[string]interfaces.ExchangeClient

	mu     sync.RWMutex
	prices map[string]*types.PriceData // key: exchange+"|"+symbol

	activeMu sync.Mutex
	active   map[string]*types.ActiveTrade

	stats Stats
	now   func() time.Time
}

// New builds a micro-arbitrage Strategy.
func New(cfg Config, exchanges map[string]interfaces.ExchangeClient) *Strategy {
	return &Strategy{
		cfg:       cfg,
		exchanges: exchanges,
		prices:    make(map[string]*types.PriceData),
		active:    make(map[string]*types.ActiveTrade),
		now:       time.Now,
	}
}

func (s *Strategy) Name() string { return "micro_arbitrage" }
func (s *Strategy) Tag() string  { return "micro_arbitrage" }

func priceKey(exchange, symbol string) string { return exchange + "|" + symbol }

// UpdatePriceData implements interfaces.PriceDataSink.
func (s *Strategy) UpdatePriceData(data *types.PriceData) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prices[priceKey(data.Exchange, data.Symbol)] = data
}

// UpdateOrderbookData implements interfaces.PriceDataSink; order-book
// depth is consumed by the confidence heuristic only, so it is not
// separately cached here.
func (s *Strategy) UpdateOrderbookData(snapshot *types.OrderBookSnapshot) {}

// Scan runs §4.10's per-tick candidate construction across every
// configured symbol and ordered venue pair.
func (s *Strategy) Scan(ctx context.Context) ([]*types.Opportunity, error) {
	if !s.cfg.Enabled {
		return nil, nil
	}

	now := s.now()
	var opps []*types.Opportunity

	for _, symbol := range s.cfg.TradingPairs {
		fresh := s.freshPrices(symbol, now)
		if len(fresh) < 2 {
			continue
		}
		for buyVenue, buyTick := range fresh {
			for sellVenue, sellTick := range fresh {
				if buyVenue == sellVenue {
					continue
				}
				opp := s.candidate(symbol, buyVenue, sellVenue, buyTick, sellTick, now)
				if opp != nil {
					opps = append(opps, opp)
				}
			}
		}
	}

	sortByNetProfitDesc(opps)
	if len(opps) > s.cfg.MaxConcurrentTrades && s.cfg.MaxConcurrentTrades > 0 {
		opps = opps[:s.cfg.MaxConcurrentTrades]
	}
	return opps, nil
}

func (s *Strategy) freshPrices(symbol string, now time.Time) map[string]*types.PriceData {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]*types.PriceData)
	for _, exch := range s.cfg.Exchanges {
		tick, ok := s.prices[priceKey(exch, symbol)]
		if !ok {
			continue
		}
		if now.Sub(tick.Timestamp) > MaxTickAge {
			continue
		}
		out[exch] = tick
	}
	return out
}

func (s *Strategy) venueFee(exch string) decimal.Decimal {
	if s.cfg.VenueFees == nil {
		return decimal.Zero
	}
	return s.cfg.VenueFees[exch]
}

// candidate implements §4.10's opportunity-construction formulas for
// one ordered (buy_venue, sell_venue) pair.
func (s *Strategy) candidate(symbol, buyVenue, sellVenue string, buy, sell *types.PriceData, now time.Time) *types.Opportunity {
	if !buy.Ask.IsPositive() {
		return nil
	}
	rawProfitPct := sell.Bid.Sub(buy.Ask).Div(buy.Ask)
	if !rawProfitPct.IsPositive() {
		return nil
	}

	netProfitPct := rawProfitPct.Sub(s.venueFee(buyVenue)).Sub(s.venueFee(sellVenue))
	if netProfitPct.LessThan(s.cfg.MinProfitPercentage) {
		return nil
	}

	maxAmount := clamp(
		s.cfg.RiskLimitPerTrade.Div(buy.Ask),
		s.cfg.MinOrderSize,
		s.cfg.MaxOrderSize,
	)
	if !maxAmount.IsPositive() {
		return nil
	}

	profitUSD := maxAmount.Mul(netProfitPct).Mul(buy.Ask)
	if profitUSD.LessThan(s.cfg.MinProfitUSD) {
		return nil
	}

	confidence := s.confidence(buyVenue, sellVenue, buy, sell, now)

	opp := &types.MicroArbitrageOpportunity{
		Symbol:           symbol,
		BuyVenue:         buyVenue,
		SellVenue:        sellVenue,
		BuyPrice:         buy.Ask,
		SellPrice:        sell.Bid,
		MaxTradeAmount:   maxAmount,
		ProfitPercentage: netProfitPct,
		ExecutionWindow:  s.cfg.ExecutionTimeout,
		Confidence:       confidence,
		DiscoveredAt:     now,
	}
	if err := opp.Validate(s.cfg.MinProfitPercentage); err != nil {
		return nil
	}

	return &types.Opportunity{
		Kind:           types.KindMicroArbitrage,
		StrategyTag:    s.Tag(),
		ExpectedProfit: profitUSD,
		Confidence:     confidence,
		GasEstimate:    0, // off-chain legs; no gas
		Priority:       priorityFromProfitPct(netProfitPct),
		Timestamp:      now,
		Deadline:       now.Add(s.cfg.ExecutionTimeout),
		Details:        &Details{Opportunity: opp},
	}
}

func (s *Strategy) confidence(buyVenue, sellVenue string, buy, sell *types.PriceData, now time.Time) float64 {
	// f(venue_quality_scores, tick_age, order_book_depth): without a
	// wired quality-score reader the age term alone still produces a
	// meaningful signal in [0,1].
	ageBuy := now.Sub(buy.Timestamp)
	ageSell := now.Sub(sell.Timestamp)
	oldest := ageBuy
	if ageSell > oldest {
		oldest = ageSell
	}
	freshness := 1.0 - float64(oldest)/float64(MaxTickAge)
	if freshness < 0 {
		return 0
	}
	if freshness > 1 {
		return 1
	}
	return freshness
}

func clamp(v, min, max decimal.Decimal) decimal.Decimal {
	if v.LessThan(min) {
		return min
	}
	if v.GreaterThan(max) {
		return max
	}
	return v
}

func sortByNetProfitDesc(opps []*types.Opportunity) {
	for i := 1; i < len(opps); i++ {
		for j := i; j > 0 && opps[j].ExpectedProfit.GreaterThan(opps[j-1].ExpectedProfit); j-- {
			opps[j], opps[j-1] = opps[j-1], opps[j]
		}
	}
}

func priorityFromProfitPct(pct decimal.Decimal) types.Priority {
	f, _ := pct.Float64()
	switch {
	case f >= 0.02:
		return types.PriorityUrgent
	case f >= 0.01:
		return types.PriorityHigh
	case f >= 0.003:
		return types.PriorityMedium
	default:
		return types.PriorityLow
	}
}

// Details is the Opportunity.Details payload for a micro-arbitrage
// candidate.
type Details struct {
	Opportunity *types.MicroArbitrageOpportunity
}

func (Details) Kind() types.OpportunityKind { return types.KindMicroArbitrage }

var _ interfaces.PriceDataSink = (*Strategy)(nil)
