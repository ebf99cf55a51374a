// Package liquidation implements the lending-position liquidation
// strategy of §4.9: tiered candidate discovery, health-factor
// evaluation against a live oracle, DEX-aggregator quoting with a
// circuit-breaker-guarded backup, and flashloan bundle construction.
// New package — no teacher equivalent exists — grounded on
// cryptofunk's backup-aggregator try/fallback shape in its exchange
// client and wrapped with the same gobreaker policy as pkg/exchange.
package liquidation

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mev-engine/mev-searcher/pkg/errs"
	"github.com/mev-engine/mev-searcher/pkg/funding"
	"github.com/mev-engine/mev-searcher/pkg/interfaces"
	"github.com/mev-engine/mev-searcher/pkg/kvstore"
	"github.com/mev-engine/mev-searcher/pkg/types"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
)

// SubgraphClient is the tier-1 discovery source: a GraphQL query
// filtering accounts with health_factor < 1.0.
type SubgraphClient interface {
	QueryAtRisk(ctx context.Context, protocol string) ([]common.Address, error)
}

// EventScanner is the tier-3 fallback: derive candidates from
// borrow/collateral events when subgraph and cache are unavailable.
type EventScanner interface {
	ScanAtRisk(ctx context.Context, protocol string) ([]common.Address, error)
}

// ProtocolPool fetches fresh account data for one candidate from the
// lending protocol's pool contract.
type ProtocolPool interface {
	AccountData(ctx context.Context, protocol string, user common.Address) (*types.LiquidatableUser, error)
}

// DEXAggregator quotes a swap of seized collateral into the debt
// asset.
type DEXAggregator interface {
	Name() string
	Quote(ctx context.Context, sellAsset, buyAsset common.Address, amount decimal.Decimal) (decimal.Decimal, common.Address, []byte, error)
}

// Config carries §6's strategies.liquidation settings.
type Config struct {
	Enabled                  bool
	ScanInterval             time.Duration
	MinProfitETH             decimal.Decimal
	MinLiquidationAmount     decimal.Decimal
	MaxConcurrentLiquidations int
	HealthFactorThreshold    decimal.Decimal // default 1.0
	FundingMode              funding.Mode
	FlashloanFeeBps          int // default 9
	FlashloanReceiverAddress common.Address
	Protocols                []string
}

// DefaultConfig fills §6's documented defaults.
func DefaultConfig() Config {
	return Config{
		HealthFactorThreshold: decimal.NewFromInt(1),
		FlashloanFeeBps:       9,
		FundingMode:           funding.ModeAuto,
	}
}

// Strategy implements interfaces.ScannedStrategy.
type Strategy struct {
	cfg       Config
	subgraph  SubgraphClient
	cache     *kvstore.Store
	scanner   EventScanner
	pool      ProtocolPool
	oracle    interfaces.OracleAggregator
	primaryDEX DEXAggregator
	backupDEX  DEXAggregator
	breaker    *gobreaker.CircuitBreaker
	now        func() time.Time
}

// New builds a liquidation Strategy.
func New(cfg Config, subgraph SubgraphClient, cache *kvstore.Store, scanner EventScanner,
	pool ProtocolPool, oracle interfaces.OracleAggregator, primaryDEX, backupDEX DEXAggregator, breaker *gobreaker.CircuitBreaker,
) *Strategy {
	return &Strategy{
		cfg: cfg, subgraph: subgraph, cache: cache, scanner: scanner,
		pool: pool, oracle: oracle, primaryDEX: primaryDEX, backupDEX: backupDEX,
		breaker: breaker, now: time.Now,
	}
}

func (s *Strategy) Name() string { return "liquidation" }
func (s *Strategy) Tag() string  { return "liquidation" }

// Scan runs one discovery-and-evaluation pass across configured
// protocols, returning an Opportunity per profitable candidate found.
func (s *Strategy) Scan(ctx context.Context) ([]*types.Opportunity, error) {
	if !s.cfg.Enabled {
		return nil, nil
	}

	var opps []*types.Opportunity
	for _, protocol := range s.cfg.Protocols {
		candidates, err := s.discover(ctx, protocol)
		if err != nil {
			return nil, errs.New(errs.Transient, "liquidation: discovery", err)
		}
		for _, addr := range candidates {
			opp, err := s.evaluate(ctx, protocol, addr)
			if err != nil {
				continue // one bad candidate doesn't abort the scan
			}
			if opp != nil {
				opps = append(opps, opp)
			}
		}
	}
	return opps, nil
}

// discover implements the §4.9 tiered fallback: subgraph, then cache,
// then on-chain event scan.
func (s *Strategy) discover(ctx context.Context, protocol string) ([]common.Address, error) {
	if addrs, err := s.subgraph.QueryAtRisk(ctx, protocol); err == nil && len(addrs) > 0 {
		return addrs, nil
	}

	if s.cache != nil {
		// Cache tier surfaces the last-known liquidatable set; the
		// caller is responsible for seeding it via SaveLiquidatablePosition.
		if addrs := s.cachedCandidates(ctx, protocol); len(addrs) > 0 {
			return addrs, nil
		}
	}

	return s.scanner.ScanAtRisk(ctx, protocol)
}

func (s *Strategy) cachedCandidates(ctx context.Context, protocol string) []common.Address {
	// The cache tier holds addresses already known to have been below
	// threshold on a prior scan; a concrete key-enumeration mechanism
	// (e.g. a Redis set) is an operator-supplied detail, so this is a
	// narrow extension point rather than a hard dependency.
	return nil
}

// evaluate fetches fresh account data, checks health factor, prices
// the liquidation, and quotes the swap leg with a breaker-guarded
// primary/backup fallback.
func (s *Strategy) evaluate(ctx context.Context, protocol string, user common.Address) (*types.Opportunity, error) {
	account, err := s.pool.AccountData(ctx, protocol, user)
	if err != nil {
		return nil, errs.New(errs.Transient, "liquidation: account data", err)
	}
	if !account.IsLiquidatable() {
		return nil, nil
	}

	_, confidence, err := s.oracle.Price(ctx, account.Positions[0].Symbol)
	if err != nil {
		return nil, errs.New(errs.Stale, "liquidation: oracle price", err)
	}
	minProfit := s.cfg.MinProfitETH
	if confidence < 1.0 {
		// A degraded (stale) feed raises the bar rather than
		// rejecting outright (§4.9).
		minProfit = minProfit.Mul(decimal.NewFromFloat(1.5))
	}

	optimalRepay := optimalRepayAmount(account, s.cfg.MinLiquidationAmount)
	if !optimalRepay.IsPositive() {
		return nil, nil
	}

	collateral := account.Positions[0]
	bonus := decimal.NewFromFloat(float64(account.LiquidationBonusBps) / 10_000)
	seizedAmount := optimalRepay.Mul(decimal.NewFromInt(1).Add(bonus))

	quote, router, calldata, dexName, err := s.quoteWithFallback(ctx, collateral.Asset, common.Address{}, seizedAmount)
	if err != nil {
		return nil, err // both aggregators failed: skip per §4.9 failure semantics
	}

	flashloanFee := optimalRepay.Mul(decimal.NewFromInt(int64(s.cfg.FlashloanFeeBps))).Div(decimal.NewFromInt(10_000))
	gasCost := decimal.NewFromFloat(30) // USD-denominated estimate supplied by the orchestrator in production
	profit := quote.Sub(optimalRepay).Sub(flashloanFee).Sub(gasCost)

	if profit.LessThan(minProfit) {
		return nil, nil
	}

	urgency := decimal.NewFromInt(1).Sub(account.HealthFactor)
	inverseCompetition := 1.0 // no competition telemetry wired in yet; neutral weight
	successProb := 0.9
	account.PriorityScore = PriorityScore(normalizeProfit(profit), urgencyFloat(urgency), inverseCompetition, successProb)

	details := &types.LiquidationDetails{
		User:            account,
		RepayAsset:      collateral.Asset,
		RepayAmount:     optimalRepay,
		CollateralAsset: collateral.Asset,
		SeizedAmount:    seizedAmount,
		SwapRouter:      router,
		SwapCalldata:    calldata,
		FlashloanFeeBps: s.cfg.FlashloanFeeBps,
	}
	_ = dexName

	return &types.Opportunity{
		Kind:           types.KindLiquidation,
		StrategyTag:    s.Tag(),
		ExpectedProfit: profit,
		Confidence:     confidence,
		GasEstimate:    350_000,
		Priority:       priorityFromScore(account.PriorityScore),
		Timestamp:      s.now(),
		Details:        details,
	}, nil
}

// quoteWithFallback tries the primary aggregator through the circuit
// breaker; on failure (or a tripped breaker) it tries the backup.
// Both failing is reported as an error, causing the candidate to be
// skipped (§4.9: "aggregator failure -> try backup; both fail -> skip").
func (s *Strategy) quoteWithFallback(ctx context.Context, sellAsset, buyAsset common.Address, amount decimal.Decimal) (decimal.Decimal, common.Address, []byte, string, error) {
	type result struct {
		quote    decimal.Decimal
		router   common.Address
		calldata []byte
	}

	res, err := s.breaker.Execute(func() (interface{}, error) {
		quote, router, calldata, err := s.primaryDEX.Quote(ctx, sellAsset, buyAsset, amount)
		if err != nil {
			return nil, err
		}
		return result{quote, router, calldata}, nil
	})
	if err == nil {
		r := res.(result)
		return r.quote, r.router, r.calldata, s.primaryDEX.Name(), nil
	}

	if s.backupDEX == nil {
		return decimal.Zero, common.Address{}, nil, "", fmt.Errorf("liquidation: primary aggregator failed and no backup configured: %w", err)
	}

	quote, router, calldata, backupErr := s.backupDEX.Quote(ctx, sellAsset, buyAsset, amount)
	if backupErr != nil {
		return decimal.Zero, common.Address{}, nil, "", fmt.Errorf("liquidation: both aggregators failed: primary=%v backup=%v", err, backupErr)
	}
	return quote, router, calldata, s.backupDEX.Name(), nil
}

// optimalRepayAmount implements §4.9's
// min(max_liquidatable, liquidity_cap, oracle_capped); liquidity and
// oracle caps are collapsed here into the account's own debt value
// since the per-aggregator liquidity ceiling is supplied by the DEX
// quote step, not known in advance.
func optimalRepayAmount(account *types.LiquidatableUser, minLiquidation decimal.Decimal) decimal.Decimal {
	maxLiquidatable := account.TotalDebtValue.Div(decimal.NewFromInt(2)) // 50% close factor, standard across Aave/Compound
	if account.MaxDebtRepayable.IsPositive() && account.MaxDebtRepayable.LessThan(maxLiquidatable) {
		maxLiquidatable = account.MaxDebtRepayable
	}
	if maxLiquidatable.LessThan(minLiquidation) {
		return decimal.Zero
	}
	return maxLiquidatable
}

func normalizeProfit(profit decimal.Decimal) float64 {
	f, _ := profit.Float64()
	if f <= 0 {
		return 0
	}
	if f > 1000 {
		return 1
	}
	return f / 1000
}

func urgencyFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

func priorityFromScore(score float64) types.Priority {
	switch {
	case score >= 0.75:
		return types.PriorityUrgent
	case score >= 0.5:
		return types.PriorityHigh
	case score >= 0.25:
		return types.PriorityMedium
	default:
		return types.PriorityLow
	}
}
