// Package orchestrator implements the lifecycle conductor of §4.13: it
// starts the mempool subscription, the price feed janitor, the
// real-time scheduler and the bundle drain loop in that order, runs
// the strategies from the mempool loop and the scheduler's scan task,
// drains their Opportunities into the bundle manager, and reports component
// health from per-task heartbeats. It replaces the teacher's
// internal/app simulateActivity placeholder with the engine's actual
// wiring.
package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/mev-engine/mev-searcher/pkg/bundlemgr"
	"github.com/mev-engine/mev-searcher/pkg/interfaces"
	"github.com/mev-engine/mev-searcher/pkg/metrics"
	"github.com/mev-engine/mev-searcher/pkg/pricefeed"
	"github.com/mev-engine/mev-searcher/pkg/scheduler"
	"github.com/mev-engine/mev-searcher/pkg/types"
	"github.com/rs/zerolog"
)

// HealthyMultiplier is the heartbeat-age-over-expected-interval
// factor past which a component is reported unhealthy (§4.13).
const HealthyMultiplier = 3

// Component names used as heartbeat keys and as the Prometheus task
// label on scheduler skips.
const (
	ComponentMempool       = "mempool"
	ComponentTickHarvest   = "tick_harvest"
	ComponentOrderBookScan = "orderbook_refresh"
	ComponentScanExecute   = "scan_and_execute"
	ComponentBundleDrain   = "bundle_drain"
)

// Config carries the cadences and feature toggles the orchestrator
// drives the scheduler and strategy set with.
type Config struct {
	Scheduler        scheduler.Config
	BundleDrainEvery time.Duration // how often ProcessOne drains the queue outside of scan_and_execute
}

// DefaultConfig returns the documented §4.7 cadences plus a bundle
// drain interval tied to the scan interval.
func DefaultConfig() Config {
	sc := scheduler.DefaultConfig()
	return Config{Scheduler: sc, BundleDrainEvery: sc.ScanInterval}
}

// Orchestrator wires the mempool, price feed, scheduler, strategies,
// and bundle manager into one start/stop lifecycle.
type Orchestrator struct {
	cfg    Config
	log    zerolog.Logger
	chain  interfaces.ChainClient
	prices *pricefeed.Manager
	sched  *scheduler.Scheduler

	mempoolStrategies []interfaces.MempoolStrategy
	scannedStrategies []interfaces.ScannedStrategy

	bundles *bundlemgr.Manager
	metrics *metrics.SearcherMetrics

	hbMu       sync.Mutex
	heartbeats map[string]time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New builds an Orchestrator. chain may be nil when no mempool
// subscription is configured (e.g. running only scanned strategies).
func New(
	cfg Config,
	log zerolog.Logger,
	chain interfaces.ChainClient,
	prices *pricefeed.Manager,
	mempoolStrategies []interfaces.MempoolStrategy,
	scannedStrategies []interfaces.ScannedStrategy,
	bundles *bundlemgr.Manager,
	searcherMetrics *metrics.SearcherMetrics,
) *Orchestrator {
	return &Orchestrator{
		cfg:               cfg,
		log:               log,
		chain:             chain,
		prices:            prices,
		sched:             scheduler.New(cfg.Scheduler),
		mempoolStrategies: mempoolStrategies,
		scannedStrategies: scannedStrategies,
		bundles:           bundles,
		metrics:           searcherMetrics,
		heartbeats:        make(map[string]time.Time),
	}
}

// Start brings the engine up in dependency order: mempool
// subscription, price feed janitor, scheduler (which drives tick
// harvest, order-book refresh and scan), then the bundle drain loop.
// Strategies have no start step of their own: they are called from the
// mempool loop and the scan task. Start returns once everything is
// running; it does not block.
func (o *Orchestrator) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel

	if o.chain != nil {
		pending, err := o.chain.SubscribePending(runCtx)
		if err != nil {
			cancel()
			return err
		}
		o.wg.Add(1)
		go o.runMempoolLoop(runCtx, pending)
	}

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.prices.RunJanitor(runCtx, pricefeed.CacheTTL/2)
	}()

	o.sched.Start(runCtx, o.tickHarvest, o.orderBookRefresh, o.scanAndExecute)

	o.wg.Add(1)
	go o.runBundleDrain(runCtx)

	o.log.Info().Msg("orchestrator started")
	return nil
}

// Stop tears the engine down in reverse order: scheduler and bundle
// drain first (stop producing/consuming new work), then the mempool
// subscription and price feed janitor, then the chain client
// connection itself.
func (o *Orchestrator) Stop(ctx context.Context) error {
	o.log.Info().Msg("orchestrator stopping")

	o.sched.Stop()
	if o.cancel != nil {
		o.cancel()
	}
	o.wg.Wait()

	if o.chain != nil {
		if err := o.chain.Close(); err != nil {
			return err
		}
	}
	o.log.Info().Msg("orchestrator stopped")
	return nil
}

// runMempoolLoop dispatches every pending transaction off the chain
// client's subscription to each configured mempool strategy
// (sandwich), submitting any resulting Opportunity to the bundle
// manager.
func (o *Orchestrator) runMempoolLoop(ctx context.Context, pending <-chan *types.Transaction) {
	defer o.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case tx, ok := <-pending:
			if !ok {
				return
			}
			o.markHeartbeat(ComponentMempool)
			for _, strat := range o.mempoolStrategies {
				opp, err := strat.OnTransaction(ctx, tx)
				if err != nil {
					o.log.Debug().Err(err).Str("strategy", strat.Tag()).Str("tx", tx.Hash).Msg("mempool strategy skipped transaction")
					continue
				}
				if opp == nil {
					continue
				}
				if o.metrics != nil {
					o.metrics.RecordOpportunity(strat.Tag())
				}
				if err := o.bundles.Submit(ctx, opp); err != nil {
					o.log.Warn().Err(err).Str("strategy", strat.Tag()).Str("opportunity", opp.ID).Msg("submit failed")
				}
			}
		}
	}
}

func (o *Orchestrator) markHeartbeat(component string) {
	o.hbMu.Lock()
	o.heartbeats[component] = time.Now()
	o.hbMu.Unlock()
}

func (o *Orchestrator) tickHarvest(ctx context.Context) {
	o.markHeartbeat(ComponentTickHarvest)
}

func (o *Orchestrator) orderBookRefresh(ctx context.Context) {
	o.markHeartbeat(ComponentOrderBookScan)
}

func (o *Orchestrator) scanAndExecute(ctx context.Context) {
	o.markHeartbeat(ComponentScanExecute)
	for _, strat := range o.scannedStrategies {
		opps, err := strat.Scan(ctx)
		if err != nil {
			o.log.Warn().Err(err).Str("strategy", strat.Tag()).Msg("scan failed")
			continue
		}
		for _, opp := range opps {
			if o.metrics != nil {
				o.metrics.RecordOpportunity(strat.Tag())
			}
			// Only sandwich and liquidation opportunities carry
			// on-chain transactions the bundle manager can build and
			// submit; micro-arbitrage and cross-chain opportunities
			// settle off-chain against their own exchange/bridge
			// clients and are recorded but never queued here.
			if opp.Kind != types.KindSandwich && opp.Kind != types.KindLiquidation {
				continue
			}
			if err := o.bundles.Submit(ctx, opp); err != nil {
				o.log.Warn().Err(err).Str("strategy", strat.Tag()).Str("opportunity", opp.ID).Msg("submit failed")
			}
		}
	}
}

func (o *Orchestrator) runBundleDrain(ctx context.Context) {
	defer o.wg.Done()
	ticker := time.NewTicker(o.cfg.BundleDrainEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.markHeartbeat(ComponentBundleDrain)
			for {
				ok, err := o.bundles.ProcessOne(ctx)
				if err != nil {
					o.log.Warn().Err(err).Msg("bundle processing failed")
				}
				if !ok {
					break
				}
			}
		}
	}
}

// Health reports, per component, whether its heartbeat is fresher
// than HealthyMultiplier times the component's expected interval.
// A component that has never ticked is reported unhealthy.
func (o *Orchestrator) Health() map[string]bool {
	o.hbMu.Lock()
	snapshot := make(map[string]time.Time, len(o.heartbeats))
	for k, v := range o.heartbeats {
		snapshot[k] = v
	}
	o.hbMu.Unlock()

	expected := map[string]time.Duration{
		ComponentTickHarvest:   o.cfg.Scheduler.TickHarvestInterval,
		ComponentOrderBookScan: o.cfg.Scheduler.OrderBookRefreshInterval,
		ComponentScanExecute:   o.cfg.Scheduler.ScanInterval,
		ComponentBundleDrain:   o.cfg.BundleDrainEvery,
	}

	result := make(map[string]bool, len(expected))
	now := time.Now()
	for component, interval := range expected {
		last, ok := snapshot[component]
		if !ok {
			result[component] = false
			continue
		}
		result[component] = now.Sub(last) <= interval*HealthyMultiplier
	}
	return result
}

// SchedulerStats exposes the scheduler's overrun counters for the
// read-only status API.
func (o *Orchestrator) SchedulerStats() scheduler.Stats {
	return o.sched.Stats()
}

// ActiveStrategies returns the tag of every strategy currently wired
// into the engine, mempool-driven and scanned alike.
func (o *Orchestrator) ActiveStrategies() []string {
	tags := make([]string, 0, len(o.mempoolStrategies)+len(o.scannedStrategies))
	for _, s := range o.mempoolStrategies {
		tags = append(tags, s.Tag())
	}
	for _, s := range o.scannedStrategies {
		tags = append(tags, s.Tag())
	}
	return tags
}

// BundleStats exposes the bundle manager's inclusion/miss/revert
// counters for the status API.
func (o *Orchestrator) BundleStats() (included, missed, reverted int64) {
	return o.bundles.Stats()
}
