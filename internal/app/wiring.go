package app

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/mev-engine/mev-searcher/internal/config"
	"github.com/mev-engine/mev-searcher/pkg/bridge"
	"github.com/mev-engine/mev-searcher/pkg/bundlemgr"
	"github.com/mev-engine/mev-searcher/pkg/chainclient"
	"github.com/mev-engine/mev-searcher/pkg/exchange"
	"github.com/mev-engine/mev-searcher/pkg/funding"
	"github.com/mev-engine/mev-searcher/pkg/interfaces"
	"github.com/mev-engine/mev-searcher/pkg/kvstore"
	"github.com/mev-engine/mev-searcher/pkg/metrics"
	"github.com/mev-engine/mev-searcher/pkg/oracle"
	"github.com/mev-engine/mev-searcher/pkg/orchestrator"
	"github.com/mev-engine/mev-searcher/pkg/pricefeed"
	"github.com/mev-engine/mev-searcher/pkg/relay"
	"github.com/mev-engine/mev-searcher/pkg/simulation"
	"github.com/mev-engine/mev-searcher/pkg/strategy/crosschain"
	"github.com/mev-engine/mev-searcher/pkg/strategy/liquidation"
	"github.com/mev-engine/mev-searcher/pkg/strategy/microarb"
	"github.com/mev-engine/mev-searcher/pkg/strategy/sandwich"
	"github.com/mev-engine/mev-searcher/pkg/tokenregistry"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
)

// decimalOrZero parses a config string field, defaulting to zero on a
// blank or malformed value rather than failing startup — every
// strategy config field of this shape is advisory (a floor or limit),
// never a value the engine divides by.
func decimalOrZero(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// wiring holds every collaborator the orchestrator is assembled from,
// so Application can close what it opened on shutdown.
type wiring struct {
	chain        interfaces.ChainClient
	store        *kvstore.Store
	orchestrator *orchestrator.Orchestrator
	mockRelay    *bundlemgr.MockRelay
}

// buildWiring assembles the full engine from configuration, branching
// on run_mode (§6): mock mode wires each strategy package's own
// deterministic mocks; real mode dials the chain client and wires the
// Binance adapter, the Flashbots relay with a signer and the
// fork-backed bundle simulator. The sandwich pool reader and routers,
// the liquidation subgraph, event scanner, pool and DEX aggregators,
// the oracle, the cross-chain price source and the bridges use their
// mock implementations in both run modes.
func buildWiring(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*wiring, error) {
	mockMode := cfg.RunMode != "real"

	store := kvstore.New(kvstore.Config{
		Addr: redisAddr(cfg.Database.RedisURL),
		TTL:  24 * time.Hour,
	})

	registry := tokenregistry.New()

	var chain interfaces.ChainClient
	if !mockMode {
		c, err := chainclient.Dial(ctx, chainclient.Config{
			HTTPURL:        cfg.Network.RPCURL,
			WSURL:          cfg.Network.WSURL,
			DialTimeout:    10 * time.Second,
			RequestTimeout: 5 * time.Second,
		})
		if err != nil {
			return nil, err
		}
		chain = c
	}

	currentBlock := func() uint64 {
		if chain == nil {
			return 0
		}
		n, err := chain.GetBlockNumber(ctx)
		if err != nil {
			return 0
		}
		return n
	}

	var sandwichStrat *sandwich.Strategy
	var liquidationStrat *liquidation.Strategy
	var microarbStrat *microarb.Strategy
	var crosschainStrat *crosschain.Strategy

	usdValue := func(ctx context.Context, token common.Address, amount *big.Int) (decimal.Decimal, error) {
		price, _, err := oracleAggregator(mockMode).Price(ctx, token.Hex())
		if err != nil {
			return decimal.Zero, err
		}
		amt := decimal.NewFromBigInt(amount, -18)
		return amt.Mul(price), nil
	}

	if mockMode {
		pools := sandwich.NewMockPoolReader(30)
		routers := sandwich.NewMockRouterRegistry(nil, nil)
		sandwichStrat = sandwich.New(sandwichConfig(cfg), pools, routers, usdValue, currentBlock)

		protocols := make([]string, 0, len(cfg.Protocols))
		for name := range cfg.Protocols {
			protocols = append(protocols, name)
		}
		atRisk := make(map[string][]common.Address, len(protocols))
		subgraph := liquidation.NewMockSubgraph(atRisk)
		scanner := liquidation.NewMockEventScanner(atRisk)
		pool := liquidation.NewMockProtocolPool(nil)
		primaryDEX := liquidation.NewMockDEXAggregator("primary", decimal.NewFromFloat(1), common.Address{})
		backupDEX := liquidation.NewMockDEXAggregator("backup", decimal.NewFromFloat(1), common.Address{})
		breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "liquidation-dex",
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(c gobreaker.Counts) bool { return c.ConsecutiveFailures >= 5 },
		})
		liquidationStrat = liquidation.New(liquidationConfig(cfg), subgraph, store, scanner, pool,
			oracleAggregator(mockMode), primaryDEX, backupDEX, breaker)

		microarbStrat = microarb.New(microarbConfig(cfg), mockExchanges(cfg.Strategies.MicroArbitrage.Exchanges))

		crosschainStrat = crosschain.New(crosschainConfig(cfg), registry, mockBridges(cfg.Strategies.CrossChainArbitrage.SupportedChains),
			crosschain.NewMockPriceSource(nil), store)
	} else {
		// Micro-arbitrage gets the live exchange.BinanceClient; the
		// sandwich, liquidation and cross-chain collaborators below are
		// the same mock implementations mock mode uses, including the
		// bridge facade's MockClient.
		exchanges := make(map[string]interfaces.ExchangeClient, len(cfg.Strategies.MicroArbitrage.Exchanges))
		for _, name := range cfg.Strategies.MicroArbitrage.Exchanges {
			exchanges[name] = exchange.NewBinanceClient(exchange.BinanceConfig{RequestsPerSecond: 10})
		}
		microarbStrat = microarb.New(microarbConfig(cfg), exchanges)

		pools := sandwich.NewMockPoolReader(30)
		routers := sandwich.NewMockRouterRegistry(nil, nil)
		sandwichStrat = sandwich.New(sandwichConfig(cfg), pools, routers, usdValue, currentBlock)

		atRisk := make(map[string][]common.Address)
		subgraph := liquidation.NewMockSubgraph(atRisk)
		scanner := liquidation.NewMockEventScanner(atRisk)
		pool := liquidation.NewMockProtocolPool(nil)
		primaryDEX := liquidation.NewMockDEXAggregator("primary", decimal.NewFromFloat(1), common.Address{})
		backupDEX := liquidation.NewMockDEXAggregator("backup", decimal.NewFromFloat(1), common.Address{})
		breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "liquidation-dex",
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(c gobreaker.Counts) bool { return c.ConsecutiveFailures >= 5 },
		})
		liquidationStrat = liquidation.New(liquidationConfig(cfg), subgraph, store, scanner, pool,
			oracleAggregator(mockMode), primaryDEX, backupDEX, breaker)

		crosschainStrat = crosschain.New(crosschainConfig(cfg), registry, mockBridges(cfg.Strategies.CrossChainArbitrage.SupportedChains),
			crosschain.NewMockPriceSource(nil), store)
	}

	var priceSinks []interfaces.PriceDataSink
	if microarbStrat != nil {
		priceSinks = append(priceSinks, microarbStrat)
	}
	prices := pricefeed.NewManager(priceSinks...)

	var relayClient interfaces.BundleRelay
	var simulator interfaces.BundleSimulator
	var mockRelay *bundlemgr.MockRelay
	builder := &bundlemgr.DispatchBuilder{}

	if mockMode {
		mockRelay = bundlemgr.NewMockRelay()
		relayClient = mockRelay
		simulator = bundlemgr.NewMockSimulator()
	} else {
		signerKey, err := crypto.HexToECDSA(stripHexPrefix(cfg.Flashbots.SignerKey))
		if err != nil {
			return nil, err
		}
		relayClient = relay.New(relay.Config{
			RelayURL:       cfg.Flashbots.RelayURL,
			SignerKey:      signerKey,
			SimulationMode: cfg.Flashbots.SimulationMode,
		})
		builder.FlashloanReceiver = common.HexToAddress(cfg.Strategies.Liquidation.FlashloanReceiverAddress)
		var nonce uint64
		builder.Sign = relay.NewTxSigner(signerKey, big.NewInt(cfg.Network.ChainID), func() uint64 {
			nonce++
			return nonce
		}).Sign

		forkCfg := simulation.DefaultForkManagerConfig()
		forkCfg.ForkURL = cfg.Simulation.ForkURL
		forkCfg.AnvilPath = cfg.Simulation.AnvilPath
		forkCfg.MaxForks = cfg.Simulation.MaxForks
		forkCfg.ForkTimeout = cfg.Simulation.ForkTimeout
		forkManager := simulation.NewForkManager(forkCfg)
		simulator = simulation.NewBundleSimulator(forkManager, cfg.Simulation.ForkURL)
	}

	queue := bundlemgr.NewQueue()
	bundles := bundlemgr.New(queue, simulator, relayClient, builder, currentBlock)

	var mempoolStrategies []interfaces.MempoolStrategy
	var scannedStrategies []interfaces.ScannedStrategy

	if cfg.Strategies.Sandwich.Enabled {
		mempoolStrategies = append(mempoolStrategies, sandwichStrat)
	}
	if cfg.Strategies.Liquidation.Enabled {
		scannedStrategies = append(scannedStrategies, liquidationStrat)
	}
	if cfg.Strategies.MicroArbitrage.Enabled {
		scannedStrategies = append(scannedStrategies, microarbStrat)
	}
	if cfg.Strategies.CrossChainArbitrage.Enabled {
		scannedStrategies = append(scannedStrategies, crosschainStrat)
	}

	searcherMetrics := metrics.NewSearcherMetrics()

	orchCfg := orchestrator.DefaultConfig()
	orch := orchestrator.New(orchCfg, log, chain, prices, mempoolStrategies, scannedStrategies, bundles, searcherMetrics)

	return &wiring{chain: chain, store: store, orchestrator: orch, mockRelay: mockRelay}, nil
}

// oracleAggregator builds the price oracle every strategy shares.
// Mock mode seeds MockFeed/MockTWAP with flat prices; real mode would
// wire a live external feed, but none ships in the pack beyond the
// mock (see DESIGN.md) so both run modes use the same deterministic
// aggregator today.
func oracleAggregator(mockMode bool) *oracle.Aggregator {
	_ = mockMode
	feed := oracle.NewMockFeed(map[string]decimal.Decimal{})
	twap := oracle.NewMockTWAP(map[string]decimal.Decimal{})
	return oracle.New(feed, twap)
}

func sandwichConfig(cfg *config.Config) sandwich.Config {
	s := cfg.Strategies.Sandwich
	return sandwich.Config{
		Enabled:         s.Enabled,
		MinTargetUSD:    decimalOrZero(s.MinTargetUSD),
		MaxSlippagePct:  decimal.NewFromFloat(s.MaxSlippagePct),
		MinProfitETH:    decimalOrZero(s.MinProfitETH),
		MinProfitRatio:  decimal.NewFromFloat(s.MinProfitRatio),
		MaxGasPriceGwei: decimal.NewFromFloat(s.MaxGasPriceGwei),
		GasMultiplier:   decimal.NewFromFloat(s.GasMultiplier),
	}
}

func liquidationConfig(cfg *config.Config) liquidation.Config {
	l := cfg.Strategies.Liquidation
	protocols := make([]string, 0, len(cfg.Protocols))
	for name := range cfg.Protocols {
		protocols = append(protocols, name)
	}
	return liquidation.Config{
		Enabled:                   l.Enabled,
		ScanInterval:              time.Duration(l.ScanIntervalSeconds) * time.Second,
		MinProfitETH:              decimalOrZero(l.MinProfitETH),
		MinLiquidationAmount:      decimalOrZero(l.MinLiquidationAmount),
		MaxConcurrentLiquidations: l.MaxConcurrentLiquidations,
		HealthFactorThreshold:     decimal.NewFromFloat(l.HealthFactorThreshold),
		FundingMode:               funding.Mode(l.Funding.Mode),
		FlashloanFeeBps:           l.FlashloanFeeBps,
		FlashloanReceiverAddress:  common.HexToAddress(l.FlashloanReceiverAddress),
		Protocols:                 protocols,
	}
}

func microarbConfig(cfg *config.Config) microarb.Config {
	m := cfg.Strategies.MicroArbitrage
	return microarb.Config{
		Enabled:             m.Enabled,
		MinProfitPercentage: decimal.NewFromFloat(m.MinProfitPercentage),
		MinProfitUSD:        decimalOrZero(m.MinProfitUSD),
		ExecutionTimeout:    time.Duration(m.ExecutionTimeoutMs) * time.Millisecond,
		MaxConcurrentTrades: m.MaxConcurrentTrades,
		LatencyThreshold:    time.Duration(m.LatencyThresholdMs) * time.Millisecond,
		RiskLimitPerTrade:   decimalOrZero(m.RiskLimitPerTrade),
		DailyVolumeLimit:    decimalOrZero(m.DailyVolumeLimit),
		FundingMode:         funding.Mode(m.Funding.Mode),
		Exchanges:           m.Exchanges,
		TradingPairs:        m.TradingPairs,
	}
}

func crosschainConfig(cfg *config.Config) crosschain.Config {
	c := cfg.Strategies.CrossChainArbitrage
	dc := crosschain.DefaultConfig()
	dc.Enabled = c.Enabled
	if c.ScanIntervalSeconds > 0 {
		dc.ScanInterval = time.Duration(c.ScanIntervalSeconds) * time.Second
	}
	dc.MinProfitUSD = decimalOrZero(c.MinProfitUSD)
	if c.MaxExecutionTimeMinutes > 0 {
		dc.MaxExecutionTime = time.Duration(c.MaxExecutionTimeMinutes) * time.Minute
	}
	if len(c.SupportedChains) > 0 {
		dc.SupportedChains = c.SupportedChains
	}
	return dc
}

func mockExchanges(names []string) map[string]interfaces.ExchangeClient {
	out := make(map[string]interfaces.ExchangeClient, len(names))
	for _, name := range names {
		out[name] = exchange.NewMockClient(name, map[string]decimal.Decimal{
			"USDC": decimal.NewFromInt(100000),
		})
	}
	return out
}

func mockBridges(chains []string) []interfaces.BridgeClient {
	routes := make([]bridge.Route, 0, len(chains))
	for i := 0; i < len(chains); i++ {
		for j := 0; j < len(chains); j++ {
			if i == j {
				continue
			}
			routes = append(routes, bridge.Route{FromChain: chains[i], ToChain: chains[j], Token: "USDC"})
		}
	}
	return []interfaces.BridgeClient{bridge.NewMockClient("mock-bridge", routes, nil)}
}

func stripHexPrefix(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}

func redisAddr(redisURL string) string {
	// kvstore.Config.Addr is host:port; the config's redis_url carries
	// a redis:// scheme the way the teacher's database config does.
	const prefix = "redis://"
	if len(redisURL) > len(prefix) && redisURL[:len(prefix)] == prefix {
		return redisURL[len(prefix):]
	}
	return redisURL
}
