package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the MEV engine. Sections are
// loaded once at startup and are read-only thereafter (§6).
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	RPC        RPCConfig        `mapstructure:"rpc"`
	Network    NetworkConfig    `mapstructure:"network"`
	Flashbots  FlashbotsConfig  `mapstructure:"flashbots"`
	Simulation SimulationConfig `mapstructure:"simulation"`
	Strategies StrategiesConfig `mapstructure:"strategies"`
	Protocols  map[string]ProtocolConfig `mapstructure:"protocols"`
	DEX        map[string]DEXConfig      `mapstructure:"dex"`
	Queue      QueueConfig      `mapstructure:"queue"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
	Database   DatabaseConfig   `mapstructure:"database"`
	RunMode    string           `mapstructure:"run_mode" validate:"oneof=mock real"`
}

// ServerConfig contains server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// RPCConfig contains RPC connection configuration
type RPCConfig struct {
	BaseURL           string        `mapstructure:"base_url"`
	WebSocketURL      string        `mapstructure:"websocket_url"`
	BackupURLs        []string      `mapstructure:"backup_urls"`
	ConnectionTimeout time.Duration `mapstructure:"connection_timeout"`
	ReconnectDelay    time.Duration `mapstructure:"reconnect_delay"`
	MaxReconnectDelay time.Duration `mapstructure:"max_reconnect_delay"`
	MaxRetries        int           `mapstructure:"max_retries"`
}

// NetworkConfig is spec.md §6's `network` section.
type NetworkConfig struct {
	ChainID int64  `mapstructure:"chain_id" validate:"required"`
	RPCURL  string `mapstructure:"rpc_url" validate:"required,url"`
	WSURL   string `mapstructure:"ws_url" validate:"required"`
}

// FlashbotsConfig is spec.md §6's `flashbots` section — the relay
// the bundle manager submits ordering-sensitive bundles through.
type FlashbotsConfig struct {
	RelayURL       string `mapstructure:"relay_url" validate:"required"`
	SignerKey      string `mapstructure:"signer_key"`
	SimulationMode bool   `mapstructure:"simulation_mode"`
}

// SimulationConfig contains simulation engine configuration
type SimulationConfig struct {
	AnvilPath         string        `mapstructure:"anvil_path"`
	ForkURL           string        `mapstructure:"fork_url"`
	MaxForks          int           `mapstructure:"max_forks"`
	ForkTimeout       time.Duration `mapstructure:"fork_timeout"`
	SimulationTimeout time.Duration `mapstructure:"simulation_timeout"`
	CleanupInterval   time.Duration `mapstructure:"cleanup_interval"`
}

// StrategiesConfig contains the four strategy families' configuration
// (spec.md §6), replacing the teacher's L2-specific
// sandwich/backrun/frontrun/time_bandit taxonomy.
type StrategiesConfig struct {
	Sandwich            SandwichStrategyConfig            `mapstructure:"sandwich"`
	Liquidation         LiquidationStrategyConfig         `mapstructure:"liquidation"`
	MicroArbitrage      MicroArbitrageStrategyConfig      `mapstructure:"micro_arbitrage"`
	CrossChainArbitrage CrossChainArbitrageStrategyConfig `mapstructure:"cross_chain_arbitrage"`
}

// FundingConfig is the funding.* sub-section shared by the
// liquidation and micro-arbitrage strategy sections.
type FundingConfig struct {
	Mode string `mapstructure:"mode" validate:"oneof=auto flashloan wallet"`
}

// SandwichStrategyConfig is spec.md §6's `strategies.sandwich`.
type SandwichStrategyConfig struct {
	Enabled         bool    `mapstructure:"enabled"`
	UseFlashloan    bool    `mapstructure:"use_flashloan" validate:"eq=false"`
	MinTargetUSD    string  `mapstructure:"min_target_usd"`
	MaxSlippagePct  float64 `mapstructure:"max_slippage_pct"`
	MinProfitETH    string  `mapstructure:"min_profit_eth"`
	MinProfitRatio  float64 `mapstructure:"min_profit_ratio"`
	MaxGasPriceGwei float64 `mapstructure:"max_gas_price_gwei"`
	GasMultiplier   float64 `mapstructure:"gas_multiplier"`
}

// LiquidationStrategyConfig is spec.md §6's `strategies.liquidation`.
type LiquidationStrategyConfig struct {
	Enabled                  bool          `mapstructure:"enabled"`
	ScanIntervalSeconds      int           `mapstructure:"scan_interval_seconds"`
	MinProfitETH             string        `mapstructure:"min_profit_eth"`
	MinLiquidationAmount     string        `mapstructure:"min_liquidation_amount"`
	MaxConcurrentLiquidations int          `mapstructure:"max_concurrent_liquidations"`
	HealthFactorThreshold    float64       `mapstructure:"health_factor_threshold"`
	Funding                  FundingConfig `mapstructure:"funding"`
	FlashloanFeeBps          int           `mapstructure:"flashloan_fee_bps"`
	FlashloanReceiverAddress string        `mapstructure:"flashloan_receiver_address"`
}

// MicroArbitrageStrategyConfig is spec.md §6's
// `strategies.micro_arbitrage`.
type MicroArbitrageStrategyConfig struct {
	Enabled             bool          `mapstructure:"enabled"`
	MinProfitPercentage float64       `mapstructure:"min_profit_percentage"`
	MinProfitUSD        string        `mapstructure:"min_profit_usd"`
	ExecutionTimeoutMs  int           `mapstructure:"execution_timeout_ms"`
	MaxConcurrentTrades int           `mapstructure:"max_concurrent_trades"`
	LatencyThresholdMs  int           `mapstructure:"latency_threshold_ms"`
	RiskLimitPerTrade   string        `mapstructure:"risk_limit_per_trade"`
	DailyVolumeLimit    string        `mapstructure:"daily_volume_limit"`
	Funding             FundingConfig `mapstructure:"funding"`
	Exchanges           []string      `mapstructure:"exchanges"`
	TradingPairs        []string      `mapstructure:"trading_pairs"`
}

// CrossChainArbitrageStrategyConfig is spec.md §6's
// `strategies.cross_chain_arbitrage`.
type CrossChainArbitrageStrategyConfig struct {
	Enabled                 bool     `mapstructure:"enabled"`
	ScanIntervalSeconds     int      `mapstructure:"scan_interval_seconds"`
	MinProfitUSD            string   `mapstructure:"min_profit_usd"`
	MaxExecutionTimeMinutes int      `mapstructure:"max_execution_time_minutes"`
	SupportedChains         []string `mapstructure:"supported_chains"`
	BridgePreferences       []string `mapstructure:"bridge_preferences"`
}

// ProtocolConfig is one `protocols.<name>` entry — a lending
// protocol the liquidation strategy watches.
type ProtocolConfig struct {
	LendingPoolAddress string   `mapstructure:"lending_pool_address"`
	PriceOracleAddress string   `mapstructure:"price_oracle_address"`
	LiquidationFeeBps  int      `mapstructure:"liquidation_fee_bps"`
	SupportedAssets    []string `mapstructure:"supported_assets"`
}

// DEXConfig is one `dex.<name>` entry — an aggregator the liquidation
// strategy quotes through.
type DEXConfig struct {
	APIURL string `mapstructure:"api_url"`
	APIKey string `mapstructure:"api_key"`
}

// QueueConfig contains transaction queue configuration
type QueueConfig struct {
	MaxSize         int           `mapstructure:"max_size"`
	MaxAge          time.Duration `mapstructure:"max_age"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
	MinGasPrice     string        `mapstructure:"min_gas_price"`
}

// MonitoringConfig contains monitoring and alerting configuration
type MonitoringConfig struct {
	Enabled             bool          `mapstructure:"enabled"`
	MetricsPort         int           `mapstructure:"metrics_port"`
	LossRateWarning     float64       `mapstructure:"loss_rate_warning"`
	LossRateShutdown    float64       `mapstructure:"loss_rate_shutdown"`
	WindowSize          int           `mapstructure:"window_size"`
	AlertWebhookURL     string        `mapstructure:"alert_webhook_url"`
	PerformanceInterval time.Duration `mapstructure:"performance_interval"`
}

// DatabaseConfig contains database configuration
type DatabaseConfig struct {
	RedisURL     string `mapstructure:"redis_url"`
	PostgresURL  string `mapstructure:"postgres_url"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

// Load loads configuration from file and environment variables
func Load() (*Config, error) {
	// Keep a file already chosen via --config; SetConfigName would clear it.
	if viper.ConfigFileUsed() == "" {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath("./configs")
		viper.AddConfigPath(".")
	}

	// Set defaults
	setDefaults()

	// Enable environment variable support
	viper.AutomaticEnv()

	// Read config file
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applySecrets(&config)

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "30s")
	viper.SetDefault("server.idle_timeout", "120s")

	// RPC defaults
	viper.SetDefault("rpc.base_url", "https://mainnet.base.org")
	viper.SetDefault("rpc.websocket_url", "wss://mainnet.base.org")
	viper.SetDefault("rpc.connection_timeout", "30s")
	viper.SetDefault("rpc.reconnect_delay", "1s")
	viper.SetDefault("rpc.max_reconnect_delay", "60s")
	viper.SetDefault("rpc.max_retries", 5)

	// Network defaults
	viper.SetDefault("network.chain_id", 8453) // Base mainnet
	viper.SetDefault("network.rpc_url", "https://mainnet.base.org")
	viper.SetDefault("network.ws_url", "wss://mainnet.base.org")

	// Flashbots defaults
	viper.SetDefault("flashbots.relay_url", "https://relay.flashbots.net")
	viper.SetDefault("flashbots.simulation_mode", true)

	// Simulation defaults
	viper.SetDefault("simulation.anvil_path", "anvil")
	viper.SetDefault("simulation.fork_url", "https://mainnet.base.org")
	viper.SetDefault("simulation.max_forks", 10)
	viper.SetDefault("simulation.fork_timeout", "30s")
	viper.SetDefault("simulation.simulation_timeout", "5s")
	viper.SetDefault("simulation.cleanup_interval", "60s")

	// Sandwich strategy defaults
	viper.SetDefault("strategies.sandwich.enabled", true)
	viper.SetDefault("strategies.sandwich.use_flashloan", false)
	viper.SetDefault("strategies.sandwich.min_target_usd", "10000")
	viper.SetDefault("strategies.sandwich.max_slippage_pct", 0.02)
	viper.SetDefault("strategies.sandwich.min_profit_eth", "0.05")
	viper.SetDefault("strategies.sandwich.min_profit_ratio", 0.001)
	viper.SetDefault("strategies.sandwich.max_gas_price_gwei", 500)
	viper.SetDefault("strategies.sandwich.gas_multiplier", 1.1)

	// Liquidation strategy defaults
	viper.SetDefault("strategies.liquidation.enabled", true)
	viper.SetDefault("strategies.liquidation.scan_interval_seconds", 12)
	viper.SetDefault("strategies.liquidation.min_profit_eth", "0.02")
	viper.SetDefault("strategies.liquidation.min_liquidation_amount", "1000")
	viper.SetDefault("strategies.liquidation.max_concurrent_liquidations", 3)
	viper.SetDefault("strategies.liquidation.health_factor_threshold", 1.0)
	viper.SetDefault("strategies.liquidation.funding.mode", "auto")
	viper.SetDefault("strategies.liquidation.flashloan_fee_bps", 9)

	// Micro-arbitrage strategy defaults
	viper.SetDefault("strategies.micro_arbitrage.enabled", true)
	viper.SetDefault("strategies.micro_arbitrage.min_profit_percentage", 0.002)
	viper.SetDefault("strategies.micro_arbitrage.min_profit_usd", "5")
	viper.SetDefault("strategies.micro_arbitrage.execution_timeout_ms", 5000)
	viper.SetDefault("strategies.micro_arbitrage.max_concurrent_trades", 5)
	viper.SetDefault("strategies.micro_arbitrage.latency_threshold_ms", 500)
	viper.SetDefault("strategies.micro_arbitrage.risk_limit_per_trade", "1000")
	viper.SetDefault("strategies.micro_arbitrage.daily_volume_limit", "100000")
	viper.SetDefault("strategies.micro_arbitrage.funding.mode", "wallet")

	// Cross-chain arbitrage strategy defaults
	viper.SetDefault("strategies.cross_chain_arbitrage.enabled", false)
	viper.SetDefault("strategies.cross_chain_arbitrage.scan_interval_seconds", 30)
	viper.SetDefault("strategies.cross_chain_arbitrage.min_profit_usd", "20")
	viper.SetDefault("strategies.cross_chain_arbitrage.max_execution_time_minutes", 15)

	// Queue defaults
	viper.SetDefault("queue.max_size", 10000)
	viper.SetDefault("queue.max_age", "300s")
	viper.SetDefault("queue.cleanup_interval", "60s")
	viper.SetDefault("queue.min_gas_price", "1000000000") // 1 gwei

	// Monitoring defaults
	viper.SetDefault("monitoring.enabled", true)
	viper.SetDefault("monitoring.metrics_port", 9090)
	viper.SetDefault("monitoring.loss_rate_warning", 0.7)
	viper.SetDefault("monitoring.loss_rate_shutdown", 0.8)
	viper.SetDefault("monitoring.window_size", 100)
	viper.SetDefault("monitoring.performance_interval", "60s")

	// Database defaults
	viper.SetDefault("database.redis_url", "redis://localhost:6379")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)

	// Run mode default: never default to live trading.
	viper.SetDefault("run_mode", "mock")
}
