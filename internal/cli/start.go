package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/mev-engine/mev-searcher/internal/app"
	"github.com/mev-engine/mev-searcher/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/fx"
)

// namedNetworks resolves --network's short names to the Base
// mainnet/testnet endpoints the config package defaults to.
var namedNetworks = map[string]config.NetworkConfig{
	"base": {
		ChainID: 8453,
		RPCURL:  "https://mainnet.base.org",
		WSURL:   "wss://mainnet.base.org",
	},
	"base-sepolia": {
		ChainID: 84532,
		RPCURL:  "https://sepolia.base.org",
		WSURL:   "wss://sepolia.base.org",
	},
}

// applyStartFlags layers --strategies/--simulation/--dry-run/--network
// onto a loaded configuration, letting an operator override the
// persisted config file for one run without editing it.
func applyStartFlags(cfg *config.Config) {
	if dryRunFlag {
		cfg.RunMode = "mock"
	}
	if simulationFlag {
		cfg.Flashbots.SimulationMode = true
	}
	if networkFlag != "" {
		if n, ok := namedNetworks[networkFlag]; ok {
			cfg.Network = n
		} else {
			fmt.Fprintf(os.Stderr, "unknown --network %q, leaving configured network untouched\n", networkFlag)
		}
	}
	if strategiesFlag != "" {
		allowed := make(map[string]bool)
		for _, name := range strings.Split(strategiesFlag, ",") {
			allowed[strings.TrimSpace(name)] = true
		}
		cfg.Strategies.Sandwich.Enabled = cfg.Strategies.Sandwich.Enabled && allowed["sandwich"]
		cfg.Strategies.Liquidation.Enabled = cfg.Strategies.Liquidation.Enabled && allowed["liquidation"]
		cfg.Strategies.MicroArbitrage.Enabled = cfg.Strategies.MicroArbitrage.Enabled && allowed["micro_arbitrage"]
		cfg.Strategies.CrossChainArbitrage.Enabled = cfg.Strategies.CrossChainArbitrage.Enabled && allowed["cross_chain_arbitrage"]
	}
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the MEV engine",
	Long: `Start the MEV engine to begin monitoring the mempool and detecting 
MEV opportunities. The engine will run continuously until stopped.`,
	RunE: runStart,
}

var (
	daemonMode   bool
	profileMode  bool
	strategiesFlag string
	simulationFlag bool
	dryRunFlag     bool
	networkFlag    string
)

func init() {
	rootCmd.AddCommand(startCmd)

	startCmd.Flags().BoolVarP(&daemonMode, "daemon", "d", false, "run in daemon mode (background)")
	startCmd.Flags().BoolVar(&profileMode, "profile", false, "enable CPU and memory profiling")
	startCmd.Flags().String("bind", "", "bind address for API server (overrides config)")
	startCmd.Flags().Int("port", 0, "port for API server (overrides config)")
	startCmd.Flags().StringVar(&strategiesFlag, "strategies", "", "comma-separated strategy allowlist (sandwich,liquidation,micro_arbitrage,cross_chain_arbitrage); empty runs every enabled strategy")
	startCmd.Flags().BoolVar(&simulationFlag, "simulation", false, "force flashbots.simulation_mode regardless of config")
	startCmd.Flags().BoolVar(&dryRunFlag, "dry-run", false, "force run_mode=mock regardless of config")
	startCmd.Flags().StringVar(&networkFlag, "network", "", "override network by name: base or base-sepolia")

	viper.BindPFlag("daemon", startCmd.Flags().Lookup("daemon"))
	viper.BindPFlag("profile", startCmd.Flags().Lookup("profile"))
	viper.BindPFlag("server.host", startCmd.Flags().Lookup("bind"))
	viper.BindPFlag("server.port", startCmd.Flags().Lookup("port"))
}

func runStart(cmd *cobra.Command, args []string) error {
	fmt.Println("🚀 Starting MEV Strategy Engine...")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	applyStartFlags(cfg)

	if errs := config.Validate(cfg); len(errs) > 0 {
		for _, e := range errs {
			fmt.Fprintln(os.Stderr, "config:", e)
		}
		os.Exit(1)
	}

	if viper.GetBool("debug") {
		fmt.Printf("Configuration loaded: %+v\n", cfg)
	}

	// Create application with dependency injection
	app := fx.New(
		fx.Provide(
			func() *config.Config { return cfg },
		),
		app.Module,
		fx.Invoke(func(lifecycle fx.Lifecycle, app *app.Application) {
			lifecycle.Append(fx.Hook{
				OnStart: func(ctx context.Context) error {
					go app.Start(ctx)
					return nil
				},
				OnStop: func(ctx context.Context) error {
					return app.Stop(ctx)
				},
			})
		}),
	)

	// Handle graceful shutdown
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// Setup signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\n🛑 Shutdown signal received, stopping engine...")
		cancel()
	}()

	// Start the application
	if err := app.Start(ctx); err != nil {
		return fmt.Errorf("failed to start application: %w", err)
	}

	// Wait for shutdown
	<-ctx.Done()

	if err := app.Stop(ctx); err != nil {
		fmt.Printf("⚠️  Error during shutdown: %v\n", err)
	}

	fmt.Println("✅ MEV Engine stopped successfully")
	return nil
}
