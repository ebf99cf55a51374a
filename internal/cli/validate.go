package cli

import (
	"fmt"
	"os"

	"github.com/mev-engine/mev-searcher/internal/config"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate-config",
	Short: "Validate the loaded configuration and exit",
	Long: `Load configuration the same way start does, run struct validation plus
the run_mode=real production secret checks, and report every violation found.
Exits 0 when the configuration is valid, 1 otherwise.`,
	RunE: runValidateConfig,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidateConfig(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	errs := config.Validate(cfg)
	if len(errs) == 0 {
		fmt.Println("✅ configuration valid")
		return nil
	}

	fmt.Fprintln(os.Stderr, "configuration invalid:")
	for _, e := range errs {
		fmt.Fprintln(os.Stderr, " -", e)
	}
	os.Exit(1)
	return nil
}
