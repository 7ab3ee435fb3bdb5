package commands

import (
	"context"
	"fmt"
	"os"

	"pokedex-pipeline/internal/pipeline"
	"pokedex-pipeline/lib/configutil"
	"pokedex-pipeline/lib/osutil"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "pokedex-cli",
	Short: "pokedex-cli scrapes the pokedex catalog and builds csv datasets from it.",
}

var configFile *string

func init() {
	configFile = rootCmd.PersistentFlags().String(
		"config", "config.json5",
		"The pipeline config to use.",
	)
}

func readConfig() pipeline.Config {
	cfg, err := configutil.ReadConfig[pipeline.Config](*configFile)
	if err != nil {
		osutil.Fatal("failed to read config", err)
	}
	return cfg
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
