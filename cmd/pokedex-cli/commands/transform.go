package commands

import (
	"log/slog"
	"os"

	"pokedex-pipeline/internal/pipeline"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(transformCmd)
}

var transformCmd = &cobra.Command{
	Use:   "transform",
	Short: "Rebuilds the processed dataset from the staged raw dataset, no network involved.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := readConfig()

		err := pipeline.TransformOnly(cmd.Context(), cfg)
		if err != nil {
			slog.Error("transform failed", "err", err)
			os.Exit(1)
		}
	},
}
