package commands

import (
	"log/slog"
	"os"
	"time"

	"pokedex-pipeline/internal/pipeline"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(runCmd)
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Runs the full pipeline: scrape, stage the raw dataset, transform and publish.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := readConfig()

		t1 := time.Now()
		err := pipeline.Run(cmd.Context(), cfg)
		if err != nil {
			slog.Error("pipeline run failed", "err", err, "fatal", pipeline.IsFatal(err))
			os.Exit(1)
		}

		slog.Info("pipeline run finished", "seconds", time.Since(t1).Seconds())
	},
}
