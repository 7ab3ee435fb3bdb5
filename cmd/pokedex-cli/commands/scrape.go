package commands

import (
	"log/slog"
	"os"
	"time"

	"pokedex-pipeline/internal/pipeline"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(scrapeCmd)
}

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Scrapes the catalog and stages the raw dataset without transforming it.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := readConfig()

		t1 := time.Now()
		report, err := pipeline.Scrape(cmd.Context(), cfg)
		if err != nil {
			slog.Error("scrape failed", "err", err)
			os.Exit(1)
		}

		slog.Info("scraping time", "seconds", time.Since(t1).Seconds())
		slog.Info("scrape finished",
			"listed", report.Listed,
			"collected", report.Collected,
			"duplicates", report.Duplicates,
			"failed", report.Failed(),
			"path", cfg.RawDataPath,
		)
	},
}
