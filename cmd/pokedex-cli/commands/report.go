package commands

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	"pokedex-pipeline/internal/runlog"
	"pokedex-pipeline/lib/osutil"
	"pokedex-pipeline/lib/sqliteutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(reportCmd)
}

func newTable() table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(os.Stdout)
	return t
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Prints a summary of the most recent run from the run journal.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := readConfig()
		if cfg.JournalPath == "" {
			fmt.Fprintln(os.Stderr, "no journal_path configured")
			os.Exit(1)
		}

		db, err := sqliteutil.OpenDB(runlog.Schema, cfg.JournalPath)
		if err != nil {
			osutil.Fatal("failed to open run journal", err)
		}
		defer db.Close()

		run, runErrors, err := runlog.New(db).LastRun(cmd.Context())
		if errors.Is(err, sql.ErrNoRows) {
			fmt.Println("the journal has no runs yet")
			return
		}
		if err != nil {
			osutil.Fatal("failed to read run journal", err)
		}

		outcome := "ok"
		if run.Aborted {
			outcome = fmt.Sprintf("aborted: %s", run.AbortReason)
		}

		t := newTable()
		t.AppendHeader(table.Row{"Run", "Started", "Finished", "Listed", "Collected", "Failed", "Outcome"})
		t.AppendRow(table.Row{
			run.Id,
			run.StartedAt.Format(time.DateTime),
			run.FinishedAt.Format(time.DateTime),
			run.Listed,
			run.Collected,
			run.Failed,
			outcome,
		})
		t.Render()

		if len(runErrors) == 0 {
			return
		}

		errTable := newTable()
		errTable.AppendHeader(table.Row{"Kind", "URL", "Field", "Status", "Attempts", "Message"})
		for _, e := range runErrors {
			errTable.AppendRow(table.Row{e.Kind, e.URL, e.Field, e.Status, e.Attempts, e.Message})
		}
		errTable.Render()
	},
}
