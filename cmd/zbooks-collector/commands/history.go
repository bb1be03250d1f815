package commands

import (
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	_ "modernc.org/sqlite"

	"zbooks-collector/lib/serviceutil"
	"zbooks-collector/lib/sqliteutil"
	"zbooks-collector/services/collector"
	"zbooks-collector/services/collector/db"
)

var historyListDb *string

func init() {
	historyListDb = historyCmd.Flags().String("db", "collected_data/runs.db", "The run history database to read.")
	rootCmd.AddCommand(historyCmd)
}

var historyCmd = &cobra.Command{
	Use:   "history [--db <path/to/runs.db>]",
	Short: "Lists past collection runs.",
	Run: func(cmd *cobra.Command, args []string) {
		database, err := sqliteutil.OpenDB(db.Schema, *historyListDb)
		if err != nil {
			serviceutil.Fatal("failed to open history db", err)
		}
		defer database.Close()

		runs, err := collector.NewHistoryStore(database).ListRuns(cmd.Context())
		if err != nil {
			serviceutil.Fatal("failed to list runs", err)
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"time", "idempotency key", "records", "output"})
		for _, run := range runs {
			t.AppendRow(table.Row{
				run.Time.Format(time.DateTime),
				run.IdempotencyKey,
				run.RecordCount,
				run.OutputPath,
			})
		}
		t.Render()
	},
}
