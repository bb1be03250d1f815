package commands

import (
	"encoding/csv"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	_ "modernc.org/sqlite"

	"zbooks-collector/lib/configutil"
	"zbooks-collector/lib/restyutil"
	"zbooks-collector/lib/retry"
	"zbooks-collector/lib/scrapers/zbooks"
	"zbooks-collector/lib/serviceutil"
	"zbooks-collector/lib/sqliteutil"
	"zbooks-collector/services/collector"
	"zbooks-collector/services/collector/db"
)

type Config struct {
	BaseUrl  string `json:"base_url"`
	MaxPages int    `json:"max_pages"`
}

var idempotencyKey *string
var outDir *string
var historyDb *string
var maxAttempts *int
var debugHttp *bool

func init() {
	idempotencyKey = collectCmd.Flags().String("idempotency-key", "", "Deduplicates equivalent runs within a 1 hour window. Absent means every run scrapes.")
	outDir = collectCmd.Flags().String("out", "collected_data", "The directory to write the CSV and idempotency mapping to.")
	historyDb = collectCmd.Flags().String("history-db", "collected_data/runs.db", "The database to archive run history to. Empty disables archiving.")
	maxAttempts = collectCmd.Flags().Int("max-attempts", 3, "Attempt budget for flaky page operations.")
	debugHttp = collectCmd.Flags().Bool("debug-http", false, "Dump every HTTP exchange to .dev/resty/zbooks.")
	rootCmd.AddCommand(collectCmd)
}

var collectCmd = &cobra.Command{
	Use:   "collect [--idempotency-key <key>]",
	Short: "Collects Paid / Partially Paid invoices and writes them to CSV.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := configutil.ReadConfig[Config]("config.json5")
		if err != nil && !os.IsNotExist(err) {
			serviceutil.Fatal("failed to read config", err)
		}

		if *debugHttp {
			zbooks.SetRestyInstrumentOutput(restyutil.NewFilesystemOutput(".dev/resty/zbooks"))
		}
		client, err := zbooks.NewClient(zbooks.ClientOptions{
			BaseUrl:  cfg.BaseUrl,
			MaxPages: cfg.MaxPages,
		})
		if err != nil {
			serviceutil.Fatal("failed to initialize invoices client", err)
		}

		var history *collector.HistoryStore
		if *historyDb != "" {
			database, err := sqliteutil.OpenDB(db.Schema, *historyDb)
			if err != nil {
				serviceutil.Fatal("failed to open history db", err)
			}
			defer database.Close()
			history = collector.NewHistoryStore(database)
		}

		service := collector.NewService(client, history, collector.Options{
			OutputDir: *outDir,
			Retry: retry.Options{
				MaxAttempts: *maxAttempts,
				BaseDelay:   time.Second,
				MaxDelay:    time.Second * 30,
				Retryable:   zbooks.IsTransient,
			},
		})

		result, err := service.Run(cmd.Context(), *idempotencyKey)
		if err != nil {
			serviceutil.Fatal("collection failed", err)
		}

		err = renderCsv(result.OutputPath)
		if err != nil {
			serviceutil.Fatal("failed to render collected data", err)
		}
	},
}

func renderCsv(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	rows, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return err
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	for i, row := range rows {
		cells := make(table.Row, len(row))
		for j, cell := range row {
			cells[j] = cell
		}
		if i == 0 {
			t.AppendHeader(cells)
			continue
		}
		t.AppendRow(cells)
	}
	t.Render()
	return nil
}
