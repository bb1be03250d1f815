package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"zbooks-collector/lib/telemetry"
)

var verbose *bool

var rootCmd = &cobra.Command{
	Use:   "zbooks-collector",
	Short: "zbooks-collector scrapes paid invoices out of the Zoho Books accounting demo.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		telemetry.InitSlog(*verbose)
	},
}

func init() {
	verbose = rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging.")
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
