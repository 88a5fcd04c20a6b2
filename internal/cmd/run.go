package cmd

import (
	"context"
	"io"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"QuantCore/internal/model"
	"QuantCore/internal/report"
	"QuantCore/internal/scheduler"
)

var (
	runData   string
	runFormat string
	runRecord bool
)

var runCmd = &cobra.Command{
	Use:   "run <request.json>",
	Short: "Analyze and rank a universe from a request file",
	Long: `Run a ranking request once and print the result.

Symbols in the universe without inline market_data are read from --data.
With --format json the response (or the error payload) is printed as JSON.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := checkFormat(runFormat); err != nil {
			return err
		}
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.close()

		src, err := a.source(runData)
		if err != nil {
			return err
		}
		rec := a.openRecorder(runRecord)
		defer rec.Close()

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		sched := scheduler.NewScheduler(ctx, a.engine, src, rec, a.logger)
		resp, err := sched.RunFile("cli", args[0])
		out := cmd.OutOrStdout()
		if err != nil {
			if runFormat == "json" {
				_ = writeJSON(out, model.Payload(err))
			}
			return err
		}
		if runFormat == "json" {
			return writeJSON(out, resp)
		}
		_, err = io.WriteString(out, report.FormatRanking(resp))
		return err
	},
}

func init() {
	runCmd.Flags().StringVar(&runData, "data", "parquet", "market data source for symbols without inline data: parquet, mock or none")
	runCmd.Flags().StringVar(&runFormat, "format", "text", "output format: text or json")
	runCmd.Flags().BoolVar(&runRecord, "record", false, "store the run in the SQLite history")
	rootCmd.AddCommand(runCmd)
}
