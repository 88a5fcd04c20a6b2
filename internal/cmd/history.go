package cmd

import (
	"io"

	"github.com/spf13/cobra"

	"QuantCore/internal/report"
)

var (
	historyLimit int
	historyJSON  bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recorded ranking runs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.close()

		rec := a.openRecorder(true)
		defer rec.Close()

		runs, err := rec.RecentRuns(historyLimit)
		if err != nil {
			return err
		}
		if historyJSON {
			return writeJSON(cmd.OutOrStdout(), runs)
		}
		_, err = io.WriteString(cmd.OutOrStdout(), report.FormatHistory(runs))
		return err
	},
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "number of runs to show")
	historyCmd.Flags().BoolVar(&historyJSON, "json", false, "output as JSON")
	rootCmd.AddCommand(historyCmd)
}
