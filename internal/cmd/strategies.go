package cmd

import (
	"io"

	"github.com/spf13/cobra"

	"QuantCore/internal/report"
	"QuantCore/internal/strategy"
)

var strategiesJSON bool

var strategiesCmd = &cobra.Command{
	Use:   "strategies",
	Short: "List the strategy catalog",
	Long: `List every registered strategy with its category and parameters.

Timing strategies trade on price indicators, fundamental strategies screen on
valuation and quality ratios, composite strategies combine members. Use
--json for machine-readable output.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		defs := strategy.Default().List()
		if strategiesJSON {
			return writeJSON(cmd.OutOrStdout(), defs)
		}
		_, err := io.WriteString(cmd.OutOrStdout(), report.FormatStrategies(defs))
		return err
	},
}

func init() {
	strategiesCmd.Flags().BoolVar(&strategiesJSON, "json", false, "output the catalog as JSON")
	rootCmd.AddCommand(strategiesCmd)
}
