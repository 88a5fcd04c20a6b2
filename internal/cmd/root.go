package cmd

import (
	"github.com/spf13/cobra"
)

var (
	cfgFile  string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "quantcore",
	Short: "Backtest and rank trading strategies across a symbol universe",
	Long: `QuantCore evaluates trading strategies against historical market data.

Each strategy is backtested on every symbol of a universe, the per-strategy
scores are turned into percentiles and the symbols are ranked by a weighted
composite score.

Requests are JSON files. Market data can be inline in the request or read
from the Parquet store configured under data.parquet_dir.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $CONFIG_PATH or configs/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override logging.level")
}
