package cmd

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"QuantCore/internal/model"
	"QuantCore/internal/report"
)

var (
	btStrategy string
	btSymbol   string
	btParams   map[string]string
	btFrom     string
	btTo       string
	btFill     string
	btCapital  float64
	btCalendar string
	btData     string
	btFormat   string
)

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Backtest one strategy on one symbol",
	Long: `Run a single backtest and print its metrics and trade log.

Parameters are given as --param name=value and may be repeated, for example:

  quantcore backtest --strategy rsi_reversion --symbol AAPL --param period=10 --param oversold=25`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := checkFormat(btFormat); err != nil {
			return err
		}
		params, err := parseParams(btParams)
		if err != nil {
			return err
		}
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.close()

		src, err := a.source(btData)
		if err != nil {
			return err
		}
		if src == nil {
			return fmt.Errorf("backtest needs a data source")
		}
		ctx := cmd.Context()
		recs, err := src.Records(ctx, btSymbol)
		if err != nil {
			return err
		}

		res, err := a.engine.Backtest(ctx, &model.BacktestRequest{
			StrategyID:     btStrategy,
			Params:         params,
			Symbol:         btSymbol,
			Records:        recs,
			Calendar:       model.Calendar(btCalendar),
			From:           btFrom,
			To:             btTo,
			InitialCapital: btCapital,
			FillPolicy:     model.FillPolicy(btFill),
		})
		out := cmd.OutOrStdout()
		if err != nil {
			if btFormat == "json" {
				_ = writeJSON(out, model.Payload(err))
			}
			return err
		}
		if btFormat == "json" {
			return writeJSON(out, res)
		}
		_, err = io.WriteString(out, report.FormatBacktest(res))
		return err
	},
}

func parseParams(raw map[string]string) (model.Params, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	p := make(model.Params, len(raw))
	for k, v := range raw {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, model.Errorf(model.KindInvalidParameter, k, "not a number: %q", v)
		}
		p[k] = f
	}
	return p, nil
}

func init() {
	f := backtestCmd.Flags()
	f.StringVar(&btStrategy, "strategy", "", "strategy id (see 'quantcore strategies')")
	f.StringVar(&btSymbol, "symbol", "", "symbol to backtest")
	f.StringToStringVar(&btParams, "param", nil, "strategy parameter as name=value")
	f.StringVar(&btFrom, "from", "", "first date (YYYY-MM-DD)")
	f.StringVar(&btTo, "to", "", "last date (YYYY-MM-DD)")
	f.StringVar(&btFill, "fill", "", "fill policy: next_open or same_close (default from config)")
	f.Float64Var(&btCapital, "capital", 0, "initial capital (default from config)")
	f.StringVar(&btCalendar, "calendar", "", "bar calendar: daily or weekly")
	f.StringVar(&btData, "data", "parquet", "market data source: parquet or mock")
	f.StringVar(&btFormat, "format", "text", "output format: text or json")
	_ = backtestCmd.MarkFlagRequired("strategy")
	_ = backtestCmd.MarkFlagRequired("symbol")
	rootCmd.AddCommand(backtestCmd)
}
