package report

import (
	"fmt"
	"sort"
	"strings"

	"QuantCore/internal/model"
	"QuantCore/internal/recorder"
	"QuantCore/internal/strategy"
)

// FormatRanking renders a ranking response as a plain-text table.
func FormatRanking(resp *model.Response) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("QuantCore ranking | run %s | %s\n\n",
		resp.RunID, resp.Reliability.CompletedAt.Format("2006-01-02 15:04")))

	b.WriteString(fmt.Sprintf("analyzed: %d | condition met: %d\n", resp.TotalAnalyzed, resp.ConditionMet))
	b.WriteString(fmt.Sprintf("data quality: %.0f%% | coverage: %.0f%%\n\n",
		resp.Reliability.DataQuality*100, resp.Reliability.Coverage*100))

	if len(resp.Results) == 0 {
		b.WriteString("no symbol could be ranked\n")
	} else {
		ids := strategyIDs(resp.Results)
		b.WriteString(fmt.Sprintf("%4s  %-10s %5s %9s  %s\n", "rank", "symbol", "grade", "score", "met"))
		for _, r := range resp.Results {
			met := ""
			if r.ConditionMet {
				met = "*"
			}
			b.WriteString(fmt.Sprintf("%4d  %-10s %5s %9.4f  %s\n", r.Rank, r.Symbol, r.Grade, r.CompositeScore, met))
			for _, id := range ids {
				line := fmt.Sprintf("      %-20s raw %+.4f  pct %.2f", id, r.RawValues[id], r.Normalized[id])
				if m, ok := r.Metrics[id]; ok {
					line += fmt.Sprintf("  ret %+.2f%%  mdd %.2f%%  trades %d",
						m.TotalReturn*100, m.MaxDrawdown*100, m.TradeCount)
				}
				b.WriteString(line + "\n")
			}
		}
	}

	if len(resp.Failures) > 0 {
		b.WriteString("\nexcluded:\n")
		for _, f := range resp.Failures {
			who := f.Symbol
			if f.Strategy != "" {
				who += "/" + f.Strategy
			}
			b.WriteString(fmt.Sprintf("  %s: %s (%s)\n", who, f.Kind, f.Detail))
		}
	}
	return b.String()
}

// FormatBacktest renders a single backtest with its trade log.
func FormatBacktest(res *model.BacktestResult) string {
	var b strings.Builder
	m := res.Metrics

	b.WriteString(fmt.Sprintf("%s on %s | %s to %s | fill %s\n\n",
		res.StrategyID, res.Symbol, res.From.Format("2006-01-02"), res.To.Format("2006-01-02"), res.FillPolicy))

	if n := len(res.ValuePath); n > 0 {
		b.WriteString(fmt.Sprintf("start value: %.2f | end value: %.2f\n", res.ValuePath[0].Value, res.ValuePath[n-1].Value))
	}
	b.WriteString(fmt.Sprintf("total return: %+.2f%% | annualized: %+.2f%%\n", m.TotalReturn*100, m.AnnualizedReturn*100))
	b.WriteString(fmt.Sprintf("volatility: %.2f%% | max drawdown: %.2f%%\n", m.Volatility*100, m.MaxDrawdown*100))
	b.WriteString(fmt.Sprintf("sharpe: %s | sortino: %s | calmar: %s\n", ratio(m.Sharpe), ratio(m.Sortino), ratio(m.Calmar)))
	win := "n/a"
	if m.WinRate.Valid {
		win = fmt.Sprintf("%.0f%%", m.WinRate.Value*100)
	}
	b.WriteString(fmt.Sprintf("trades: %d | win rate: %s\n", m.TradeCount, win))

	if len(res.Trades) > 0 {
		b.WriteString("\ntrades:\n")
		for _, t := range res.Trades {
			b.WriteString(fmt.Sprintf("  %s -> %s  %d @ %s -> %s  pnl %s\n",
				t.EntryDate.Format("2006-01-02"), t.ExitDate.Format("2006-01-02"), t.Quantity,
				t.EntryPrice.StringFixed(2), t.ExitPrice.StringFixed(2), t.RealizedPnL.StringFixed(2)))
		}
	}
	return b.String()
}

// FormatHistory renders recorded runs, newest first.
func FormatHistory(runs []recorder.RunSummary) string {
	if len(runs) == 0 {
		return "no recorded runs\n"
	}
	var b strings.Builder
	for _, r := range runs {
		b.WriteString(fmt.Sprintf("%s  %-16s %-36s ranked %d/%d  met %d  top %s\n",
			r.Timestamp.Format("2006-01-02 15:04"), r.Source, r.RunID, r.Ranked, r.TotalAnalyzed, r.ConditionMet, r.TopSymbol))
	}
	return b.String()
}

// FormatStrategies lists the catalog with parameter defaults.
func FormatStrategies(defs []strategy.Definition) string {
	var b strings.Builder
	for _, d := range defs {
		b.WriteString(fmt.Sprintf("%-20s %-12s %s\n", d.ID, d.Category, d.Description))
		for _, p := range d.Params {
			b.WriteString(fmt.Sprintf("    %-28s default %-8g range [%g, %g]\n", p.Name, p.Default, p.Min, p.Max))
		}
	}
	return b.String()
}

func ratio(v model.NullFloat) string {
	if !v.Valid {
		return "n/a"
	}
	return fmt.Sprintf("%.2f", v.Value)
}

func strategyIDs(results []model.RankedResult) []string {
	ids := make([]string, 0, len(results[0].RawValues))
	for id := range results[0].RawValues {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
