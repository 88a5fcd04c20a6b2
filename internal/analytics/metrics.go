package analytics

import (
	"math"

	"QuantCore/internal/model"
)

// DefaultTradingDaysPerYear is used when Options leaves it unset.
const DefaultTradingDaysPerYear = 252

// Options tunes annualization and the risk-free hurdle of the ratios.
type Options struct {
	TradingDaysPerYear float64
	RiskFreeRate       float64
}

func (o Options) withDefaults() Options {
	if o.TradingDaysPerYear == 0 {
		o.TradingDaysPerYear = DefaultTradingDaysPerYear
	}
	return o
}

// Summarize computes the metrics of a value path.
//
//	total_return      = v[last]/v[0] - 1
//	annualized_return = (1+total_return)^(tdpy/periods) - 1, periods = len(path)-1
//	volatility        = sample stdev(daily returns) * sqrt(tdpy)
//	sharpe            = (annualized - rf) / volatility
//	sortino           = (annualized - rf) / (rms(negative returns) * sqrt(tdpy))
//	calmar            = annualized / |max_drawdown|
//	max_drawdown      = min_t v[t]/max(v[0..t]) - 1
//	win_rate          = winning trades / closed trades
//
// Ratios with a zero denominator are left undefined.
func Summarize(path []float64, trades []model.Trade, opts Options) (model.Metrics, error) {
	opts = opts.withDefaults()
	if len(path) < 2 {
		return model.Metrics{}, model.Errorf(model.KindInsufficientData, "value_path", "need at least 2 points, have %d", len(path))
	}
	if !finite(opts.TradingDaysPerYear) || opts.TradingDaysPerYear <= 0 {
		return model.Metrics{}, model.Errorf(model.KindInvalidParameter, "trading_days_per_year", "must be positive")
	}
	if !finite(opts.RiskFreeRate) {
		return model.Metrics{}, model.Errorf(model.KindInvalidParameter, "risk_free_rate", "must be finite")
	}
	for i, v := range path {
		if !finite(v) || v < 0 {
			return model.Metrics{}, model.Errorf(model.KindDataValidation, "value_path", "value %d is %g", i, v)
		}
	}
	if path[0] <= 0 {
		return model.Metrics{}, model.Errorf(model.KindDataValidation, "value_path", "first value must be positive")
	}

	m := model.Metrics{TradeCount: len(trades)}
	m.TotalReturn = path[len(path)-1]/path[0] - 1
	m.AnnualizedReturn = annualize(m.TotalReturn, opts.TradingDaysPerYear, len(path)-1)

	returns := DailyReturns(path)
	scale := math.Sqrt(opts.TradingDaysPerYear)
	m.Volatility = SampleStdDev(returns) * scale
	m.MaxDrawdown = MaxDrawdown(path)

	excess := m.AnnualizedReturn - opts.RiskFreeRate
	if m.Volatility > 0 {
		m.Sharpe = model.Defined(excess / m.Volatility)
	}
	if dd := DownsideDeviation(returns) * scale; dd > 0 {
		m.Sortino = model.Defined(excess / dd)
	}
	if m.MaxDrawdown < 0 {
		m.Calmar = model.Defined(m.AnnualizedReturn / math.Abs(m.MaxDrawdown))
	}
	m.WinRate = WinRate(trades)
	return m, nil
}

func annualize(total, tdpy float64, periods int) float64 {
	growth := 1 + total
	if growth <= 0 {
		return -1
	}
	return math.Pow(growth, tdpy/float64(periods)) - 1
}

// DailyReturns returns the simple bar-to-bar returns. A bar following a
// zero value has return 0.
func DailyReturns(path []float64) []float64 {
	if len(path) < 2 {
		return nil
	}
	out := make([]float64, len(path)-1)
	for i := 1; i < len(path); i++ {
		if path[i-1] > 0 {
			out[i-1] = path[i]/path[i-1] - 1
		}
	}
	return out
}

// SampleStdDev is the n-1 standard deviation; 0 for fewer than two values.
func SampleStdDev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	mean := 0.0
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))

	variance := 0.0
	for _, x := range xs {
		d := x - mean
		variance += d * d
	}
	return math.Sqrt(variance / float64(len(xs)-1))
}

// DownsideDeviation is the root mean square of the negative returns only.
// It is 0 when no return is negative.
func DownsideDeviation(returns []float64) float64 {
	sum, n := 0.0, 0
	for _, r := range returns {
		if r < 0 {
			sum += r * r
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return math.Sqrt(sum / float64(n))
}

// MaxDrawdown returns the deepest peak-to-trough decline as a value <= 0.
func MaxDrawdown(path []float64) float64 {
	peak := 0.0
	maxDD := 0.0
	for _, v := range path {
		if v > peak {
			peak = v
		}
		if peak <= 0 {
			continue
		}
		if dd := v/peak - 1; dd < maxDD {
			maxDD = dd
		}
	}
	return maxDD
}

// WinRate is the share of closed trades with positive realized P&L.
func WinRate(trades []model.Trade) model.NullFloat {
	if len(trades) == 0 {
		return model.NullFloat{}
	}
	wins := 0
	for _, t := range trades {
		if t.RealizedPnL.IsPositive() {
			wins++
		}
	}
	return model.Defined(float64(wins) / float64(len(trades)))
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
