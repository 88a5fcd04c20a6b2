package model

import (
	"encoding/json"
	"math"
	"time"
)

// NullFloat is a metric that may be undefined, e.g. a ratio with a zero
// denominator. It encodes as JSON null when not Valid.
type NullFloat struct {
	Value float64
	Valid bool
}

// Defined wraps v, treating NaN and ±Inf as undefined.
func Defined(v float64) NullFloat {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return NullFloat{}
	}
	return NullFloat{Value: v, Valid: true}
}

func (n NullFloat) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(n.Value)
}

func (n *NullFloat) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*n = NullFloat{}
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*n = NullFloat{Value: v, Valid: true}
	return nil
}

// Metrics summarizes a portfolio value path.
type Metrics struct {
	TotalReturn      float64   `json:"total_return"`
	AnnualizedReturn float64   `json:"annualized_return"`
	Volatility       float64   `json:"volatility"`
	Sharpe           NullFloat `json:"sharpe"`
	Sortino          NullFloat `json:"sortino"`
	Calmar           NullFloat `json:"calmar"`
	MaxDrawdown      float64   `json:"max_drawdown"`
	WinRate          NullFloat `json:"win_rate"`
	TradeCount       int       `json:"trade_count"`
}

// FillPolicy fixes when a signal is executed. One policy per run.
type FillPolicy string

const (
	FillNextOpen  FillPolicy = "next_open"
	FillSameClose FillPolicy = "same_close"
)

func (p FillPolicy) Valid() bool {
	return p == FillNextOpen || p == FillSameClose
}

// ValuePoint is one entry of a portfolio value path.
type ValuePoint struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

// BacktestResult is the immutable outcome of one
// (strategy, symbol, params, date range) run.
type BacktestResult struct {
	StrategyID string       `json:"strategy_id"`
	Symbol     string       `json:"symbol"`
	Params     Params       `json:"params,omitempty"`
	From       time.Time    `json:"from"`
	To         time.Time    `json:"to"`
	FillPolicy FillPolicy   `json:"fill_policy"`
	ValuePath  []ValuePoint `json:"value_path"`
	Fills      []Fill       `json:"fills"`
	Trades     []Trade      `json:"trades"`
	Metrics    Metrics      `json:"metrics"`
	Signals    Signals      `json:"-"`
}

// Values extracts the value column of the path.
func (r *BacktestResult) Values() []float64 {
	out := make([]float64, len(r.ValuePath))
	for i, p := range r.ValuePath {
		out[i] = p.Value
	}
	return out
}

// RankedResult is one row of a ranking run.
type RankedResult struct {
	Symbol         string             `json:"symbol"`
	CompositeScore float64            `json:"compositeScore"`
	Grade          string             `json:"grade"`
	Rank           int                `json:"rank"`
	RawValues      map[string]float64 `json:"rawValues"`
	Normalized     map[string]float64 `json:"normalized"`
	ConditionMet   bool               `json:"conditionMet"`
	Metrics        map[string]Metrics `json:"metrics,omitempty"`
}
