package strategy

import (
	"QuantCore/internal/calculator"
	"QuantCore/internal/model"
)

// MomentumParams configures simple_momentum.
type MomentumParams struct {
	Lookback int
	Entry    float64
	Exit     float64
}

type momentum struct{ p MomentumParams }

func newMomentum(raw model.Params) (Strategy, error) {
	v, err := resolve("simple_momentum", momentumParams, raw)
	if err != nil {
		return nil, err
	}
	p := MomentumParams{Lookback: int(v["lookback"]), Entry: v["entry"], Exit: v["exit"]}
	if p.Exit > p.Entry {
		return nil, model.Errorf(model.KindInvalidParameter, "simple_momentum", "exit %g above entry %g", p.Exit, p.Entry)
	}
	return &momentum{p: p}, nil
}

var momentumParams = []ParamSpec{
	{Name: "lookback", Default: 20, Min: 1, Max: 500, Integer: true, Description: "rate-of-change window in bars"},
	{Name: "entry", Default: 0.05, Min: -1, Max: 10, Description: "buy when ROC rises above this"},
	{Name: "exit", Default: 0, Min: -1, Max: 10, Description: "sell when ROC falls below this"},
}

func (m *momentum) ID() string         { return "simple_momentum" }
func (m *momentum) Category() Category { return CategoryMomentum }
func (m *momentum) Indicators() []calculator.Spec {
	return []calculator.Spec{calculator.ROC(m.p.Lookback)}
}

func (m *momentum) Evaluate(s *model.Series, frame model.IndicatorFrame) (model.Signals, error) {
	roc, err := frameLine(m.ID(), frame, calculator.ROC(m.p.Lookback).Key(), s.Len())
	if err != nil {
		return nil, err
	}
	return track(s, rule{
		enter: func(i int) bool { return crossedAbove(roc, i, m.p.Entry) },
		exit:  func(i int) bool { return crossedBelow(roc, i, m.p.Exit) },
		score: at(roc),
	}), nil
}

// CrossoverParams configures ma_crossover.
type CrossoverParams struct {
	Fast int
	Slow int
}

type maCrossover struct{ p CrossoverParams }

var crossoverParams = []ParamSpec{
	{Name: "fast", Default: 10, Min: 1, Max: 500, Integer: true, Description: "fast SMA period"},
	{Name: "slow", Default: 30, Min: 2, Max: 1000, Integer: true, Description: "slow SMA period"},
}

func newCrossover(raw model.Params) (Strategy, error) {
	v, err := resolve("ma_crossover", crossoverParams, raw)
	if err != nil {
		return nil, err
	}
	p := CrossoverParams{Fast: int(v["fast"]), Slow: int(v["slow"])}
	if p.Fast >= p.Slow {
		return nil, model.Errorf(model.KindInvalidParameter, "ma_crossover", "fast %d must be below slow %d", p.Fast, p.Slow)
	}
	return &maCrossover{p: p}, nil
}

func (m *maCrossover) ID() string         { return "ma_crossover" }
func (m *maCrossover) Category() Category { return CategoryMomentum }
func (m *maCrossover) Indicators() []calculator.Spec {
	return []calculator.Spec{calculator.SMA(m.p.Fast), calculator.SMA(m.p.Slow)}
}

func (m *maCrossover) Evaluate(s *model.Series, frame model.IndicatorFrame) (model.Signals, error) {
	fast, err := frameLine(m.ID(), frame, calculator.SMA(m.p.Fast).Key(), s.Len())
	if err != nil {
		return nil, err
	}
	slow, err := frameLine(m.ID(), frame, calculator.SMA(m.p.Slow).Key(), s.Len())
	if err != nil {
		return nil, err
	}
	return track(s, rule{
		enter: func(i int) bool { return crossedOver(fast, slow, i) },
		exit:  func(i int) bool { return crossedUnder(fast, slow, i) },
		score: func(i int) float64 { return fast[i]/slow[i] - 1 },
	}), nil
}

// MACDParams configures macd_cross.
type MACDParams struct {
	Fast   int
	Slow   int
	Signal int
}

type macdCross struct{ p MACDParams }

var macdParams = []ParamSpec{
	{Name: "fast", Default: 12, Min: 1, Max: 500, Integer: true, Description: "fast EMA period"},
	{Name: "slow", Default: 26, Min: 2, Max: 1000, Integer: true, Description: "slow EMA period"},
	{Name: "signal", Default: 9, Min: 1, Max: 500, Integer: true, Description: "signal EMA period"},
}

func newMACDCross(raw model.Params) (Strategy, error) {
	v, err := resolve("macd_cross", macdParams, raw)
	if err != nil {
		return nil, err
	}
	p := MACDParams{Fast: int(v["fast"]), Slow: int(v["slow"]), Signal: int(v["signal"])}
	if p.Fast >= p.Slow {
		return nil, model.Errorf(model.KindInvalidParameter, "macd_cross", "fast %d must be below slow %d", p.Fast, p.Slow)
	}
	return &macdCross{p: p}, nil
}

func (m *macdCross) ID() string         { return "macd_cross" }
func (m *macdCross) Category() Category { return CategoryMomentum }
func (m *macdCross) spec() calculator.Spec {
	return calculator.MACD(m.p.Fast, m.p.Slow, m.p.Signal)
}
func (m *macdCross) Indicators() []calculator.Spec { return []calculator.Spec{m.spec()} }

// Evaluate buys when the histogram turns positive and sells when it turns
// negative. The score is the histogram scaled by price.
func (m *macdCross) Evaluate(s *model.Series, frame model.IndicatorFrame) (model.Signals, error) {
	hist, err := frameLine(m.ID(), frame, m.spec().Part(calculator.Hist), s.Len())
	if err != nil {
		return nil, err
	}
	closes := s.Closes()
	return track(s, rule{
		enter: func(i int) bool { return crossedAbove(hist, i, 0) },
		exit:  func(i int) bool { return crossedBelow(hist, i, 0) },
		score: func(i int) float64 { return hist[i] / closes[i] },
	}), nil
}

// BreakoutParams configures channel_breakout.
type BreakoutParams struct {
	Period int
}

type channelBreakout struct{ p BreakoutParams }

var breakoutParams = []ParamSpec{
	{Name: "period", Default: 20, Min: 2, Max: 500, Integer: true, Description: "Donchian channel length in bars"},
}

func newBreakout(raw model.Params) (Strategy, error) {
	v, err := resolve("channel_breakout", breakoutParams, raw)
	if err != nil {
		return nil, err
	}
	return &channelBreakout{p: BreakoutParams{Period: int(v["period"])}}, nil
}

func (c *channelBreakout) ID() string         { return "channel_breakout" }
func (c *channelBreakout) Category() Category { return CategoryMomentum }
func (c *channelBreakout) Indicators() []calculator.Spec {
	return []calculator.Spec{calculator.Highest(c.p.Period), calculator.Lowest(c.p.Period)}
}

// Evaluate compares each close with the channel of the preceding bars, so
// the current bar never sets its own breakout level.
func (c *channelBreakout) Evaluate(s *model.Series, frame model.IndicatorFrame) (model.Signals, error) {
	high, err := frameLine(c.ID(), frame, calculator.Highest(c.p.Period).Key(), s.Len())
	if err != nil {
		return nil, err
	}
	low, err := frameLine(c.ID(), frame, calculator.Lowest(c.p.Period).Key(), s.Len())
	if err != nil {
		return nil, err
	}
	closes := s.Closes()
	return track(s, rule{
		enter: func(i int) bool { return i > 0 && defined(high[i-1]) && closes[i] > high[i-1] },
		exit:  func(i int) bool { return i > 0 && defined(low[i-1]) && closes[i] < low[i-1] },
		score: func(i int) float64 {
			if i == 0 {
				return calculator.RangePosition(closes[i], high[i], low[i])
			}
			return calculator.RangePosition(closes[i], high[i-1], low[i-1])
		},
	}), nil
}

// RSIParams configures rsi_reversion.
type RSIParams struct {
	Period     int
	Oversold   float64
	Overbought float64
}

type rsiReversion struct{ p RSIParams }

var rsiParams = []ParamSpec{
	{Name: "period", Default: 14, Min: 2, Max: 500, Integer: true, Description: "RSI period"},
	{Name: "oversold", Default: 30, Min: 0, Max: 100, Description: "buy when RSI falls below this"},
	{Name: "overbought", Default: 70, Min: 0, Max: 100, Description: "sell when RSI rises above this"},
}

func newRSIReversion(raw model.Params) (Strategy, error) {
	v, err := resolve("rsi_reversion", rsiParams, raw)
	if err != nil {
		return nil, err
	}
	p := RSIParams{Period: int(v["period"]), Oversold: v["oversold"], Overbought: v["overbought"]}
	if p.Oversold >= p.Overbought {
		return nil, model.Errorf(model.KindInvalidParameter, "rsi_reversion",
			"oversold %g must be below overbought %g", p.Oversold, p.Overbought)
	}
	return &rsiReversion{p: p}, nil
}

func (r *rsiReversion) ID() string         { return "rsi_reversion" }
func (r *rsiReversion) Category() Category { return CategoryMeanReversion }
func (r *rsiReversion) Indicators() []calculator.Spec {
	return []calculator.Spec{calculator.RSI(r.p.Period)}
}

func (r *rsiReversion) Evaluate(s *model.Series, frame model.IndicatorFrame) (model.Signals, error) {
	rsi, err := frameLine(r.ID(), frame, calculator.RSI(r.p.Period).Key(), s.Len())
	if err != nil {
		return nil, err
	}
	return track(s, rule{
		enter: func(i int) bool { return crossedBelow(rsi, i, r.p.Oversold) },
		exit:  func(i int) bool { return crossedAbove(rsi, i, r.p.Overbought) },
		score: func(i int) float64 { return 50 - rsi[i] },
	}), nil
}

// BollingerParams configures bollinger_reversal.
type BollingerParams struct {
	Period int
	Mult   float64
}

type bollingerReversal struct{ p BollingerParams }

var bollingerParams = []ParamSpec{
	{Name: "period", Default: 20, Min: 2, Max: 500, Integer: true, Description: "band SMA period"},
	{Name: "mult", Default: 2, Min: 0.1, Max: 10, Description: "band width in standard deviations"},
}

func newBollingerReversal(raw model.Params) (Strategy, error) {
	v, err := resolve("bollinger_reversal", bollingerParams, raw)
	if err != nil {
		return nil, err
	}
	return &bollingerReversal{p: BollingerParams{Period: int(v["period"]), Mult: v["mult"]}}, nil
}

func (b *bollingerReversal) ID() string         { return "bollinger_reversal" }
func (b *bollingerReversal) Category() Category { return CategoryMeanReversion }
func (b *bollingerReversal) spec() calculator.Spec {
	return calculator.Bollinger(b.p.Period, b.p.Mult)
}
func (b *bollingerReversal) Indicators() []calculator.Spec { return []calculator.Spec{b.spec()} }

// Evaluate buys when the close drops under the lower band and sells once it
// recovers above the middle band. Score is 0.5 - %B.
func (b *bollingerReversal) Evaluate(s *model.Series, frame model.IndicatorFrame) (model.Signals, error) {
	n := s.Len()
	upper, err := frameLine(b.ID(), frame, b.spec().Part(calculator.Upper), n)
	if err != nil {
		return nil, err
	}
	middle, err := frameLine(b.ID(), frame, b.spec().Part(calculator.Middle), n)
	if err != nil {
		return nil, err
	}
	lower, err := frameLine(b.ID(), frame, b.spec().Part(calculator.Lower), n)
	if err != nil {
		return nil, err
	}
	closes := s.Closes()
	return track(s, rule{
		enter: func(i int) bool { return crossedUnder(closes, lower, i) },
		exit:  func(i int) bool { return crossedOver(closes, middle, i) },
		score: func(i int) float64 {
			return 0.5 - calculator.RangePosition(closes[i], upper[i], lower[i])
		},
	}), nil
}
