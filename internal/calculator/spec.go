package calculator

import (
	"fmt"
	"math"

	"QuantCore/internal/model"
)

// Kind names an indicator.
type Kind string

const (
	KindSMA           Kind = "sma"
	KindEMA           Kind = "ema"
	KindRSI           Kind = "rsi"
	KindBollinger     Kind = "bollinger"
	KindMACD          Kind = "macd"
	KindROC           Kind = "roc"
	KindHighest       Kind = "highest"
	KindLowest        Kind = "lowest"
	KindPE            Kind = "pe"
	KindPB            Kind = "pb"
	KindROE           Kind = "roe"
	KindDividendYield Kind = "dividend_yield"
	KindDebtToEquity  Kind = "debt_to_equity"
	KindMarketCap     Kind = "market_cap"
	KindPEG           Kind = "peg"
)

// Spec identifies one indicator computation. Unused fields are ignored.
type Spec struct {
	Kind   Kind
	Period int
	Fast   int
	Slow   int
	Signal int
	Mult   float64
}

func SMA(period int) Spec     { return Spec{Kind: KindSMA, Period: period} }
func EMA(period int) Spec     { return Spec{Kind: KindEMA, Period: period} }
func RSI(period int) Spec     { return Spec{Kind: KindRSI, Period: period} }
func ROC(period int) Spec     { return Spec{Kind: KindROC, Period: period} }
func Highest(period int) Spec { return Spec{Kind: KindHighest, Period: period} }
func Lowest(period int) Spec  { return Spec{Kind: KindLowest, Period: period} }
func Fundamental(k Kind) Spec { return Spec{Kind: k} }

func Bollinger(period int, mult float64) Spec {
	return Spec{Kind: KindBollinger, Period: period, Mult: mult}
}
func MACD(fast, slow, signal int) Spec {
	return Spec{Kind: KindMACD, Fast: fast, Slow: slow, Signal: signal}
}

// Output line suffixes for multi-line indicators.
const (
	Upper  = "upper"
	Middle = "middle"
	Lower  = "lower"
	Line   = "line"
	Signal = "signal"
	Hist   = "hist"
)

func isFundamental(k Kind) bool {
	switch k {
	case KindPE, KindPB, KindROE, KindDividendYield, KindDebtToEquity, KindMarketCap, KindPEG:
		return true
	}
	return false
}

// WithDefaults fills zero fields with the documented defaults.
func (s Spec) WithDefaults() Spec {
	switch s.Kind {
	case KindRSI:
		if s.Period == 0 {
			s.Period = 14
		}
	case KindBollinger:
		if s.Period == 0 {
			s.Period = 20
		}
		if s.Mult == 0 {
			s.Mult = 2
		}
	case KindMACD:
		if s.Fast == 0 {
			s.Fast = 12
		}
		if s.Slow == 0 {
			s.Slow = 26
		}
		if s.Signal == 0 {
			s.Signal = 9
		}
	case KindSMA, KindEMA, KindROC, KindHighest, KindLowest:
		if s.Period == 0 {
			s.Period = 20
		}
	}
	return s
}

// Key is the frame key of a single-line indicator, and the prefix of a
// multi-line one.
func (s Spec) Key() string {
	s = s.WithDefaults()
	switch {
	case s.Kind == KindBollinger:
		return fmt.Sprintf("%s(%d,%g)", s.Kind, s.Period, s.Mult)
	case s.Kind == KindMACD:
		return fmt.Sprintf("%s(%d,%d,%d)", s.Kind, s.Fast, s.Slow, s.Signal)
	case isFundamental(s.Kind):
		return string(s.Kind)
	default:
		return fmt.Sprintf("%s(%d)", s.Kind, s.Period)
	}
}

// Part is the frame key of one line of a multi-line indicator.
func (s Spec) Part(name string) string {
	return s.Key() + "." + name
}

// MinBars is the shortest series the indicator accepts.
func (s Spec) MinBars() int {
	s = s.WithDefaults()
	switch s.Kind {
	case KindRSI, KindROC:
		return s.Period + 1
	case KindMACD:
		return s.Slow + s.Signal - 1
	case KindSMA, KindEMA, KindBollinger, KindHighest, KindLowest:
		return s.Period
	default:
		return 1
	}
}

func (s Spec) validate() error {
	switch s.Kind {
	case KindSMA, KindEMA, KindRSI, KindROC, KindHighest, KindLowest:
		if s.Period <= 0 {
			return model.Errorf(model.KindInvalidParameter, s.Key(), "period must be positive")
		}
	case KindBollinger:
		if s.Period <= 0 {
			return model.Errorf(model.KindInvalidParameter, s.Key(), "period must be positive")
		}
		if s.Mult <= 0 || math.IsNaN(s.Mult) || math.IsInf(s.Mult, 0) {
			return model.Errorf(model.KindInvalidParameter, s.Key(), "multiplier must be positive")
		}
	case KindMACD:
		if s.Fast <= 0 || s.Slow <= 0 || s.Signal <= 0 {
			return model.Errorf(model.KindInvalidParameter, s.Key(), "periods must be positive")
		}
		if s.Fast >= s.Slow {
			return model.Errorf(model.KindInvalidParameter, s.Key(), "fast period must be below slow period")
		}
	default:
		if !isFundamental(s.Kind) {
			return model.Errorf(model.KindInvalidParameter, string(s.Kind), "unknown indicator")
		}
	}
	return nil
}

// Compute evaluates one indicator over the series. The returned lines are
// keyed the way BuildFrame stores them and have the series length.
func Compute(spec Spec, s *model.Series) (map[string][]float64, error) {
	spec = spec.WithDefaults()
	if err := spec.validate(); err != nil {
		return nil, err
	}
	if s.Len() < spec.MinBars() {
		return nil, model.Errorf(model.KindInsufficientData, s.Symbol,
			"%s needs %d bars, have %d", spec.Key(), spec.MinBars(), s.Len())
	}

	closes := s.Closes()
	key := spec.Key()
	switch spec.Kind {
	case KindSMA:
		return map[string][]float64{key: CalculateSMA(closes, spec.Period)}, nil
	case KindEMA:
		return map[string][]float64{key: CalculateEMA(closes, spec.Period)}, nil
	case KindRSI:
		return map[string][]float64{key: CalculateRSI(closes, spec.Period)}, nil
	case KindROC:
		return map[string][]float64{key: CalculateROC(closes, spec.Period)}, nil
	case KindHighest:
		highs := s.Field(func(p model.PricePoint) float64 { return p.High })
		return map[string][]float64{key: CalculateHighest(highs, spec.Period)}, nil
	case KindLowest:
		lows := s.Field(func(p model.PricePoint) float64 { return p.Low })
		return map[string][]float64{key: CalculateLowest(lows, spec.Period)}, nil
	case KindBollinger:
		upper, middle, lower := CalculateBollinger(closes, spec.Period, spec.Mult)
		return map[string][]float64{
			spec.Part(Upper):  upper,
			spec.Part(Middle): middle,
			spec.Part(Lower):  lower,
		}, nil
	case KindMACD:
		line, signal, hist := CalculateMACD(closes, spec.Fast, spec.Slow, spec.Signal)
		return map[string][]float64{
			spec.Part(Line):   line,
			spec.Part(Signal): signal,
			spec.Part(Hist):   hist,
		}, nil
	default:
		return map[string][]float64{key: fundamentalLine(spec.Kind, s)}, nil
	}
}

// BuildFrame computes every spec once and merges the lines into one frame.
func BuildFrame(s *model.Series, specs []Spec) (model.IndicatorFrame, error) {
	frame := make(model.IndicatorFrame, len(specs))
	seen := make(map[string]bool, len(specs))
	for _, spec := range specs {
		if seen[spec.Key()] {
			continue
		}
		seen[spec.Key()] = true
		lines, err := Compute(spec, s)
		if err != nil {
			return nil, err
		}
		for k, v := range lines {
			frame[k] = v
		}
	}
	return frame, nil
}

// Defined reports whether v is a usable indicator value.
func Defined(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func undefinedLine(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}
