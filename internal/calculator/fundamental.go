package calculator

import (
	"math"

	"QuantCore/internal/model"
)

// fundamentalLine projects a fundamental field onto a line. Unknown values
// stay undefined. PEG is PE divided by EPS growth in percent and is only
// defined when both are positive.
func fundamentalLine(k Kind, s *model.Series) []float64 {
	return s.Field(func(p model.PricePoint) float64 {
		f := p.Fundamentals
		switch k {
		case KindPE:
			return f.PERatio
		case KindPB:
			return f.PBRatio
		case KindROE:
			return f.ROE
		case KindDividendYield:
			return f.DividendYield
		case KindDebtToEquity:
			return f.DebtToEquity
		case KindMarketCap:
			return f.MarketCap
		case KindPEG:
			if f.PERatio > 0 && f.EPSGrowth > 0 {
				return f.PERatio / (f.EPSGrowth * 100)
			}
		}
		return math.NaN()
	})
}
