package calculator

import "math"

// CalculateROC returns the rate of change close[i]/close[i-period] - 1.
func CalculateROC(closes []float64, period int) []float64 {
	out := undefinedLine(len(closes))
	for i := period; i < len(closes); i++ {
		if closes[i-period] > 0 {
			out[i] = closes[i]/closes[i-period] - 1
		}
	}
	return out
}

// CalculateHighest returns the trailing maximum over period bars, current bar included.
func CalculateHighest(values []float64, period int) []float64 {
	out := undefinedLine(len(values))
	for i := period - 1; i < len(values); i++ {
		high := values[i-period+1]
		for j := i - period + 2; j <= i; j++ {
			if values[j] > high {
				high = values[j]
			}
		}
		out[i] = high
	}
	return out
}

// CalculateLowest returns the trailing minimum over period bars, current bar included.
func CalculateLowest(values []float64, period int) []float64 {
	out := undefinedLine(len(values))
	for i := period - 1; i < len(values); i++ {
		low := values[i-period+1]
		for j := i - period + 2; j <= i; j++ {
			if values[j] < low {
				low = values[j]
			}
		}
		out[i] = low
	}
	return out
}

// RangePosition returns where v sits within [low, high], clamped to 0..1.
// A degenerate range maps to the midpoint.
func RangePosition(v, high, low float64) float64 {
	if !Defined(high) || !Defined(low) || !Defined(v) {
		return math.NaN()
	}
	if high <= low {
		return 0.5
	}
	pos := (v - low) / (high - low)
	if pos < 0 {
		pos = 0
	}
	if pos > 1 {
		pos = 1
	}
	return pos
}
