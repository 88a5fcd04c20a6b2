package calculator

import "math"

// CalculateSMA computes the trailing simple moving average. The first
// period-1 outputs are undefined (NaN), as is any window containing NaN.
func CalculateSMA(values []float64, period int) []float64 {
	out := undefinedLine(len(values))
	if period <= 0 {
		return out
	}
	for i := period - 1; i < len(values); i++ {
		sum := 0.0
		for j := i - period + 1; j <= i; j++ {
			sum += values[j]
		}
		out[i] = sum / float64(period)
	}
	return out
}

// CalculateEMA computes an exponential moving average seeded with the SMA of
// the first period defined values. Leading NaNs in values are skipped, so an
// EMA of an indicator line starts once enough of that line is defined.
func CalculateEMA(values []float64, period int) []float64 {
	out := undefinedLine(len(values))
	if period <= 0 {
		return out
	}
	start := 0
	for start < len(values) && math.IsNaN(values[start]) {
		start++
	}
	seedAt := start + period - 1
	if seedAt >= len(values) {
		return out
	}

	sum := 0.0
	for i := start; i <= seedAt; i++ {
		sum += values[i]
	}
	out[seedAt] = sum / float64(period)

	alpha := 2.0 / (float64(period) + 1.0)
	for i := seedAt + 1; i < len(values); i++ {
		out[i] = alpha*values[i] + (1-alpha)*out[i-1]
	}
	return out
}
