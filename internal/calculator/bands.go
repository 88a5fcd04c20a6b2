package calculator

import "math"

// CalculateBollinger returns upper, middle and lower bands. The middle band
// is the SMA; the width is mult population standard deviations.
func CalculateBollinger(closes []float64, period int, mult float64) (upper, middle, lower []float64) {
	middle = CalculateSMA(closes, period)
	upper = undefinedLine(len(closes))
	lower = undefinedLine(len(closes))
	for i := period - 1; i < len(closes); i++ {
		mean := middle[i]
		variance := 0.0
		for j := i - period + 1; j <= i; j++ {
			d := closes[j] - mean
			variance += d * d
		}
		sd := math.Sqrt(variance / float64(period))
		upper[i] = mean + mult*sd
		lower[i] = mean - mult*sd
	}
	return upper, middle, lower
}

// CalculateMACD returns the MACD line (EMA fast - EMA slow), its signal EMA
// and the histogram.
func CalculateMACD(closes []float64, fast, slow, signal int) (line, sig, hist []float64) {
	fastEMA := CalculateEMA(closes, fast)
	slowEMA := CalculateEMA(closes, slow)
	line = undefinedLine(len(closes))
	for i := range closes {
		if Defined(fastEMA[i]) && Defined(slowEMA[i]) {
			line[i] = fastEMA[i] - slowEMA[i]
		}
	}
	sig = CalculateEMA(line, signal)
	hist = undefinedLine(len(closes))
	for i := range closes {
		if Defined(line[i]) && Defined(sig[i]) {
			hist[i] = line[i] - sig[i]
		}
	}
	return line, sig, hist
}
