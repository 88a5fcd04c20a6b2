package ranking

import (
	"math"
	"sort"

	"QuantCore/internal/model"
)

// Grades maps a rank quantile, (rank-1)/n, to a letter. The first entry
// whose bound exceeds the quantile wins.
var Grades = []struct {
	Below float64
	Grade string
}{
	{0.10, "S"},
	{0.30, "A"},
	{0.60, "B"},
}

// DefaultGrade is given to everything past the last bound.
const DefaultGrade = "C"

func mapGrade(q float64) string {
	for _, g := range Grades {
		if q < g.Below {
			return g.Grade
		}
	}
	return DefaultGrade
}

// Ranking is the ordered outcome of one Rank call.
type Ranking struct {
	Results []model.RankedResult
	// Excluded lists universe symbols that lacked a finite value for at
	// least one strategy, in universe order.
	Excluded []string
	// Weights are the normalized weights actually applied.
	Weights map[string]float64
}

// Rank scores every symbol of the universe by the weighted sum of its
// per-strategy percentiles.
//
// Each strategy's raw values are turned into mid-rank percentiles within the
// ranked symbols, (less + 0.5*equal)/n, so higher raw values rank higher and
// ties share a percentile. With no weights every strategy found in values
// counts equally; otherwise the weight keys choose the strategies and the
// weights are scaled to sum to 1. Results are ordered by composite score
// descending, then symbol ascending. Ranks are positions; equal composites
// share a grade.
func Rank(universe []string, values map[string]map[string]float64, weights map[string]float64) (*Ranking, error) {
	w, err := normalizeWeights(values, weights)
	if err != nil {
		return nil, err
	}
	strategies := make([]string, 0, len(w))
	for id := range w {
		strategies = append(strategies, id)
	}
	sort.Strings(strategies)

	out := &Ranking{Weights: w}
	seen := make(map[string]bool, len(universe))
	var symbols []string
	for _, sym := range universe {
		if seen[sym] {
			continue
		}
		seen[sym] = true
		if complete(values[sym], strategies) {
			symbols = append(symbols, sym)
		} else {
			out.Excluded = append(out.Excluded, sym)
		}
	}

	n := len(symbols)
	results := make([]model.RankedResult, n)
	for i, sym := range symbols {
		results[i] = model.RankedResult{
			Symbol:     sym,
			RawValues:  make(map[string]float64, len(strategies)),
			Normalized: make(map[string]float64, len(strategies)),
		}
	}
	for _, id := range strategies {
		column := make([]float64, n)
		for i, sym := range symbols {
			column[i] = values[sym][id]
		}
		for i, p := range percentiles(column) {
			results[i].RawValues[id] = column[i]
			results[i].Normalized[id] = p
			results[i].CompositeScore += w[id] * p
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].CompositeScore != results[j].CompositeScore {
			return results[i].CompositeScore > results[j].CompositeScore
		}
		return results[i].Symbol < results[j].Symbol
	})
	// tied composites take the grade of the best position among them
	lead := 0
	for i := range results {
		if results[i].CompositeScore != results[lead].CompositeScore {
			lead = i
		}
		results[i].Rank = i + 1
		results[i].Grade = mapGrade(float64(lead) / float64(n))
	}
	out.Results = results
	return out, nil
}

func complete(vals map[string]float64, strategies []string) bool {
	for _, id := range strategies {
		v, ok := vals[id]
		if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// percentiles returns the mid-rank percentile of every value. A single value
// sits at 0.5.
func percentiles(xs []float64) []float64 {
	n := float64(len(xs))
	out := make([]float64, len(xs))
	for i, x := range xs {
		less, equal := 0, 0
		for _, y := range xs {
			switch {
			case y < x:
				less++
			case y == x:
				equal++
			}
		}
		out[i] = (float64(less) + 0.5*float64(equal)) / n
	}
	return out
}

// normalizeWeights validates weights and scales them to sum to 1. Without
// weights every strategy present in values gets an equal share.
func normalizeWeights(values map[string]map[string]float64, weights map[string]float64) (map[string]float64, error) {
	if len(weights) == 0 {
		ids := make(map[string]bool)
		for _, vals := range values {
			for id := range vals {
				ids[id] = true
			}
		}
		w := make(map[string]float64, len(ids))
		for id := range ids {
			w[id] = 1 / float64(len(ids))
		}
		return w, nil
	}

	sum := 0.0
	for id, v := range weights {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return nil, model.Errorf(model.KindInvalidParameter, id, "weight %g must be finite and non-negative", v)
		}
		sum += v
	}
	if sum <= 0 {
		return nil, model.Errorf(model.KindInvalidParameter, "weights", "weights must have a positive sum")
	}
	w := make(map[string]float64, len(weights))
	for id, v := range weights {
		w[id] = v / sum
	}
	return w, nil
}

// NormalizeWeights is exported for request validation ahead of ranking.
func NormalizeWeights(weights map[string]float64) (map[string]float64, error) {
	return normalizeWeights(nil, weights)
}
