package strategy

import (
	"math"
	"sort"
	"strings"

	"QuantCore/internal/calculator"
	"QuantCore/internal/model"
)

// Category groups strategies by investment style.
type Category string

const (
	CategoryMomentum      Category = "momentum"
	CategoryMeanReversion Category = "mean_reversion"
	CategoryValue         Category = "value"
	CategoryGrowth        Category = "growth"
	CategoryQuality       Category = "quality"
	CategoryComposite     Category = "composite"
)

// Strategy turns a Series and its precomputed indicators into one signal per
// bar. Implementations are immutable and safe for concurrent use.
type Strategy interface {
	ID() string
	Category() Category
	// Indicators lists what Evaluate reads from the frame.
	Indicators() []calculator.Spec
	Evaluate(s *model.Series, frame model.IndicatorFrame) (model.Signals, error)
}

// ParamSpec describes one numeric parameter of a strategy.
type ParamSpec struct {
	Name        string  `json:"name"`
	Default     float64 `json:"default"`
	Min         float64 `json:"min"`
	Max         float64 `json:"max"`
	Integer     bool    `json:"integer,omitempty"`
	Description string  `json:"description"`
}

// Definition is a catalog entry: metadata plus a constructor that decodes
// loosely typed params into the strategy's own parameter struct.
type Definition struct {
	ID          string                                 `json:"id"`
	Category    Category                               `json:"category"`
	Description string                                 `json:"description"`
	Params      []ParamSpec                            `json:"params"`
	New         func(p model.Params) (Strategy, error) `json:"-"`
}

// resolve applies defaults and bounds. Unknown keys and out-of-range values
// are rejected; nothing is clamped.
func resolve(id string, specs []ParamSpec, p model.Params) (map[string]float64, error) {
	known := make(map[string]ParamSpec, len(specs))
	out := make(map[string]float64, len(specs))
	for _, ps := range specs {
		known[ps.Name] = ps
		out[ps.Name] = ps.Default
	}

	var unknown []string
	for k := range p {
		if _, ok := known[k]; !ok {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, model.Errorf(model.KindInvalidParameter, id, "unknown parameter(s) %s", strings.Join(unknown, ", "))
	}

	for _, ps := range specs {
		v, ok := p[ps.Name]
		if !ok {
			continue
		}
		switch {
		case math.IsNaN(v) || math.IsInf(v, 0):
			return nil, model.Errorf(model.KindInvalidParameter, id, "%s must be finite", ps.Name)
		case v < ps.Min || v > ps.Max:
			return nil, model.Errorf(model.KindInvalidParameter, id, "%s=%g outside [%g, %g]", ps.Name, v, ps.Min, ps.Max)
		case ps.Integer && v != math.Trunc(v):
			return nil, model.Errorf(model.KindInvalidParameter, id, "%s must be a whole number", ps.Name)
		}
		out[ps.Name] = v
	}
	return out, nil
}

func frameLine(id string, frame model.IndicatorFrame, key string, n int) ([]float64, error) {
	v, ok := frame[key]
	if !ok {
		return nil, model.Errorf(model.KindInternal, id, "indicator %s missing from frame", key)
	}
	if len(v) != n {
		return nil, model.Errorf(model.KindInternal, id, "indicator %s has %d values for %d bars", key, len(v), n)
	}
	return v, nil
}

// rule is the per-bar view a strategy exposes to the position tracker.
// enter and exit are only consulted on bars where the tracker is flat or
// long respectively.
type rule struct {
	enter func(i int) bool
	exit  func(i int) bool
	score func(i int) float64
}

// track runs the flat/long state machine over the bars and emits a buy or
// sell only on the bar where the state changes. Every other bar holds.
func track(s *model.Series, r rule) model.Signals {
	out := make(model.Signals, s.Len())
	long := false
	for i, p := range s.Points {
		sig := model.Signal{Date: p.Date, Action: model.Hold, Score: r.score(i)}
		switch {
		case !long && r.enter(i):
			sig.Action = model.Buy
			long = true
		case long && r.exit(i):
			sig.Action = model.Sell
			long = false
		}
		out[i] = sig
	}
	return out
}

// crossedBelow reports v moving from at or above level to below it. The
// first defined value counts as a crossing when it is already below, so a
// line that warms up past the level still triggers once.
func crossedBelow(v []float64, i int, level float64) bool {
	if !calculator.Defined(v[i]) || v[i] >= level {
		return false
	}
	return firstDefined(v, i) || v[i-1] >= level
}

func crossedAbove(v []float64, i int, level float64) bool {
	if !calculator.Defined(v[i]) || v[i] <= level {
		return false
	}
	return firstDefined(v, i) || v[i-1] <= level
}

// firstDefined reports whether v[i] is defined and v[i-1] is not.
func firstDefined(v []float64, i int) bool {
	return calculator.Defined(v[i]) && (i == 0 || !calculator.Defined(v[i-1]))
}

// crossedOver reports a crossing from a at or below b to a above b.
func crossedOver(a, b []float64, i int) bool {
	if i == 0 || !defined(a[i-1], b[i-1], a[i], b[i]) {
		return false
	}
	return a[i-1] <= b[i-1] && a[i] > b[i]
}

func crossedUnder(a, b []float64, i int) bool {
	if i == 0 || !defined(a[i-1], b[i-1], a[i], b[i]) {
		return false
	}
	return a[i-1] >= b[i-1] && a[i] < b[i]
}

func defined(vs ...float64) bool {
	for _, v := range vs {
		if !calculator.Defined(v) {
			return false
		}
	}
	return true
}

func at(v []float64) func(i int) float64 {
	return func(i int) float64 { return v[i] }
}
