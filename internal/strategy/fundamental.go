package strategy

import (
	"math"

	"QuantCore/internal/calculator"
	"QuantCore/internal/model"
)

// Fundamental strategies act on levels rather than crossings: the position
// opens on the first bar that qualifies and closes on the first bar that
// breaches the exit level.

// ThresholdParams configures a single-ratio screen with separate entry and
// exit levels (low_pe, low_pb, peg_growth).
type ThresholdParams struct {
	Max  float64
	Exit float64
}

type ratioScreen struct {
	id       string
	category Category
	kind     calculator.Kind
	p        ThresholdParams
	score    func(v float64) float64
}

func ratioParams(name, label string, def, exit float64) []ParamSpec {
	return []ParamSpec{
		{Name: "max_" + name, Default: def, Min: 1e-9, Max: 1e6, Description: "buy when " + label + " is positive and at or below this"},
		{Name: "exit_" + name, Default: exit, Min: 1e-9, Max: 1e6, Description: "sell when " + label + " rises above this"},
	}
}

var (
	lowPEParams = ratioParams("pe", "P/E", 15, 25)
	lowPBParams = ratioParams("pb", "P/B", 1.5, 3)
	pegParams   = ratioParams("peg", "PEG", 1, 2)
)

func newRatioScreen(id string, cat Category, kind calculator.Kind, name string, specs []ParamSpec, score func(float64) float64) func(model.Params) (Strategy, error) {
	return func(raw model.Params) (Strategy, error) {
		v, err := resolve(id, specs, raw)
		if err != nil {
			return nil, err
		}
		p := ThresholdParams{Max: v["max_"+name], Exit: v["exit_"+name]}
		if p.Exit < p.Max {
			return nil, model.Errorf(model.KindInvalidParameter, id, "exit_%s %g below max_%s %g", name, p.Exit, name, p.Max)
		}
		return &ratioScreen{id: id, category: cat, kind: kind, p: p, score: score}, nil
	}
}

func (r *ratioScreen) ID() string                    { return r.id }
func (r *ratioScreen) Category() Category            { return r.category }
func (r *ratioScreen) Indicators() []calculator.Spec { return []calculator.Spec{calculator.Fundamental(r.kind)} }

func (r *ratioScreen) Evaluate(s *model.Series, frame model.IndicatorFrame) (model.Signals, error) {
	v, err := frameLine(r.id, frame, calculator.Fundamental(r.kind).Key(), s.Len())
	if err != nil {
		return nil, err
	}
	return track(s, rule{
		enter: func(i int) bool { return defined(v[i]) && v[i] > 0 && v[i] <= r.p.Max },
		exit:  func(i int) bool { return defined(v[i]) && (v[i] > r.p.Exit || v[i] <= 0) },
		score: func(i int) float64 {
			if !defined(v[i]) || v[i] <= 0 {
				return math.NaN()
			}
			return r.score(v[i])
		},
	}), nil
}

func inverse(v float64) float64 { return 1 / v }
func negate(v float64) float64  { return -v }

// QualityParams configures quality_roe.
type QualityParams struct {
	MinROE          float64
	MaxDebtToEquity float64
}

type qualityROE struct{ p QualityParams }

var qualityParams = []ParamSpec{
	{Name: "min_roe", Default: 0.15, Min: -1, Max: 10, Description: "minimum return on equity, fractional"},
	{Name: "max_debt_to_equity", Default: 1, Min: 0, Max: 100, Description: "maximum debt to equity; unknown leverage does not disqualify"},
}

func newQualityROE(raw model.Params) (Strategy, error) {
	v, err := resolve("quality_roe", qualityParams, raw)
	if err != nil {
		return nil, err
	}
	return &qualityROE{p: QualityParams{MinROE: v["min_roe"], MaxDebtToEquity: v["max_debt_to_equity"]}}, nil
}

func (q *qualityROE) ID() string         { return "quality_roe" }
func (q *qualityROE) Category() Category { return CategoryQuality }
func (q *qualityROE) Indicators() []calculator.Spec {
	return []calculator.Spec{calculator.Fundamental(calculator.KindROE), calculator.Fundamental(calculator.KindDebtToEquity)}
}

func (q *qualityROE) Evaluate(s *model.Series, frame model.IndicatorFrame) (model.Signals, error) {
	roe, err := frameLine(q.ID(), frame, calculator.Fundamental(calculator.KindROE).Key(), s.Len())
	if err != nil {
		return nil, err
	}
	de, err := frameLine(q.ID(), frame, calculator.Fundamental(calculator.KindDebtToEquity).Key(), s.Len())
	if err != nil {
		return nil, err
	}
	qualifies := func(i int) bool {
		return defined(roe[i]) && roe[i] >= q.p.MinROE && (!defined(de[i]) || de[i] <= q.p.MaxDebtToEquity)
	}
	return track(s, rule{
		enter: qualifies,
		exit:  func(i int) bool { return defined(roe[i]) && !qualifies(i) },
		score: at(roe),
	}), nil
}

// DividendParams configures high_dividend.
type DividendParams struct {
	MinYield float64
}

type highDividend struct{ p DividendParams }

var dividendParams = []ParamSpec{
	{Name: "min_yield", Default: 0.03, Min: 0, Max: 1, Description: "minimum dividend yield, fractional"},
}

func newHighDividend(raw model.Params) (Strategy, error) {
	v, err := resolve("high_dividend", dividendParams, raw)
	if err != nil {
		return nil, err
	}
	return &highDividend{p: DividendParams{MinYield: v["min_yield"]}}, nil
}

func (h *highDividend) ID() string         { return "high_dividend" }
func (h *highDividend) Category() Category { return CategoryValue }
func (h *highDividend) Indicators() []calculator.Spec {
	return []calculator.Spec{calculator.Fundamental(calculator.KindDividendYield)}
}

func (h *highDividend) Evaluate(s *model.Series, frame model.IndicatorFrame) (model.Signals, error) {
	y, err := frameLine(h.ID(), frame, calculator.Fundamental(calculator.KindDividendYield).Key(), s.Len())
	if err != nil {
		return nil, err
	}
	return track(s, rule{
		enter: func(i int) bool { return defined(y[i]) && y[i] >= h.p.MinYield },
		exit:  func(i int) bool { return defined(y[i]) && y[i] < h.p.MinYield },
		score: at(y),
	}), nil
}
