package pipeline

import (
	"strings"
	"time"

	"QuantCore/internal/backtest"
	"QuantCore/internal/model"
	"QuantCore/internal/ranking"
	"QuantCore/internal/strategy"
)

// plan is a validated request. Everything in it is read-only once built.
type plan struct {
	ids         []string
	strategies  map[string]strategy.Strategy
	params      map[string]model.Params
	universe    []string
	data        map[string][]model.RawRecord
	calendar    model.Calendar
	resample    model.Calendar
	from, to    time.Time
	weights     map[string]float64
	outputCount int
	cfg         backtest.Config
}

// plan checks everything that would fail the request as a whole, before
// any symbol is touched.
func (e *Engine) plan(req *model.Request) (*plan, error) {
	if req == nil {
		return nil, model.Errorf(model.KindInvalidParameter, "request", "empty request")
	}
	if len(req.StrategyIDs) == 0 {
		return nil, model.Errorf(model.KindInvalidParameter, "strategy_ids", "at least one strategy is required")
	}
	if len(req.Universe) == 0 {
		return nil, model.Errorf(model.KindInvalidParameter, "universe", "at least one symbol is required")
	}
	if req.OutputCount < 0 {
		return nil, model.Errorf(model.KindInvalidParameter, "output_count", "must not be negative, got %d", req.OutputCount)
	}

	p := &plan{
		strategies:  make(map[string]strategy.Strategy, len(req.StrategyIDs)),
		params:      make(map[string]model.Params, len(req.StrategyIDs)),
		data:        req.MarketData,
		calendar:    req.Calendar,
		resample:    req.Resample,
		outputCount: req.OutputCount,
	}
	for _, id := range req.StrategyIDs {
		if _, dup := p.strategies[id]; dup {
			continue
		}
		st, err := e.registry.New(id, req.Parameters[id])
		if err != nil {
			return nil, err
		}
		p.ids = append(p.ids, id)
		p.strategies[id] = st
		p.params[id] = req.Parameters[id]
	}
	for id := range req.Parameters {
		if _, ok := p.strategies[id]; !ok {
			return nil, model.Errorf(model.KindInvalidParameter, id, "parameters given for a strategy that was not requested")
		}
	}

	if p.calendar != "" && !p.calendar.Valid() {
		return nil, model.Errorf(model.KindInvalidParameter, "calendar", "unknown calendar %q", p.calendar)
	}
	if p.resample != "" && !p.resample.Valid() {
		return nil, model.Errorf(model.KindInvalidParameter, "resample", "unknown calendar %q", p.resample)
	}

	var err error
	if p.from, p.to, err = parseRange(req.From, req.To); err != nil {
		return nil, err
	}
	if p.cfg, err = e.backtestConfig(req.InitialCapital, req.FillPolicy); err != nil {
		return nil, err
	}

	if len(req.Weights) > 0 {
		for _, id := range sortedKeys(req.Weights) {
			if _, ok := p.strategies[id]; !ok {
				return nil, model.Errorf(model.KindInvalidParameter, id, "weight given for a strategy that was not requested")
			}
		}
		if p.weights, err = ranking.NormalizeWeights(req.Weights); err != nil {
			return nil, err
		}
		for _, id := range p.ids {
			if _, ok := p.weights[id]; !ok {
				p.weights[id] = 0
			}
		}
	} else {
		p.weights = make(map[string]float64, len(p.ids))
		for _, id := range p.ids {
			p.weights[id] = 1 / float64(len(p.ids))
		}
	}

	seen := make(map[string]bool, len(req.Universe))
	for _, sym := range req.Universe {
		sym = strings.TrimSpace(sym)
		if sym == "" {
			return nil, model.Errorf(model.KindInvalidParameter, "universe", "empty symbol")
		}
		if seen[sym] {
			continue
		}
		seen[sym] = true
		p.universe = append(p.universe, sym)
	}
	return p, nil
}

var rangeLayouts = []string{"2006-01-02", time.RFC3339}

func parseBound(name, s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range rangeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, model.Errorf(model.KindInvalidParameter, name, "unparseable date %q", s)
}

func parseRange(from, to string) (time.Time, time.Time, error) {
	f, err := parseBound("from", from)
	if err != nil {
		return f, f, err
	}
	t, err := parseBound("to", to)
	if err != nil {
		return f, t, err
	}
	if !f.IsZero() && !t.IsZero() && t.Before(f) {
		return f, t, model.Errorf(model.KindInvalidParameter, "to", "%s is before %s", to, from)
	}
	return f, t, nil
}
