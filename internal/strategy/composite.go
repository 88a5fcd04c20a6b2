package strategy

import (
	"sort"
	"strings"

	"QuantCore/internal/calculator"
	"QuantCore/internal/model"
)

// CompositeParams configures a multi-factor strategy. Member parameters are
// passed as "<member>.<name>", e.g. "low_pe.max_pe".
type CompositeParams struct {
	Threshold float64
	Members   map[string]model.Params
}

type composite struct {
	id        string
	threshold float64
	members   []Strategy
}

// compositeDefinition builds the catalog entry of a composite from its
// member definitions. Member order is fixed by the caller.
func compositeDefinition(id, desc string, members ...Definition) Definition {
	params := []ParamSpec{
		{Name: "threshold", Default: 1, Min: 0.01, Max: 1, Description: "fraction of members that must hold a position"},
	}
	ids := make([]string, len(members))
	for i, m := range members {
		ids[i] = m.ID
		for _, ps := range m.Params {
			ps.Name = m.ID + "." + ps.Name
			params = append(params, ps)
		}
	}
	return Definition{
		ID:          id,
		Category:    CategoryComposite,
		Description: desc + " (" + strings.Join(ids, " + ") + ")",
		Params:      params,
		New: func(raw model.Params) (Strategy, error) {
			cp, err := splitComposite(id, params[:1], ids, raw)
			if err != nil {
				return nil, err
			}
			c := &composite{id: id, threshold: cp.Threshold}
			for _, m := range members {
				st, err := m.New(cp.Members[m.ID])
				if err != nil {
					return nil, err
				}
				c.members = append(c.members, st)
			}
			return c, nil
		},
	}
}

func splitComposite(id string, own []ParamSpec, members []string, raw model.Params) (CompositeParams, error) {
	top := model.Params{}
	cp := CompositeParams{Members: make(map[string]model.Params, len(members))}
	for _, m := range members {
		cp.Members[m] = model.Params{}
	}
	var unknown []string
	for k, v := range raw {
		member, name, ok := strings.Cut(k, ".")
		if !ok {
			top[k] = v
			continue
		}
		sub, known := cp.Members[member]
		if !known {
			unknown = append(unknown, k)
			continue
		}
		sub[name] = v
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return cp, model.Errorf(model.KindInvalidParameter, id, "unknown parameter(s) %s", strings.Join(unknown, ", "))
	}
	v, err := resolve(id, own, top)
	if err != nil {
		return cp, err
	}
	cp.Threshold = v["threshold"]
	return cp, nil
}

func (c *composite) ID() string         { return c.id }
func (c *composite) Category() Category { return CategoryComposite }

func (c *composite) Indicators() []calculator.Spec {
	var out []calculator.Spec
	for _, m := range c.members {
		out = append(out, m.Indicators()...)
	}
	return out
}

// Evaluate runs every member and holds a position while at least threshold
// of them do. The score is the fraction of members holding.
func (c *composite) Evaluate(s *model.Series, frame model.IndicatorFrame) (model.Signals, error) {
	n := s.Len()
	held := make([]int, n)
	for _, m := range c.members {
		sigs, err := m.Evaluate(s, frame)
		if err != nil {
			return nil, err
		}
		long := false
		for i, sig := range sigs {
			switch sig.Action {
			case model.Buy:
				long = true
			case model.Sell:
				long = false
			}
			if long {
				held[i]++
			}
		}
	}

	frac := make([]float64, n)
	for i, h := range held {
		frac[i] = float64(h) / float64(len(c.members))
	}
	const eps = 1e-12
	return track(s, rule{
		enter: func(i int) bool { return frac[i]+eps >= c.threshold },
		exit:  func(i int) bool { return frac[i]+eps < c.threshold },
		score: at(frac),
	}), nil
}
